package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ginjaninja78/receipt-batch-composer/internal/config"
)

// Notifier receives the entries whose acknowledgement is overdue.
type Notifier interface {
	Notify(ctx context.Context, stage Stage, overdue []Entry) error
}

// SlogNotifier reports overdue entries as warnings.
type SlogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n *SlogNotifier) Notify(_ context.Context, stage Stage, overdue []Entry) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	for _, e := range overdue {
		logger.Warn("acknowledgement missing",
			"stage", string(stage),
			"pivot_id", e.PivotID,
			"file", e.FileName,
			"sent_at", e.SentAt.Format(time.RFC3339),
		)
	}
	return nil
}

// Check is one stage checked by a Monitor.
type Check struct {
	Stage Stage
	Limit time.Duration
}

// Checks returns the handshake checks configured in settings.
func Checks(settings config.AuditSettings) []Check {
	return []Check{
		{Stage: StageFirstHandshake, Limit: time.Duration(settings.FirstAckMinutes) * time.Minute},
		{Stage: StageSecondHandshake, Limit: time.Duration(settings.SecondAckMinutes) * time.Minute},
	}
}

// Monitor reports overdue acknowledgements once.
type Monitor struct {
	Store    *Store
	Notifier Notifier
	Checks   []Check
}

// Run runs every check. Entries are marked as alerted only after the
// notifier accepted them.
//
// RETURNS:
//   - The overdue entries per stage.
//   - An error if a query, the notifier or the update fails.
func (m *Monitor) Run(ctx context.Context, now time.Time) (map[Stage][]Entry, error) {
	found := make(map[Stage][]Entry)

	for _, check := range m.Checks {
		overdue, err := m.Store.Overdue(ctx, check.Stage, check.Limit, now)
		if err != nil {
			return found, err
		}
		if len(overdue) == 0 {
			continue
		}
		found[check.Stage] = overdue

		if err := m.Notifier.Notify(ctx, check.Stage, overdue); err != nil {
			return found, fmt.Errorf("failed to notify %s: %w", check.Stage, err)
		}

		ids := make([]string, len(overdue))
		for i, e := range overdue {
			ids[i] = e.PivotID
		}
		if err := m.Store.MarkAlerted(ctx, check.Stage, ids); err != nil {
			return found, err
		}
	}

	return found, nil
}
