package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/ginjaninja78/receipt-batch-composer/internal/sanitize"
)

// ErrNotFound is returned when no audit row has the given pivot id.
var ErrNotFound = errors.New("audit entry not found")

// Stage is one acknowledgement the vendor sends for a batch.
type Stage string

const (
	StageFirstHandshake  Stage = "hshake1"
	StageSecondHandshake Stage = "hshake2"
	StageApproved        Stage = "approved"
	StageDisapproved     Stage = "disapproved"
	StageCancelled       Stage = "cancelled"
)

// alertColumns maps a stage to the column recording that a missing
// acknowledgement was reported.
var alertColumns = map[Stage]string{
	StageFirstHandshake:  "hsh1_email_sent",
	StageSecondHandshake: "hsh2_email_sent",
	StageApproved:        "app_email_sent",
	StageDisapproved:     "dis_email_sent",
	StageCancelled:       "can_email_sent",
}

// ParseStage validates a stage name.
func ParseStage(name string) (Stage, error) {
	stage := Stage(strings.ToLower(name))
	if _, ok := alertColumns[stage]; !ok {
		return "", fmt.Errorf("unknown stage %q", name)
	}
	return stage, nil
}

// Entry is one audit row.
type Entry struct {
	PivotID      string
	FacilityCode string
	Folder       string
	OrderNum     string
	FileName     string
	SentAt       time.Time
	RunID        string

	BillCount   int
	EbillCount  int
	MailedCount int

	// Metadata is cleaned before it is stored.
	Metadata sanitize.Map
}

// PivotID joins an order number and a run counter.
func PivotID(orderNum, counter string) string {
	return orderNum + counter
}

// ProjectCode extracts the project code from a file name: the two
// dot-separated parts before the extension ("/in/client.ABC.123.csv" gives
// "ABC.123").
func ProjectCode(path string) string {
	parts := strings.Split(filepath.Base(path), ".")
	start := len(parts) - 3
	if start < 0 {
		start = 0
	}
	end := len(parts) - 1
	if end < start {
		return ""
	}
	return strings.Join(parts[start:end], ".")
}

// =============================================================================
// STORE
// =============================================================================

// Store is the SQLite audit database.
type Store struct {
	db       *sql.DB
	path     string
	facility string
}

// Open opens (and creates, if needed) the audit database.
// It enables WAL mode and foreign key constraints.
func Open(dbPath, facilityCode string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL", dbPath)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: dbPath, facility: facilityCode}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record inserts an audit row. A row that already exists is left
// untouched.
//
// RETURNS:
//   - true if the row was inserted, false if it already existed.
//   - An error if the insert fails.
func (s *Store) Record(ctx context.Context, e Entry) (bool, error) {
	if e.PivotID == "" {
		return false, fmt.Errorf("audit entry needs a pivot id")
	}
	if e.FacilityCode == "" {
		e.FacilityCode = s.facility
	}
	if e.SentAt.IsZero() {
		e.SentAt = time.Now()
	}

	var metadata sql.NullString
	if e.Metadata != nil {
		data, err := json.Marshal(sanitize.Clean(e.Metadata))
		if err != nil {
			return false, fmt.Errorf("failed to encode metadata: %w", err)
		}
		metadata = sql.NullString{String: string(data), Valid: true}
	}

	var inserted bool
	err := s.transaction(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO aud_qty (
				pivot_id, facility_code, folder, order_num, file_name, sent_to_pivot,
				run_id, bill_cnt, ebill_cnt, mailed_cnt, metadata
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.PivotID, e.FacilityCode, e.Folder, e.OrderNum, e.FileName,
			e.SentAt.UTC().Format(timeLayout),
			e.RunID, e.BillCount, e.EbillCount, e.MailedCount, metadata,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		inserted = n > 0

		_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO timestamps (pivot_id) VALUES (?)`, e.PivotID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to record audit entry: %w", err)
	}

	return inserted, nil
}

// Get returns one audit row.
func (s *Store) Get(ctx context.Context, pivotID string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, selectEntry+` WHERE a.pivot_id = ?`, pivotID)
	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, pivotID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entry: %w", err)
	}
	return e, nil
}

// Acknowledge stamps the arrival time of an acknowledgement.
func (s *Store) Acknowledge(ctx context.Context, pivotID string, stage Stage, at time.Time) error {
	if _, ok := alertColumns[stage]; !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE timestamps SET %s = ? WHERE pivot_id = ?`, stage),
		at.UTC().Format(timeLayout), pivotID,
	)
	if err != nil {
		return fmt.Errorf("failed to acknowledge %s: %w", pivotID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, pivotID)
	}
	return nil
}

// Overdue lists entries whose acknowledgement for stage is missing, was
// not reported yet, and was sent more than limit before now. The second
// handshake is only overdue once the first has arrived.
func (s *Store) Overdue(ctx context.Context, stage Stage, limit time.Duration, now time.Time) ([]Entry, error) {
	alertCol, ok := alertColumns[stage]
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", stage)
	}

	query := selectEntry + fmt.Sprintf(`
		WHERE t.%s IS NULL AND t.%s IS NULL AND a.sent_to_pivot < ?`, stage, alertCol)
	if stage == StageSecondHandshake {
		query += ` AND t.hshake1 IS NOT NULL`
	}
	query += ` ORDER BY a.sent_to_pivot`

	cutoff := now.Add(-limit).UTC().Format(timeLayout)
	rows, err := s.db.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to query overdue entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read overdue entries: %w", err)
	}

	return entries, nil
}

// MarkAlerted records that the missing acknowledgement of each entry was
// reported, so it is not reported again.
func (s *Store) MarkAlerted(ctx context.Context, stage Stage, pivotIDs []string) error {
	alertCol, ok := alertColumns[stage]
	if !ok {
		return fmt.Errorf("unknown stage %q", stage)
	}

	return s.transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`UPDATE timestamps SET %s = 'Y' WHERE pivot_id = ?`, alertCol))
		if err != nil {
			return fmt.Errorf("failed to prepare update: %w", err)
		}
		defer stmt.Close()

		for _, id := range pivotIDs {
			if _, err := stmt.ExecContext(ctx, id); err != nil {
				return fmt.Errorf("failed to mark %s: %w", id, err)
			}
		}
		return nil
	})
}

// transaction executes fn within a transaction. If fn returns an error, the
// transaction is rolled back.
func (s *Store) transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// SCANNING
// =============================================================================

const selectEntry = `
	SELECT a.pivot_id, a.facility_code, a.folder, COALESCE(a.order_num, ''),
		COALESCE(a.file_name, ''), a.sent_to_pivot, COALESCE(a.run_id, ''),
		COALESCE(a.bill_cnt, 0), COALESCE(a.ebill_cnt, 0), COALESCE(a.mailed_cnt, 0),
		a.metadata
	FROM aud_qty AS a JOIN timestamps AS t ON a.pivot_id = t.pivot_id`

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		e        Entry
		sentAt   string
		metadata sql.NullString
	)
	err := row.Scan(
		&e.PivotID, &e.FacilityCode, &e.Folder, &e.OrderNum,
		&e.FileName, &sentAt, &e.RunID,
		&e.BillCount, &e.EbillCount, &e.MailedCount,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	e.SentAt, err = time.ParseInLocation(timeLayout, sentAt, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("invalid sent time %q: %w", sentAt, err)
	}

	if metadata.Valid {
		e.Metadata, err = decodeMetadata(metadata.String)
		if err != nil {
			return nil, err
		}
	}

	return &e, nil
}

func decodeMetadata(data string) (sanitize.Map, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return nil, fmt.Errorf("invalid metadata: %w", err)
	}
	m, _ := fromJSON(raw).(sanitize.Map)
	return m, nil
}

// fromJSON converts a decoded JSON value into a sanitize.Value. JSON null
// and booleans have no sanitize shape and are dropped.
func fromJSON(v any) sanitize.Value {
	switch t := v.(type) {
	case float64:
		return sanitize.Number(t)
	case string:
		return sanitize.Text(t)
	case map[string]any:
		m := make(sanitize.Map, len(t))
		for k, item := range t {
			if val := fromJSON(item); val != nil {
				m[k] = val
			}
		}
		return m
	case []any:
		l := make(sanitize.List, 0, len(t))
		for _, item := range t {
			if val := fromJSON(item); val != nil {
				l = append(l, val)
			}
		}
		return l
	default:
		return nil
	}
}
