// Package audit keeps the run metadata of every batch handed to the print
// vendor, and tracks the acknowledgements the vendor sends back.
package audit

// Schema defines the SQL statements to create the audit tables.
const Schema = `
-- One row per batch handed to the vendor. pivot_id is the order number
-- followed by the run counter and is supplied by the caller.
CREATE TABLE IF NOT EXISTS aud_qty (
    pivot_id TEXT PRIMARY KEY,
    facility_code CHAR(6) NOT NULL DEFAULT 'LGN',
    folder TEXT NOT NULL,
    zip_file_name TEXT,
    order_num CHAR(14),
    sent_to_pivot TEXT NOT NULL,       -- UTC, 2006-01-02 15:04:05
    print_date TEXT,
    bill_type CHAR(12),
    file_name TEXT,
    bill_mgr_email TEXT,
    bill_cnt INTEGER,
    ebill_cnt INTEGER,
    mailed_cnt INTEGER,
    run_id TEXT,
    metadata TEXT                      -- JSON object
);

-- Acknowledgement stamps. A NULL stage column means the acknowledgement
-- has not arrived; the *_email_sent column records that it was reported.
CREATE TABLE IF NOT EXISTS timestamps (
    pivot_id TEXT PRIMARY KEY REFERENCES aud_qty(pivot_id) ON DELETE CASCADE,
    hshake1 TEXT,
    hsh1_email_sent TEXT,
    hshake2 TEXT,
    hsh2_email_sent TEXT,
    approved TEXT,
    app_email_sent TEXT,
    disapproved TEXT,
    dis_email_sent TEXT,
    cancelled TEXT,
    can_email_sent TEXT
);

CREATE INDEX IF NOT EXISTS idx_aud_qty_sent
    ON aud_qty(sent_to_pivot);
`

// timeLayout is the text layout of every timestamp column. It sorts
// lexically in time order.
const timeLayout = "2006-01-02 15:04:05"
