package oracle

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"btcoracle/internal/errs"
)

// Submission statuses. The pipeline writes submitted and failed; an
// external confirmation watcher may later advance submitted records.
const (
	StatusSubmitted = "submitted"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// SubmissionRecord is one ledger entry for a submission attempt.
type SubmissionRecord struct {
	ID            string    `json:"id"`
	TxID          string    `json:"txid"`
	PriceSats     int64     `json:"submittedPriceSatoshis"`
	SubmittedAt   time.Time `json:"submissionTimestamp"`
	Status        string    `json:"status"`
	Reason        string    `json:"reason"`
	PercentChange float64   `json:"percentChange"`
	SourceCount   int       `json:"sourceCount"`
}

// Ledger is the audit record of submission attempts.
type Ledger interface {
	Insert(ctx context.Context, rec *SubmissionRecord) error
	// Latest returns the most recent submission attempt, or ErrNoData.
	Latest(ctx context.Context) (*SubmissionRecord, error)
	Recent(ctx context.Context, limit int) ([]*SubmissionRecord, error)
	// UpdateStatus lets a confirmation watcher advance a record.
	UpdateStatus(ctx context.Context, txid, status string) error
}

// SQLLedger persists submission records in Postgres.
type SQLLedger struct {
	db *sql.DB
}

// NewSQLLedger creates a Postgres-backed submission ledger.
func NewSQLLedger(db *sql.DB) *SQLLedger {
	return &SQLLedger{db: db}
}

// Insert appends one submission record.
func (l *SQLLedger) Insert(ctx context.Context, rec *SubmissionRecord) error {
	query := `
		INSERT INTO submission_records (
			id, txid, price_sats, submitted_at, status, reason, percent_change, source_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if _, err := l.db.ExecContext(ctx, query,
		rec.ID, rec.TxID, rec.PriceSats, rec.SubmittedAt,
		rec.Status, rec.Reason, rec.PercentChange, rec.SourceCount); err != nil {
		return fmt.Errorf("failed to insert submission record: %w", err)
	}
	return nil
}

// Latest returns the most recent submission attempt, or ErrNoData.
func (l *SQLLedger) Latest(ctx context.Context) (*SubmissionRecord, error) {
	rows, err := l.recent(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errs.ErrNoData
	}
	return rows[0], nil
}

// Recent returns up to limit most recent submission records.
func (l *SQLLedger) Recent(ctx context.Context, limit int) ([]*SubmissionRecord, error) {
	return l.recent(ctx, limit)
}

func (l *SQLLedger) recent(ctx context.Context, limit int) ([]*SubmissionRecord, error) {
	query := `
		SELECT id, txid, price_sats, submitted_at, status, reason, percent_change, source_count
		FROM submission_records
		ORDER BY submitted_at DESC
		LIMIT $1
	`
	rows, err := l.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submission records: %w", err)
	}
	defer rows.Close()

	var records []*SubmissionRecord
	for rows.Next() {
		var r SubmissionRecord
		if err := rows.Scan(&r.ID, &r.TxID, &r.PriceSats, &r.SubmittedAt,
			&r.Status, &r.Reason, &r.PercentChange, &r.SourceCount); err != nil {
			return nil, fmt.Errorf("failed to scan submission record: %w", err)
		}
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submission records: %w", err)
	}
	return records, nil
}

// UpdateStatus advances the status of a record identified by txid.
func (l *SQLLedger) UpdateStatus(ctx context.Context, txid, status string) error {
	query := `UPDATE submission_records SET status = $1 WHERE txid = $2`
	res, err := l.db.ExecContext(ctx, query, status, txid)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errs.ErrNoData
	}
	return nil
}

// MemoryLedger is the in-memory Ledger used in tests and database-less
// runs.
type MemoryLedger struct {
	mu      sync.RWMutex
	records []SubmissionRecord
}

// NewMemoryLedger creates an in-memory submission ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{}
}

// Insert appends one submission record.
func (l *MemoryLedger) Insert(_ context.Context, rec *SubmissionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, *rec)
	return nil
}

// Latest returns the most recent submission attempt, or ErrNoData.
func (l *MemoryLedger) Latest(_ context.Context) (*SubmissionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.records) == 0 {
		return nil, errs.ErrNoData
	}
	latest := l.records[0]
	for _, r := range l.records[1:] {
		if r.SubmittedAt.After(latest.SubmittedAt) {
			latest = r
		}
	}
	return &latest, nil
}

// Recent returns up to limit most recent submission records.
func (l *MemoryLedger) Recent(_ context.Context, limit int) ([]*SubmissionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*SubmissionRecord, 0, limit)
	for i := len(l.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := l.records[i]
		out = append(out, &r)
	}
	return out, nil
}

// UpdateStatus advances the status of a record identified by txid.
func (l *MemoryLedger) UpdateStatus(_ context.Context, txid, status string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.records {
		if l.records[i].TxID == txid {
			l.records[i].Status = status
			return nil
		}
	}
	return errs.ErrNoData
}
