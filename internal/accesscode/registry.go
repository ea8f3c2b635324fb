package accesscode

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound = errors.New("access code not found")
	// ErrConsumed is returned by MarkUsed when the guarded update matched no unused row.
	ErrConsumed = errors.New("access code already consumed")
)

type AccessCode struct {
	ID             int64      `json:"id"`
	Code           string     `json:"code"`
	MiddleSurveyID int64      `json:"middle_survey_id"`
	Used           bool       `json:"used"`
	UsedAt         *time.Time `json:"used_at,omitempty"`
}

type queryable interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// Registry owns the access_codes table. Reads through the pool are snapshots and only
// advisory; the tx variants are what the commit path relies on.
type Registry struct {
	db *sql.DB
}

func NewRegistry(db *sql.DB) *Registry {
	return &Registry{db: db}
}

func (r *Registry) Find(ctx context.Context, code string) (*AccessCode, error) {
	return loadCode(ctx, r.db, code, false)
}

func (r *Registry) HasRecords(ctx context.Context, codeID int64) (bool, error) {
	return hasRecords(ctx, r.db, codeID)
}

// FindForUpdate reads the code row and holds its lock until tx ends.
func (r *Registry) FindForUpdate(ctx context.Context, tx *sql.Tx, code string) (*AccessCode, error) {
	return loadCode(ctx, tx, code, true)
}

func (r *Registry) HasRecordsTx(ctx context.Context, tx *sql.Tx, codeID int64) (bool, error) {
	return hasRecords(ctx, tx, codeID)
}

// MarkUsed flips used to true only if it is still false, so it behaves as a
// compare-and-set even without the row lock.
func (r *Registry) MarkUsed(ctx context.Context, tx *sql.Tx, codeID int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE access_codes
		SET used = TRUE,
			used_at = $2
		WHERE id = $1 AND used = FALSE
	`, codeID, at)
	if err != nil {
		return fmt.Errorf("mark access code used: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark access code used rows: %w", err)
	}
	if n != 1 {
		return ErrConsumed
	}
	return nil
}

func loadCode(ctx context.Context, q queryable, code string, forUpdate bool) (*AccessCode, error) {
	query := `
		SELECT id, code, middle_survey_id, used, used_at
		FROM access_codes
		WHERE code = $1
	`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		ac     AccessCode
		usedAt sql.NullTime
	)
	if err := q.QueryRowContext(ctx, query, code).Scan(&ac.ID, &ac.Code, &ac.MiddleSurveyID, &ac.Used, &usedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load access code: %w", err)
	}
	if usedAt.Valid {
		ac.UsedAt = &usedAt.Time
	}
	return &ac, nil
}

func hasRecords(ctx context.Context, q queryable, codeID int64) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM answer_records
			WHERE code_id = $1
		)
	`, codeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check access code records: %w", err)
	}
	return exists, nil
}
