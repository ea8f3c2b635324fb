package submission

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"surveyrecord/internal/accesscode"
	"surveyrecord/internal/response"
)

// PostgresStore joins the code registry and the record store behind Store.
type PostgresStore struct {
	db      *sql.DB
	codes   *accesscode.Registry
	records *response.Store
}

func NewPostgresStore(db *sql.DB, codes *accesscode.Registry, records *response.Store) *PostgresStore {
	return &PostgresStore{db: db, codes: codes, records: records}
}

func (s *PostgresStore) FindCode(ctx context.Context, code string) (*accesscode.AccessCode, error) {
	return s.codes.Find(ctx, code)
}

func (s *PostgresStore) CodeHasRecords(ctx context.Context, codeID int64) (bool, error) {
	return s.codes.HasRecords(ctx, codeID)
}

// Begin opens a read-committed transaction. The row lock taken by LockCode, not the
// isolation level, serialises competing submissions of one code.
func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &postgresTx{tx: tx, codes: s.codes, records: s.records}, nil
}

type postgresTx struct {
	tx      *sql.Tx
	codes   *accesscode.Registry
	records *response.Store
}

func (t *postgresTx) LockCode(ctx context.Context, code string) (*accesscode.AccessCode, error) {
	return t.codes.FindForUpdate(ctx, t.tx, code)
}

func (t *postgresTx) CodeHasRecords(ctx context.Context, codeID int64) (bool, error) {
	return t.codes.HasRecordsTx(ctx, t.tx, codeID)
}

func (t *postgresTx) InsertRecords(ctx context.Context, recs []response.Record) error {
	return t.records.InsertRecords(ctx, t.tx, recs)
}

func (t *postgresTx) MarkCodeUsed(ctx context.Context, codeID int64, at time.Time) error {
	return t.codes.MarkUsed(ctx, t.tx, codeID, at)
}

func (t *postgresTx) Commit() error {
	return t.tx.Commit()
}

func (t *postgresTx) Rollback() error {
	return t.tx.Rollback()
}
