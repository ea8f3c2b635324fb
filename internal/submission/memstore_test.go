package submission

import (
	"context"
	"errors"
	"sync"
	"time"

	"surveyrecord/internal/accesscode"
	"surveyrecord/internal/catalogue"
	"surveyrecord/internal/response"
)

// memStore is an in-memory Store with per-code row locks and staged writes that only
// become visible on Commit, mirroring read-committed + SELECT ... FOR UPDATE.
type memStore struct {
	mu      sync.Mutex
	codes   map[string]*accesscode.AccessCode
	records []response.Record
	locks   map[string]*sync.Mutex

	findErr   error
	insertErr error
	commitErr error
	onBegin   func()
	afterLock func()
	begins    int
	rollbacks int
	commits   int
}

func newMemStore(codes ...accesscode.AccessCode) *memStore {
	s := &memStore{
		codes: make(map[string]*accesscode.AccessCode),
		locks: make(map[string]*sync.Mutex),
	}
	for i := range codes {
		c := codes[i]
		s.codes[c.Code] = &c
		s.locks[c.Code] = &sync.Mutex{}
	}
	return s
}

func (s *memStore) FindCode(ctx context.Context, code string) (*accesscode.AccessCode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	c, ok := s.codes[code]
	if !ok {
		return nil, accesscode.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) CodeHasRecords(ctx context.Context, codeID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasRecordsLocked(codeID), nil
}

func (s *memStore) hasRecordsLocked(codeID int64) bool {
	for _, r := range s.records {
		if r.CodeID == codeID {
			return true
		}
	}
	return false
}

func (s *memStore) Begin(ctx context.Context) (Tx, error) {
	s.mu.Lock()
	s.begins++
	hook := s.onBegin
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return &memTx{store: s, ctx: ctx}, nil
}

func (s *memStore) recordCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *memStore) recordsFor(codeID int64) []response.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]response.Record, 0)
	for _, r := range s.records {
		if r.CodeID == codeID {
			out = append(out, r)
		}
	}
	return out
}

func (s *memStore) code(code string) accesscode.AccessCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.codes[code]
}

func (s *memStore) setUsed(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	s.codes[code].Used = true
	s.codes[code].UsedAt = &now
}

type memTx struct {
	store   *memStore
	ctx     context.Context
	held    *sync.Mutex
	pending []response.Record
	usedID  int64
	usedAt  time.Time
	done    bool
}

func (t *memTx) LockCode(ctx context.Context, code string) (*accesscode.AccessCode, error) {
	t.store.mu.Lock()
	lock, ok := t.store.locks[code]
	t.store.mu.Unlock()
	if !ok {
		return nil, accesscode.ErrNotFound
	}
	lock.Lock()
	t.held = lock

	if hook := t.store.afterLock; hook != nil {
		defer hook()
	}

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	cp := *t.store.codes[code]
	return &cp, nil
}

func (t *memTx) CodeHasRecords(ctx context.Context, codeID int64) (bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	return t.store.hasRecordsLocked(codeID), nil
}

func (t *memTx) InsertRecords(ctx context.Context, recs []response.Record) error {
	if t.store.insertErr != nil {
		return t.store.insertErr
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t.pending = append(t.pending, recs...)
	return nil
}

func (t *memTx) MarkCodeUsed(ctx context.Context, codeID int64, at time.Time) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for _, c := range t.store.codes {
		if c.ID == codeID {
			if c.Used {
				return accesscode.ErrConsumed
			}
			t.usedID = codeID
			t.usedAt = at
			return nil
		}
	}
	return accesscode.ErrNotFound
}

func (t *memTx) Commit() error {
	if t.done {
		return errors.New("tx already done")
	}
	if t.store.commitErr != nil {
		return t.store.commitErr
	}
	if err := t.ctx.Err(); err != nil {
		return err
	}
	t.store.mu.Lock()
	t.store.records = append(t.store.records, t.pending...)
	for _, c := range t.store.codes {
		if c.ID == t.usedID {
			at := t.usedAt
			c.Used = true
			c.UsedAt = &at
		}
	}
	t.store.commits++
	t.store.mu.Unlock()
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	if t.done {
		return nil
	}
	t.store.mu.Lock()
	t.store.rollbacks++
	t.store.mu.Unlock()
	t.pending = nil
	t.finish()
	return nil
}

func (t *memTx) finish() {
	t.done = true
	if t.held != nil {
		t.held.Unlock()
		t.held = nil
	}
}

type staticCatalogue struct {
	middle map[int64]*catalogue.MiddleSurvey
	err    error
}

func (c *staticCatalogue) GetSurvey(ctx context.Context, id int64) (*catalogue.Survey, error) {
	for _, ms := range c.middle {
		if sv, ok := ms.Survey(id); ok {
			return sv, nil
		}
	}
	return nil, catalogue.ErrSurveyNotFound
}

func (c *staticCatalogue) GetMiddleSurvey(ctx context.Context, id int64) (*catalogue.MiddleSurvey, error) {
	if c.err != nil {
		return nil, c.err
	}
	ms, ok := c.middle[id]
	if !ok {
		return nil, catalogue.ErrMiddleSurveyNotFound
	}
	return ms, nil
}
