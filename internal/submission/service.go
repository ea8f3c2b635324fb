package submission

import (
	"context"
	"errors"
	"runtime"
	"time"

	"surveyrecord/internal/accesscode"
	"surveyrecord/internal/catalogue"
	"surveyrecord/internal/response"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store is everything the committer needs from persistence: snapshot code reads and a
// way to open a transaction.
type Store interface {
	CodeReader
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a transaction handle scoped to one commit. Rollback after Commit is a no-op.
type Tx interface {
	LockCode(ctx context.Context, code string) (*accesscode.AccessCode, error)
	CodeHasRecords(ctx context.Context, codeID int64) (bool, error)
	InsertRecords(ctx context.Context, recs []response.Record) error
	MarkCodeUsed(ctx context.Context, codeID int64, at time.Time) error
	Commit() error
	Rollback() error
}

type Config struct {
	Messages Messages
	// Workers bounds parallel answer validation; <= 0 uses GOMAXPROCS.
	Workers int
	// Timeout bounds the commit transaction; <= 0 leaves only the caller's deadline.
	Timeout time.Duration
}

type Service struct {
	store     Store
	catalogue catalogue.Reader
	codes     *CodeValidator
	msgs      Messages
	workers   int
	timeout   time.Duration
	now       func() time.Time
	newID     func() uuid.UUID
}

type SurveyInput struct {
	SurveyID  int64
	Questions []AnswerInput
}

type Request struct {
	Code    string
	Surveys []SurveyInput
}

type Receipt struct {
	SubmissionID   uuid.UUID `json:"submission_id"`
	MiddleSurveyID int64     `json:"questionnaire_id"`
	Code           string    `json:"code"`
	Records        int       `json:"records"`
	CommittedAt    time.Time `json:"committed_at"`
}

func NewService(store Store, cat catalogue.Reader, cfg Config) *Service {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Service{
		store:     store,
		catalogue: cat,
		codes:     NewCodeValidator(store),
		msgs:      cfg.Messages.withDefaults(),
		workers:   workers,
		timeout:   cfg.Timeout,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.New,
	}
}

// Submit validates every answer of req against the questionnaire and, if all of them are
// valid, commits the records and consumes the code in one transaction.
//
// A rejected submission returns a *ValidationError holding the full error map; commit
// failures return a *StorageError. In both cases nothing was persisted.
func (s *Service) Submit(ctx context.Context, middleSurveyID int64, req Request) (*Receipt, error) {
	ms, err := s.catalogue.GetMiddleSurvey(ctx, middleSurveyID)
	if err != nil {
		if errors.Is(err, catalogue.ErrMiddleSurveyNotFound) {
			return nil, err
		}
		return nil, storageErr("load questionnaire", err)
	}

	ve := &ValidationError{}

	code, err := s.codes.Validate(ctx, middleSurveyID, req.Code)
	if err != nil {
		var se *StorageError
		if errors.As(err, &se) {
			return nil, err
		}
		ve.setCode(s.msgs.codeMessage(err), err)
	}

	scope := Scope{
		SubmissionID:   s.newID(),
		MiddleSurveyID: ms.ID,
	}
	if code != nil {
		scope.CodeID = code.ID
	}

	jobs := s.plan(ms, req, ve)
	records, err := s.validateAll(ctx, scope, jobs, ve)
	if err != nil {
		return nil, err
	}

	if !ve.empty() {
		return nil, ve
	}

	committedAt, err := s.commit(ctx, code, records)
	if err != nil {
		return nil, err
	}

	return &Receipt{
		SubmissionID:   scope.SubmissionID,
		MiddleSurveyID: ms.ID,
		Code:           code.Code,
		Records:        len(records),
		CommittedAt:    committedAt,
	}, nil
}

type answerJob struct {
	surveyID int64
	question *catalogue.Question
	input    AnswerInput
}

// plan pairs every question of the questionnaire with its submitted answer. Unknown
// surveys and questions, duplicates and unanswered questions go straight into ve.
func (s *Service) plan(ms *catalogue.MiddleSurvey, req Request, ve *ValidationError) []answerJob {
	submitted := make(map[int64]map[int64][]AnswerInput, len(req.Surveys))
	for _, in := range req.Surveys {
		sv, ok := ms.Survey(in.SurveyID)
		if !ok {
			ve.setSurvey(in.SurveyID, s.msgs.SurveyNotFound, ErrSurveyNotFound)
			continue
		}
		byQuestion := submitted[sv.ID]
		if byQuestion == nil {
			byQuestion = make(map[int64][]AnswerInput, len(in.Questions))
			submitted[sv.ID] = byQuestion
		}
		for _, a := range in.Questions {
			if _, ok := sv.Question(a.QuestionID); !ok {
				ve.addField(&FieldError{SurveyID: sv.ID, QuestionID: a.QuestionID, Message: s.msgs.QuestionNotFound, Err: ErrQuestionNotFound})
				continue
			}
			byQuestion[a.QuestionID] = append(byQuestion[a.QuestionID], a)
		}
	}

	jobs := make([]answerJob, 0)
	for i := range ms.Surveys {
		sv := &ms.Surveys[i]
		for j := range sv.Questions {
			q := &sv.Questions[j]
			inputs := submitted[sv.ID][q.ID]
			switch len(inputs) {
			case 0:
				ve.addField(&FieldError{SurveyID: sv.ID, QuestionID: q.ID, Message: s.msgs.Required, Err: ErrFieldRequired})
			case 1:
				jobs = append(jobs, answerJob{surveyID: sv.ID, question: q, input: inputs[0]})
			default:
				ve.addField(&FieldError{SurveyID: sv.ID, QuestionID: q.ID, Message: s.msgs.Duplicate, Err: ErrDuplicate})
			}
		}
	}
	return jobs
}

// validateAll runs ValidateAnswer for every job in parallel and waits for all of them.
// Field errors are merged into ve in job order.
func (s *Service) validateAll(ctx context.Context, scope Scope, jobs []answerJob, ve *ValidationError) ([]response.Record, error) {
	records := make([]response.Record, len(jobs))
	fieldErrs := make([]*FieldError, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			sc := scope
			sc.SurveyID = jobs[i].surveyID
			records[i], fieldErrs[i] = ValidateAnswer(sc, jobs[i].question, jobs[i].input, s.msgs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, storageErr("validate answers", err)
	}

	for _, fe := range fieldErrs {
		if fe != nil {
			ve.addField(fe)
		}
	}
	return records, nil
}

// commit writes records and consumes code atomically. The used state is re-read under
// the row lock, so a code validated concurrently by another request is caught here.
func (s *Service) commit(ctx context.Context, code *accesscode.AccessCode, records []response.Record) (time.Time, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		return time.Time{}, storageErr("begin submission tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	locked, err := tx.LockCode(ctx, code.Code)
	if err != nil {
		if errors.Is(err, accesscode.ErrNotFound) {
			return time.Time{}, codeRejection(s.msgs, ErrCodeNotFound)
		}
		return time.Time{}, storageErr("lock access code", err)
	}
	if locked.Used {
		return time.Time{}, codeRejection(s.msgs, ErrAlreadyUsed)
	}
	consumed, err := tx.CodeHasRecords(ctx, locked.ID)
	if err != nil {
		return time.Time{}, storageErr("recheck access code records", err)
	}
	if consumed {
		return time.Time{}, codeRejection(s.msgs, ErrAlreadyUsed)
	}

	if err := tx.InsertRecords(ctx, records); err != nil {
		if errors.Is(err, response.ErrDuplicateRecord) {
			return time.Time{}, codeRejection(s.msgs, ErrAlreadyUsed)
		}
		return time.Time{}, storageErr("insert answer records", err)
	}

	at := s.now()
	if err := tx.MarkCodeUsed(ctx, locked.ID, at); err != nil {
		if errors.Is(err, accesscode.ErrConsumed) {
			return time.Time{}, codeRejection(s.msgs, ErrAlreadyUsed)
		}
		return time.Time{}, storageErr("mark access code used", err)
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, storageErr("commit submission tx", err)
	}
	return at, nil
}
