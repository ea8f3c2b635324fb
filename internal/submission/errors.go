package submission

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCodeNotFound     = fmt.Errorf("access code %w", ErrNotFound)
	ErrSurveyNotFound   = fmt.Errorf("survey %w", ErrNotFound)
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)

	ErrCodeRequired  = errors.New("access code is required")
	ErrAlreadyUsed   = errors.New("access code already used")
	ErrFieldRequired = errors.New("field is required")
	ErrInvalidScore  = errors.New("score is not a number")
	ErrInvalidText   = errors.New("text contains characters that cannot be stored")
	ErrDuplicate     = errors.New("question answered more than once")
	ErrUnsupported   = errors.New("unsupported answer type")
)

// Messages are the human-readable texts attached to each field error. They are supplied
// by the caller so the wording can be localised without touching validation.
type Messages struct {
	Required         string
	InvalidNumber    string
	InvalidText      string
	Duplicate        string
	Unsupported      string
	CodeRequired     string
	CodeInvalid      string
	CodeUsed         string
	SurveyNotFound   string
	QuestionNotFound string
}

func DefaultMessages() Messages {
	return Messages{
		Required:         "this field is required",
		InvalidNumber:    "a valid number is required",
		InvalidText:      "this text contains invalid characters",
		Duplicate:        "this question was answered more than once",
		Unsupported:      "this question cannot be answered",
		CodeRequired:     "the access code must not be empty",
		CodeInvalid:      "invalid access code",
		CodeUsed:         "this access code has already been used",
		SurveyNotFound:   "survey not found",
		QuestionNotFound: "question not found",
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(v *string, fallback string) {
		if *v == "" {
			*v = fallback
		}
	}
	fill(&m.Required, d.Required)
	fill(&m.InvalidNumber, d.InvalidNumber)
	fill(&m.InvalidText, d.InvalidText)
	fill(&m.Duplicate, d.Duplicate)
	fill(&m.Unsupported, d.Unsupported)
	fill(&m.CodeRequired, d.CodeRequired)
	fill(&m.CodeInvalid, d.CodeInvalid)
	fill(&m.CodeUsed, d.CodeUsed)
	fill(&m.SurveyNotFound, d.SurveyNotFound)
	fill(&m.QuestionNotFound, d.QuestionNotFound)
	return m
}

// codeMessage picks the message for a code-level rejection.
func (m Messages) codeMessage(err error) string {
	switch {
	case errors.Is(err, ErrCodeRequired):
		return m.CodeRequired
	case errors.Is(err, ErrAlreadyUsed):
		return m.CodeUsed
	default:
		return m.CodeInvalid
	}
}

// FieldError is a single rejected answer. Err carries the classification sentinel.
type FieldError struct {
	SurveyID   int64
	QuestionID int64
	Message    string
	Err        error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("survey %d question %d: %s", e.SurveyID, e.QuestionID, e.Message)
}

func (e *FieldError) Unwrap() error { return e.Err }

type SurveyErrors struct {
	Error     string           `json:"error,omitempty"`
	Questions map[int64]string `json:"questions,omitempty"`
}

// ValidationError is the complete error map of a rejected submission. Its presence means
// nothing was written. errors.Is sees every classified cause it collected.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Surveys map[int64]SurveyErrors `json:"surveys,omitempty"`

	causes []error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("submission rejected: %d invalid field(s)", e.Len())
}

func (e *ValidationError) Unwrap() []error { return e.causes }

func (e *ValidationError) Len() int {
	n := 0
	if e.Code != "" {
		n++
	}
	for _, sv := range e.Surveys {
		if sv.Error != "" {
			n++
		}
		n += len(sv.Questions)
	}
	return n
}

func (e *ValidationError) empty() bool { return e.Len() == 0 }

func (e *ValidationError) setCode(msg string, cause error) {
	e.Code = msg
	e.addCause(cause)
}

func (e *ValidationError) setSurvey(surveyID int64, msg string, cause error) {
	if e.Surveys == nil {
		e.Surveys = make(map[int64]SurveyErrors)
	}
	sv := e.Surveys[surveyID]
	sv.Error = msg
	e.Surveys[surveyID] = sv
	e.addCause(cause)
}

func (e *ValidationError) addField(fe *FieldError) {
	if e.Surveys == nil {
		e.Surveys = make(map[int64]SurveyErrors)
	}
	sv := e.Surveys[fe.SurveyID]
	if sv.Questions == nil {
		sv.Questions = make(map[int64]string)
	}
	sv.Questions[fe.QuestionID] = fe.Message
	e.Surveys[fe.SurveyID] = sv
	e.addCause(fe.Err)
}

func (e *ValidationError) addCause(cause error) {
	if cause == nil {
		return
	}
	for _, c := range e.causes {
		if c == cause {
			return
		}
	}
	e.causes = append(e.causes, cause)
}

// QuestionIDs lists the rejected questions of surveyID in ascending order.
func (e *ValidationError) QuestionIDs(surveyID int64) []int64 {
	sv, ok := e.Surveys[surveyID]
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(sv.Questions))
	for id := range sv.Questions {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func codeRejection(msgs Messages, cause error) *ValidationError {
	ve := &ValidationError{}
	ve.setCode(msgs.codeMessage(cause), cause)
	return ve
}

// StorageError reports a failed read or transaction. The transaction has been rolled back
// and no record was written.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

// Retryable reports whether the failure came from contention or a timeout, in which case
// the caller may resubmit. Commit consumes the code at most once, so a retry never
// duplicates records.
func (e *StorageError) Retryable() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(e.Err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03", "57014":
			return true
		}
	}
	return false
}

func storageErr(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
