package submission

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"surveyrecord/internal/catalogue"
	"surveyrecord/internal/response"

	"github.com/google/uuid"
)

// Scores are stored as NUMERIC(10, 2); anything the column cannot hold exactly is
// rejected instead of being rounded or overflowing at insert time.
const (
	scoreIntDigits  = 8
	scoreFracDigits = 2
)

type AnswerInput struct {
	QuestionID int64
	Value      string
}

// Scope is what an answer is recorded against. It is passed explicitly to every
// validation call.
type Scope struct {
	SubmissionID   uuid.UUID
	MiddleSurveyID int64
	SurveyID       int64
	CodeID         int64
}

// ValidateAnswer applies the rules of q's answer type to in and returns the record to
// persist, or the field error to report. It has no side effects and is safe to call
// concurrently.
func ValidateAnswer(scope Scope, q *catalogue.Question, in AnswerInput, msgs Messages) (response.Record, *FieldError) {
	fail := func(msg string, cause error) (response.Record, *FieldError) {
		return response.Record{}, &FieldError{SurveyID: scope.SurveyID, QuestionID: q.ID, Message: msg, Err: cause}
	}

	if strings.TrimSpace(in.Value) == "" {
		return fail(msgs.Required, ErrFieldRequired)
	}

	rec := response.Record{
		SubmissionID:   scope.SubmissionID,
		MiddleSurveyID: scope.MiddleSurveyID,
		SurveyID:       scope.SurveyID,
		QuestionID:     q.ID,
		CodeID:         scope.CodeID,
	}

	switch q.AnswerType {
	case catalogue.AnswerSingle:
		score, ok := parseScore(in.Value)
		if !ok {
			return fail(msgs.InvalidNumber, ErrInvalidScore)
		}
		ans := response.SingleAnswer{Score: score}
		if c, ok := q.ChoiceForPoints(score); ok {
			ans.Choice = &response.ChoiceRef{ID: c.ID, Content: c.Content}
		}
		rec.Answer = ans
	case catalogue.AnswerFreeText:
		if !storableText(in.Value) {
			return fail(msgs.InvalidText, ErrInvalidText)
		}
		rec.Answer = response.FreeTextAnswer{Suggestion: in.Value}
	default:
		return fail(msgs.Unsupported, ErrUnsupported)
	}
	return rec, nil
}

// parseScore accepts plain decimal notation with at most scoreIntDigits integer digits
// and scoreFracDigits fractional digits. Exponents, hex floats, NaN and Inf are rejected.
func parseScore(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	unsigned := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	if len(s)-len(unsigned) > 1 {
		return 0, false
	}
	intPart, frac, _ := strings.Cut(unsigned, ".")
	if intPart == "" && frac == "" {
		return 0, false
	}
	if !allDigits(intPart) || !allDigits(frac) {
		return 0, false
	}
	if len(strings.TrimLeft(intPart, "0")) > scoreIntDigits || len(frac) > scoreFracDigits {
		return 0, false
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// storableText reports whether s can be written to a Postgres TEXT column.
func storableText(s string) bool {
	return utf8.ValidString(s) && !strings.ContainsRune(s, 0)
}
