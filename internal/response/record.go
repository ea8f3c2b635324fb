package response

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrUnknownAnswer   = errors.New("unknown answer variant")
	ErrDuplicateRecord = errors.New("answer already recorded for this code and question")
)

// Answer is the closed set of persisted answer shapes. Only SingleAnswer and
// FreeTextAnswer implement it.
type Answer interface {
	answer()
}

type ChoiceRef struct {
	ID      int64  `json:"id"`
	Content string `json:"content"`
}

// SingleAnswer is a scored single-choice answer. Choice is nil when no catalogue
// choice carries the submitted score.
type SingleAnswer struct {
	Score  float64    `json:"score"`
	Choice *ChoiceRef `json:"choice,omitempty"`
}

type FreeTextAnswer struct {
	Suggestion string `json:"suggestion"`
}

func (SingleAnswer) answer()   {}
func (FreeTextAnswer) answer() {}

type Record struct {
	SubmissionID   uuid.UUID `json:"submission_id"`
	MiddleSurveyID int64     `json:"middle_survey_id"`
	SurveyID       int64     `json:"survey_id"`
	QuestionID     int64     `json:"question_id"`
	CodeID         int64     `json:"code_id"`
	Answer         Answer    `json:"answer"`
}

// columns maps the answer variant onto the nullable score, choice_id and suggestion
// columns. Exactly one arm is ever populated.
func columns(a Answer) (score, choiceID, suggestion interface{}, err error) {
	switch v := a.(type) {
	case SingleAnswer:
		if v.Choice != nil {
			choiceID = v.Choice.ID
		}
		return v.Score, choiceID, nil, nil
	case *SingleAnswer:
		if v == nil {
			return nil, nil, nil, ErrUnknownAnswer
		}
		return columns(*v)
	case FreeTextAnswer:
		return nil, nil, v.Suggestion, nil
	case *FreeTextAnswer:
		if v == nil {
			return nil, nil, nil, ErrUnknownAnswer
		}
		return columns(*v)
	default:
		return nil, nil, nil, fmt.Errorf("%w: %T", ErrUnknownAnswer, a)
	}
}
