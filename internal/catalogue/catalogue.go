package catalogue

import (
	"context"
	"errors"
)

var (
	ErrSurveyNotFound       = errors.New("survey not found")
	ErrMiddleSurveyNotFound = errors.New("questionnaire not found")
)

type AnswerType string

const (
	AnswerSingle   AnswerType = "single"
	AnswerFreeText AnswerType = "free_text"
)

func (t AnswerType) Valid() bool {
	return t == AnswerSingle || t == AnswerFreeText
}

type Choice struct {
	ID      int64   `json:"id"`
	Content string  `json:"content"`
	Points  float64 `json:"points"`
}

type Question struct {
	ID         int64      `json:"id"`
	SurveyID   int64      `json:"survey_id"`
	Name       string     `json:"name"`
	AnswerType AnswerType `json:"answer_type"`
	Choices    []Choice   `json:"choices"`
}

type Survey struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

// MiddleSurvey is the questionnaire a respondent fills in. It groups one or more surveys
// and is the scope an access code is issued for.
type MiddleSurvey struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Surveys []Survey `json:"surveys"`
}

// Reader is the read side of the catalogue. Definitions are immutable once published.
type Reader interface {
	GetSurvey(ctx context.Context, id int64) (*Survey, error)
	GetMiddleSurvey(ctx context.Context, id int64) (*MiddleSurvey, error)
}

func (m *MiddleSurvey) Survey(id int64) (*Survey, bool) {
	for i := range m.Surveys {
		if m.Surveys[i].ID == id {
			return &m.Surveys[i], true
		}
	}
	return nil, false
}

func (s *Survey) Question(id int64) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

// ChoiceForPoints returns the first choice, in catalogue order, worth exactly points.
func (q *Question) ChoiceForPoints(points float64) (*Choice, bool) {
	for i := range q.Choices {
		if q.Choices[i].Points == points {
			return &q.Choices[i], true
		}
	}
	return nil, false
}
