package report

import (
	"context"
	"errors"
	"fmt"

	"surveyrecord/internal/catalogue"
	"surveyrecord/internal/response"
)

// RecordReader is the read side of the record store that reporting depends on.
type RecordReader interface {
	CountDistinctSubmissions(ctx context.Context, surveyID int64) (int, error)
	CountDistinctByMiddleSurvey(ctx context.Context, middleSurveyID int64) (int, error)
	ListByMiddleSurvey(ctx context.Context, middleSurveyID int64) ([]response.Row, error)
}

type Service struct {
	records   RecordReader
	catalogue catalogue.Reader
}

type SurveySubmissions struct {
	SurveyID    int64  `json:"survey_id"`
	Name        string `json:"name,omitempty"`
	Submissions int    `json:"submissions"`
}

type QuestionnaireSummary struct {
	ID          int64               `json:"id"`
	Name        string              `json:"name"`
	Submissions int                 `json:"submissions"`
	Surveys     []SurveySubmissions `json:"surveys"`
}

func NewService(records RecordReader, cat catalogue.Reader) *Service {
	return &Service{records: records, catalogue: cat}
}

// CountDistinctSubmissions returns how many access codes submitted answers for surveyID.
func (s *Service) CountDistinctSubmissions(ctx context.Context, surveyID int64) (*SurveySubmissions, error) {
	sv, err := s.catalogue.GetSurvey(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	n, err := s.records.CountDistinctSubmissions(ctx, surveyID)
	if err != nil {
		return nil, err
	}
	return &SurveySubmissions{SurveyID: sv.ID, Name: sv.Name, Submissions: n}, nil
}

func (s *Service) QuestionnaireSummary(ctx context.Context, middleSurveyID int64) (*QuestionnaireSummary, error) {
	ms, err := s.catalogue.GetMiddleSurvey(ctx, middleSurveyID)
	if err != nil {
		return nil, err
	}
	total, err := s.records.CountDistinctByMiddleSurvey(ctx, middleSurveyID)
	if err != nil {
		return nil, err
	}

	out := &QuestionnaireSummary{
		ID:          ms.ID,
		Name:        ms.Name,
		Submissions: total,
		Surveys:     make([]SurveySubmissions, 0, len(ms.Surveys)),
	}
	for _, sv := range ms.Surveys {
		n, err := s.records.CountDistinctSubmissions(ctx, sv.ID)
		if err != nil {
			return nil, fmt.Errorf("survey %d: %w", sv.ID, err)
		}
		out.Surveys = append(out.Surveys, SurveySubmissions{SurveyID: sv.ID, Name: sv.Name, Submissions: n})
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, catalogue.ErrSurveyNotFound) || errors.Is(err, catalogue.ErrMiddleSurveyNotFound)
}
