package catalogue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Service reads catalogue definitions from Postgres.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

func (s *Service) GetSurvey(ctx context.Context, id int64) (*Survey, error) {
	var sv Survey
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM surveys
		WHERE id = $1
	`, id).Scan(&sv.ID, &sv.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("load survey: %w", err)
	}

	questions, err := s.loadQuestions(ctx, []int64{sv.ID})
	if err != nil {
		return nil, err
	}
	sv.Questions = questions[sv.ID]
	if sv.Questions == nil {
		sv.Questions = []Question{}
	}
	return &sv, nil
}

func (s *Service) GetMiddleSurvey(ctx context.Context, id int64) (*MiddleSurvey, error) {
	ms := &MiddleSurvey{}
	if err := s.db.QueryRowContext(ctx, `
		SELECT id, name
		FROM middle_surveys
		WHERE id = $1
	`, id).Scan(&ms.ID, &ms.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMiddleSurveyNotFound
		}
		return nil, fmt.Errorf("load questionnaire: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sv.id, sv.name
		FROM middle_survey_surveys mss
		JOIN surveys sv ON sv.id = mss.survey_id
		WHERE mss.middle_survey_id = $1
		ORDER BY mss.seq_no ASC, sv.id ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query questionnaire surveys: %w", err)
	}
	defer rows.Close()

	ms.Surveys = make([]Survey, 0)
	ids := make([]int64, 0)
	for rows.Next() {
		var sv Survey
		if err := rows.Scan(&sv.ID, &sv.Name); err != nil {
			return nil, fmt.Errorf("scan questionnaire survey: %w", err)
		}
		ms.Surveys = append(ms.Surveys, sv)
		ids = append(ids, sv.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questionnaire surveys: %w", err)
	}

	questions, err := s.loadQuestions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range ms.Surveys {
		ms.Surveys[i].Questions = questions[ms.Surveys[i].ID]
		if ms.Surveys[i].Questions == nil {
			ms.Surveys[i].Questions = []Question{}
		}
	}
	return ms, nil
}

// loadQuestions returns the questions of every survey in surveyIDs with their choices,
// keyed by survey id and kept in seq_no order.
func (s *Service) loadQuestions(ctx context.Context, surveyIDs []int64) (map[int64][]Question, error) {
	out := make(map[int64][]Question, len(surveyIDs))
	if len(surveyIDs) == 0 {
		return out, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			q.id,
			q.survey_id,
			q.name,
			q.answer_type,
			c.id,
			c.content,
			c.points
		FROM survey_questions q
		LEFT JOIN survey_choices c ON c.question_id = q.id
		WHERE q.survey_id = ANY($1)
		ORDER BY q.survey_id ASC, q.seq_no ASC, q.id ASC, c.seq_no ASC, c.id ASC
	`, surveyIDs)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	index := make(map[int64]int)
	for rows.Next() {
		var (
			q        Question
			choiceID sql.NullInt64
			content  sql.NullString
			points   sql.NullFloat64
		)
		if err := rows.Scan(&q.ID, &q.SurveyID, &q.Name, &q.AnswerType, &choiceID, &content, &points); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}

		pos, seen := index[q.ID]
		if !seen {
			q.Choices = []Choice{}
			out[q.SurveyID] = append(out[q.SurveyID], q)
			pos = len(out[q.SurveyID]) - 1
			index[q.ID] = pos
		}
		if choiceID.Valid {
			list := out[q.SurveyID]
			list[pos].Choices = append(list[pos].Choices, Choice{
				ID:      choiceID.Int64,
				Content: content.String,
				Points:  points.Float64,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questions: %w", err)
	}
	return out, nil
}
