package response

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	insertColumns   = 8
	insertChunkRows = 1000

	uniqueViolation    = "23505"
	recordsUniqueIndex = "answer_records_code_question_key"
)

// Store is the answer_records persistence boundary. It holds no validation logic;
// writes only happen inside a caller-owned transaction.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// InsertRecords bulk-inserts recs inside tx using multi-row INSERT statements.
func (s *Store) InsertRecords(ctx context.Context, tx *sql.Tx, recs []Record) error {
	for start := 0; start < len(recs); start += insertChunkRows {
		end := start + insertChunkRows
		if end > len(recs) {
			end = len(recs)
		}
		if err := insertChunk(ctx, tx, recs[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func insertChunk(ctx context.Context, tx *sql.Tx, recs []Record) error {
	if len(recs) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO answer_records (
			submission_id,
			middle_survey_id,
			survey_id,
			question_id,
			code_id,
			score,
			choice_id,
			suggestion
		) VALUES `)

	args := make([]interface{}, 0, len(recs)*insertColumns)
	for i, rec := range recs {
		score, choiceID, suggestion, err := columns(rec.Answer)
		if err != nil {
			return fmt.Errorf("record for question %d: %w", rec.QuestionID, err)
		}
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for c := 1; c <= insertColumns; c++ {
			if c > 1 {
				sb.WriteString(", ")
			}
			sb.WriteString("$")
			sb.WriteString(strconv.Itoa(i*insertColumns + c))
		}
		sb.WriteString(")")
		args = append(args, rec.SubmissionID, rec.MiddleSurveyID, rec.SurveyID, rec.QuestionID, rec.CodeID, score, choiceID, suggestion)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == recordsUniqueIndex {
			return fmt.Errorf("insert answer records: %w", ErrDuplicateRecord)
		}
		return fmt.Errorf("insert answer records: %w", err)
	}
	return nil
}

// CountDistinctSubmissions counts the access codes that submitted answers for surveyID.
func (s *Store) CountDistinctSubmissions(ctx context.Context, surveyID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT code_id)
		FROM answer_records
		WHERE survey_id = $1
	`, surveyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count survey submissions: %w", err)
	}
	return n, nil
}

func (s *Store) CountDistinctByMiddleSurvey(ctx context.Context, middleSurveyID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT code_id)
		FROM answer_records
		WHERE middle_survey_id = $1
	`, middleSurveyID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count questionnaire submissions: %w", err)
	}
	return n, nil
}

func (s *Store) CountByCode(ctx context.Context, codeID int64) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM answer_records
		WHERE code_id = $1
	`, codeID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count code records: %w", err)
	}
	return n, nil
}

// Row is a committed record joined with its catalogue labels, as read back for export.
type Row struct {
	SubmissionID string
	Code         string
	SurveyID     int64
	SurveyName   string
	QuestionID   int64
	QuestionName string
	AnswerType   string
	Score        *float64
	ChoiceText   string
	Suggestion   string
	CreatedAt    time.Time
}

func (s *Store) ListByMiddleSurvey(ctx context.Context, middleSurveyID int64) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			ar.submission_id::text,
			ac.code,
			sv.id,
			sv.name,
			q.id,
			q.name,
			q.answer_type,
			ar.score,
			COALESCE(c.content, ''),
			COALESCE(ar.suggestion, ''),
			ar.created_at
		FROM answer_records ar
		JOIN access_codes ac ON ac.id = ar.code_id
		JOIN surveys sv ON sv.id = ar.survey_id
		JOIN survey_questions q ON q.id = ar.question_id
		LEFT JOIN survey_choices c ON c.id = ar.choice_id
		WHERE ar.middle_survey_id = $1
		ORDER BY ar.created_at ASC, ar.id ASC
	`, middleSurveyID)
	if err != nil {
		return nil, fmt.Errorf("query questionnaire records: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		var (
			r     Row
			score sql.NullFloat64
		)
		if err := rows.Scan(&r.SubmissionID, &r.Code, &r.SurveyID, &r.SurveyName, &r.QuestionID, &r.QuestionName, &r.AnswerType, &score, &r.ChoiceText, &r.Suggestion, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan questionnaire record: %w", err)
		}
		if score.Valid {
			v := score.Float64
			r.Score = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate questionnaire records: %w", err)
	}
	return out, nil
}
