package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

const (
	responsesSheet = "Responses"
	summarySheet   = "Summary"
)

var responseHeaders = []string{"submission_id", "code", "survey", "question", "answer_type", "score", "choice", "suggestion", "created_at"}

// ExportExcel renders every committed record of the questionnaire as an XLSX workbook with
// a Responses sheet (one row per record) and a Summary sheet (submissions per survey).
func (s *Service) ExportExcel(ctx context.Context, middleSurveyID int64) ([]byte, error) {
	summary, err := s.QuestionnaireSummary(ctx, middleSurveyID)
	if err != nil {
		return nil, err
	}
	rows, err := s.records.ListByMiddleSurvey(ctx, middleSurveyID)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), responsesSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeRow(f, responsesSheet, 1, stringsToAny(responseHeaders)); err != nil {
		return nil, err
	}
	for i, r := range rows {
		var score any
		if r.Score != nil {
			score = *r.Score
		}
		if err := writeRow(f, responsesSheet, i+2, []any{
			r.SubmissionID,
			r.Code,
			r.SurveyName,
			r.QuestionName,
			r.AnswerType,
			score,
			r.ChoiceText,
			r.Suggestion,
			r.CreatedAt.Format("2006-01-02 15:04:05"),
		}); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(responsesSheet, "A", "I", 22); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return nil, fmt.Errorf("add summary sheet: %w", err)
	}
	header := [][]any{
		{"questionnaire", summary.Name},
		{"submissions", summary.Submissions},
		nil,
		{"survey_id", "survey", "submissions"},
	}
	for i, values := range header {
		if err := writeRow(f, summarySheet, i+1, values); err != nil {
			return nil, err
		}
	}
	for i, sv := range summary.Surveys {
		if err := writeRow(f, summarySheet, i+len(header)+1, []any{sv.SurveyID, sv.Name, sv.Submissions}); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "C", 22); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write excel: %w", err)
	}
	return buf.Bytes(), nil
}

// writeRow sets values on row starting at column A. Nil values leave the cell empty.
func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	for col, v := range values {
		if v == nil {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(col+1, row)
		if err != nil {
			return fmt.Errorf("cell name %s row %d col %d: %w", sheet, row, col+1, err)
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return fmt.Errorf("set cell %s!%s: %w", sheet, cell, err)
		}
	}
	return nil
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
