package submission

import (
	"context"
	"errors"
	"testing"

	"surveyrecord/internal/accesscode"
	"surveyrecord/internal/response"
)

func TestCodeValidator_Validate(t *testing.T) {
	fresh := accesscode.AccessCode{ID: 1, Code: "ABC123", MiddleSurveyID: 3}
	used := accesscode.AccessCode{ID: 2, Code: "USED01", MiddleSurveyID: 3, Used: true}
	recorded := accesscode.AccessCode{ID: 3, Code: "REC001", MiddleSurveyID: 3}
	foreign := accesscode.AccessCode{ID: 4, Code: "OTHER1", MiddleSurveyID: 9}

	store := newMemStore(fresh, used, recorded, foreign)
	store.records = append(store.records, response.Record{CodeID: 3, SurveyID: 7, QuestionID: 11, Answer: response.FreeTextAnswer{Suggestion: "x"}})

	tests := []struct {
		name   string
		code   string
		wantID int64
		errIs  error
	}{
		{name: "fresh code", code: "ABC123", wantID: 1},
		{name: "trimmed", code: "  ABC123 ", wantID: 1},
		{name: "empty", code: "", errIs: ErrCodeRequired},
		{name: "blank", code: "   ", errIs: ErrCodeRequired},
		{name: "unknown", code: "NOPE", errIs: ErrCodeNotFound},
		{name: "used flag", code: "USED01", errIs: ErrAlreadyUsed},
		{name: "records already reference code", code: "REC001", errIs: ErrAlreadyUsed},
		{name: "issued for another questionnaire", code: "OTHER1", errIs: ErrCodeNotFound},
	}

	v := NewCodeValidator(store)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := v.Validate(context.Background(), 3, tc.code)
			if tc.errIs != nil {
				if !errors.Is(err, tc.errIs) {
					t.Fatalf("err = %v, want %v", err, tc.errIs)
				}
				if got != nil {
					t.Fatalf("expected nil code on rejection, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.ID != tc.wantID {
				t.Fatalf("code id = %d, want %d", got.ID, tc.wantID)
			}
		})
	}
}

func TestCodeValidator_NotFoundIsClassified(t *testing.T) {
	v := NewCodeValidator(newMemStore())
	_, err := v.Validate(context.Background(), 3, "MISSING")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want it to match ErrNotFound", err)
	}
}

func TestCodeValidator_StorageFailure(t *testing.T) {
	store := newMemStore(accesscode.AccessCode{ID: 1, Code: "ABC123", MiddleSurveyID: 3})
	store.findErr = errors.New("connection reset")

	_, err := NewCodeValidator(store).Validate(context.Background(), 3, "ABC123")
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	if errors.Is(err, ErrCodeNotFound) || errors.Is(err, ErrAlreadyUsed) {
		t.Fatalf("storage failure must not be classified as a code rejection: %v", err)
	}
	if se.Retryable() {
		t.Fatalf("plain connection error should not be retryable")
	}
}

func TestCodeValidator_DoesNotMutate(t *testing.T) {
	store := newMemStore(accesscode.AccessCode{ID: 1, Code: "ABC123", MiddleSurveyID: 3})
	v := NewCodeValidator(store)
	for i := 0; i < 3; i++ {
		if _, err := v.Validate(context.Background(), 3, "ABC123"); err != nil {
			t.Fatalf("validate #%d: %v", i, err)
		}
	}
	if store.code("ABC123").Used {
		t.Fatalf("validation marked the code used")
	}
}
