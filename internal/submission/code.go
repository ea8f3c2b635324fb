package submission

import (
	"context"
	"errors"
	"strings"

	"surveyrecord/internal/accesscode"
)

// CodeReader is the snapshot read side of the code registry.
type CodeReader interface {
	FindCode(ctx context.Context, code string) (*accesscode.AccessCode, error)
	CodeHasRecords(ctx context.Context, codeID int64) (bool, error)
}

// CodeValidator resolves a submitted code without mutating it. Its verdict is advisory:
// the committer repeats the used check under the row lock.
type CodeValidator struct {
	codes CodeReader
}

func NewCodeValidator(codes CodeReader) *CodeValidator {
	return &CodeValidator{codes: codes}
}

// Validate returns the code record, or ErrCodeRequired, ErrCodeNotFound, ErrAlreadyUsed
// or a *StorageError.
func (v *CodeValidator) Validate(ctx context.Context, middleSurveyID int64, code string) (*accesscode.AccessCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrCodeRequired
	}

	ac, err := v.codes.FindCode(ctx, code)
	if err != nil {
		if errors.Is(err, accesscode.ErrNotFound) {
			return nil, ErrCodeNotFound
		}
		return nil, storageErr("find access code", err)
	}
	if ac.MiddleSurveyID != middleSurveyID {
		return nil, ErrCodeNotFound
	}
	if ac.Used {
		return nil, ErrAlreadyUsed
	}

	used, err := v.codes.CodeHasRecords(ctx, ac.ID)
	if err != nil {
		return nil, storageErr("check access code records", err)
	}
	if used {
		return nil, ErrAlreadyUsed
	}
	return ac, nil
}
