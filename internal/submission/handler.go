package submission

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"surveyrecord/internal/app/apiresp"
	"surveyrecord/internal/catalogue"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

const maxBodyBytes = 1 << 20

type submitter interface {
	Submit(ctx context.Context, middleSurveyID int64, req Request) (*Receipt, error)
}

// OutcomeRecorder receives one outcome label per handled submission.
type OutcomeRecorder interface {
	RecordSubmission(outcome string)
}

type Handler struct {
	svc      submitter
	validate *validator.Validate
	outcomes OutcomeRecorder
}

type submitRequest struct {
	Code    string         `json:"code"`
	Surveys []submitSurvey `json:"surveys" validate:"required,min=1,dive"`
}

type submitSurvey struct {
	SurveyID  int64          `json:"survey_id" validate:"required,gt=0"`
	Questions []submitAnswer `json:"questions" validate:"dive"`
}

type submitAnswer struct {
	QuestionID int64  `json:"question_id" validate:"required,gt=0"`
	Value      string `json:"value"`
}

func NewHandler(svc submitter, outcomes OutcomeRecorder) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{svc: svc, validate: v, outcomes: outcomes}
}

func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	middleSurveyID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || middleSurveyID <= 0 {
		h.record("bad_request")
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid questionnaire id")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.record("bad_request")
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.record("bad_request")
		apiresp.WriteError(w, r, http.StatusBadRequest, describeInvalid(err))
		return
	}

	receipt, err := h.svc.Submit(r.Context(), middleSurveyID, req.toRequest())
	if err != nil {
		h.writeSubmitError(w, r, middleSurveyID, err)
		return
	}

	h.record("committed")
	apiresp.WriteOK(w, r, http.StatusCreated, receipt)
}

func (h *Handler) writeSubmitError(w http.ResponseWriter, r *http.Request, middleSurveyID int64, err error) {
	var (
		ve *ValidationError
		se *StorageError
	)
	switch {
	case errors.As(err, &ve):
		if errors.Is(ve, ErrAlreadyUsed) {
			h.record("already_used")
			apiresp.WriteFieldErrors(w, r, http.StatusConflict, ErrAlreadyUsed.Error(), ve)
			return
		}
		h.record("rejected")
		apiresp.WriteFieldErrors(w, r, http.StatusUnprocessableEntity, "submission has invalid fields", ve)
	case errors.Is(err, catalogue.ErrMiddleSurveyNotFound):
		h.record("not_found")
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
	case errors.As(err, &se):
		h.record("storage_error")
		log.Printf("submission failed request_id=%s questionnaire=%d: %v", middleware.GetReqID(r.Context()), middleSurveyID, err)
		if se.Retryable() {
			apiresp.WriteError(w, r, http.StatusServiceUnavailable, "submission could not be stored, please retry")
			return
		}
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	default:
		h.record("storage_error")
		log.Printf("submission failed request_id=%s questionnaire=%d: %v", middleware.GetReqID(r.Context()), middleSurveyID, err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) record(outcome string) {
	if h.outcomes != nil {
		h.outcomes.RecordSubmission(outcome)
	}
}

func (req submitRequest) toRequest() Request {
	out := Request{Code: req.Code, Surveys: make([]SurveyInput, 0, len(req.Surveys))}
	for _, sv := range req.Surveys {
		in := SurveyInput{SurveyID: sv.SurveyID, Questions: make([]AnswerInput, 0, len(sv.Questions))}
		for _, q := range sv.Questions {
			in.Questions = append(in.Questions, AnswerInput{QuestionID: q.QuestionID, Value: q.Value})
		}
		out.Surveys = append(out.Surveys, in)
	}
	return out
}

// describeInvalid renders validator errors as "surveys[0].survey_id: gt" style paths.
func describeInvalid(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request body"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		parts = append(parts, path+": "+fe.Tag())
	}
	return "invalid request body: " + strings.Join(parts, ", ")
}
