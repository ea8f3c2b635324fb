package report

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"surveyrecord/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type reporter interface {
	CountDistinctSubmissions(ctx context.Context, surveyID int64) (*SurveySubmissions, error)
	QuestionnaireSummary(ctx context.Context, middleSurveyID int64) (*QuestionnaireSummary, error)
	ExportExcel(ctx context.Context, middleSurveyID int64) ([]byte, error)
}

type Handler struct {
	svc reporter
}

func NewHandler(svc reporter) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) SurveySubmissions(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid survey id")
	if !ok {
		return
	}
	out, err := h.svc.CountDistinctSubmissions(r.Context(), id)
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) Questionnaire(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid questionnaire id")
	if !ok {
		return
	}
	out, err := h.svc.QuestionnaireSummary(r.Context(), id)
	if err != nil {
		writeReportError(w, r, err)
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, out)
}

func (h *Handler) ExportQuestionnaire(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r, "invalid questionnaire id")
	if !ok {
		return
	}
	data, err := h.svc.ExportExcel(r.Context(), id)
	if err != nil {
		writeReportError(w, r, err)
		return
	}

	filename := fmt.Sprintf("questionnaire-%d-%s.xlsx", id, time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func parseID(w http.ResponseWriter, r *http.Request, msg string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, msg)
		return 0, false
	}
	return id, true
}

func writeReportError(w http.ResponseWriter, r *http.Request, err error) {
	if isNotFound(err) {
		apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
		return
	}
	log.Printf("report failed request_id=%s path=%s: %v", middleware.GetReqID(r.Context()), r.URL.Path, err)
	apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
}
