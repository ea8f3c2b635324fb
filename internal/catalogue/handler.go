package catalogue

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"surveyrecord/internal/app/apiresp"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	reader Reader
}

func NewHandler(reader Reader) *Handler {
	return &Handler{reader: reader}
}

func (h *Handler) GetSurvey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid survey id")
		return
	}

	sv, err := h.reader.GetSurvey(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrSurveyNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("get survey %d: %v", id, err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, sv)
}

func (h *Handler) GetMiddleSurvey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		apiresp.WriteError(w, r, http.StatusBadRequest, "invalid questionnaire id")
		return
	}

	ms, err := h.reader.GetMiddleSurvey(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrMiddleSurveyNotFound) {
			apiresp.WriteError(w, r, http.StatusNotFound, err.Error())
			return
		}
		log.Printf("get questionnaire %d: %v", id, err)
		apiresp.WriteError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	apiresp.WriteOK(w, r, http.StatusOK, ms)
}
