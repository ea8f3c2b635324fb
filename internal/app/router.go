package app

import (
	"database/sql"
	"net/http"
	"time"

	"surveyrecord/internal/accesscode"
	"surveyrecord/internal/app/apiresp"
	"surveyrecord/internal/app/observability"
	"surveyrecord/internal/catalogue"
	"surveyrecord/internal/report"
	"surveyrecord/internal/response"
	"surveyrecord/internal/submission"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

// NewRouter wires the services over db and returns the HTTP handler. cache may be nil,
// in which case catalogue reads go straight to Postgres.
func NewRouter(cfg Config, db *sql.DB, cache *redis.Client) http.Handler {
	collector := observability.NewCollector(db)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(collector.Middleware)

	var reader catalogue.Reader = catalogue.NewService(db)
	if cache != nil {
		reader = catalogue.NewCachedReader(reader, cache, cfg.CatalogueCacheTTL)
	}
	catalogueHandler := catalogue.NewHandler(reader)

	records := response.NewStore(db)
	store := submission.NewPostgresStore(db, accesscode.NewRegistry(db), records)
	submitSvc := submission.NewService(store, reader, submission.Config{
		Messages: cfg.Messages,
		Timeout:  cfg.SubmitTimeout,
	})
	submitHandler := submission.NewHandler(submitSvc, collector)

	reportHandler := report.NewHandler(report.NewService(records, reader))

	submitLimiter := NewIPRateLimiter(cfg.SubmitRateLimitPerMin, time.Minute)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", collector.MetricsHandler)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(CSRFMiddleware(cfg.CSRFEnforced))

		api.Get("/questionnaires/{id}", catalogueHandler.GetMiddleSurvey)
		api.Get("/surveys/{id}", catalogueHandler.GetSurvey)
		api.With(RateLimitMiddleware(submitLimiter)).Post("/questionnaires/{id}/submissions", submitHandler.Submit)

		api.Get("/reports/surveys/{id}/submissions", reportHandler.SurveySubmissions)
		api.Get("/reports/questionnaires/{id}", reportHandler.Questionnaire)
		api.Get("/reports/questionnaires/{id}/export", reportHandler.ExportQuestionnaire)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apiresp.WriteError(w, r, http.StatusNotFound, "route not found")
	})

	return r
}
