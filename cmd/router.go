package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/company-extractor/internal/model"
	"github.com/sells-group/company-extractor/internal/monitoring"
	"github.com/sells-group/company-extractor/internal/pipeline"
	"github.com/sells-group/company-extractor/internal/store"
)

// companyRunner runs the pipeline for one company.
type companyRunner interface {
	Run(ctx context.Context, companyName string) (*pipeline.Result, error)
}

type api struct {
	runner    companyRunner
	store     store.Store
	collector *monitoring.Collector
}

// newRouter builds the HTTP routes:
//
//	GET  /health
//	GET  /companies?limit=N
//	POST /companies          {"name": "..."}
//	GET  /companies/{name}
//	GET  /stats?lookback_hours=N
func newRouter(runner companyRunner, st store.Store, allowedOrigins []string) http.Handler {
	a := &api{runner: runner, store: st, collector: monitoring.NewCollector(st)}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/companies", func(r chi.Router) {
		r.Get("/", a.listCompanies)
		r.Post("/", a.runCompany)
		r.Get("/{name}", a.getCompany)
	})

	r.Get("/stats", a.stats)

	return r
}

func (a *api) runCompany(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if model.NormalizeName(req.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	result, err := a.runner.Run(r.Context(), req.Name)
	if err != nil {
		if model.IsKind(err, model.KindInvalidInput) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		zap.L().Error("api: pipeline run failed", zap.String("company", req.Name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "pipeline run failed")
		return
	}

	writeJSON(w, resultStatus(result), result)
}

// resultStatus maps a run outcome to an HTTP status.
func resultStatus(result *pipeline.Result) int {
	switch {
	case result.State == pipeline.StateFailed:
		return http.StatusUnprocessableEntity
	case result.PersistErr != "":
		return http.StatusOK
	default:
		return http.StatusCreated
	}
}

func (a *api) listCompanies(w http.ResponseWriter, r *http.Request) {
	var opts store.ListOptions
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		opts.Limit = n
	}

	recs, err := a.store.ListAll(r.Context(), opts)
	if err != nil {
		zap.L().Error("api: list companies", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list companies")
		return
	}
	if recs == nil {
		recs = []model.CompanyRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (a *api) getCompany(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when the request carries encoded slashes, and
	// the parameter is still escaped in that case only.
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		if unescaped, err := url.PathUnescape(name); err == nil {
			name = unescaped
		}
	}

	rec, err := a.store.FindLatest(r.Context(), name)
	if err != nil {
		zap.L().Error("api: find company", zap.String("company", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load company")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "company not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *api) stats(w http.ResponseWriter, r *http.Request) {
	lookback := 0
	if raw := r.URL.Query().Get("lookback_hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "lookback_hours must be a non-negative integer")
			return
		}
		lookback = n
	}

	snap, err := a.collector.Collect(r.Context(), lookback)
	if err != nil {
		zap.L().Error("api: collect stats", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger logs each request with zap once the response is written.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
