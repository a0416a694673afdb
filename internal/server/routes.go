package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/pmteam/internal/health"
	"github.com/felixgeelhaar/pmteam/internal/metrics"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

type ctxKey int

const requestIDKey ctxKey = iota

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(s.observe)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", s.probe(s.deps.Probes.CheckLiveness, http.StatusOK))
	r.Get("/health/ready", s.probe(s.deps.Probes.CheckReadiness, http.StatusServiceUnavailable))
	r.Get("/health/startup", s.probe(s.deps.Probes.CheckStartup, http.StatusServiceUnavailable))
	r.Get("/healthz", s.probe(s.deps.Probes.CheckReadiness, http.StatusServiceUnavailable))

	if s.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.HandlerFor(s.deps.Gatherer))
	} else {
		r.Method(http.MethodGet, "/metrics", metrics.Handler())
	}
	r.Get("/openapi.yaml", handleOpenAPI)

	r.Get("/api/projects", s.listProjects)
	r.Post("/api/projects", s.createProject)
	r.Get("/api/projects/{project}/runs", s.listRuns)
	r.Post("/api/projects/{project}/runs", s.importRun)
	r.Get("/api/projects/{project}/diff", s.diffRuns)
	r.Get("/api/projects/{project}/runs/{run}/plan", s.getPlan)
	r.Get("/api/projects/{project}/runs/{run}/conversation", s.getConversation)
	r.Post("/api/projects/{project}/runs/{run}/conversation", s.sendMessage)

	return r
}

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

// RequestID returns the id assigned to the request carried by ctx.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// observe records every request by its route pattern, so run ids never
// become label values.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.deps.Metrics.RecordHTTP(r.Method, route, status)
		s.deps.Logger.Debug("http request",
			"method", r.Method,
			"route", route,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestID(r.Context()),
		)
	})
}

func (s *Server) probe(check func(context.Context) *health.ProbeResult, unhealthyStatus int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := check(r.Context())
		status := http.StatusOK
		if result.Status == health.StatusUnhealthy {
			status = unhealthyStatus
		}
		writeJSON(w, status, result)
	}
}
