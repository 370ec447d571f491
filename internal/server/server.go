package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"skytrack/internal/domain"
	"skytrack/internal/engine"
	"skytrack/internal/logger"
	"skytrack/internal/metrics"
	"skytrack/internal/ratelimit"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
	Log      logger.Logger
	Metrics  *metrics.Metrics
	// Limiter is optional; nil disables rate limiting.
	Limiter *ratelimit.ClientLimiter
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"plane_in_use"`
	Message string         `json:"message" example:"plane 1 already assigned to active flight SK100"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

const requestIDHeader = "X-Request-Id"

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the flight operations API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Log
	if log == nil {
		log = logger.NewNop()
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			// schema validation failures are malformed requests
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestIDMiddleware)
	router.Use(accessLogMiddleware(log, cfg.Metrics))
	router.Use(captureBody)
	router.Use(newAuthMiddleware(cfg.Auth))
	if cfg.Limiter != nil {
		router.Use(rateLimitMiddleware(cfg.Limiter, cfg.Metrics))
	}

	hcfg := huma.DefaultConfig("SkyTrack API", "1.0.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = ""
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerFlights(group, cfg.Engine, cfg.Auth)
	registerFlightCrew(group, cfg.Engine, cfg.Auth)
	registerPlanes(group, cfg.Engine, cfg.Auth)
	registerCrewMembers(group, cfg.Engine, cfg.Auth)
	registerEvents(group, cfg.Engine)
	registerOpenAPI(router, api, basePath)
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics.Handler())
	}

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// handleError maps engine failures onto HTTP statuses by kind. The domain
// code becomes the envelope code.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var se huma.StatusError
	if errors.As(err, &se) {
		return se
	}
	var de *domain.Error
	if !errors.As(err, &de) {
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
	}
	switch de.Kind {
	case domain.KindNotFound:
		return newAPIError(http.StatusNotFound, de.Code, de.Message, nil)
	case domain.KindConflict:
		return newAPIError(http.StatusConflict, de.Code, de.Message, nil)
	case domain.KindInvalidTransition:
		return newAPIError(http.StatusUnprocessableEntity, de.Code, de.Message, nil)
	case domain.KindValidation:
		return newAPIError(http.StatusBadRequest, de.Code, de.Message, nil)
	case domain.KindUnavailable:
		return newAPIError(http.StatusServiceUnavailable, de.Code, "storage unavailable, retry later", nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil)
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func accessLogMiddleware(log logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			m.Request(r.Method, status)
			log.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func rateLimitMiddleware(l *ratelimit.ClientLimiter, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(clientKey(r)) {
				m.Limited()
				w.Header().Set("Retry-After", "1")
				respondStatusError(w, newAPIError(http.StatusTooManyRequests, "rate_limited", "too many requests", nil))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if p, ok := principalFromContext(r.Context()); ok && p.ActorID != "" {
		return "actor:" + p.ActorID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}
