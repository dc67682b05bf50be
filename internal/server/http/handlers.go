package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/helixir/paper-retrieval-service/internal/database"
	"github.com/helixir/paper-retrieval-service/internal/domain"
	"github.com/helixir/paper-retrieval-service/internal/observability"
	"github.com/helixir/paper-retrieval-service/internal/pipeline"
)

const (
	msgQueryRequired = "Query parameter required"
	msgInternalError = "internal server error"
)

// Search outcomes reported to the search_requests_total metric.
const (
	outcomeOK       = "ok"
	outcomeNotFound = "not_found"
	outcomeInvalid  = "invalid"
	outcomeError    = "error"
)

// queryParams holds the query string parameters shared by /search and /refresh.
type queryParams struct {
	Query string `validate:"required"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// queryParam returns the query parameter and whether it is present and
// non-empty. The value is passed on untouched.
func queryParam(r *http.Request) (string, bool) {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})

	raw := r.URL.Query().Get("query")
	if err := validate.Struct(queryParams{Query: raw}); err != nil {
		return raw, false
	}
	return raw, true
}

// search handles GET /search.
func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, s.logger)

	query, ok := queryParam(r)
	if !ok {
		s.recordSearch(outcomeInvalid, start)
		writeError(w, http.StatusBadRequest, msgQueryRequired)
		return
	}

	results, err := s.pipeline.Search(ctx, query)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNoResults):
		s.recordSearch(outcomeNotFound, start)
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("No papers found for query '%s'", query))
		return
	case errors.Is(err, domain.ErrInvalidInput):
		s.recordSearch(outcomeInvalid, start)
		writeError(w, http.StatusBadRequest, msgQueryRequired)
		return
	default:
		s.recordSearch(outcomeError, start)
		logger.Error().Err(err).Str("query", query).Msg("search failed")
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	if results == nil {
		results = []pipeline.Result{}
	}
	s.recordSearch(outcomeOK, start)
	writeJSON(w, http.StatusOK, results)
}

// refresh handles GET /refresh.
func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := observability.LoggerFromContext(ctx, s.logger)

	query, ok := queryParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, msgQueryRequired)
		return
	}

	n, err := s.pipeline.Refresh(ctx, query)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			writeError(w, http.StatusBadRequest, msgQueryRequired)
			return
		}
		logger.Error().Err(err).Str("query", query).Msg("refresh failed")
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	writeMessage(w, http.StatusOK, fmt.Sprintf("Refreshed %d papers for query '%s'.", n, query))
}

func (s *Server) recordSearch(outcome string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordSearchRequest(outcome, time.Since(start).Seconds())
	}
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readinessHandler pings every registered dependency. Dependencies that
// report pool health have their full status included in the body.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), database.HealthCheckTimeout)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	body := map[string]any{"status": "ready"}
	status := http.StatusOK
	fail := func(name, reason string) {
		s.logger.Warn().Str("error", reason).Str("dependency", name).Msg("readiness check failed")
		body["error"] = reason
		body["status"] = "not_ready"
		status = http.StatusServiceUnavailable
	}

	for _, name := range names {
		check := s.checks[name]
		if reporter, ok := check.(database.HealthReporter); ok {
			health := reporter.Health(ctx)
			body[name] = health
			if health.Status != database.StatusHealthy {
				fail(name, health.Error)
			}
			continue
		}

		if err := check.Ping(ctx); err != nil {
			body[name] = database.StatusUnhealthy
			fail(name, err.Error())
			continue
		}
		body[name] = database.StatusHealthy
	}

	writeJSON(w, status, body)
}
