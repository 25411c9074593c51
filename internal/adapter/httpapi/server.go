// Package httpapi exposes the query gateway over HTTP. It is a thin
// transport: tenant identity comes from the X-Tenant-ID header, the body is
// decoded into a QueryRequest, and gateway errors map onto HTTP status codes.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/causeway-db/causeway/internal/core/domain"
)

// QueryService is the gateway surface the HTTP layer depends on.
type QueryService interface {
	Execute(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error)
}

type queryRequest struct {
	SQL         string `json:"sql"`
	Params      []any  `json:"params"`
	AllowWrite  bool   `json:"allow_write"`
	CrossTenant bool   `json:"cross_tenant"`
	TimeoutMS   int    `json:"timeout_ms"`
	MaxRows     int    `json:"max_rows"`
}

type queryResponse struct {
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Affected  int64            `json:"affected"`
	Truncated bool             `json:"truncated"`
	ElapsedMS int64            `json:"elapsed_ms"`
	Warnings  []string         `json:"warnings,omitempty"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Preview string `json:"preview,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// Server serves the gateway API.
type Server struct {
	svc    QueryService
	logger *slog.Logger
	router *chi.Mux
}

// NewServer builds the router. An empty bearerToken disables bearer auth.
func NewServer(svc QueryService, logger *slog.Logger, bearerToken string) *Server {
	s := &Server{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoveryMiddleware(logger))
	r.Get("/healthz", s.handleHealth)

	r.Group(func(r chi.Router) {
		if bearerToken != "" {
			r.Use(bearerAuthMiddleware(bearerToken))
		}
		r.Post("/v1/query", s.handleQuery)
	})

	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	tenant := strings.TrimSpace(r.Header.Get("X-Tenant-ID"))
	if tenant == "" {
		writeError(w, http.StatusBadRequest, errorBody{
			Kind:    string(domain.KindParameter),
			Message: "missing X-Tenant-ID header",
		})
		return
	}

	var body queryRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, errorBody{
			Kind:    string(domain.KindParameter),
			Message: fmt.Sprintf("invalid request body: %v", err),
		})
		return
	}

	req := domain.QueryRequest{
		Tenant:      tenant,
		SQL:         body.SQL,
		Params:      body.Params,
		AllowWrite:  body.AllowWrite,
		CrossTenant: body.CrossTenant,
		Timeout:     time.Duration(body.TimeoutMS) * time.Millisecond,
		MaxRows:     body.MaxRows,
	}

	result, err := s.svc.Execute(r.Context(), req)
	if err != nil {
		s.writeGatewayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, queryResponse{
		Rows:      result.Rows,
		RowCount:  result.RowCount,
		Affected:  result.Affected,
		Truncated: result.Truncated,
		ElapsedMS: result.Elapsed.Milliseconds(),
		Warnings:  result.Warnings,
	})
}

func (s *Server) writeGatewayError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)

	body := errorBody{Kind: string(kind), Message: err.Error()}
	var ge *domain.GatewayError
	if errors.As(err, &ge) {
		body.Message = ge.Message
		body.Preview = ge.Preview
	}

	if kind == domain.KindRateLimited {
		if retry := domain.RetryAfter(err); retry > 0 {
			secs := int(math.Ceil(retry.Seconds()))
			w.Header().Set("Retry-After", fmt.Sprintf("%d", secs))
		}
	}

	writeError(w, status, body)
}

// statusForKind maps the gateway's error taxonomy onto HTTP statuses.
func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindSyntax, domain.KindForbidden, domain.KindNamespace, domain.KindParameter:
		return http.StatusBadRequest
	case domain.KindPermission:
		return http.StatusForbidden
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, body errorBody) {
	writeJSON(w, status, errorResponse{Error: body})
}
