package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/causeway-db/causeway/internal/core/domain"
	"github.com/causeway-db/causeway/internal/core/port"
)

type requestIDKey struct{}

// WithRequestID returns a context carrying the transport-assigned request id
// for logging and audit correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFromCtx(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok && v != "" {
		return v
	}
	return uuid.NewString()
}

// GatewayService orchestrates validation, binding, admission and execution
// for tenant-submitted statements. A request moves Received → Validated →
// Bound → Admitted → Executing and terminates Completed, Rejected or Failed;
// every terminal state produces an audit record.
type GatewayService struct {
	validator port.QueryValidator
	executor  port.QueryExecutor
	admitter  port.Admitter
	auditor   port.QueryAuditor
	logger    *slog.Logger
	dialect   domain.Dialect
	masks     map[string]domain.MaskSet // tenant → column masks (nil = none)
	tracer    trace.Tracer
	inst      port.Instrumentation

	defaultTimeout time.Duration
	defaultMaxRows int
}

func NewGatewayService(
	validator port.QueryValidator,
	executor port.QueryExecutor,
	admitter port.Admitter,
	auditor port.QueryAuditor,
	logger *slog.Logger,
	dialect domain.Dialect,
	masks map[string]domain.MaskSet,
	tracer trace.Tracer,
	inst port.Instrumentation,
	defaultTimeout time.Duration,
	defaultMaxRows int,
) *GatewayService {
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("noop")
	}
	if inst == nil {
		inst = port.NoopInstrumentation{}
	}
	if defaultTimeout <= 0 {
		defaultTimeout = 10 * time.Second
	}
	if defaultMaxRows <= 0 {
		defaultMaxRows = 100
	}
	return &GatewayService{
		validator:      validator,
		executor:       executor,
		admitter:       admitter,
		auditor:        auditor,
		logger:         logger,
		dialect:        dialect,
		masks:          masks,
		tracer:         tracer,
		inst:           inst,
		defaultTimeout: defaultTimeout,
		defaultMaxRows: defaultMaxRows,
	}
}

// Execute runs one request through the full state machine. The returned error,
// if any, is a *domain.GatewayError classifying the failure.
func (s *GatewayService) Execute(ctx context.Context, req domain.QueryRequest) (*domain.QueryResult, error) {
	ctx, span := s.tracer.Start(ctx, "GatewayService.Execute",
		trace.WithAttributes(
			attribute.String("db.system", s.dialect.Name()),
			attribute.String("tenant.id", req.Tenant),
		),
	)
	defer span.End()

	requestID := requestIDFromCtx(ctx)

	// Received → Validated
	validation, err := s.validator.Validate(req.SQL, req.Tenant, len(req.Params), req.CrossTenant)
	if err != nil {
		return nil, s.reject(ctx, span, requestID, req, nil, err)
	}
	span.SetAttributes(attribute.String("db.query.fingerprint", validation.Fingerprint))

	// Validated → Bound
	bound, err := domain.Bind(req.SQL, req.Params, s.dialect)
	if err != nil {
		return nil, s.reject(ctx, span, requestID, req, validation, err)
	}

	// Bound → Admitted
	if err := s.admitter.Check(req.Tenant); err != nil {
		s.inst.IncrementRateLimited(ctx)
		return nil, s.reject(ctx, span, requestID, req, validation, err)
	}

	// Admitted → Executing. A statement that is syntactically a write also
	// needs the caller's authorization to write.
	if validation.Writes && !req.AllowWrite {
		err := domain.Errorf(domain.KindPermission, "%s statements require allow_write", validation.Kind)
		err.Preview = domain.Preview(req.SQL)
		return nil, s.reject(ctx, span, requestID, req, validation, err)
	}

	stmt := port.Statement{
		SQL:     bound.Text,
		Args:    bound.NativeArgs(s.dialect),
		Kind:    validation.Kind,
		Timeout: s.timeoutFor(req),
		MaxRows: s.maxRowsFor(req),
	}

	start := time.Now()
	out, err := s.executor.Execute(ctx, stmt)
	elapsed := time.Since(start)

	s.inst.RecordQueryDuration(ctx, float64(elapsed.Milliseconds()))

	if err != nil {
		s.inst.IncrementQueryErrors(ctx)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.WarnContext(ctx, "query execution failed",
			slog.String("request_id", requestID),
			slog.String("tenant", req.Tenant),
			slog.String("error_kind", string(domain.KindOf(err))),
		)
		s.audit(ctx, requestID, req, validation, 0, 0, elapsed, err)
		return nil, err
	}

	// Executing → Completed
	if masks := s.masks[req.Tenant]; masks != nil {
		masks.Apply(out.Rows)
	}

	result := &domain.QueryResult{
		Rows:      out.Rows,
		RowCount:  len(out.Rows),
		Affected:  out.Affected,
		Truncated: out.Truncated,
		Elapsed:   elapsed,
		Warnings:  validation.Warnings,
	}

	s.inst.IncrementQueryCount(ctx)
	span.SetAttributes(
		attribute.Int("db.response.rows", result.RowCount),
		attribute.Bool("db.response.truncated", result.Truncated),
	)
	s.logger.InfoContext(ctx, "query completed",
		slog.String("request_id", requestID),
		slog.String("tenant", req.Tenant),
		slog.String("statement_kind", string(validation.Kind)),
		slog.Int("rows", result.RowCount),
		slog.Int64("affected", result.Affected),
		slog.Duration("elapsed", elapsed),
	)
	s.audit(ctx, requestID, req, validation, result.RowCount, result.Affected, elapsed, nil)

	return result, nil
}

// reject records a terminal Rejected state and returns the classified error.
func (s *GatewayService) reject(ctx context.Context, span trace.Span, requestID string, req domain.QueryRequest, validation *domain.ValidationResult, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	s.logger.WarnContext(ctx, "query rejected",
		slog.String("request_id", requestID),
		slog.String("tenant", req.Tenant),
		slog.String("error_kind", string(domain.KindOf(err))),
	)
	s.audit(ctx, requestID, req, validation, 0, 0, 0, err)
	return err
}

func (s *GatewayService) audit(ctx context.Context, requestID string, req domain.QueryRequest, validation *domain.ValidationResult, rows int, affected int64, elapsed time.Duration, err error) {
	entry := port.AuditEntry{
		RequestID:  requestID,
		Tenant:     req.Tenant,
		ParamCount: len(req.Params),
		RowCount:   rows,
		Affected:   affected,
		DurationMS: elapsed.Milliseconds(),
		Status:     "ok",
		Err:        err,
	}
	if validation != nil {
		entry.Fingerprint = validation.Fingerprint
		entry.Kind = string(validation.Kind)
	}
	if err != nil {
		entry.Status = string(domain.KindOf(err))
	}
	s.auditor.Record(ctx, entry)
}

func (s *GatewayService) timeoutFor(req domain.QueryRequest) time.Duration {
	if req.Timeout > 0 && req.Timeout < s.defaultTimeout {
		return req.Timeout
	}
	return s.defaultTimeout
}

func (s *GatewayService) maxRowsFor(req domain.QueryRequest) int {
	if req.MaxRows > 0 && req.MaxRows < s.defaultMaxRows {
		return req.MaxRows
	}
	return s.defaultMaxRows
}
