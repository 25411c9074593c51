package port

import "context"

// AuditEntry is the structured post-request record handed to the audit sink.
// Fingerprint is the normalized-query fingerprint, never the raw text.
type AuditEntry struct {
	RequestID   string
	Tenant      string
	Fingerprint string
	Kind        string
	ParamCount  int
	RowCount    int
	Affected    int64
	DurationMS  int64
	Status      string // "ok" or the error kind
	Err         error
}

// QueryAuditor records query audit events.
type QueryAuditor interface {
	Record(ctx context.Context, entry AuditEntry)
	Close() error
}

// NoopAuditor discards all audit entries.
type NoopAuditor struct{}

func (NoopAuditor) Record(context.Context, AuditEntry) {}
func (NoopAuditor) Close() error                       { return nil }
