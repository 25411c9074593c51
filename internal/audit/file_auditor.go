// Package audit persists structured post-request records. Entries carry the
// normalized-query fingerprint rather than the raw SQL, so the log never
// contains tenant data embedded in query text.
package audit

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/causeway-db/causeway/internal/core/port"
)

// fileEntry is the NDJSON-serializable form of an audit record.
type fileEntry struct {
	Timestamp   string  `json:"ts"`
	RequestID   string  `json:"request_id"`
	Tenant      string  `json:"tenant"`
	Fingerprint string  `json:"fingerprint,omitempty"`
	Kind        string  `json:"kind,omitempty"`
	ParamCount  int     `json:"param_count"`
	RowCount    int     `json:"row_count"`
	Affected    int64   `json:"affected"`
	DurationMS  int64   `json:"duration_ms"`
	Status      string  `json:"status"`
	Error       *string `json:"error,omitempty"`
}

// FileAuditor writes audit entries as NDJSON (one JSON object per line) to a file.
type FileAuditor struct {
	mu   sync.Mutex
	file *os.File
	enc  *json.Encoder
}

// NewFileAuditor opens (or creates) the file at path for append-only writing.
func NewFileAuditor(path string) (*FileAuditor, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &FileAuditor{
		file: f,
		enc:  json.NewEncoder(f),
	}, nil
}

func (a *FileAuditor) Record(_ context.Context, entry port.AuditEntry) {
	fe := fileEntry{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		RequestID:   entry.RequestID,
		Tenant:      entry.Tenant,
		Fingerprint: entry.Fingerprint,
		Kind:        entry.Kind,
		ParamCount:  entry.ParamCount,
		RowCount:    entry.RowCount,
		Affected:    entry.Affected,
		DurationMS:  entry.DurationMS,
		Status:      entry.Status,
	}
	if entry.Err != nil {
		s := entry.Err.Error()
		fe.Error = &s
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.enc.Encode(fe) // best-effort; don't fail the request for audit I/O
}

func (a *FileAuditor) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.file.Close()
}
