package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mnehpets/rpcgate/audit"
)

// Write implements audit.Sink by inserting a log_jsonrpc row.
func (s *DB) Write(ctx context.Context, e audit.Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_jsonrpc(trace_id, created_at, project_code, service, method, request, duration, response_type, response)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TraceID,
		formatTime(e.Time),
		e.ProjectCode,
		e.Service,
		e.Method,
		string(e.Request),
		float64(e.Duration)/float64(time.Millisecond),
		e.ResponseType,
		string(e.Response),
	)
	if err != nil {
		return fmt.Errorf("failed to insert into log_jsonrpc: %w", err)
	}
	return nil
}

// AuditEntries returns up to limit entries, newest first. A limit <= 0
// returns all of them.
func (s *DB) AuditEntries(ctx context.Context, limit int) ([]audit.Entry, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT trace_id, created_at, project_code, service, method, request, duration, response_type, response
		FROM log_jsonrpc ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query log_jsonrpc: %w", err)
	}
	defer rows.Close()

	var out []audit.Entry
	for rows.Next() {
		var (
			e                 audit.Entry
			created           string
			request, response string
			ms                float64
		)
		if err := rows.Scan(&e.TraceID, &created, &e.ProjectCode, &e.Service, &e.Method, &request, &ms, &e.ResponseType, &response); err != nil {
			return nil, err
		}
		if e.Time, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("audit entry %s: bad created_at: %w", e.TraceID, err)
		}
		e.Request = json.RawMessage(request)
		e.Response = json.RawMessage(response)
		e.Duration = time.Duration(ms * float64(time.Millisecond))
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ audit.Sink = (*DB)(nil)
