package server

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"
)

// Audit actions.
const (
	AuditUpload  = "UPLOAD"
	AuditAnalyze = "ANALYZE"
)

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	ID         uuid.UUID
	Action     string
	RequestID  string
	RemoteAddr string
	Detail     string
	CreatedAt  time.Time
}

// AuditLog records audit events. Failures to record never fail the request
// that produced the event.
type AuditLog interface {
	Record(ctx context.Context, ev AuditEvent) error
	Ping(ctx context.Context) error
}

// NopAudit discards every event. It is used when no Postgres URL is set.
type NopAudit struct{}

func (NopAudit) Record(context.Context, AuditEvent) error { return nil }
func (NopAudit) Ping(context.Context) error               { return nil }

// SQLAudit stores events in the audit_events table.
type SQLAudit struct {
	db *sql.DB
}

func NewSQLAudit(db *sql.DB) *SQLAudit {
	return &SQLAudit{db: db}
}

func (a *SQLAudit) Record(ctx context.Context, ev AuditEvent) error {
	_, err := a.db.ExecContext(ctx,
		`INSERT INTO audit_events (id, action, request_id, remote_addr, detail, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		ev.ID, ev.Action, ev.RequestID, ev.RemoteAddr, ev.Detail, ev.CreatedAt,
	)
	return err
}

func (a *SQLAudit) Ping(ctx context.Context) error {
	return a.db.PingContext(ctx)
}

// audit records action for r, logging instead of failing when the store errors.
func (s *Server) audit(r *http.Request, action, detail string) {
	ev := AuditEvent{
		ID:         uuid.New(),
		Action:     action,
		RequestID:  RequestIDFromContext(r.Context()),
		RemoteAddr: clientIP(r),
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
	defer cancel()
	if err := s.auditLog.Record(ctx, ev); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("action", action).Msg("audit_record_failed")
	}
}
