package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// AuditLog represents a record stored in audit_logs.
type AuditLog struct {
	Actor     string
	RequestID string
	Action    string
	Entity    string
	EntityID  string
	Meta      map[string]any
	At        time.Time
}

// NewAuditLog builds an entry stamped with the requester found in ctx.
func NewAuditLog(ctx context.Context, action, entity, entityID string, at time.Time, meta map[string]any) AuditLog {
	req := RequesterFromContext(ctx)
	return AuditLog{
		Actor:     req.Actor,
		RequestID: req.RequestID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Meta:      meta,
		At:        at,
	}
}

// AuditLogger writes records into audit_logs. Bound to a transaction, the
// entry commits or rolls back with the change it describes.
type AuditLogger struct {
	db execer
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(conn execer) *AuditLogger {
	return &AuditLogger{db: conn}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	metaJSON, err := json.Marshal(log.Meta)
	if err != nil {
		return err
	}
	var at *time.Time
	if !log.At.IsZero() {
		at = &log.At
	}
	_, err = l.db.Exec(ctx, `INSERT INTO audit_logs (actor, request_id, action, entity, entity_id, meta, occurred_at)
		VALUES (NULLIF($1, ''), NULLIF($2, ''), $3, $4, $5, $6, COALESCE($7, NOW()))`,
		log.Actor, log.RequestID, log.Action, log.Entity, log.EntityID, metaJSON, at)
	return err
}
