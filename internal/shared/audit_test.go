package shared

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingExec struct {
	sql  string
	args []any
}

func (c *capturingExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.sql, c.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestAuditLoggerRecordsRequester(t *testing.T) {
	conn := &capturingExec{}
	ctx := ContextWithRequester(context.Background(), Requester{Actor: "clerk@finance", RequestID: "req-1"})
	at := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

	entry := NewAuditLog(ctx, "payment.update", "order", "42", at, map[string]any{"status": "Paid"})
	require.NoError(t, NewAuditLogger(conn).Record(ctx, entry))

	require.Len(t, conn.args, 7)
	assert.Equal(t, "clerk@finance", conn.args[0])
	assert.Equal(t, "req-1", conn.args[1])
	assert.Equal(t, "payment.update", conn.args[2])
	assert.Equal(t, "order", conn.args[3])
	assert.Equal(t, "42", conn.args[4])

	var meta map[string]any
	require.NoError(t, json.Unmarshal(conn.args[5].([]byte), &meta))
	assert.Equal(t, "Paid", meta["status"])
	assert.Equal(t, &at, conn.args[6])
}

func TestAuditLoggerRejectsIncompleteEntries(t *testing.T) {
	logger := NewAuditLogger(&capturingExec{})
	assert.Error(t, logger.Record(context.Background(), AuditLog{Action: "payment.update", Entity: "order"}))

	var nilLogger *AuditLogger
	assert.Error(t, nilLogger.Record(context.Background(), AuditLog{Action: "a", Entity: "b", EntityID: "c"}))
}

func TestRequesterFromEmptyContext(t *testing.T) {
	assert.Equal(t, Requester{}, RequesterFromContext(context.Background()))
}
