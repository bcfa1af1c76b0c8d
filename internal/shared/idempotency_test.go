package shared

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type keyTable struct {
	keys map[string]string
}

func (k *keyTable) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if len(args) < 2 {
		return pgconn.NewCommandTag("DELETE 0"), nil
	}
	key := args[0].(string)
	if _, ok := k.keys[key]; ok {
		return pgconn.CommandTag{}, &pgconn.PgError{Code: "23505", ConstraintName: "idempotency_keys_pkey"}
	}
	k.keys[key] = args[1].(string)
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestIdempotencyStoreRejectsReplay(t *testing.T) {
	store := NewIdempotencyStore(&keyTable{keys: map[string]string{}})
	ctx := context.Background()

	require.NoError(t, store.CheckAndInsert(ctx, "batch-1", "reconciliation.batch"))
	err := store.CheckAndInsert(ctx, "batch-1", "reconciliation.batch")
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
}

func TestIdempotencyStoreValidatesInput(t *testing.T) {
	store := NewIdempotencyStore(&keyTable{keys: map[string]string{}})
	assert.Error(t, store.CheckAndInsert(context.Background(), "", "m"))
	assert.Error(t, store.CheckAndInsert(context.Background(), "k", ""))

	var nilStore *IdempotencyStore
	assert.Error(t, nilStore.CheckAndInsert(context.Background(), "k", "m"))
}
