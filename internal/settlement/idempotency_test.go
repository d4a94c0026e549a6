package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
	err  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{keys: make(map[string]struct{})}
}

func (f *fakeStore) SetNX(_ context.Context, key string, _ any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	if _, ok := f.keys[key]; ok {
		return false, nil
	}
	f.keys[key] = struct{}{}
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.keys, key)
	}
	return nil
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.keys[key]; ok {
		return "1", nil
	}
	return "", nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return scope + ":" + id
}

func TestCheckAndMarkFirstDelivery(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newFakeStore(), time.Hour, "payments")
	require.NoError(t, err)

	processed, err := guard.CheckAndMark(context.Background(), "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestCheckAndMarkDuplicate(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newFakeStore(), time.Hour, "payments")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)

	processed, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestDeleteReleasesClaim(t *testing.T) {
	t.Parallel()

	guard, err := NewIdempotencyGuard(newFakeStore(), time.Hour, "payments")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	require.NoError(t, guard.Delete(ctx, "evt_1"))

	processed, err := guard.CheckAndMark(ctx, "evt_1")
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestGuardValidation(t *testing.T) {
	t.Parallel()

	_, err := NewIdempotencyGuard(nil, time.Hour, "payments")
	require.Error(t, err)

	_, err = NewIdempotencyGuard(newFakeStore(), time.Hour, "")
	require.Error(t, err)

	guard, err := NewIdempotencyGuard(newFakeStore(), time.Hour, "payments")
	require.NoError(t, err)
	_, err = guard.CheckAndMark(context.Background(), "")
	require.Error(t, err)
}
