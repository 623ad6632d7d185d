package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drug-risk-ml-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestKeyIsDeterministic(t *testing.T) {
	row := []float64{1.5, -0.25, 0}

	a := Key(row, "WARFARIN", domain.MODE_ENSEMBLE)
	b := Key([]float64{1.5, -0.25, 0}, "WARFARIN", domain.MODE_ENSEMBLE)
	assert.Equal(t, a, b)

	// Any component change produces a different key.
	assert.NotEqual(t, a, Key(row, "WARFARIN", domain.MODE_SINGLE))
	assert.NotEqual(t, a, Key(row, "CLOPIDOGREL", domain.MODE_ENSEMBLE))
	assert.NotEqual(t, a, Key([]float64{1.5, -0.25, 1}, "WARFARIN", domain.MODE_ENSEMBLE))
}

func TestMemoryCacheHitAndMiss(t *testing.T) {
	cache, err := NewMemoryOnly(10, time.Hour, quietLogger())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := Key([]float64{1}, "WARFARIN", domain.MODE_ENSEMBLE)

	_, found := cache.Get(ctx, key)
	assert.False(t, found)

	result := json.RawMessage(`{"probability":0.82}`)
	cache.Set(ctx, key, result)

	got, found := cache.Get(ctx, key)
	require.True(t, found)
	assert.JSONEq(t, `{"probability":0.82}`, string(got))
}

func TestExpiredEntryIsEvicted(t *testing.T) {
	cache, err := NewMemoryOnly(10, time.Millisecond, quietLogger())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := Key([]float64{1}, "WARFARIN", domain.MODE_ENSEMBLE)
	cache.Set(ctx, key, json.RawMessage(`{}`))

	time.Sleep(5 * time.Millisecond)

	_, found := cache.Get(ctx, key)
	assert.False(t, found)
}

func TestLRUEviction(t *testing.T) {
	cache, err := NewMemoryOnly(2, time.Hour, quietLogger())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	k1 := Key([]float64{1}, "A", domain.MODE_ENSEMBLE)
	k2 := Key([]float64{2}, "B", domain.MODE_ENSEMBLE)
	k3 := Key([]float64{3}, "C", domain.MODE_ENSEMBLE)

	cache.Set(ctx, k1, json.RawMessage(`1`))
	cache.Set(ctx, k2, json.RawMessage(`2`))
	cache.Set(ctx, k3, json.RawMessage(`3`))

	// Capacity 2: the oldest entry is gone.
	_, found := cache.Get(ctx, k1)
	assert.False(t, found)
	_, found = cache.Get(ctx, k3)
	assert.True(t, found)
}

func TestPurge(t *testing.T) {
	cache, err := NewMemoryOnly(10, time.Hour, quietLogger())
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	key := Key([]float64{1}, "WARFARIN", domain.MODE_ENSEMBLE)
	cache.Set(ctx, key, json.RawMessage(`{}`))

	cache.Purge()

	_, found := cache.Get(ctx, key)
	assert.False(t, found)
}
