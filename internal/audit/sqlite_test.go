package audit

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
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

func testEntry() *domain.AuditEntry {
	return &domain.AuditEntry{
		RequestID:         "req-123",
		DrugName:          "WARFARIN",
		Mode:              domain.MODE_ENSEMBLE,
		Probability:       0.82,
		RiskLevel:         domain.RISK_HIGH,
		Confidence:        domain.CONFIDENCE_HIGH,
		DefaultedFeatures: []string{"risk_score", "unique_genes"},
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"), quietLogger())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Record(ctx, testEntry()))

	entries, err := store.RecentByRequest(ctx, "req-123")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "WARFARIN", got.DrugName)
	assert.Equal(t, domain.RISK_HIGH, got.RiskLevel)
	assert.Equal(t, []string{"risk_score", "unique_genes"}, got.DefaultedFeatures)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLiteStoreEmptyDefaultedFeatures(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "audit.db"), quietLogger())
	require.NoError(t, err)
	defer store.Close()

	entry := testEntry()
	entry.DefaultedFeatures = nil
	require.NoError(t, store.Record(context.Background(), entry))

	entries, err := store.RecentByRequest(context.Background(), "req-123")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].DefaultedFeatures)
}

func TestRecordSQL(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStoreWithDB(db, quietLogger())

	mock.ExpectExec("INSERT INTO prediction_audit").
		WithArgs("req-123", "WARFARIN", "ensemble", 0.82, "HIGH", "HIGH",
			"risk_score,unique_genes", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Record(context.Background(), testEntry()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSQLError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewStoreWithDB(db, quietLogger())

	mock.ExpectExec("INSERT INTO prediction_audit").
		WillReturnError(errors.New("disk full"))

	assert.Error(t, store.Record(context.Background(), testEntry()))
}

// recordingStore captures entries for assertions on the async wrapper.
type recordingStore struct {
	mu      sync.Mutex
	entries []*domain.AuditEntry
	err     error
	done    chan struct{}
}

func (r *recordingStore) Record(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	close(r.done)
	return r.err
}

func (r *recordingStore) Close() error { return nil }

func TestAsyncStoreRecordsInBackground(t *testing.T) {
	inner := &recordingStore{done: make(chan struct{})}
	store := NewAsyncStore(inner, quietLogger())

	require.NoError(t, store.Record(context.Background(), testEntry()))

	select {
	case <-inner.done:
	case <-time.After(2 * time.Second):
		t.Fatal("async audit write never reached the inner store")
	}

	inner.mu.Lock()
	defer inner.mu.Unlock()
	require.Len(t, inner.entries, 1)
	assert.Equal(t, "req-123", inner.entries[0].RequestID)
}

func TestAsyncStoreSwallowsErrors(t *testing.T) {
	inner := &recordingStore{done: make(chan struct{}), err: errors.New("write failed")}
	store := NewAsyncStore(inner, quietLogger())

	// The request path never sees the failure.
	assert.NoError(t, store.Record(context.Background(), testEntry()))
	<-inner.done
}
