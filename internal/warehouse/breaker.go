package warehouse

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/drug-risk-ml-server/internal/domain"
)

// BreakerStore wraps a WarehouseStore with a circuit breaker so a
// failing warehouse fails training runs fast instead of hanging the
// pipeline on connection timeouts.
type BreakerStore struct {
	inner   domain.WarehouseStore
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Logger
}

// NewBreakerStore creates a circuit-breaking warehouse store
func NewBreakerStore(inner domain.WarehouseStore, timeout time.Duration, logger *logrus.Logger) *BreakerStore {
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        "Warehouse",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from_state":      from,
				"to_state":        to,
			}).Warn("Circuit breaker state changed")
		},
	}

	return &BreakerStore{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
		log:     logger,
	}
}

// FetchPrescriptions fetches prescriptions through the breaker
func (s *BreakerStore) FetchPrescriptions(ctx context.Context) ([]domain.PrescriptionRecord, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.FetchPrescriptions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.PrescriptionRecord), nil
}

// FetchVariants fetches variants through the breaker
func (s *BreakerStore) FetchVariants(ctx context.Context) ([]domain.VariantRecord, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.FetchVariants(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.VariantRecord), nil
}

// FetchInteractions fetches interactions through the breaker
func (s *BreakerStore) FetchInteractions(ctx context.Context) ([]domain.InteractionRecord, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.inner.FetchInteractions(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.InteractionRecord), nil
}

// Health checks the wrapped store, bypassing the breaker so health
// probes still observe the underlying state while the circuit is open.
func (s *BreakerStore) Health(ctx context.Context) error {
	return s.inner.Health(ctx)
}
