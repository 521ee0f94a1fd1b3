package gatewaywebhook

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvestlink-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
	"github.com/angelmondragon/harvestlink-backend/pkg/gateway"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/idempotency"
)

const webhookSecret = "whsec_test"

type memoryStore struct {
	mu   sync.Mutex
	keys map[string]string
}

func (m *memoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.keys[key], nil
}

func (m *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys == nil {
		m.keys = map[string]string{}
	}
	if _, ok := m.keys[key]; ok {
		return false, nil
	}
	m.keys[key] = "1"
	return true, nil
}

func (m *memoryStore) IdempotencyKey(scope, id string) string {
	return "idempotency:" + scope + ":" + id
}

func (m *memoryStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.keys, key)
	}
	return nil
}

type stubApplier struct {
	calls   []string
	outcome string
	err     error
	last    gateway.WebhookEvent
}

func (s *stubApplier) ApplyGatewayEvent(_ context.Context, eventID string, evt gateway.WebhookEvent, _ []byte) (string, error) {
	s.calls = append(s.calls, eventID)
	s.last = evt
	return s.outcome, s.err
}

func newTestService(t *testing.T, applier *stubApplier) (*Service, *memoryStore) {
	t.Helper()
	store := &memoryStore{}
	guard, err := idempotency.New(store, time.Hour)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Payments:      applier,
		Guard:         guard.Scope(GuardScope),
		WebhookSecret: webhookSecret,
		Logger:        logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	return svc, store
}

var capturedBody = []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_GW1","amount":10000}}}}`)

func TestHandleAppliesSignedEventOnce(t *testing.T) {
	applier := &stubApplier{outcome: payments.OutcomeSettled}
	svc, _ := newTestService(t, applier)
	sig := gateway.WebhookSignature(webhookSecret, capturedBody)

	outcome, err := svc.Handle(context.Background(), capturedBody, sig, "evt_1")
	require.NoError(t, err)
	require.Equal(t, payments.OutcomeSettled, outcome)
	require.Equal(t, "order_GW1", applier.last.GatewayOrderID)
	require.Equal(t, int64(10000), applier.last.AmountPaise)

	outcome, err = svc.Handle(context.Background(), capturedBody, sig, "evt_1")
	require.NoError(t, err)
	require.Equal(t, payments.OutcomeDuplicate, outcome)
	require.Equal(t, []string{"evt_1"}, applier.calls)
}

func TestHandleRejectsTamperedBody(t *testing.T) {
	applier := &stubApplier{outcome: payments.OutcomeSettled}
	svc, store := newTestService(t, applier)
	sig := gateway.WebhookSignature(webhookSecret, capturedBody)
	tampered := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_1","order_id":"order_GW1","amount":1}}}}`)

	_, err := svc.Handle(context.Background(), tampered, sig, "evt_1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSecurity), "got %v", err)
	require.Empty(t, applier.calls)
	require.Empty(t, store.keys)
}

func TestHandleReleasesGuardOnFailure(t *testing.T) {
	applier := &stubApplier{err: pkgerrors.New(pkgerrors.CodeDependency, "db down")}
	svc, store := newTestService(t, applier)
	sig := gateway.WebhookSignature(webhookSecret, capturedBody)

	_, err := svc.Handle(context.Background(), capturedBody, sig, "evt_1")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	require.Empty(t, store.keys)

	applier.err = nil
	applier.outcome = payments.OutcomeSettled
	outcome, err := svc.Handle(context.Background(), capturedBody, sig, "evt_1")
	require.NoError(t, err)
	require.Equal(t, payments.OutcomeSettled, outcome)
	require.Len(t, applier.calls, 2)
}

func TestHandleValidatesInput(t *testing.T) {
	svc, _ := newTestService(t, &stubApplier{})
	sig := gateway.WebhookSignature(webhookSecret, capturedBody)

	_, err := svc.Handle(context.Background(), capturedBody, sig, "")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	garbage := []byte(`not json`)
	_, err = svc.Handle(context.Background(), garbage, gateway.WebhookSignature(webhookSecret, garbage), "evt_2")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	unconfigured, err := NewService(ServiceParams{
		Payments: &stubApplier{},
		Guard:    guardFor(t, &memoryStore{}),
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	require.NoError(t, err)
	_, err = unconfigured.Handle(context.Background(), capturedBody, sig, "evt_3")
	require.True(t, errors.Is(err, gateway.ErrNotConfigured))
}

func guardFor(t *testing.T, store idempotency.Store) *idempotency.Scoped {
	t.Helper()
	guard, err := idempotency.New(store, time.Hour)
	require.NoError(t, err)
	return guard.Scope(GuardScope)
}
