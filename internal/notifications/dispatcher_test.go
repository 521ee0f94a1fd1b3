package notifications

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/dbtest"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/mailer"
	"github.com/angelmondragon/harvestlink-backend/pkg/metrics"
	"github.com/angelmondragon/harvestlink-backend/pkg/pagination"
)

type recordingMailer struct {
	mu    sync.Mutex
	sent  []mailer.Message
	err   error
	panic bool
	block bool
}

func (m *recordingMailer) Send(ctx context.Context, msg mailer.Message) error {
	if m.panic {
		panic("smtp exploded")
	}
	if m.block {
		<-ctx.Done()
		return ctx.Err()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return m.err
}

func (m *recordingMailer) messages() []mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Message(nil), m.sent...)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestDispatcher(t *testing.T, m mailer.Mailer, reg prometheus.Registerer) (*Dispatcher, Repository) {
	t.Helper()
	repo := NewRepository(dbtest.Open(t))
	d, err := NewDispatcher(config.NotificationsConfig{DeliveryTimeout: 200 * time.Millisecond}, repo, m, metrics.NewNotificationMetrics(reg), testLogger())
	require.NoError(t, err)
	return d, repo
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, channel string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	var total float64
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "channel" && label.GetValue() == channel {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func TestDispatcherDeliversEmailAndInApp(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := &recordingMailer{}
	d, repo := newTestDispatcher(t, m, reg)

	recipient := uuid.New()
	orderID := uuid.New()
	d.Notify(context.Background(), Target{ProfileID: recipient, Name: "Asha", Email: "asha@example.com"}, enums.NotifyPaymentRejected, Payload{
		OrderID:     orderID,
		Reason:      "amount mismatch",
		Counterpart: "Ravi",
	})
	d.Wait()

	sent := m.messages()
	require.Len(t, sent, 1)
	require.Equal(t, "asha@example.com", sent[0].To)
	require.Contains(t, sent[0].Text, "amount mismatch")

	rows, _, err := repo.ListForRecipient(context.Background(), recipient, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, enums.NotificationTypePaymentAlert, rows[0].Type)
	require.NotNil(t, rows[0].OrderID)
	require.Equal(t, orderID, *rows[0].OrderID)

	require.Equal(t, float64(1), counterValue(t, reg, "harvestlink_notifications_delivered_total", channelEmail))
	require.Equal(t, float64(1), counterValue(t, reg, "harvestlink_notifications_delivered_total", channelInApp))
}

func TestDispatcherKeepsOTPOutOfDatabase(t *testing.T) {
	m := &recordingMailer{}
	d, repo := newTestDispatcher(t, m, nil)

	recipient := uuid.New()
	d.Notify(context.Background(), Target{ProfileID: recipient, Name: "Asha", Email: "asha@example.com"}, enums.NotifyOrderOTP, Payload{
		OrderID: uuid.New(),
		OTP:     "4821",
	})
	d.Wait()

	sent := m.messages()
	require.Len(t, sent, 1)
	require.True(t, strings.Contains(sent[0].Text, "4821"))

	rows, _, err := repo.ListForRecipient(context.Background(), recipient, pagination.Params{})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	reg := prometheus.NewRegistry()
	d, repo := newTestDispatcher(t, &recordingMailer{err: errors.New("sendgrid down")}, reg)

	recipient := uuid.New()
	d.Notify(context.Background(), Target{ProfileID: recipient, Email: "x@example.com"}, enums.NotifyOrderCancelled, Payload{OrderID: uuid.New(), Reason: "changed mind"})
	d.Wait()

	require.Equal(t, float64(1), counterValue(t, reg, "harvestlink_notifications_failed_total", channelEmail))
	rows, _, err := repo.ListForRecipient(context.Background(), recipient, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestDispatcherRecoversPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d, _ := newTestDispatcher(t, &recordingMailer{panic: true}, reg)

	d.Notify(context.Background(), Target{ProfileID: uuid.New(), Email: "x@example.com"}, enums.NotifyOrderConfirmed, Payload{OrderID: uuid.New()})
	d.Wait()

	require.Equal(t, float64(1), counterValue(t, reg, "harvestlink_notifications_failed_total", "panic"))
}

func TestDispatcherIgnoresCallerCancellationAndTimesOut(t *testing.T) {
	reg := prometheus.NewRegistry()
	d, repo := newTestDispatcher(t, &recordingMailer{block: true}, reg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	recipient := uuid.New()
	start := time.Now()
	d.Notify(ctx, Target{ProfileID: recipient, Email: "x@example.com"}, enums.NotifyOrderStatusChanged, Payload{OrderID: uuid.New(), Status: "shipped"})
	d.Wait()

	require.Less(t, time.Since(start), 2*time.Second)
	require.Equal(t, float64(1), counterValue(t, reg, "harvestlink_notifications_failed_total", channelEmail))
	// the in-app row shares the timed-out context, so it is dropped as well
	rows, _, err := repo.ListForRecipient(context.Background(), recipient, pagination.Params{})
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestNewDispatcherValidatesDependencies(t *testing.T) {
	if _, err := NewDispatcher(config.NotificationsConfig{}, nil, &recordingMailer{}, nil, testLogger()); err == nil {
		t.Fatalf("expected error for missing repository")
	}
	repo := NewRepository(dbtest.Open(t))
	if _, err := NewDispatcher(config.NotificationsConfig{}, repo, nil, nil, testLogger()); err == nil {
		t.Fatalf("expected error for missing mailer")
	}
}

func TestDisabledDispatcherDropsNotices(t *testing.T) {
	m := &recordingMailer{}
	repo := NewRepository(dbtest.Open(t))
	d, err := NewDispatcher(config.NotificationsConfig{Disabled: true}, repo, m, nil, testLogger())
	require.NoError(t, err)

	d.Notify(context.Background(), Target{ProfileID: uuid.New(), Email: "x@example.com"}, enums.NotifyOrderConfirmed, Payload{})
	d.Wait()
	require.Empty(t, m.messages())
}
