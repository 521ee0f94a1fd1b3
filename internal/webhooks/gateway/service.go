package gatewaywebhook

import (
	"context"

	"github.com/angelmondragon/harvestlink-backend/internal/payments"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
	"github.com/angelmondragon/harvestlink-backend/pkg/gateway"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/metrics"
)

// GuardScope namespaces gateway event ids in the idempotency store.
const GuardScope = "gateway-webhook"

const outcomeRejected = "invalid_signature"

type eventApplier interface {
	ApplyGatewayEvent(ctx context.Context, eventID string, evt gateway.WebhookEvent, raw []byte) (string, error)
}

type eventGuard interface {
	CheckAndMark(ctx context.Context, eventID string) (bool, error)
	Delete(ctx context.Context, eventID string) error
}

type ServiceParams struct {
	Payments      eventApplier
	Guard         eventGuard
	WebhookSecret string
	Metrics       *metrics.PaymentMetrics
	Logger        *logger.Logger
}

// Service authenticates gateway callbacks and hands them to the payment service.
type Service struct {
	payments eventApplier
	guard    eventGuard
	secret   string
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payment service required")
	}
	if params.Guard == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "idempotency guard required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		payments: params.Payments,
		guard:    params.Guard,
		secret:   params.WebhookSecret,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}, nil
}

// Handle verifies the signature over the raw body before anything is parsed
// or stored. Replays short-circuit on the Redis guard; the payment service
// catches whatever slips past it.
func (s *Service) Handle(ctx context.Context, raw []byte, signature, eventID string) (string, error) {
	if s.secret == "" {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, gateway.ErrNotConfigured, "webhook secret missing")
	}
	if !gateway.VerifyWebhookSignature(s.secret, raw, signature) {
		s.metrics.IncWebhook(outcomeRejected)
		return "", pkgerrors.New(pkgerrors.CodeSecurity, "invalid webhook signature")
	}
	if eventID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event id header required")
	}
	evt, err := gateway.ParseWebhookEvent(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid webhook payload")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id": eventID,
		"event":    evt.Event,
	})
	duplicate, err := s.guard.CheckAndMark(ctx, eventID)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check webhook idempotency")
	}
	if duplicate {
		s.metrics.IncWebhook(payments.OutcomeDuplicate)
		s.logg.Info(ctx, "gateway webhook already processed")
		return payments.OutcomeDuplicate, nil
	}

	outcome, err := s.payments.ApplyGatewayEvent(ctx, eventID, evt, raw)
	if err != nil {
		if delErr := s.guard.Delete(ctx, eventID); delErr != nil {
			s.logg.Error(ctx, "release webhook idempotency key", delErr)
		}
		s.metrics.IncWebhook("error")
		return "", err
	}
	s.metrics.IncWebhook(outcome)
	s.logg.Info(s.logg.WithField(ctx, "outcome", outcome), "gateway webhook applied")
	return outcome, nil
}
