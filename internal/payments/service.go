package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/internal/ledger"
	"github.com/angelmondragon/harvestlink-backend/internal/notifications"
	"github.com/angelmondragon/harvestlink-backend/internal/profiles"
	"github.com/angelmondragon/harvestlink-backend/pkg/auth"
	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	dbpkg "github.com/angelmondragon/harvestlink-backend/pkg/db"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
	"github.com/angelmondragon/harvestlink-backend/pkg/gateway"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/metrics"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/harvestlink-backend/pkg/storage/gcs"
	"github.com/angelmondragon/harvestlink-backend/pkg/types"
)

// Webhook outcomes recorded on the audit row and the webhook counter.
const (
	OutcomeSettled        = "settled"
	OutcomeFailed         = "failed"
	OutcomeIgnored        = "ignored"
	OutcomeNoop           = "noop"
	OutcomeUnmatched      = "unmatched"
	OutcomeDuplicate      = "duplicate"
	OutcomeAmountMismatch = "amount_mismatch"
)

const (
	signatureMismatchReason = "payment signature mismatch"
	gatewayFailedReason     = "payment failed at gateway"
)

var proofContentTypes = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// open statuses accept a new attempt on any channel
var openStatuses = []enums.PaymentStatus{enums.PaymentStatusPending, enums.PaymentStatusFailed}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service reconciles cash, gateway and UPI QR payments onto one payment row per order.
type Service interface {
	CreatePaymentOrder(ctx context.Context, buyer auth.Buyer, input CheckoutInput) (*CheckoutSession, error)
	CreateQR(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID) (*QRCode, error)
	VerifyGatewayPayment(ctx context.Context, buyer auth.Buyer, input VerifyInput) (*models.Payment, error)
	ApplyGatewayEvent(ctx context.Context, eventID string, evt gateway.WebhookEvent, raw []byte) (string, error)
	ConfirmCash(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID) (*models.Payment, error)
	MarkAsPaid(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID, proof ProofInput) (*models.Payment, error)
	ConfirmUPI(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID) (*models.Payment, error)
	RejectUPI(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID, reason string) (*models.Payment, error)
	GetStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Payment, error)
	OpenCashPayment(ctx context.Context, tx *gorm.DB, order *models.Order) error
	OnOrderCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error
	Reconcile(ctx context.Context, limit int) (ReconcileResult, error)
}

// Deps groups the collaborators of the payment service. Gateway may be nil
// when hosted checkout is not configured.
type Deps struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outboxPublisher
	Ledger   ledger.Service
	Profiles profiles.Repository
	Gateway  gateway.OrderCreator
	Storage  gcs.Uploader
	Notifier notifications.Notifier
	Metrics  *metrics.PaymentMetrics
	Logger   *logger.Logger
	Config   config.GatewayConfig
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outboxPublisher
	ledger   ledger.Service
	profiles profiles.Repository
	gateway  gateway.OrderCreator
	storage  gcs.Uploader
	notifier notifications.Notifier
	metrics  *metrics.PaymentMetrics
	logg     *logger.Logger
	cfg      config.GatewayConfig
	now      func() time.Time
}

func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments repository required")
	case deps.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	case deps.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "outbox publisher required")
	case deps.Ledger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "wallet ledger required")
	case deps.Profiles == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "profiles repository required")
	case deps.Storage == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "object storage required")
	case deps.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &service{
		repo:     deps.Repo,
		tx:       deps.Tx,
		outbox:   deps.Outbox,
		ledger:   deps.Ledger,
		profiles: deps.Profiles,
		gateway:  deps.Gateway,
		storage:  deps.Storage,
		notifier: notifier,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		cfg:      deps.Config,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// change describes one guarded status move.
type change struct {
	payment *models.Payment
	to      enums.PaymentStatus
	// from narrows the prior statuses further than the payment graph does.
	from    []enums.PaymentStatus
	channel enums.PaymentChannel
	updates map[string]any
	event   enums.OutboxEventType
	reason  string
	actor   *outbox.ActorRef
}

func (c change) effectiveChannel() enums.PaymentChannel {
	if c.channel != "" {
		return c.channel
	}
	return c.payment.Channel
}

// apply performs the conditional status update. Credit, order mirror and
// event writes only happen when a row moved.
func (s *service) apply(ctx context.Context, tx *gorm.DB, c change) (bool, error) {
	from := legalPriors(c.to, c.from)
	if len(from) == 0 {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment cannot move to %s", c.to))
	}
	updates := map[string]any{}
	for k, v := range c.updates {
		updates[k] = v
	}
	channel := c.effectiveChannel()
	if channel != c.payment.Channel {
		updates["channel"] = channel
	}

	repo := s.repo.WithTx(tx)
	moved, err := repo.Transition(ctx, c.payment.ID, from, c.to, updates)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update payment status")
	}
	if !moved {
		return false, nil
	}

	now := s.now()
	if c.to == enums.PaymentStatusPaid {
		if _, err := s.ledger.Credit(ctx, tx, ledger.CreditInput{
			ProfileID:   c.payment.FarmerID,
			PaymentID:   c.payment.ID,
			OrderID:     c.payment.OrderID,
			AmountPaise: c.payment.AmountPaise,
			Channel:     channel,
		}); err != nil {
			return false, err
		}
		if _, err := repo.MarkCredited(ctx, c.payment.ID, now); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment credited")
		}
	}
	if err := repo.SetOrderPaymentStatus(ctx, c.payment.OrderID, c.to); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror payment status on order")
	}
	if c.event != "" {
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     c.event,
			AggregateType: enums.AggregatePayment,
			AggregateID:   c.payment.ID,
			Actor:         c.actor,
			Data:          statusEvent(c.payment, channel, c.to, c.reason, now),
			OccurredAt:    now,
		}); err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit payment event")
		}
	}
	return true, nil
}

func (s *service) applyInTx(ctx context.Context, c change) (bool, error) {
	moved := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		moved, err = s.apply(ctx, tx, c)
		return err
	})
	if err != nil {
		return false, err
	}
	if moved {
		s.metrics.IncTransition(string(c.effectiveChannel()), string(c.to))
		if c.to == enums.PaymentStatusPaid {
			s.metrics.AddCredited(string(c.effectiveChannel()), c.payment.AmountPaise)
		}
	}
	return moved, nil
}

func statusEvent(p *models.Payment, channel enums.PaymentChannel, to enums.PaymentStatus, reason string, at time.Time) payloads.PaymentStatusEvent {
	return payloads.PaymentStatusEvent{
		PaymentID:   p.ID,
		OrderID:     p.OrderID,
		BuyerID:     p.BuyerID,
		FarmerID:    p.FarmerID,
		Channel:     channel,
		From:        p.Status,
		Status:      to,
		AmountPaise: p.AmountPaise,
		Reason:      reason,
		OccurredAt:  at,
	}
}

func (s *service) CreatePaymentOrder(ctx context.Context, buyer auth.Buyer, input CheckoutInput) (*CheckoutSession, error) {
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentMethod must be online or cash")
	}
	order, err := s.buyerOrder(ctx, buyer, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != input.PaymentMethod {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("order is payable by %s only", order.PaymentMethod))
	}

	if input.PaymentMethod == enums.PaymentMethodCash {
		payment, err := s.ensurePayment(ctx, s.repo, order, enums.PaymentChannelCash)
		if err != nil {
			return nil, err
		}
		return newSession(payment, "", ""), nil
	}

	if s.gateway == nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, gateway.ErrNotConfigured, "open gateway order")
	}
	payment, err := s.openOnline(ctx, order, enums.PaymentChannelGateway)
	if err != nil {
		return nil, err
	}
	if payment.GatewayOrderID == nil {
		ref, err := s.gateway.CreateOrder(ctx, payment.AmountPaise, order.ID.String())
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open gateway order")
		}
		// a concurrent request may have attached its own order first; keep that one
		if _, err := s.repo.AttachGatewayOrder(ctx, payment.ID, ref.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store gateway order")
		}
		if payment, err = s.loadPayment(ctx, order.ID); err != nil {
			return nil, err
		}
	}
	return newSession(payment, s.cfg.KeyID, s.currency()), nil
}

func newSession(p *models.Payment, keyID, currency string) *CheckoutSession {
	session := &CheckoutSession{
		PaymentID: p.ID,
		OrderID:   p.OrderID,
		Method:    p.PaymentMethod,
		Channel:   p.Channel,
		Status:    p.Status,
		Amount:    types.NewMoney(types.Paise(p.AmountPaise)),
		KeyID:     keyID,
		Currency:  currency,
	}
	if p.GatewayOrderID != nil {
		session.GatewayOrderID = *p.GatewayOrderID
	}
	return session
}

func (s *service) currency() string {
	if s.cfg.Currency == "" {
		return "INR"
	}
	return s.cfg.Currency
}

func (s *service) CreateQR(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID) (*QRCode, error) {
	order, err := s.buyerOrder(ctx, buyer, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "QR payments are only available for online orders")
	}
	farmer, err := s.profiles.FindByID(ctx, order.FarmerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farmer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer profile")
	}
	if farmer.UpiID == nil || strings.TrimSpace(*farmer.UpiID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "farmer has not set up a UPI id")
	}
	payeeID := strings.TrimSpace(*farmer.UpiID)

	payment, err := s.openOnline(ctx, order, enums.PaymentChannelUPIQR)
	if err != nil {
		return nil, err
	}

	link := upiLink(payeeID, farmer.Name, payment.AmountPaise, orderNote(order.ID))
	png, err := renderQR(link)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "render QR code")
	}
	imageURL, err := s.storage.Upload(ctx, fmt.Sprintf("payments/qr/%s.png", order.ID), "image/png", bytes.NewReader(png))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store QR code")
	}
	stored, err := s.repo.UpdateWhile(ctx, payment.ID, openStatuses, map[string]any{"qr_image_url": imageURL})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store QR code")
	}
	if !stored {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment changed while the QR code was generated")
	}

	return &QRCode{
		ImageURL: imageURL,
		Amount:   types.NewMoney(types.Paise(payment.AmountPaise)),
		PayeeID:  payeeID,
		UPILink:  link,
	}, nil
}

// openOnline returns the order's payment ready for a new attempt on channel.
func (s *service) openOnline(ctx context.Context, order *models.Order, channel enums.PaymentChannel) (*models.Payment, error) {
	payment, err := s.ensurePayment(ctx, s.repo, order, channel)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(openStatuses, payment.Status) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("payment is already %s", payment.Status))
	}
	if payment.Channel == channel {
		return payment, nil
	}
	switched, err := s.repo.UpdateWhile(ctx, payment.ID, openStatuses, map[string]any{"channel": channel})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "switch payment channel")
	}
	if !switched {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment changed concurrently")
	}
	payment.Channel = channel
	return payment, nil
}

func (s *service) VerifyGatewayPayment(ctx context.Context, buyer auth.Buyer, input VerifyInput) (*models.Payment, error) {
	input.GatewayOrderID = strings.TrimSpace(input.GatewayOrderID)
	input.GatewayPaymentID = strings.TrimSpace(input.GatewayPaymentID)
	input.Signature = strings.TrimSpace(input.Signature)
	if input.GatewayOrderID == "" || input.GatewayPaymentID == "" || input.Signature == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "gatewayOrderId, paymentId and signature are required")
	}
	if s.cfg.KeySecret == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, gateway.ErrNotConfigured, "verify gateway payment")
	}

	payment, err := s.repo.FindByGatewayOrderID(ctx, input.GatewayOrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payment not found for gateway order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	if payment.BuyerID != buyer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "payment does not belong to buyer")
	}
	order, err := s.loadOrder(ctx, payment.OrderID)
	if err != nil {
		return nil, err
	}
	actor := &outbox.ActorRef{UserID: buyer.ID, Role: enums.ActorRoleBuyer}

	if !gateway.VerifyPaymentSignature(s.cfg.KeySecret, input.GatewayOrderID, input.GatewayPaymentID, input.Signature) {
		ctx = s.logg.WithField(ctx, "payment_id", payment.ID.String())
		s.logg.Warn(ctx, "gateway payment signature mismatch")
		moved, err := s.applyInTx(ctx, change{
			payment: payment,
			to:      enums.PaymentStatusFailed,
			channel: enums.PaymentChannelGateway,
			updates: map[string]any{
				"gateway_payment_id": input.GatewayPaymentID,
				"failure_reason":     signatureMismatchReason,
			},
			event:  enums.EventPaymentFailed,
			reason: signatureMismatchReason,
			actor:  actor,
		})
		if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			return nil, err
		}
		if moved {
			s.notifyFailed(ctx, order, signatureMismatchReason)
		}
		return nil, pkgerrors.New(pkgerrors.CodeSecurity, "invalid payment signature")
	}

	if payment.Status == enums.PaymentStatusPaid {
		return payment, nil
	}
	moved, err := s.applyInTx(ctx, change{
		payment: payment,
		to:      enums.PaymentStatusPaid,
		channel: enums.PaymentChannelGateway,
		updates: map[string]any{
			"gateway_payment_id": input.GatewayPaymentID,
			"gateway_signature":  input.Signature,
			"failure_reason":     nil,
		},
		event: enums.EventPaymentSettled,
		actor: actor,
	})
	if err != nil {
		return nil, err
	}
	current, err := s.loadPayment(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if moved {
		s.notifySettled(ctx, order)
		return current, nil
	}
	if current.Status == enums.PaymentStatusPaid {
		return current, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("payment is %s", current.Status))
}

// ApplyGatewayEvent applies a signature-verified webhook. The audit row is
// written in the same transaction as the transition so a replayed event id
// rolls back and reports OutcomeDuplicate.
func (s *service) ApplyGatewayEvent(ctx context.Context, eventID string, evt gateway.WebhookEvent, raw []byte) (string, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":         eventID,
		"event":            evt.Event,
		"gateway_order_id": evt.GatewayOrderID,
	})

	var payment *models.Payment
	if evt.GatewayOrderID != "" {
		found, err := s.repo.FindByGatewayOrderID(ctx, evt.GatewayOrderID)
		switch {
		case err == nil:
			payment = found
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
	}
	if payment == nil {
		s.logg.Warn(ctx, "gateway webhook does not match a payment")
		return s.recordOnly(ctx, eventID, evt, raw, OutcomeUnmatched)
	}

	var order *models.Order
	if evt.Settles() || evt.Fails() {
		loaded, err := s.loadOrder(ctx, payment.OrderID)
		if err != nil {
			return "", err
		}
		order = loaded
	}

	actor := &outbox.ActorRef{Role: enums.ActorRoleSystem}
	outcome := OutcomeIgnored
	var applied *change
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		outcome = OutcomeIgnored
		applied = nil
		var c *change
		switch {
		case evt.Settles():
			if evt.AmountPaise != 0 && evt.AmountPaise != payment.AmountPaise {
				outcome = OutcomeAmountMismatch
				break
			}
			updates := map[string]any{"failure_reason": nil}
			if evt.GatewayPaymentID != "" {
				updates["gateway_payment_id"] = evt.GatewayPaymentID
			}
			c = &change{
				payment: payment,
				to:      enums.PaymentStatusPaid,
				channel: enums.PaymentChannelGateway,
				updates: updates,
				event:   enums.EventPaymentSettled,
				actor:   actor,
			}
		case evt.Fails():
			reason := evt.ErrorDescription
			if reason == "" {
				reason = gatewayFailedReason
			}
			c = &change{
				payment: payment,
				to:      enums.PaymentStatusFailed,
				channel: enums.PaymentChannelGateway,
				updates: map[string]any{"failure_reason": reason},
				event:   enums.EventPaymentFailed,
				reason:  reason,
				actor:   actor,
			}
		}
		if c != nil {
			moved, err := s.apply(ctx, tx, *c)
			if err != nil {
				return err
			}
			outcome = OutcomeNoop
			if moved {
				applied = c
				outcome = OutcomeSettled
				if c.to == enums.PaymentStatusFailed {
					outcome = OutcomeFailed
				}
			}
		}
		return s.repo.WithTx(tx).InsertWebhookEvent(ctx, &models.PaymentWebhookEvent{
			ID:         uuid.New(),
			EventID:    eventID,
			EventType:  evt.Event,
			PaymentID:  &payment.ID,
			Payload:    json.RawMessage(raw),
			Outcome:    outcome,
			ReceivedAt: s.now(),
		})
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return OutcomeDuplicate, nil
		}
		return "", err
	}

	if outcome == OutcomeAmountMismatch {
		s.logg.Warn(ctx, "gateway webhook amount does not match payment")
	}
	if applied != nil {
		channel := string(applied.effectiveChannel())
		s.metrics.IncTransition(channel, string(applied.to))
		if applied.to == enums.PaymentStatusPaid {
			s.metrics.AddCredited(channel, payment.AmountPaise)
			s.notifySettled(ctx, order)
		} else {
			s.notifyFailed(ctx, order, applied.reason)
		}
	}
	return outcome, nil
}

func (s *service) recordOnly(ctx context.Context, eventID string, evt gateway.WebhookEvent, raw []byte, outcome string) (string, error) {
	err := s.repo.InsertWebhookEvent(ctx, &models.PaymentWebhookEvent{
		ID:         uuid.New(),
		EventID:    eventID,
		EventType:  evt.Event,
		Payload:    json.RawMessage(raw),
		Outcome:    outcome,
		ReceivedAt: s.now(),
	})
	if err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return OutcomeDuplicate, nil
		}
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}
	return outcome, nil
}

func (s *service) ConfirmCash(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID) (*models.Payment, error) {
	order, err := s.farmerOrder(ctx, farmer, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodCash {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not a cash order")
	}
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order must be delivered before cash is confirmed")
	}
	payment, err := s.ensurePayment(ctx, s.repo, order, enums.PaymentChannelCash)
	if err != nil {
		return nil, err
	}

	moved, err := s.applyInTx(ctx, change{
		payment: payment,
		to:      enums.PaymentStatusPaid,
		from:    []enums.PaymentStatus{enums.PaymentStatusPending},
		channel: enums.PaymentChannelCash,
		updates: map[string]any{
			"verification": types.PaymentVerification{VerifiedBy: farmer.ID, VerifiedAt: s.now()},
		},
		event: enums.EventPaymentSettled,
		actor: &outbox.ActorRef{UserID: farmer.ID, Role: enums.ActorRoleFarmer},
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "cash payment already confirmed")
	}
	s.notifySettled(ctx, order)
	return s.loadPayment(ctx, order.ID)
}

func (s *service) MarkAsPaid(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID, proof ProofInput) (*models.Payment, error) {
	txnID := strings.TrimSpace(proof.TransactionID)
	if txnID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transactionId is required")
	}
	if proof.Screenshot == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "screenshot is required")
	}
	contentType := strings.ToLower(strings.TrimSpace(proof.ContentType))
	ext, ok := proofContentTypes[contentType]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "screenshot must be a png, jpeg or webp image")
	}

	order, err := s.buyerOrder(ctx, buyer, orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentMethod != enums.PaymentMethodOnline {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cash orders are settled on delivery")
	}
	payment, err := s.openOnline(ctx, order, enums.PaymentChannelUPIQR)
	if err != nil {
		return nil, err
	}

	object := fmt.Sprintf("payments/proofs/%s/%s%s", order.ID, uuid.NewString(), ext)
	screenshotURL, err := s.storage.Upload(ctx, object, contentType, proof.Screenshot)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upload payment proof")
	}

	moved, err := s.applyInTx(ctx, change{
		payment: payment,
		to:      enums.PaymentStatusAwaitingConfirmation,
		channel: enums.PaymentChannelUPIQR,
		updates: map[string]any{
			"proof": types.PaymentProof{
				ScreenshotURL: screenshotURL,
				TransactionID: txnID,
				Notes:         strings.TrimSpace(proof.Notes),
				SubmittedAt:   s.now(),
			},
			"failure_reason": nil,
		},
		event: enums.EventPaymentAwaitingConfirmation,
		actor: &outbox.ActorRef{UserID: buyer.ID, Role: enums.ActorRoleBuyer},
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment is no longer awaiting proof")
	}
	s.notifier.Notify(ctx, notifications.FarmerOf(*order), enums.NotifyPaymentProofSubmitted, notifications.Payload{
		OrderID:     order.ID,
		AmountPaise: order.TotalPaise,
		Counterpart: order.BuyerSnapshot.Name,
	})
	return s.loadPayment(ctx, order.ID)
}

func (s *service) ConfirmUPI(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID) (*models.Payment, error) {
	order, payment, err := s.awaitingUPI(ctx, farmer, orderID)
	if err != nil {
		return nil, err
	}
	moved, err := s.applyInTx(ctx, change{
		payment: payment,
		to:      enums.PaymentStatusPaid,
		from:    []enums.PaymentStatus{enums.PaymentStatusAwaitingConfirmation},
		channel: enums.PaymentChannelUPIQR,
		updates: map[string]any{
			"verification": types.PaymentVerification{VerifiedBy: farmer.ID, VerifiedAt: s.now()},
		},
		event: enums.EventPaymentSettled,
		actor: &outbox.ActorRef{UserID: farmer.ID, Role: enums.ActorRoleFarmer},
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not awaiting confirmation")
	}
	s.notifySettled(ctx, order)
	return s.loadPayment(ctx, order.ID)
}

func (s *service) RejectUPI(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID, reason string) (*models.Payment, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection reason is required")
	}
	order, payment, err := s.awaitingUPI(ctx, farmer, orderID)
	if err != nil {
		return nil, err
	}
	moved, err := s.applyInTx(ctx, change{
		payment: payment,
		to:      enums.PaymentStatusRejected,
		updates: map[string]any{
			"verification": types.PaymentVerification{
				VerifiedBy:      farmer.ID,
				VerifiedAt:      s.now(),
				RejectionReason: reason,
			},
		},
		event:  enums.EventPaymentRejected,
		reason: reason,
		actor:  &outbox.ActorRef{UserID: farmer.ID, Role: enums.ActorRoleFarmer},
	})
	if err != nil {
		return nil, err
	}
	if !moved {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment is not awaiting confirmation")
	}
	s.notifier.Notify(ctx, notifications.BuyerOf(*order), enums.NotifyPaymentRejected, notifications.Payload{
		OrderID:     order.ID,
		Reason:      reason,
		AmountPaise: order.TotalPaise,
		Counterpart: order.FarmerSnapshot.Name,
	})
	return s.loadPayment(ctx, order.ID)
}

func (s *service) awaitingUPI(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID) (*models.Order, *models.Payment, error) {
	order, err := s.farmerOrder(ctx, farmer, orderID)
	if err != nil {
		return nil, nil, err
	}
	payment, err := s.loadPayment(ctx, order.ID)
	if err != nil {
		return nil, nil, err
	}
	if payment.Status != enums.PaymentStatusAwaitingConfirmation {
		return nil, nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("payment is %s, not awaiting confirmation", payment.Status))
	}
	return order, payment, nil
}

func (s *service) GetStatus(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Payment, error) {
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	switch a := actor.(type) {
	case auth.Buyer:
		if a.ID != order.BuyerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
	case auth.Farmer:
		if a.ID != order.FarmerID {
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "unsupported actor")
	}
	return s.loadPayment(ctx, order.ID)
}

// OpenCashPayment creates the pending cash payment inside the order transaction.
func (s *service) OpenCashPayment(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	_, err := s.ensurePayment(ctx, s.repo.WithTx(tx), order, enums.PaymentChannelCash)
	return err
}

// OnOrderCancelled closes an unsettled payment. A paid payment stays paid and
// a refund request is raised instead.
func (s *service) OnOrderCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	repo := s.repo.WithTx(tx)
	payment, err := repo.FindByOrderID(ctx, order.ID)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
		}
		if order.PaymentStatus.IsSettled() {
			return nil
		}
		if err := repo.SetOrderPaymentStatus(ctx, order.ID, enums.PaymentStatusCancelled); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mirror payment status on order")
		}
		return nil
	}

	if payment.Status == enums.PaymentStatusPaid {
		now := s.now()
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentRefundRequested,
			AggregateType: enums.AggregatePayment,
			AggregateID:   payment.ID,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem},
			Data:          statusEvent(payment, payment.Channel, payment.Status, "order cancelled after payment", now),
			OccurredAt:    now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit refund request")
		}
		return nil
	}
	if !enums.CanTransitionPayment(payment.Status, enums.PaymentStatusCancelled) {
		return nil
	}
	if _, err := s.apply(ctx, tx, change{
		payment: payment,
		to:      enums.PaymentStatusCancelled,
	}); err != nil {
		return err
	}
	return nil
}

// Reconcile copies payment status onto drifted orders and credits paid
// payments that are missing their wallet credit. Failures on one row do not
// stop the pass.
func (s *service) Reconcile(ctx context.Context, limit int) (ReconcileResult, error) {
	var result ReconcileResult
	var errs error

	drifted, err := s.repo.ListDrifted(ctx, limit)
	if err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list drifted payments")
	}
	for _, payment := range drifted {
		if err := s.repo.SetOrderPaymentStatus(ctx, payment.OrderID, payment.Status); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("order %s: %w", payment.OrderID, err))
			continue
		}
		result.StatusRepaired++
	}

	uncredited, err := s.repo.ListUncredited(ctx, limit)
	if err != nil {
		return result, multierr.Append(errs, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list uncredited payments"))
	}
	for i := range uncredited {
		payment := uncredited[i]
		credited, err := s.creditMissing(ctx, &payment)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("payment %s: %w", payment.ID, err))
			continue
		}
		if credited {
			result.Credited++
			s.metrics.AddCredited(string(payment.Channel), payment.AmountPaise)
		}
	}
	return result, errs
}

func (s *service) creditMissing(ctx context.Context, payment *models.Payment) (bool, error) {
	credited := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		credited = false
		exists, err := s.ledger.IsCredited(ctx, tx, payment.ID)
		if err != nil {
			return err
		}
		if !exists {
			if _, err := s.ledger.Credit(ctx, tx, ledger.CreditInput{
				ProfileID:   payment.FarmerID,
				PaymentID:   payment.ID,
				OrderID:     payment.OrderID,
				AmountPaise: payment.AmountPaise,
				Channel:     payment.Channel,
			}); err != nil {
				return err
			}
			credited = true
		}
		_, err = s.repo.WithTx(tx).MarkCredited(ctx, payment.ID, s.now())
		return err
	})
	return credited, err
}

func (s *service) ensurePayment(ctx context.Context, repo Repository, order *models.Order, channel enums.PaymentChannel) (*models.Payment, error) {
	now := s.now()
	payment, err := repo.UpsertForOrder(ctx, &models.Payment{
		ID:            uuid.New(),
		OrderID:       order.ID,
		BuyerID:       order.BuyerID,
		FarmerID:      order.FarmerID,
		AmountPaise:   order.TotalPaise,
		PaymentMethod: order.PaymentMethod,
		Channel:       channel,
		Status:        enums.PaymentStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "open payment")
	}
	return payment, nil
}

func (s *service) buyerOrder(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if order.Status == enums.OrderStatusCancelled {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order is cancelled")
	}
	return order, nil
}

func (s *service) farmerOrder(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.loadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.FarmerID != farmer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to farmer")
	}
	return order, nil
}

func (s *service) loadOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindOrder(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) loadPayment(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	payment, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no payment recorded for order")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment")
	}
	return payment, nil
}

func (s *service) notifySettled(ctx context.Context, order *models.Order) {
	if order == nil {
		return
	}
	s.notifier.Notify(ctx, notifications.FarmerOf(*order), enums.NotifyPaymentReceived, notifications.Payload{
		OrderID:     order.ID,
		AmountPaise: order.TotalPaise,
		Counterpart: order.BuyerSnapshot.Name,
	})
}

func (s *service) notifyFailed(ctx context.Context, order *models.Order, reason string) {
	if order == nil {
		return
	}
	s.notifier.Notify(ctx, notifications.BuyerOf(*order), enums.NotifyPaymentFailed, notifications.Payload{
		OrderID:     order.ID,
		Reason:      reason,
		AmountPaise: order.TotalPaise,
	})
}
