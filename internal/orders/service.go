package orders

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/internal/inventory"
	"github.com/angelmondragon/harvestlink-backend/internal/notifications"
	"github.com/angelmondragon/harvestlink-backend/internal/otp"
	"github.com/angelmondragon/harvestlink-backend/internal/profiles"
	"github.com/angelmondragon/harvestlink-backend/pkg/auth"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
	"github.com/angelmondragon/harvestlink-backend/pkg/logger"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox"
	"github.com/angelmondragon/harvestlink-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/harvestlink-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type stockLedger interface {
	LoadProducts(ctx context.Context, db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
	Decrement(ctx context.Context, tx *gorm.DB, product models.Product, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, lines []inventory.Line) error
}

type codeVerifier interface {
	Issue() (otp.Issued, error)
	Check(ctx context.Context, orderID uuid.UUID, code, hash string) error
}

// PaymentHooks lets the payment side react inside the order transaction.
type PaymentHooks interface {
	OpenCashPayment(ctx context.Context, tx *gorm.DB, order *models.Order) error
	OnOrderCancelled(ctx context.Context, tx *gorm.DB, order *models.Order) error
}

// Service owns the order state machine.
type Service interface {
	CreateOrders(ctx context.Context, buyer auth.Buyer, input CreateOrdersInput) ([]models.Order, error)
	VerifyOTP(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID, code string) (*models.Order, error)
	UpdateStatus(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error)
	Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error)
	Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error)
	ListMine(ctx context.Context, actor auth.Actor, params ListParams) ([]models.Order, string, error)
	ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error)
}

// Deps groups the collaborators of the order service.
type Deps struct {
	Repo      Repository
	Tx        txRunner
	Outbox    outboxPublisher
	Inventory stockLedger
	OTP       codeVerifier
	Profiles  profiles.Repository
	Payments  PaymentHooks
	Notifier  notifications.Notifier
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	inventory stockLedger
	otp       codeVerifier
	profiles  profiles.Repository
	payments  PaymentHooks
	notifier  notifications.Notifier
	logg      *logger.Logger
	now       func() time.Time
}

// forward-only fulfilment edges a farmer may drive
var fulfilmentTransitions = map[enums.OrderStatus]enums.OrderStatus{
	enums.OrderStatusShipped:   enums.OrderStatusProcessing,
	enums.OrderStatusDelivered: enums.OrderStatusShipped,
}

var cancellableStatuses = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipped,
}

const expiredReason = "order code was not confirmed in time"

// NewService builds the order service with the required dependencies.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case deps.Inventory == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case deps.OTP == nil:
		return nil, fmt.Errorf("otp verifier required")
	case deps.Profiles == nil:
		return nil, fmt.Errorf("profiles repository required")
	case deps.Payments == nil:
		return nil, fmt.Errorf("payment hooks required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	return &service{
		repo:      deps.Repo,
		tx:        deps.Tx,
		outbox:    deps.Outbox,
		inventory: deps.Inventory,
		otp:       deps.OTP,
		profiles:  deps.Profiles,
		payments:  deps.Payments,
		notifier:  notifier,
		logg:      deps.Logger,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

type farmerGroup struct {
	farmer models.Profile
	lines  []inventory.Line
}

// issuedOrder pairs a committed order with the plaintext code mailed after commit.
type issuedOrder struct {
	order models.Order
	code  string
}

// CreateOrders splits a checkout into one order per farmer. Stock is taken
// here rather than at code confirmation; stale pending orders hand it back
// through ExpirePending.
func (s *service) CreateOrders(ctx context.Context, buyer auth.Buyer, input CreateOrdersInput) ([]models.Order, error) {
	if buyer.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "buyer identity missing")
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "paymentMethod must be online or cash")
	}
	lines, err := normalizeItems(input.Items)
	if err != nil {
		return nil, err
	}

	checkoutID := uuid.New()
	var issued []issuedOrder
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		issued = nil

		productIDs := make([]uuid.UUID, 0, len(lines))
		for _, line := range lines {
			productIDs = append(productIDs, line.ProductID)
		}
		products, err := s.inventory.LoadProducts(ctx, tx, productIDs)
		if err != nil {
			return err
		}

		groups, err := s.groupByFarmer(ctx, tx, buyer, lines, products)
		if err != nil {
			return err
		}
		if len(groups) == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "none of the requested products can be ordered")
		}

		for _, group := range groups {
			for _, line := range group.lines {
				product := products[line.ProductID]
				if line.Quantity > product.CurrentQuantity {
					return inventory.InsufficientStock(product)
				}
			}
		}

		profileRows, err := s.profiles.WithTx(tx).FindByIDs(ctx, []uuid.UUID{buyer.ID})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load buyer profile")
		}
		buyerProfile, ok := profileRows[buyer.ID]
		if !ok {
			return pkgerrors.New(pkgerrors.CodeNotFound, "buyer profile not found")
		}

		for _, group := range groups {
			created, err := s.createForFarmer(ctx, tx, checkoutID, buyerProfile, group, products, input.PaymentMethod)
			if err != nil {
				return err
			}
			issued = append(issued, created)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]models.Order, 0, len(issued))
	for _, item := range issued {
		order := item.order
		s.notifier.Notify(ctx, notifications.BuyerOf(order), enums.NotifyOrderOTP, notifications.Payload{
			OrderID:     order.ID,
			OTP:         item.code,
			AmountPaise: order.TotalPaise,
			Counterpart: order.FarmerSnapshot.Name,
		})
		s.notifier.Notify(ctx, notifications.FarmerOf(order), enums.NotifyOrderReceived, notifications.Payload{
			OrderID:     order.ID,
			AmountPaise: order.TotalPaise,
			Counterpart: order.BuyerSnapshot.Name,
		})
		out = append(out, order)
	}
	return out, nil
}

func (s *service) groupByFarmer(ctx context.Context, tx *gorm.DB, buyer auth.Buyer, lines []inventory.Line, products map[uuid.UUID]models.Product) ([]farmerGroup, error) {
	byFarmer := map[uuid.UUID][]inventory.Line{}
	farmerIDs := []uuid.UUID{}
	for _, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			s.logg.Warn(s.logg.WithField(ctx, "product_id", line.ProductID.String()), "checkout line dropped: product unavailable")
			continue
		}
		if product.FarmerID == buyer.ID {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot order your own produce")
		}
		if _, seen := byFarmer[product.FarmerID]; !seen {
			farmerIDs = append(farmerIDs, product.FarmerID)
		}
		byFarmer[product.FarmerID] = append(byFarmer[product.FarmerID], line)
	}
	if len(farmerIDs) == 0 {
		return nil, nil
	}

	farmers, err := s.profiles.WithTx(tx).FindByIDs(ctx, farmerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load farmer profiles")
	}

	slices.SortFunc(farmerIDs, func(a, b uuid.UUID) int {
		return strings.Compare(a.String(), b.String())
	})
	groups := make([]farmerGroup, 0, len(farmerIDs))
	for _, farmerID := range farmerIDs {
		farmer, ok := farmers[farmerID]
		if !ok || farmer.Role != enums.ActorRoleFarmer {
			s.logg.Warn(s.logg.WithField(ctx, "farmer_id", farmerID.String()), "checkout group dropped: farmer unavailable")
			continue
		}
		groups = append(groups, farmerGroup{farmer: farmer, lines: byFarmer[farmerID]})
	}
	return groups, nil
}

func (s *service) createForFarmer(ctx context.Context, tx *gorm.DB, checkoutID uuid.UUID, buyer models.Profile, group farmerGroup, products map[uuid.UUID]models.Product, method enums.PaymentMethod) (issuedOrder, error) {
	code, err := s.otp.Issue()
	if err != nil {
		return issuedOrder{}, err
	}

	now := s.now()
	orderID := uuid.New()
	items := make([]models.OrderItem, 0, len(group.lines))
	var total int64
	for _, line := range group.lines {
		product := products[line.ProductID]
		item := models.OrderItem{
			ID:             uuid.New(),
			OrderID:        orderID,
			ProductID:      product.ID,
			Name:           product.Name,
			Unit:           product.Unit,
			UnitPricePaise: product.PricePaise,
			Quantity:       line.Quantity,
			CreatedAt:      now,
		}
		total += item.LineTotalPaise()
		items = append(items, item)
	}

	order := models.Order{
		ID:             orderID,
		CheckoutID:     checkoutID,
		BuyerID:        buyer.ID,
		FarmerID:       group.farmer.ID,
		BuyerSnapshot:  profiles.Snapshot(buyer),
		FarmerSnapshot: profiles.Snapshot(group.farmer),
		TotalPaise:     total,
		OTPHash:        code.Hash,
		Status:         enums.OrderStatusPending,
		PaymentMethod:  method,
		PaymentStatus:  enums.PaymentStatusPending,
		StockReserved:  true,
		Items:          items,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, &order); err != nil {
		return issuedOrder{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	for _, line := range group.lines {
		if err := s.inventory.Decrement(ctx, tx, products[line.ProductID], line.Quantity); err != nil {
			return issuedOrder{}, err
		}
	}
	if method == enums.PaymentMethodCash {
		if err := s.payments.OpenCashPayment(ctx, tx, &order); err != nil {
			return issuedOrder{}, err
		}
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{UserID: buyer.ID, Role: enums.ActorRoleBuyer},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			CheckoutID:    checkoutID,
			BuyerID:       order.BuyerID,
			FarmerID:      order.FarmerID,
			TotalPaise:    order.TotalPaise,
			PaymentMethod: method,
			ItemCount:     len(items),
		},
		OccurredAt: now,
	}); err != nil {
		return issuedOrder{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order created event")
	}
	return issuedOrder{order: order, code: code.Plain}, nil
}

func (s *service) VerifyOTP(ctx context.Context, buyer auth.Buyer, orderID uuid.UUID, code string) (*models.Order, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != buyer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to buyer")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order already verified")
	}
	if err := s.otp.Check(ctx, order.ID, code, order.OTPHash); err != nil {
		return nil, err
	}

	now := s.now()
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).Transition(ctx, order.ID,
			[]enums.OrderStatus{enums.OrderStatusPending},
			enums.OrderStatusProcessing,
			map[string]any{"otp_verified_at": now},
		)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm order")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeConflict, "order already verified")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderVerified,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: buyer.ID, Role: enums.ActorRoleBuyer},
			Data: payloads.OrderVerifiedEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				FarmerID:   order.FarmerID,
				VerifiedAt: now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order verified event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	payload := notifications.Payload{OrderID: order.ID, AmountPaise: order.TotalPaise}
	s.notifier.Notify(ctx, notifications.BuyerOf(*order), enums.NotifyOrderConfirmed, payload)
	s.notifier.Notify(ctx, notifications.FarmerOf(*order), enums.NotifyOrderConfirmed, payload)
	return s.load(ctx, order.ID)
}

func (s *service) UpdateStatus(ctx context.Context, farmer auth.Farmer, orderID uuid.UUID, status enums.OrderStatus) (*models.Order, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.FarmerID != farmer.ID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to farmer")
	}
	from, allowed := fulfilmentTransitions[status]
	if !allowed || order.Status != from {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("cannot move order from %s to %s", order.Status, status))
	}

	now := s.now()
	updates := map[string]any{}
	paymentStatus := order.PaymentStatus
	switch status {
	case enums.OrderStatusShipped:
		updates["shipped_at"] = now
	case enums.OrderStatusDelivered:
		updates["delivered_at"] = now
		// cash counts as settled on delivery; the payment row itself moves on cash-confirm
		if order.PaymentMethod == enums.PaymentMethodCash && !order.PaymentStatus.IsSettled() {
			paymentStatus = enums.PaymentStatusPaid
			updates["payment_status"] = paymentStatus
		}
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		moved, err := s.repo.WithTx(tx).Transition(ctx, order.ID, []enums.OrderStatus{from}, status, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently")
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: farmer.ID, Role: enums.ActorRoleFarmer},
			Data: payloads.OrderStatusChangedEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				FarmerID:      order.FarmerID,
				From:          from,
				To:            status,
				PaymentStatus: paymentStatus,
				ChangedAt:     now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order status event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notifications.BuyerOf(*order), enums.NotifyOrderStatusChanged, notifications.Payload{
		OrderID:     order.ID,
		Status:      string(status),
		Counterpart: order.FarmerSnapshot.Name,
	})
	return s.load(ctx, order.ID)
}

func (s *service) Cancel(ctx context.Context, actor auth.Actor, orderID uuid.UUID, reason string) (*models.Order, error) {
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cancellation reason is required")
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	counterpart, err := counterpartOf(*order, actor)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order is already %s", order.Status))
	}

	now := s.now()
	actorID := actor.ActorID()
	var restored bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		released, err := s.cancelInTx(ctx, tx, order, cancellableStatuses, map[string]any{
			"cancel_reason": reason,
			"cancelled_by":  actorID,
			"cancelled_at":  now,
		})
		if err != nil {
			return err
		}
		restored = released
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCanceled,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: actorID, Role: actor.Role()},
			Data: payloads.OrderCanceledEvent{
				OrderID:       order.ID,
				BuyerID:       order.BuyerID,
				FarmerID:      order.FarmerID,
				CancelledBy:   actorID,
				CancelledRole: actor.Role(),
				CounterpartID: counterpart.ProfileID,
				Reason:        reason,
				TotalPaise:    order.TotalPaise,
				StockRestored: restored,
				CanceledAt:    now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order cancelled event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	by := order.BuyerSnapshot.Name
	if actor.Role() == enums.ActorRoleFarmer {
		by = order.FarmerSnapshot.Name
	}
	s.notifier.Notify(ctx, counterpart, enums.NotifyOrderCancelled, notifications.Payload{
		OrderID:     order.ID,
		Reason:      reason,
		Counterpart: by,
	})
	return s.load(ctx, order.ID)
}

// cancelInTx moves the order to cancelled, hands its stock back at most once
// and lets the payment side settle its own row.
func (s *service) cancelInTx(ctx context.Context, tx *gorm.DB, order *models.Order, from []enums.OrderStatus, updates map[string]any) (bool, error) {
	repo := s.repo.WithTx(tx)
	moved, err := repo.Transition(ctx, order.ID, from, enums.OrderStatusCancelled, updates)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
	}
	if !moved {
		return false, pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled")
	}

	restored := false
	if order.StockReserved {
		released, err := repo.ReleaseStock(ctx, order.ID)
		if err != nil {
			return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release stock reservation")
		}
		if released {
			if err := s.inventory.Restore(ctx, tx, inventory.LinesFromItems(order.Items)); err != nil {
				return false, err
			}
			restored = true
		}
	}
	if err := s.payments.OnOrderCancelled(ctx, tx, order); err != nil {
		return false, err
	}
	return restored, nil
}

// ExpirePending cancels an order that is still waiting for its code and
// returns its stock. It reports false when the order has moved on meanwhile.
func (s *service) ExpirePending(ctx context.Context, orderID uuid.UUID) (bool, error) {
	order, err := s.load(ctx, orderID)
	if err != nil {
		return false, err
	}
	if order.Status != enums.OrderStatusPending {
		return false, nil
	}

	now := s.now()
	expired := false
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := s.cancelInTx(ctx, tx, order, []enums.OrderStatus{enums.OrderStatusPending}, map[string]any{
			"cancel_reason": expiredReason,
			"cancelled_at":  now,
		})
		if err != nil {
			return err
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderExpired,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{Role: enums.ActorRoleSystem},
			Data: payloads.OrderExpiredEvent{
				OrderID:    order.ID,
				BuyerID:    order.BuyerID,
				FarmerID:   order.FarmerID,
				TotalPaise: order.TotalPaise,
				ExpiredAt:  now,
			},
			OccurredAt: now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "emit order expired event")
		}
		expired = true
		return nil
	})
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) {
			return false, nil
		}
		return false, err
	}

	payload := notifications.Payload{OrderID: order.ID, Reason: expiredReason, Counterpart: "HarvestLink"}
	s.notifier.Notify(ctx, notifications.BuyerOf(*order), enums.NotifyOrderCancelled, payload)
	s.notifier.Notify(ctx, notifications.FarmerOf(*order), enums.NotifyOrderCancelled, payload)
	return expired, nil
}

func (s *service) Get(ctx context.Context, actor auth.Actor, orderID uuid.UUID) (*models.Order, error) {
	if actor == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	order, err := s.load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if _, err := counterpartOf(*order, actor); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *service) ListMine(ctx context.Context, actor auth.Actor, params ListParams) ([]models.Order, string, error) {
	if actor == nil {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "actor identity missing")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, "", pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", *params.Status))
	}
	if _, err := pagination.ParseCursor(params.Cursor); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	id := actor.ActorID()
	filters := ListFilters{Status: params.Status}
	switch actor.(type) {
	case auth.Buyer:
		filters.BuyerID = &id
	case auth.Farmer:
		filters.FarmerID = &id
	default:
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "unsupported actor")
	}

	rows, next, err := s.repo.List(ctx, filters, pagination.Params{Limit: params.Limit, Cursor: params.Cursor})
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, next, nil
}

func (s *service) load(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// normalizeItems validates checkout lines and merges repeated products.
func normalizeItems(items []ItemInput) ([]inventory.Line, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "items must not be empty")
	}
	lines := make([]inventory.Line, 0, len(items))
	index := map[uuid.UUID]int{}
	for i, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].productId is required", i))
		}
		if item.Quantity < 1 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("items[%d].quantity must be at least 1", i))
		}
		if pos, ok := index[item.ProductID]; ok {
			lines[pos].Quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, inventory.Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines, nil
}

// counterpartOf returns the other participant, or Forbidden when actor is not on the order.
func counterpartOf(order models.Order, actor auth.Actor) (notifications.Target, error) {
	switch a := actor.(type) {
	case auth.Buyer:
		if a.ID == order.BuyerID {
			return notifications.FarmerOf(order), nil
		}
	case auth.Farmer:
		if a.ID == order.FarmerID {
			return notifications.BuyerOf(order), nil
		}
	}
	return notifications.Target{}, pkgerrors.New(pkgerrors.CodeForbidden, "order does not belong to caller")
}
