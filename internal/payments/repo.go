package payments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// Repository persists payments and the payment fields mirrored onto orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	UpsertForOrder(ctx context.Context, payment *models.Payment) (*models.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, updates map[string]any) (bool, error)
	UpdateWhile(ctx context.Context, id uuid.UUID, statuses []enums.PaymentStatus, updates map[string]any) (bool, error)
	AttachGatewayOrder(ctx context.Context, id uuid.UUID, gatewayOrderID string) (bool, error)
	MarkCredited(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	SetOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error
	InsertWebhookEvent(ctx context.Context, event *models.PaymentWebhookEvent) error
	ListDrifted(ctx context.Context, limit int) ([]models.Payment, error)
	ListUncredited(ctx context.Context, limit int) ([]models.Payment, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payments repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// UpsertForOrder inserts the payment unless the order already has one, then
// returns whichever row is stored.
func (r *repository) UpsertForOrder(ctx context.Context, payment *models.Payment) (*models.Payment, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoNothing: true,
		}).
		Create(payment).Error
	if err != nil {
		return nil, err
	}
	return r.FindByOrderID(ctx, payment.OrderID)
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.WithContext(ctx).Where("gateway_order_id = ?", gatewayOrderID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

var (
	// ErrIllegalTransition is returned when no status may precede the target.
	ErrIllegalTransition = errors.New("payment status transition not allowed")
	// ErrStatusNotUpdatable rejects status writes that bypass Transition.
	ErrStatusNotUpdatable = errors.New("payment status can only change through Transition")
)

// legalPriors keeps the requested prior statuses that the payment graph allows
// for to. A nil request means every allowed prior.
func legalPriors(to enums.PaymentStatus, requested []enums.PaymentStatus) []enums.PaymentStatus {
	allowed := enums.AllowedPriorStatuses(to)
	if requested == nil {
		return allowed
	}
	out := make([]enums.PaymentStatus, 0, len(requested))
	for _, status := range requested {
		if slices.Contains(allowed, status) {
			out = append(out, status)
		}
	}
	return out
}

// Transition moves the payment to `to` only while its status is one of from.
// from is narrowed to the edges of the payment graph, so a backward move can
// never match a row.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.PaymentStatus, to enums.PaymentStatus, updates map[string]any) (bool, error) {
	priors := legalPriors(to, from)
	if len(priors) == 0 {
		return false, fmt.Errorf("%w: to %s", ErrIllegalTransition, to)
	}
	values := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		values[k] = v
	}
	values["status"] = to
	return r.update(ctx, id, priors, values)
}

// UpdateWhile applies non-status updates only while the payment status is one
// of statuses.
func (r *repository) UpdateWhile(ctx context.Context, id uuid.UUID, statuses []enums.PaymentStatus, updates map[string]any) (bool, error) {
	if _, ok := updates["status"]; ok {
		return false, ErrStatusNotUpdatable
	}
	return r.update(ctx, id, statuses, updates)
}

func (r *repository) update(ctx context.Context, id uuid.UUID, statuses []enums.PaymentStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"updated_at": time.Now().UTC()}
	for k, v := range updates {
		values[k] = v
	}
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(values)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AttachGatewayOrder stores the gateway order id unless another request won.
func (r *repository) AttachGatewayOrder(ctx context.Context, id uuid.UUID, gatewayOrderID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND gateway_order_id IS NULL", id).
		Updates(map[string]any{
			"gateway_order_id": gatewayOrderID,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkCredited(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Where("id = ? AND credited_at IS NULL", id).
		Updates(map[string]any{
			"credited_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) SetOrderPaymentStatus(ctx context.Context, orderID uuid.UUID, status enums.PaymentStatus) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"payment_status": status,
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *repository) InsertWebhookEvent(ctx context.Context, event *models.PaymentWebhookEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListDrifted returns payments whose order carries a different payment status.
// Delivered cash orders read paid before the farmer confirms and are skipped.
func (r *repository) ListDrifted(ctx context.Context, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	query := r.db.WithContext(ctx).
		Model(&models.Payment{}).
		Select("payments.*").
		Joins("JOIN orders ON orders.id = payments.order_id").
		Where("orders.payment_status <> payments.status").
		Where("NOT (orders.payment_method = ? AND orders.payment_status = ? AND payments.status = ?)",
			enums.PaymentMethodCash, enums.PaymentStatusPaid, enums.PaymentStatusPending).
		Order("payments.updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListUncredited(ctx context.Context, limit int) ([]models.Payment, error) {
	var rows []models.Payment
	query := r.db.WithContext(ctx).
		Where("status = ? AND credited_at IS NULL", enums.PaymentStatusPaid).
		Order("updated_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
