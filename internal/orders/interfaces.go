package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	"github.com/angelmondragon/harvestlink-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	List(ctx context.Context, filters ListFilters, params pagination.Params) ([]models.Order, string, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	// Transition moves the order to `to` only while its status is one of
	// `from`. It reports whether a row changed.
	Transition(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, updates map[string]any) (bool, error)
	// ReleaseStock clears stock_reserved and reports whether this call cleared it.
	ReleaseStock(ctx context.Context, id uuid.UUID) (bool, error)
}

// ListFilters narrows the participant order list.
type ListFilters struct {
	BuyerID  *uuid.UUID
	FarmerID *uuid.UUID
	Status   *enums.OrderStatus
}
