package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
)

// Repository manages persistence for wallet ledger entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.WalletLedgerEntry) error
	HasEntry(ctx context.Context, paymentID uuid.UUID, entryType enums.WalletEntryType) (bool, error)
	ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.WalletLedgerEntry, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.WalletLedgerEntry) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) HasEntry(ctx context.Context, paymentID uuid.UUID, entryType enums.WalletEntryType) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.WalletLedgerEntry{}).
		Where("payment_id = ? AND entry_type = ?", paymentID, entryType).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) ListByProfile(ctx context.Context, profileID uuid.UUID) ([]models.WalletLedgerEntry, error) {
	var entries []models.WalletLedgerEntry
	if err := r.db.WithContext(ctx).
		Where("profile_id = ?", profileID).
		Order("created_at ASC").
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
