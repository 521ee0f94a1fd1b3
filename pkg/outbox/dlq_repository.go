package outbox

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
)

const defaultDLQListed = 50

type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errTxRequired
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return tx.Create(&entry).Error
}

// ListPending returns entries not yet replayed, newest failure first.
func (r *DLQRepository) ListPending(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQListed
	}
	var rows []models.OutboxDLQ
	err := r.db.WithContext(ctx).
		Where("replayed_at IS NULL").
		Order("failed_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ReplayTx hands a dead-lettered event back to the publisher. The outbox row
// regains its attempt budget and the DLQ entry is stamped so it is replayed
// at most once.
func (r *DLQRepository) ReplayTx(ctx context.Context, tx *gorm.DB, events *Repository, eventID uuid.UUID, at time.Time) error {
	if tx == nil {
		return errTxRequired
	}
	res := tx.WithContext(ctx).Model(&models.OutboxDLQ{}).
		Where("event_id = ? AND replayed_at IS NULL", eventID).
		Update("replayed_at", at)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "stamp dlq entry")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no pending dead letter for event")
	}
	if err := events.RequeueTx(tx.WithContext(ctx), eventID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "outbox event already published or purged")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "requeue outbox event")
	}
	return nil
}
