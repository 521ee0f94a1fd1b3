// Package inventory moves products.current_quantity. Stock is taken when an
// order is created and handed back at most once when it is cancelled or expires.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
)

// Line is a quantity of one product.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// LoadProducts returns the live (not soft-deleted) products among ids.
func (l *Ledger) LoadProducts(ctx context.Context, db *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// Decrement takes qty units in one conditional statement. Losing a race
// against another buyer surfaces as a conflict naming the product.
func (l *Ledger) Decrement(ctx context.Context, tx *gorm.DB, product models.Product, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock decrement")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	res := tx.WithContext(ctx).Exec(`
		UPDATE products
		SET current_quantity = current_quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND current_quantity >= ? AND deleted_at IS NULL
	`, qty, product.ID, qty)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement stock")
	}
	if res.RowsAffected == 0 {
		return InsufficientStock(product)
	}
	return nil
}

// Restore adds back snapshot quantities whatever the product's current
// catalog state. Callers guard against double restore with orders.stock_reserved.
func (l *Ledger) Restore(ctx context.Context, tx *gorm.DB, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock restore")
	}
	for _, line := range mergeLines(lines) {
		res := tx.WithContext(ctx).Exec(`
			UPDATE products
			SET current_quantity = current_quantity + ?,
				updated_at = CURRENT_TIMESTAMP
			WHERE id = ?
		`, line.Quantity, line.ProductID)
		if res.Error != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "restore stock")
		}
	}
	return nil
}

// LinesFromItems converts order line snapshots into restore lines.
func LinesFromItems(items []models.OrderItem) []Line {
	lines := make([]Line, 0, len(items))
	for _, item := range items {
		lines = append(lines, Line{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}

func mergeLines(lines []Line) []Line {
	merged := make([]Line, 0, len(lines))
	index := map[uuid.UUID]int{}
	for _, line := range lines {
		if line.Quantity <= 0 || line.ProductID == uuid.Nil {
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		merged = append(merged, line)
	}
	return merged
}

// InsufficientStock names the product and what is left of it.
func InsufficientStock(product models.Product) error {
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("insufficient stock for %s", product.Name)).
		WithDetails(map[string]any{
			"productId": product.ID,
			"available": product.CurrentQuantity,
		})
}
