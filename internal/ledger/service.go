// Package ledger credits farmer wallets. Every credit is an increment on
// profiles.wallet_balance_paise paired with an append-only ledger row that is
// unique per payment, so a payment can never be credited twice.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/harvestlink-backend/internal/profiles"
	dbpkg "github.com/angelmondragon/harvestlink-backend/pkg/db"
	"github.com/angelmondragon/harvestlink-backend/pkg/db/models"
	"github.com/angelmondragon/harvestlink-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
)

// ErrAlreadyCredited is returned when the payment already has a credit entry.
var ErrAlreadyCredited = errors.New("payment already credited")

// CreditInput captures the immutable facts of a wallet credit.
type CreditInput struct {
	ProfileID   uuid.UUID
	PaymentID   uuid.UUID
	OrderID     uuid.UUID
	AmountPaise int64
	Channel     enums.PaymentChannel
}

// Service records wallet movements. Credit must run inside the caller's transaction.
type Service interface {
	Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.WalletLedgerEntry, error)
	IsCredited(ctx context.Context, db *gorm.DB, paymentID uuid.UUID) (bool, error)
}

type service struct {
	repo     Repository
	profiles profiles.Repository
}

// NewService wires a ledger service with the provided repositories.
func NewService(repo Repository, profileRepo profiles.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if profileRepo == nil {
		return nil, fmt.Errorf("profile repository required")
	}
	return &service{repo: repo, profiles: profileRepo}, nil
}

func (s *service) Credit(ctx context.Context, tx *gorm.DB, input CreditInput) (*models.WalletLedgerEntry, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for wallet credit")
	}
	if input.ProfileID == uuid.Nil || input.PaymentID == uuid.Nil || input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "profile, payment and order ids are required")
	}
	if input.AmountPaise <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}
	if !input.Channel.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment channel %q", input.Channel))
	}

	entry := &models.WalletLedgerEntry{
		ID:          uuid.New(),
		ProfileID:   input.ProfileID,
		PaymentID:   input.PaymentID,
		OrderID:     input.OrderID,
		EntryType:   enums.WalletEntryCredit,
		AmountPaise: input.AmountPaise,
		Channel:     input.Channel,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.repo.WithTx(tx).Create(ctx, entry); err != nil {
		if dbpkg.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrAlreadyCredited, "payment already credited")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record wallet credit")
	}
	if err := s.profiles.WithTx(tx).IncrementWallet(ctx, input.ProfileID, input.AmountPaise); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "farmer profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "credit wallet")
	}
	return entry, nil
}

func (s *service) IsCredited(ctx context.Context, db *gorm.DB, paymentID uuid.UUID) (bool, error) {
	if paymentID == uuid.Nil {
		return false, fmt.Errorf("payment id is required")
	}
	return s.repo.WithTx(db).HasEntry(ctx, paymentID, enums.WalletEntryCredit)
}
