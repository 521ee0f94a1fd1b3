// Package otp issues and checks the 4-digit codes a buyer uses to confirm an order.
package otp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/harvestlink-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/harvestlink-backend/pkg/errors"
	"github.com/angelmondragon/harvestlink-backend/pkg/security"
)

// CodeLength is the number of digits in an order code.
const CodeLength = 4

// AttemptLimiter counts verification attempts in a fixed window.
type AttemptLimiter interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Issued is a freshly generated code. Plain is sent to the buyer once and never stored.
type Issued struct {
	Plain string
	Hash  string
}

type Verifier struct {
	cfg     config.OTPConfig
	limiter AttemptLimiter
}

// NewVerifier builds a verifier. A nil limiter disables attempt limiting.
func NewVerifier(cfg config.OTPConfig, limiter AttemptLimiter) *Verifier {
	return &Verifier{cfg: cfg, limiter: limiter}
}

// Issue generates a code and its argon2id hash.
func (v *Verifier) Issue() (Issued, error) {
	code, err := security.GenerateNumericCode(CodeLength)
	if err != nil {
		return Issued{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate order code")
	}
	hash, err := security.HashCode(code, v.cfg)
	if err != nil {
		return Issued{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash order code")
	}
	return Issued{Plain: code, Hash: hash}, nil
}

// Check verifies code against the stored hash for orderID. It enforces the
// attempt window first so a locked-out caller learns nothing about the code.
func (v *Verifier) Check(ctx context.Context, orderID uuid.UUID, code, hash string) error {
	code = strings.TrimSpace(code)
	if !wellFormed(code) {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("otp must be %d digits", CodeLength))
	}
	if err := v.allowAttempt(ctx, orderID); err != nil {
		return err
	}
	ok, err := security.VerifyCode(code, hash)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "stored order code is unreadable")
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeSecurity, "invalid OTP")
	}
	return nil
}

func (v *Verifier) allowAttempt(ctx context.Context, orderID uuid.UUID) error {
	if v.limiter == nil || v.cfg.MaxAttempts <= 0 {
		return nil
	}
	allowed, _, err := v.limiter.FixedWindowAllow(ctx, "otp:"+orderID.String(), int64(v.cfg.MaxAttempts), v.cfg.AttemptWindow)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "otp attempt limiter unavailable")
	}
	if !allowed {
		return pkgerrors.New(pkgerrors.CodeRateLimit, "too many verification attempts")
	}
	return nil
}

func wellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
