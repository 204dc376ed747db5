package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/oddsmith/peerbet/internal/domain"
)

// ── Slippage errors ───────────────────────────────────────────────────────────

func TestSlippageError_MatchesSentinel(t *testing.T) {
	err := &domain.SlippageError{
		ExpectedPrice: decimal.NewFromFloat(0.50),
		RealizedPrice: decimal.NewFromFloat(0.58),
		Tolerance:     decimal.NewFromFloat(0.05),
	}
	if !errors.Is(err, domain.ErrSlippageExceeded) {
		t.Error("*SlippageError should match ErrSlippageExceeded via errors.Is")
	}

	var slip *domain.SlippageError
	wrapped := fmt.Errorf("trade.Buy: %w", err)
	if !errors.As(wrapped, &slip) {
		t.Fatal("errors.As should extract *SlippageError through wrapping")
	}
	if !slip.RealizedPrice.Equal(decimal.NewFromFloat(0.58)) {
		t.Errorf("RealizedPrice = %s, want 0.58", slip.RealizedPrice)
	}
}

// ── Classification predicates ─────────────────────────────────────────────────

func TestIsNotFound(t *testing.T) {
	for _, err := range []error{
		domain.ErrMarketNotFound,
		domain.ErrPositionNotFound,
		domain.ErrContestNotFound,
		domain.ErrWalletNotFound,
	} {
		if !domain.IsNotFound(err) {
			t.Errorf("IsNotFound(%v) = false, want true", err)
		}
		// Predicates must see through fmt.Errorf wrapping.
		if !domain.IsNotFound(fmt.Errorf("repo.GetByID: %w", err)) {
			t.Errorf("IsNotFound(wrapped %v) = false, want true", err)
		}
	}
	if domain.IsNotFound(domain.ErrAlreadyVoted) {
		t.Error("IsNotFound(ErrAlreadyVoted) should be false")
	}
}

func TestIsConflict(t *testing.T) {
	for _, err := range []error{
		domain.ErrAlreadySettling,
		domain.ErrAlreadyContested,
		domain.ErrAlreadyVoted,
		domain.ErrContestDeadlinePassed,
		domain.ErrMarketNotTradeable,
	} {
		if !domain.IsConflict(err) {
			t.Errorf("IsConflict(%v) = false, want true", err)
		}
	}
	if domain.IsConflict(domain.ErrInvalidAmount) {
		t.Error("IsConflict(ErrInvalidAmount) should be false")
	}
}

func TestIsValidation(t *testing.T) {
	if !domain.IsValidation(domain.ErrInvalidAmount) {
		t.Error("IsValidation(ErrInvalidAmount) = false, want true")
	}
	if !domain.IsValidation(fmt.Errorf("pricing: %w", domain.ErrNumeric)) {
		t.Error("IsValidation(wrapped ErrNumeric) = false, want true")
	}
	if domain.IsValidation(domain.ErrForbidden) {
		t.Error("IsValidation(ErrForbidden) should be false")
	}
}

func TestIsAuthError(t *testing.T) {
	for _, err := range []error{
		domain.ErrUnauthorized,
		domain.ErrTokenExpired,
		domain.ErrNotCreator,
		domain.ErrNotEligibleVoter,
	} {
		if !domain.IsAuthError(err) {
			t.Errorf("IsAuthError(%v) = false, want true", err)
		}
	}
	if domain.IsAuthError(domain.ErrMarketNotFound) {
		t.Error("IsAuthError(ErrMarketNotFound) should be false")
	}
}
