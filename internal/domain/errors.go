package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Sentinel errors — compare with errors.Is()
//
// The taxonomy: validation and authorization errors are rejected before any
// state change; state-conflict errors are rejected with no partial mutation;
// numeric errors surface pricing domain violations and are never silently
// clamped; slippage errors carry the realized price so callers can retry.
// ──────────────────────────────────────────────────────────────────────────────

// Validation errors
var (
	// ErrInvalidAmount is returned for non-positive trade or bond amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInvalidSide is returned when the side is not YES or NO.
	ErrInvalidSide = errors.New("invalid side: must be YES or NO")

	// ErrInvalidTradeResult is returned when pricing yields non-positive shares.
	ErrInvalidTradeResult = errors.New("trade produced a non-positive share count")
)

// Market / trade errors
var (
	// ErrMarketNotFound is returned when no market matches the given criteria.
	ErrMarketNotFound = errors.New("market not found")

	// ErrMarketNotTradeable is returned when a trade is attempted on a market
	// that is not active, has expired, or the caller may not trade (private
	// market conflict of interest).
	ErrMarketNotTradeable = errors.New("market is not tradeable")

	// ErrInsufficientShares is returned when a sell exceeds the position's holding.
	ErrInsufficientShares = errors.New("insufficient shares in position")

	// ErrPositionNotFound is returned when the user holds no position on that side.
	ErrPositionNotFound = errors.New("position not found")

	// ErrNumeric wraps pricing-engine domain/overflow failures.
	ErrNumeric = errors.New("pricing computation failed")
)

// SlippageError is returned when the realized average price deviates from the
// caller's expected price beyond the configured tolerance.  It carries the
// realized price so the caller can retry with updated expectations.
type SlippageError struct {
	ExpectedPrice decimal.Decimal
	RealizedPrice decimal.Decimal
	Tolerance     decimal.Decimal
}

func (e *SlippageError) Error() string {
	return fmt.Sprintf("slippage exceeded: expected %s, realized %s (tolerance %s)",
		e.ExpectedPrice.StringFixed(4), e.RealizedPrice.StringFixed(4), e.Tolerance.StringFixed(4))
}

// ErrSlippageExceeded is the target for errors.Is against *SlippageError.
var ErrSlippageExceeded = errors.New("slippage exceeded")

// Is lets errors.Is(err, ErrSlippageExceeded) match a *SlippageError.
func (e *SlippageError) Is(target error) bool {
	return target == ErrSlippageExceeded
}

// Settlement errors
var (
	// ErrNotCreator is returned when someone other than the market creator
	// tries to initiate settlement.
	ErrNotCreator = errors.New("only the market creator can initiate settlement")

	// ErrAlreadySettling is returned when settlement has already been proposed.
	ErrAlreadySettling = errors.New("settlement is already in progress")

	// ErrAlreadySettled is returned for operations on a terminal market.
	ErrAlreadySettled = errors.New("market is already settled or cancelled")

	// ErrNoSettlement is returned when no settlement has been proposed yet.
	ErrNoSettlement = errors.New("no settlement has been proposed")

	// ErrContestDeadlinePassed is returned when contesting after the window.
	ErrContestDeadlinePassed = errors.New("contest deadline has passed")

	// ErrVoteDeadlinePassed is returned when voting after the window.
	ErrVoteDeadlinePassed = errors.New("vote deadline has passed")

	// ErrAlreadyContested is returned when a second contest is raised.
	ErrAlreadyContested = errors.New("settlement is already contested")

	// ErrContestNotFound is returned when no contest matches the given criteria.
	ErrContestNotFound = errors.New("contest not found")

	// ErrNotEligibleVoter is returned when the voter holds no position, or is
	// the creator or contestant of the dispute.
	ErrNotEligibleVoter = errors.New("user is not an eligible voter for this contest")

	// ErrAlreadyVoted is returned on a second vote by the same voter.
	ErrAlreadyVoted = errors.New("voter has already voted in this contest")

	// ErrRateLimitExceeded is returned when a user exceeds the per-action
	// settlement throttle.
	ErrRateLimitExceeded = errors.New("rate limit exceeded for settlement actions")
)

// User / wallet errors
var (
	// ErrUserNotFound is returned when no user matches the given criteria.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration when the email already exists.
	ErrEmailTaken = errors.New("email address is already registered")

	// ErrUsernameTaken is returned on registration when the username already exists.
	ErrUsernameTaken = errors.New("username is already taken")

	// ErrInvalidCredentials is returned when login credentials are wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")

	// ErrUserInactive is returned when a suspended user attempts an action.
	ErrUserInactive = errors.New("user account is inactive")

	// ErrInsufficientBalance is returned when a user's balance cannot cover a
	// trade or bond escrow.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")

	// ErrWalletNotFound is returned when no wallet exists for the requested user.
	ErrWalletNotFound = errors.New("wallet not found")
)

// Auth errors
var (
	// ErrUnauthorized is returned when a valid token is not present.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrForbidden is returned when the authenticated user lacks the required role.
	ErrForbidden = errors.New("forbidden: insufficient permissions")

	// ErrTokenExpired is returned when a JWT has passed its TTL.
	ErrTokenExpired = errors.New("token has expired")

	// ErrTokenInvalid is returned when a token cannot be parsed or its
	// signature does not match.
	ErrTokenInvalid = errors.New("token is invalid")
)

// ──────────────────────────────────────────────────────────────────────────────
// Helper predicates
// ──────────────────────────────────────────────────────────────────────────────

// notFoundErrors collects the "entity not found" sentinels so IsNotFound can
// stay in sync automatically.
var notFoundErrors = []error{
	ErrMarketNotFound,
	ErrPositionNotFound,
	ErrContestNotFound,
	ErrUserNotFound,
	ErrWalletNotFound,
	ErrNoSettlement,
}

// IsNotFound returns true when err (or any error in its chain) is one of the
// domain "not found" errors.  Use this when translating to HTTP 404.
func IsNotFound(err error) bool {
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsConflict returns true for state-conflict errors: wrong settlement status,
// expired deadline, double vote, double contest, terminal market.
func IsConflict(err error) bool {
	conflictErrors := []error{
		ErrMarketNotTradeable,
		ErrAlreadySettling,
		ErrAlreadySettled,
		ErrAlreadyContested,
		ErrAlreadyVoted,
		ErrContestDeadlinePassed,
		ErrVoteDeadlinePassed,
		ErrEmailTaken,
		ErrUsernameTaken,
	}
	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsValidation returns true for bad-input errors rejected before any state change.
func IsValidation(err error) bool {
	validationErrors := []error{
		ErrInvalidAmount,
		ErrInvalidSide,
		ErrInvalidTradeResult,
		ErrNumeric,
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// IsAuthError returns true for authentication/authorisation errors.
func IsAuthError(err error) bool {
	authErrors := []error{
		ErrUnauthorized,
		ErrForbidden,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrNotCreator,
		ErrNotEligibleVoter,
	}
	for _, target := range authErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
