package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Bond statuses
// ──────────────────────────────────────────────────────────────────────────────

// BondStatus is the lifecycle of an escrowed settlement/contest bond.
type BondStatus string

const (
	BondActive    BondStatus = "active"
	BondReturned  BondStatus = "returned"
	BondForfeited BondStatus = "forfeited"
)

// VoteStatus is the lifecycle of a verification-vote bond.
type VoteStatus string

const (
	VoteActive   VoteStatus = "active"
	VoteWon      VoteStatus = "won"
	VoteLost     VoteStatus = "lost"
	VoteRefunded VoteStatus = "refunded" // tie or oracle preemption: bond back, no verdict
)

// ──────────────────────────────────────────────────────────────────────────────
// SettlementBond
// ──────────────────────────────────────────────────────────────────────────────

// SettlementBond is the stake the market creator escrows when proposing an
// outcome.  At most one exists per market while settlement is pending.
type SettlementBond struct {
	ID            uuid.UUID       `json:"id"             db:"id"`
	MarketID      uuid.UUID       `json:"market_id"      db:"market_id"`
	CreatorID     uuid.UUID       `json:"creator_id"     db:"creator_id"`
	BondAmount    decimal.Decimal `json:"bond_amount"    db:"bond_amount"`
	OutcomeChosen bool            `json:"outcome_chosen" db:"outcome_chosen"`
	Status        BondStatus      `json:"status"         db:"status"`
	CreatedAt     time.Time       `json:"created_at"     db:"created_at"`
	ResolvedAt    *time.Time      `json:"resolved_at"    db:"resolved_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ContestBond
// ──────────────────────────────────────────────────────────────────────────────

// ContestBond is the stake a position holder escrows to dispute the creator's
// proposed outcome.  At most one active contest exists per market; the
// contestant implicitly backs the opposite of the creator's proposal.
type ContestBond struct {
	ID           uuid.UUID       `json:"id"            db:"id"`
	MarketID     uuid.UUID       `json:"market_id"     db:"market_id"`
	ContestantID uuid.UUID       `json:"contestant_id" db:"contestant_id"`
	BondAmount   decimal.Decimal `json:"bond_amount"   db:"bond_amount"`
	Status       BondStatus      `json:"status"        db:"status"`
	CreatedAt    time.Time       `json:"created_at"    db:"created_at"`
	ResolvedAt   *time.Time      `json:"resolved_at"   db:"resolved_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Vote (verification bond)
// ──────────────────────────────────────────────────────────────────────────────

// Vote is one eligible voter's bonded verdict on a contested settlement.
// One per (contest, voter).  is_correct stays NULL until resolution; the
// creator's and contestant's implicit votes are added inside the tally
// function, never written here, so this table remains an honest audit log.
type Vote struct {
	ID          uuid.UUID       `json:"id"           db:"id"`
	ContestID   uuid.UUID       `json:"contest_id"   db:"contest_id"`
	MarketID    uuid.UUID       `json:"market_id"    db:"market_id"`
	VoterID     uuid.UUID       `json:"voter_id"     db:"voter_id"`
	VoteOutcome bool            `json:"vote_outcome" db:"vote_outcome"`
	BondAmount  decimal.Decimal `json:"bond_amount"  db:"bond_amount"`
	IsCorrect   *bool           `json:"is_correct"   db:"is_correct"`
	Status      VoteStatus      `json:"status"       db:"status"`
	CreatedAt   time.Time       `json:"created_at"   db:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at"  db:"resolved_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementView — read-only projection for getSettlementStatus
// ──────────────────────────────────────────────────────────────────────────────

// SettlementView is the read-only projection of a market's dispute state:
// current status, bonds, vote tally, and time remaining on the live window.
type SettlementView struct {
	MarketID         uuid.UUID        `json:"market_id"`
	Status           MarketStatus     `json:"status"`
	SettlementStatus SettlementStatus `json:"settlement_status"`
	CreatorOutcome   *bool            `json:"creator_outcome"`
	Outcome          *bool            `json:"outcome"`
	SettlementBond   *SettlementBond  `json:"settlement_bond,omitempty"`
	ContestBond      *ContestBond     `json:"contest_bond,omitempty"`
	YesVotes         int              `json:"yes_votes"` // explicit + implicit
	NoVotes          int              `json:"no_votes"`
	ContestDeadline  *time.Time       `json:"contest_deadline,omitempty"`
	VoteDeadline     *time.Time       `json:"vote_deadline,omitempty"`
	TimeLeftSec      int64            `json:"time_left_sec"`
}
