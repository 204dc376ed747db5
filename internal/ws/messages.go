// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/google/uuid"
	"github.com/oddsmith/peerbet/internal/domain"
	"github.com/shopspring/decimal"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeOddsUpdate         MsgType = "odds_update"
	MsgTypeTradeExecuted      MsgType = "trade_executed"
	MsgTypeSettlementProposed MsgType = "settlement_proposed"
	MsgTypeContestOpened      MsgType = "contest_opened"
	MsgTypeVoteWindowClosing  MsgType = "vote_window_closing"
	MsgTypeMarketSettled      MsgType = "market_settled"
	MsgTypeError              MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// OddsUpdateMessage — sent after trades and on the periodic broadcast tick.
// ──────────────────────────────────────────────────────────────────────────────

// OddsUpdateMessage carries the live probability and pool state of one market.
type OddsUpdateMessage struct {
	Type           MsgType         `json:"type"`
	MarketID       uuid.UUID       `json:"market_id"`
	YesProbability float64         `json:"yes_probability"`
	NoProbability  float64         `json:"no_probability"`
	LiquidityPool  decimal.Decimal `json:"liquidity_pool"`
	TotalVolume    decimal.Decimal `json:"total_volume"`
	TimeLeftSec    int64           `json:"time_left_sec"`
	Timestamp      time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// TradeExecutedMessage — broadcast after a trade commits so odds refresh for all.
// ──────────────────────────────────────────────────────────────────────────────

// TradeExecutedMessage notifies all clients that a market's curve has moved.
// It deliberately omits the trader's identity.
type TradeExecutedMessage struct {
	Type      MsgType         `json:"type"`
	MarketID  uuid.UUID       `json:"market_id"`
	Side      string          `json:"side"`
	Shares    decimal.Decimal `json:"shares"`
	Timestamp time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Settlement lifecycle messages
// ──────────────────────────────────────────────────────────────────────────────

// SettlementProposedMessage tells clients the creator has declared an outcome
// and the contest window is open.
type SettlementProposedMessage struct {
	Type            MsgType   `json:"type"`
	MarketID        uuid.UUID `json:"market_id"`
	ProposedOutcome bool      `json:"proposed_outcome"`
	ContestDeadline time.Time `json:"contest_deadline"`
	Timestamp       time.Time `json:"timestamp"`
}

// ContestOpenedMessage tells clients a settlement has been disputed and
// voting is open until the deadline.
type ContestOpenedMessage struct {
	Type         MsgType   `json:"type"`
	MarketID     uuid.UUID `json:"market_id"`
	VoteDeadline time.Time `json:"vote_deadline"`
	Timestamp    time.Time `json:"timestamp"`
}

// VoteWindowClosingMessage warns clients that a contested market's vote
// deadline is near.  Sent once per contest.
type VoteWindowClosingMessage struct {
	Type         MsgType   `json:"type"`
	MarketID     uuid.UUID `json:"market_id"`
	VoteDeadline time.Time `json:"vote_deadline"`
	Timestamp    time.Time `json:"timestamp"`
}

// MarketSettledMessage tells clients the final outcome. Outcome is nil when
// the market was cancelled and stakes were refunded at cost basis.
type MarketSettledMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  uuid.UUID `json:"market_id"`
	Outcome   *bool     `json:"outcome"`
	Cancelled bool      `json:"cancelled"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

// OddsUpdateFromDomain converts a domain odds snapshot into a WS message.
func OddsUpdateFromDomain(odds *domain.MarketOdds) OddsUpdateMessage {
	return OddsUpdateMessage{
		Type:           MsgTypeOddsUpdate,
		MarketID:       odds.MarketID,
		YesProbability: odds.YesProbability,
		NoProbability:  odds.NoProbability,
		LiquidityPool:  odds.LiquidityPool,
		TotalVolume:    odds.TotalVolume,
		TimeLeftSec:    odds.TimeLeftSec,
		Timestamp:      time.Now().UTC(),
	}
}
