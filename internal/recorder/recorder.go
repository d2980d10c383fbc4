// Package recorder persists an audit trail of executed trades. It is
// write-only: engine state is never loaded back from it.
package recorder

import "github.com/shopspring/decimal"

// TradeEvent is one executed buy, sell, or consume.
type TradeEvent struct {
	ID          string // uuid assigned by the caller
	SimTime     int64  // simulated minutes at execution
	User        string
	Drink       string
	Side        string // "buy", "sell", or "consume"
	Qty         int64
	UnitPrice   decimal.Decimal // price the user's ledger saw (incl. fee)
	MarketPrice decimal.Decimal // drink price after the trade's impulse
}

// Recorder persists trade events for later analysis.
type Recorder interface {
	RecordTrade(evt *TradeEvent) error
	Close() error
}
