package service

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lcarva/drinkex/internal/domain"
	"github.com/lcarva/drinkex/internal/exchange"
	"github.com/lcarva/drinkex/internal/recorder"
)

// TradeOutcome is what a trade command returns to the handler layer.
// Executed is false when an insufficient-inventory sell/consume was absorbed
// as a no-op, so callers can tell a no-op from a fill.
type TradeOutcome struct {
	Executed    bool
	UnitPrice   decimal.Decimal
	MarketPrice decimal.Decimal
	Recharged   decimal.Decimal
}

// ExchangeService validates commands at the boundary, forwards them to the
// engine, and emits audit events for executed trades. The engine itself
// stays permissive (it does not validate quantities), matching the core's
// pass-through contract.
type ExchangeService struct {
	ex  *exchange.ExchangeState
	rec recorder.Recorder
}

// NewExchangeService creates a service around the given engine and recorder.
func NewExchangeService(ex *exchange.ExchangeState, rec recorder.Recorder) *ExchangeService {
	return &ExchangeService{ex: ex, rec: rec}
}

// Exchange exposes the underlying engine for read queries.
func (s *ExchangeService) Exchange() *exchange.ExchangeState {
	return s.ex
}

// AdvanceTime moves simulated time forward by minutes (> 0).
func (s *ExchangeService) AdvanceTime(minutes int64) (int64, error) {
	if minutes <= 0 {
		return 0, &domain.ValidationError{Message: "minutes must be a positive integer"}
	}
	s.ex.AdvanceTime(minutes)
	return s.ex.GetCurrentTime(), nil
}

// RewindTime moves simulated time backward by minutes (> 0). Time may go
// negative; the engine does not enforce a floor.
func (s *ExchangeService) RewindTime(minutes int64) (int64, error) {
	if minutes <= 0 {
		return 0, &domain.ValidationError{Message: "minutes must be a positive integer"}
	}
	s.ex.RewindTime(minutes)
	return s.ex.GetCurrentTime(), nil
}

// Buy purchases qty coupons for the user at the current ask.
func (s *ExchangeService) Buy(user, drink string, qty int64) (*TradeOutcome, error) {
	if qty <= 0 {
		return nil, &domain.ValidationError{Message: "qty must be a positive integer"}
	}
	res, err := s.ex.Buy(user, drink, qty)
	if err != nil {
		return nil, err
	}
	s.audit("buy", user, drink, qty, res)
	return outcome(res), nil
}

// Sell liquidates qty coupons for the user at the current bid. A sell
// exceeding the user's holdings comes back with Executed false.
func (s *ExchangeService) Sell(user, drink string, qty int64) (*TradeOutcome, error) {
	if qty <= 0 {
		return nil, &domain.ValidationError{Message: "qty must be a positive integer"}
	}
	res, err := s.ex.Sell(user, drink, qty)
	if err != nil {
		return nil, err
	}
	if res.Executed {
		s.audit("sell", user, drink, qty, res)
	}
	return outcome(res), nil
}

// Consume redeems one of the user's coupons. Consuming a drink the user
// does not hold comes back with Executed false.
func (s *ExchangeService) Consume(user, drink string) (*TradeOutcome, error) {
	res, err := s.ex.Consume(user, drink)
	if err != nil {
		return nil, err
	}
	if res.Executed {
		s.audit("consume", user, drink, 1, res)
	}
	return outcome(res), nil
}

// UndoLast rewinds the engine by one operation. Returns false when there is
// nothing to undo; the audit trail is an operator log and is not rewritten.
func (s *ExchangeService) UndoLast() bool {
	return s.ex.UndoLast()
}

func (s *ExchangeService) audit(side, user, drink string, qty int64, res exchange.TradeResult) {
	err := s.rec.RecordTrade(&recorder.TradeEvent{
		ID:          uuid.NewString(),
		SimTime:     s.ex.GetCurrentTime(),
		User:        user,
		Drink:       drink,
		Side:        side,
		Qty:         qty,
		UnitPrice:   res.UnitPrice,
		MarketPrice: res.MarketPrice,
	})
	if err != nil {
		slog.Error("record trade", slog.String("side", side), slog.String("error", err.Error()))
	}
}

func outcome(res exchange.TradeResult) *TradeOutcome {
	return &TradeOutcome{
		Executed:    res.Executed,
		UnitPrice:   res.UnitPrice,
		MarketPrice: res.MarketPrice,
		Recharged:   res.Recharged,
	}
}
