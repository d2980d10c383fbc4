// Package exchange implements the drink exchange engine: price formation,
// per-user ledger accounting, trade history, and snapshot-based undo.
package exchange

import (
	"sync"

	"github.com/shopspring/decimal"

	"github.com/lcarva/drinkex/internal/domain"
)

// state holds everything a mutating operation can touch. Keeping it behind
// one value lets UndoLast swap the whole thing atomically instead of
// restoring fields piecemeal.
type state struct {
	currentTime int64
	drinks      map[string]*domain.Drink
	drinkOrder  []string // insertion order for stable listings
	users       []*domain.User
	records     map[string][]domain.TradeRecord
	recharge    decimal.Decimal // cumulative real cash inflow, never decreases
}

func newState() *state {
	return &state{
		drinks:   make(map[string]*domain.Drink),
		records:  make(map[string][]domain.TradeRecord),
		recharge: decimal.Zero,
	}
}

func (s *state) clone() *state {
	drinks := make(map[string]*domain.Drink, len(s.drinks))
	for name, d := range s.drinks {
		drinks[name] = d.Clone()
	}
	drinkOrder := make([]string, len(s.drinkOrder))
	copy(drinkOrder, s.drinkOrder)
	users := make([]*domain.User, len(s.users))
	for i, u := range s.users {
		users[i] = u.Clone()
	}
	records := make(map[string][]domain.TradeRecord, len(s.records))
	for name, recs := range s.records {
		cp := make([]domain.TradeRecord, len(recs))
		copy(cp, recs)
		records[name] = cp
	}
	return &state{
		currentTime: s.currentTime,
		drinks:      drinks,
		drinkOrder:  drinkOrder,
		users:       users,
		records:     records,
		recharge:    s.recharge,
	}
}

func (s *state) user(name string) (*domain.User, error) {
	for _, u := range s.users {
		if u.Name == name {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (s *state) drink(name string) (*domain.Drink, error) {
	d, ok := s.drinks[name]
	if !ok {
		return nil, domain.ErrDrinkNotFound
	}
	return d, nil
}

func (s *state) prices() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(s.drinks))
	for name, d := range s.drinks {
		prices[name] = d.Price
	}
	return prices
}

// TradeResult reports what a buy/sell/consume actually did. Executed is
// false when an insufficient-inventory sell or consume was absorbed as a
// no-op.
type TradeResult struct {
	Executed    bool
	UnitPrice   decimal.Decimal // price the user's ledger was charged/credited at
	MarketPrice decimal.Decimal // drink price after the trade's impulse
	Recharged   decimal.Decimal // cash collected beyond stored value (buys only)
}

// ExchangeState orchestrates all mutating operations and queries. A single
// mutex serializes every operation, since multi-field invariants must be
// updated atomically and undo snapshots must see a quiescent state.
type ExchangeState struct {
	mu      sync.Mutex
	fee     decimal.Decimal // per-unit fee: buys pay price+fee, sells receive price-fee
	maxUndo int             // undo stack depth cap, 0 = unbounded
	st      *state
	history []*state
}

// New creates an empty exchange with the given per-unit fee. maxUndo caps
// the undo stack depth; 0 keeps it unbounded. Drinks and users are
// populated afterwards via AddDrink/AddUser.
func New(fee decimal.Decimal, maxUndo int) *ExchangeState {
	return &ExchangeState{
		fee:     fee,
		maxUndo: maxUndo,
		st:      newState(),
	}
}

// AddDrink registers a drink. Population is part of setup, not trading, so
// it is not undoable.
func (e *ExchangeState) AddDrink(d *domain.Drink) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.st.drinks[d.Name]; exists {
		return domain.ErrDrinkAlreadyExists
	}
	e.st.drinks[d.Name] = d
	e.st.drinkOrder = append(e.st.drinkOrder, d.Name)
	return nil
}

// AddUser registers a user with a zeroed ledger. Not undoable.
func (e *ExchangeState) AddUser(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := e.st.user(name); err == nil {
		return domain.ErrUserAlreadyExists
	}
	e.st.users = append(e.st.users, domain.NewUser(name))
	return nil
}

// saveState pushes a deep-copy snapshot of the current state. Called at the
// top of every mutating operation, before any mutation.
func (e *ExchangeState) saveState() {
	if e.maxUndo > 0 && len(e.history) >= e.maxUndo {
		copy(e.history, e.history[1:])
		e.history = e.history[:len(e.history)-1]
	}
	e.history = append(e.history, e.st.clone())
}

// AdvanceTime moves simulated time forward and mean-reverts every drink's
// price toward its anchor. Each drink gets a zero-quantity trade record so
// price charts show the tick without a real trade.
func (e *ExchangeState) AdvanceTime(minutes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saveState()
	e.st.currentTime += minutes
	for _, name := range e.st.drinkOrder {
		d := e.st.drinks[name]
		d.MeanRevert(minutes)
		e.appendRecord(name, d.Price, 0)
	}
}

// RewindTime moves simulated time backward. No floor is enforced; callers
// that care about negative time must avoid it.
func (e *ExchangeState) RewindTime(minutes int64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saveState()
	e.st.currentTime -= minutes
}

// Buy purchases qty coupons at the ask (market price + fee). Whatever the
// user's stored value cannot cover is booked as recharge, the exchange's
// real cash inflow. Buying pressure moves the price up by impulse × qty.
func (e *ExchangeState) Buy(user, drink string, qty int64) (TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saveState()
	u, err := e.st.user(user)
	if err != nil {
		return TradeResult{}, err
	}
	d, err := e.st.drink(drink)
	if err != nil {
		return TradeResult{}, err
	}

	unitPrice := d.Price.Add(e.fee)
	recharged := u.Buy(drink, qty, unitPrice)
	e.st.recharge = e.st.recharge.Add(recharged)

	d.UpdatePrice(d.Impulse.Mul(decimal.NewFromInt(qty)))
	e.appendRecord(drink, d.Price, qty)

	return TradeResult{
		Executed:    true,
		UnitPrice:   unitPrice,
		MarketPrice: d.Price,
		Recharged:   recharged,
	}, nil
}

// Sell liquidates qty coupons at the bid (market price − fee), crediting the
// proceeds to the user's stored value. Selling more than held is absorbed as
// a no-op: no price impact, no trade record, Executed false. Recharge is
// never reduced; the cash implication of the stored-value credit is carried
// entirely by the net-revenue reconciliation.
func (e *ExchangeState) Sell(user, drink string, qty int64) (TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saveState()
	u, err := e.st.user(user)
	if err != nil {
		return TradeResult{}, err
	}
	d, err := e.st.drink(drink)
	if err != nil {
		return TradeResult{}, err
	}

	unitPrice := d.Price.Sub(e.fee)
	if !u.Sell(drink, qty, unitPrice) {
		return TradeResult{Executed: false, UnitPrice: unitPrice, MarketPrice: d.Price}, nil
	}

	d.UpdatePrice(d.Impulse.Mul(decimal.NewFromInt(qty)).Neg())
	e.appendRecord(drink, d.Price, -qty)

	return TradeResult{
		Executed:    true,
		UnitPrice:   unitPrice,
		MarketPrice: d.Price,
		Recharged:   decimal.Zero,
	}, nil
}

// Consume redeems one of the user's coupons. The coupon liability vanishes
// at the current market price, which is how consumption shows up as
// realized profit in GetNetRevenue. Consuming with no holdings is absorbed
// as a no-op.
func (e *ExchangeState) Consume(user, drink string) (TradeResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.saveState()
	u, err := e.st.user(user)
	if err != nil {
		return TradeResult{}, err
	}
	d, err := e.st.drink(drink)
	if err != nil {
		return TradeResult{}, err
	}

	if !u.Consume(drink) {
		return TradeResult{Executed: false, UnitPrice: d.Price, MarketPrice: d.Price}, nil
	}
	return TradeResult{
		Executed:    true,
		UnitPrice:   d.Price,
		MarketPrice: d.Price,
		Recharged:   decimal.Zero,
	}, nil
}

// UndoLast pops the most recent snapshot and swaps it in as the whole
// current state. Repeated calls unwind one operation at a time. Returns
// false when the history is empty.
func (e *ExchangeState) UndoLast() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.history) == 0 {
		return false
	}
	e.st = e.history[len(e.history)-1]
	e.history = e.history[:len(e.history)-1]
	return true
}

func (e *ExchangeState) appendRecord(drink string, price decimal.Decimal, netQty int64) {
	e.st.records[drink] = append(e.st.records[drink], domain.TradeRecord{
		Time:   e.st.currentTime,
		Price:  price,
		NetQty: netQty,
	})
}
