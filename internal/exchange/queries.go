package exchange

import (
	"github.com/shopspring/decimal"

	"github.com/lcarva/drinkex/internal/domain"
)

// Read queries. All of them are pure reads over the current state; the
// aggregate getters recompute from users/drinks on every call rather than
// maintaining counters incrementally, so they are correct regardless of the
// mutation path that led here.

// GetCurrentTime returns the simulated clock in minutes.
func (e *ExchangeState) GetCurrentTime() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.currentTime
}

// GetUserNames lists users in insertion order.
func (e *ExchangeState) GetUserNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, len(e.st.users))
	for i, u := range e.st.users {
		names[i] = u.Name
	}
	return names
}

// GetDrinkNames lists drinks in insertion order.
func (e *ExchangeState) GetDrinkNames() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, len(e.st.drinkOrder))
	copy(names, e.st.drinkOrder)
	return names
}

// GetUser returns a deep copy of the named user's ledger.
func (e *ExchangeState) GetUser(name string) (*domain.User, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.st.user(name)
	if err != nil {
		return nil, err
	}
	return u.Clone(), nil
}

// GetUserValuation returns the named user's coupon value and net asset
// against current prices.
func (e *ExchangeState) GetUserValuation(name string) (couponValue, netAsset decimal.Decimal, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u, err := e.st.user(name)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	prices := e.st.prices()
	return u.CouponValue(prices), u.NetAsset(prices), nil
}

// GetPrice returns the current price of the named drink.
func (e *ExchangeState) GetPrice(drink string) (decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.st.drink(drink)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Price, nil
}

// GetPriceHistory returns a copy of the drink's append-only price history.
func (e *ExchangeState) GetPriceHistory(drink string) ([]decimal.Decimal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, err := e.st.drink(drink)
	if err != nil {
		return nil, err
	}
	history := make([]decimal.Decimal, len(d.PriceHistory))
	copy(history, d.PriceHistory)
	return history, nil
}

// GetAllDrinkPrices returns a snapshot of every drink's current price.
func (e *ExchangeState) GetAllDrinkPrices() map[string]decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.prices()
}

// GetTradeLog returns the drink's chronological trade records. A drink with
// no recorded trades yields an empty slice, not an error.
func (e *ExchangeState) GetTradeLog(drink string) []domain.TradeRecord {
	e.mu.Lock()
	defer e.mu.Unlock()

	recs := e.st.records[drink]
	result := make([]domain.TradeRecord, len(recs))
	copy(result, recs)
	return result
}

// GetTotalRecharge returns cumulative real cash collected on buys. It is
// monotonically non-decreasing.
func (e *ExchangeState) GetTotalRecharge() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.recharge
}

// GetTotalStoredValue sums every user's stored value.
func (e *ExchangeState) GetTotalStoredValue() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalStoredValueLocked()
}

// GetTotalCouponValue values every user's holdings at current prices.
func (e *ExchangeState) GetTotalCouponValue() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalCouponValueLocked()
}

// GetTotalCouponCount sums every user's signed holding quantities.
func (e *ExchangeState) GetTotalCouponCount() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	var total int64
	for _, u := range e.st.users {
		total += u.CouponCount()
	}
	return total
}

// GetNetRevenue is the exchange's realized profit: cash collected minus its
// outstanding liabilities to users (coupons at market value plus stored
// value). Consuming a coupon extinguishes liability at the current price,
// which is how consumption registers as profit here.
func (e *ExchangeState) GetNetRevenue() decimal.Decimal {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.st.recharge.Sub(e.totalCouponValueLocked()).Sub(e.totalStoredValueLocked())
}

// GetFee returns the per-unit transaction fee.
func (e *ExchangeState) GetFee() decimal.Decimal {
	return e.fee
}

// UndoDepth returns the number of snapshots currently on the undo stack.
func (e *ExchangeState) UndoDepth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.history)
}

func (e *ExchangeState) totalStoredValueLocked() decimal.Decimal {
	total := decimal.Zero
	for _, u := range e.st.users {
		total = total.Add(u.StoredValue)
	}
	return total
}

func (e *ExchangeState) totalCouponValueLocked() decimal.Decimal {
	total := decimal.Zero
	prices := e.st.prices()
	for _, u := range e.st.users {
		total = total.Add(u.CouponValue(prices))
	}
	return total
}
