package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// User is an account holding coupon inventory, a prepaid stored-value
// balance, and cumulative spend. Monetary fields are exact decimals so the
// exchange-wide reconciliation sums never drift.
type User struct {
	Name     string
	Holdings map[string]int64 // drink name → quantity owned

	// TradeLog holds human-readable lines, newest last.
	TradeLog []string

	TotalSpent      decimal.Decimal // real currency spent beyond stored value
	StoredValue     decimal.Decimal // prepaid balance usable for purchases
	Coupons         int64           // net signed coupon count across holdings
	CouponsRedeemed int64           // number of consume events
}

// NewUser creates a user with a zeroed ledger.
func NewUser(name string) *User {
	return &User{
		Name:        name,
		Holdings:    make(map[string]int64),
		TotalSpent:  decimal.Zero,
		StoredValue: decimal.Zero,
	}
}

// CouponValue values the user's holdings against the supplied price
// snapshot. Drinks missing from the snapshot contribute zero rather than
// erroring, since a drink may have been removed from the exchange.
func (u *User) CouponValue(prices map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for drink, qty := range u.Holdings {
		price, ok := prices[drink]
		if !ok {
			continue
		}
		total = total.Add(price.Mul(decimal.NewFromInt(qty)))
	}
	return total
}

// NetAsset is coupon value plus stored value minus cumulative spend.
func (u *User) NetAsset(prices map[string]decimal.Decimal) decimal.Decimal {
	return u.CouponValue(prices).Add(u.StoredValue).Sub(u.TotalSpent)
}

// CouponCount sums all holding quantities (signed).
func (u *User) CouponCount() int64 {
	var total int64
	for _, qty := range u.Holdings {
		total += qty
	}
	return total
}

// Buy adds qty coupons at unitPrice, drawing down stored value first. The
// returned amount is the cash shortfall beyond stored value, which the
// exchange books as recharge. Quantity positivity is the caller's
// responsibility.
func (u *User) Buy(drink string, qty int64, unitPrice decimal.Decimal) decimal.Decimal {
	u.Holdings[drink] += qty
	u.Coupons += qty

	total := unitPrice.Mul(decimal.NewFromInt(qty))
	shortfall := decimal.Zero
	if u.StoredValue.GreaterThanOrEqual(total) {
		u.StoredValue = u.StoredValue.Sub(total)
	} else {
		shortfall = total.Sub(u.StoredValue)
		u.StoredValue = decimal.Zero
		u.TotalSpent = u.TotalSpent.Add(shortfall)
	}

	u.log("bought %d x %s @ %s", qty, drink, unitPrice)
	return shortfall
}

// Sell removes qty coupons at unitPrice, crediting the proceeds to stored
// value rather than paying out cash. Returns false without mutating anything
// when the user holds fewer than qty.
func (u *User) Sell(drink string, qty int64, unitPrice decimal.Decimal) bool {
	if u.Holdings[drink] < qty {
		return false
	}
	u.Holdings[drink] -= qty
	u.Coupons -= qty
	u.StoredValue = u.StoredValue.Add(unitPrice.Mul(decimal.NewFromInt(qty)))
	u.log("sold %d x %s @ %s", qty, drink, unitPrice)
	return true
}

// Consume redeems one coupon: it leaves tradable inventory without
// generating stored value. Returns false without mutating anything when the
// user holds none.
func (u *User) Consume(drink string) bool {
	if u.Holdings[drink] <= 0 {
		return false
	}
	u.Holdings[drink]--
	u.Coupons--
	u.CouponsRedeemed++
	u.log("drank 1 x %s", drink)
	return true
}

func (u *User) log(format string, args ...any) {
	u.TradeLog = append(u.TradeLog, fmt.Sprintf(format, args...))
}

// Clone returns a deep copy, including holdings and the trade log.
func (u *User) Clone() *User {
	holdings := make(map[string]int64, len(u.Holdings))
	for k, v := range u.Holdings {
		holdings[k] = v
	}
	tradeLog := make([]string, len(u.TradeLog))
	copy(tradeLog, u.TradeLog)
	return &User{
		Name:            u.Name,
		Holdings:        holdings,
		TradeLog:        tradeLog,
		TotalSpent:      u.TotalSpent,
		StoredValue:     u.StoredValue,
		Coupons:         u.Coupons,
		CouponsRedeemed: u.CouponsRedeemed,
	}
}
