package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// PriceFloor is the minimum price a drink can reach regardless of
// cumulative negative deltas.
var PriceFloor = decimal.NewFromFloat(0.01)

// Drink is a priced tradable instrument with mean-reverting price dynamics.
type Drink struct {
	Name      string
	Price     decimal.Decimal
	BasePrice decimal.Decimal // anchor the price drifts back to between trades
	HalfLife  float64         // minutes for half the gap to the anchor to close
	Impulse   decimal.Decimal // price change per unit traded

	// PriceHistory is append-only and starts with the initial price, so
	// len(PriceHistory) == price-affecting events + 1.
	PriceHistory []decimal.Decimal
}

// NewDrink creates a drink at its initial price with a one-entry history.
func NewDrink(name string, price, basePrice decimal.Decimal, halfLife float64, impulse decimal.Decimal) *Drink {
	return &Drink{
		Name:         name,
		Price:        price,
		BasePrice:    basePrice,
		HalfLife:     halfLife,
		Impulse:      impulse,
		PriceHistory: []decimal.Decimal{price},
	}
}

// UpdatePrice applies a signed delta, clamps at the floor, and appends the
// resulting price to the history. Never fails.
func (d *Drink) UpdatePrice(delta decimal.Decimal) {
	p := d.Price.Add(delta)
	if p.LessThan(PriceFloor) {
		p = PriceFloor
	}
	d.Price = p
	d.PriceHistory = append(d.PriceHistory, p)
}

// MeanRevert pulls the price toward the base price by a fraction
// 1 − 2^(−minutes/halflife) of the gap. The fraction is in [0, 1] for
// halflife > 0 and minutes ≥ 0, so the price never overshoots the anchor.
func (d *Drink) MeanRevert(minutes int64) {
	if d.HalfLife <= 0 || minutes <= 0 {
		// Still a price-affecting event: record the unchanged price so the
		// history lines up with time ticks.
		d.UpdatePrice(decimal.Zero)
		return
	}
	frac := 1 - math.Exp2(-float64(minutes)/d.HalfLife)
	gap := d.BasePrice.Sub(d.Price)
	d.UpdatePrice(gap.Mul(decimal.NewFromFloat(frac)))
}

// Clone returns a deep copy, including the price history.
func (d *Drink) Clone() *Drink {
	history := make([]decimal.Decimal, len(d.PriceHistory))
	copy(history, d.PriceHistory)
	return &Drink{
		Name:         d.Name,
		Price:        d.Price,
		BasePrice:    d.BasePrice,
		HalfLife:     d.HalfLife,
		Impulse:      d.Impulse,
		PriceHistory: history,
	}
}
