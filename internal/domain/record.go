package domain

import "github.com/shopspring/decimal"

// TradeRecord is one row of a drink's charting log: the market price at a
// point in simulated time plus the signed net quantity traded. Time-tick
// rows carry NetQty == 0 and mark price drift without a real trade.
type TradeRecord struct {
	Time   int64           `json:"time"`
	Price  decimal.Decimal `json:"price"`
	NetQty int64           `json:"net_qty"`
}
