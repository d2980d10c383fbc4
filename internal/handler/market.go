package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lcarva/drinkex/internal/exchange"
)

// MarketHandler handles read queries over the exchange state.
type MarketHandler struct {
	ex *exchange.ExchangeState
}

// NewMarketHandler creates a new MarketHandler.
func NewMarketHandler(ex *exchange.ExchangeState) *MarketHandler {
	return &MarketHandler{ex: ex}
}

// userResponse is the JSON view of one user's ledger.
type userResponse struct {
	Name            string           `json:"name"`
	Holdings        map[string]int64 `json:"holdings"`
	TradeLog        []string         `json:"trade_log"`
	TotalSpent      string           `json:"total_spent"`
	StoredValue     string           `json:"stored_value"`
	Coupons         int64            `json:"coupons"`
	CouponsRedeemed int64            `json:"coupons_redeemed"`
	CouponValue     string           `json:"coupon_value"`
	NetAsset        string           `json:"net_asset"`
}

// priceResponse is the JSON response for GET /drinks/{name}/price.
type priceResponse struct {
	Drink string `json:"drink"`
	Price string `json:"price"`
}

// historyResponse is the JSON response for GET /drinks/{name}/history.
type historyResponse struct {
	Drink   string   `json:"drink"`
	History []string `json:"history"`
}

// tradeRowResponse is one row of the trade log for GET /drinks/{name}/trades.
type tradeRowResponse struct {
	Time   int64  `json:"time"`
	Price  string `json:"price"`
	NetQty int64  `json:"net_qty"`
}

// tradesResponse is the JSON response for GET /drinks/{name}/trades.
type tradesResponse struct {
	Drink  string             `json:"drink"`
	Trades []tradeRowResponse `json:"trades"`
}

// statsResponse is the JSON response for GET /stats.
type statsResponse struct {
	CurrentTime      int64  `json:"current_time"`
	NetRevenue       string `json:"net_revenue"`
	TotalRecharge    string `json:"total_recharge"`
	TotalStoredValue string `json:"total_stored_value"`
	TotalCouponValue string `json:"total_coupon_value"`
	TotalCouponCount int64  `json:"total_coupon_count"`
	Fee              string `json:"fee"`
	UndoDepth        int    `json:"undo_depth"`
}

// ListUsers handles GET /users.
func (h *MarketHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{"users": h.ex.GetUserNames()})
}

// GetUser handles GET /users/{name}.
func (h *MarketHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	u, err := h.ex.GetUser(name)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	couponValue, netAsset, err := h.ex.GetUserValuation(name)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	tradeLog := u.TradeLog
	if tradeLog == nil {
		tradeLog = []string{}
	}
	WriteJSON(w, http.StatusOK, userResponse{
		Name:            u.Name,
		Holdings:        u.Holdings,
		TradeLog:        tradeLog,
		TotalSpent:      u.TotalSpent.String(),
		StoredValue:     u.StoredValue.String(),
		Coupons:         u.Coupons,
		CouponsRedeemed: u.CouponsRedeemed,
		CouponValue:     couponValue.String(),
		NetAsset:        netAsset.String(),
	})
}

// ListDrinks handles GET /drinks.
func (h *MarketHandler) ListDrinks(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string][]string{"drinks": h.ex.GetDrinkNames()})
}

// GetPrice handles GET /drinks/{name}/price.
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	price, err := h.ex.GetPrice(name)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, priceResponse{Drink: name, Price: price.String()})
}

// GetHistory handles GET /drinks/{name}/history.
func (h *MarketHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	history, err := h.ex.GetPriceHistory(name)
	if err != nil {
		mapDomainError(w, err)
		return
	}

	prices := make([]string, len(history))
	for i, p := range history {
		prices[i] = p.String()
	}
	WriteJSON(w, http.StatusOK, historyResponse{Drink: name, History: prices})
}

// GetTrades handles GET /drinks/{name}/trades. A drink with no trades yields
// an empty list, not an error.
func (h *MarketHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	recs := h.ex.GetTradeLog(name)
	rows := make([]tradeRowResponse, len(recs))
	for i, rec := range recs {
		rows[i] = tradeRowResponse{
			Time:   rec.Time,
			Price:  rec.Price.String(),
			NetQty: rec.NetQty,
		}
	}
	WriteJSON(w, http.StatusOK, tradesResponse{Drink: name, Trades: rows})
}

// AllPrices handles GET /prices.
func (h *MarketHandler) AllPrices(w http.ResponseWriter, r *http.Request) {
	prices := h.ex.GetAllDrinkPrices()
	out := make(map[string]string, len(prices))
	for name, p := range prices {
		out[name] = p.String()
	}
	WriteJSON(w, http.StatusOK, map[string]any{"prices": out})
}

// Stats handles GET /stats.
func (h *MarketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, statsResponse{
		CurrentTime:      h.ex.GetCurrentTime(),
		NetRevenue:       h.ex.GetNetRevenue().String(),
		TotalRecharge:    h.ex.GetTotalRecharge().String(),
		TotalStoredValue: h.ex.GetTotalStoredValue().String(),
		TotalCouponValue: h.ex.GetTotalCouponValue().String(),
		TotalCouponCount: h.ex.GetTotalCouponCount(),
		Fee:              h.ex.GetFee().String(),
		UndoDepth:        h.ex.UndoDepth(),
	})
}
