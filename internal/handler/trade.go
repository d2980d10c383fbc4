package handler

import (
	"net/http"

	"github.com/lcarva/drinkex/internal/service"
)

// TradeHandler handles mutating commands: time control, trades, and undo.
type TradeHandler struct {
	svc *service.ExchangeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(svc *service.ExchangeService) *TradeHandler {
	return &TradeHandler{svc: svc}
}

// timeRequest is the JSON body for POST /time/advance and /time/rewind.
type timeRequest struct {
	Minutes int64 `json:"minutes"`
}

// timeResponse reports the simulated clock after a time command.
type timeResponse struct {
	CurrentTime int64 `json:"current_time"`
}

// tradeRequest is the JSON body for POST /trades/buy and /trades/sell.
// Qty is ignored for /trades/consume.
type tradeRequest struct {
	User  string `json:"user"`
	Drink string `json:"drink"`
	Qty   int64  `json:"qty,omitempty"`
}

// tradeResponse reports what a trade command did. Prices are decimal
// strings.
type tradeResponse struct {
	Executed    bool   `json:"executed"`
	UnitPrice   string `json:"unit_price"`
	MarketPrice string `json:"market_price"`
	Recharged   string `json:"recharged"`
}

// undoResponse reports whether an undo actually happened.
type undoResponse struct {
	Undone bool `json:"undone"`
}

// AdvanceTime handles POST /time/advance.
func (h *TradeHandler) AdvanceTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	now, err := h.svc.AdvanceTime(req.Minutes)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, timeResponse{CurrentTime: now})
}

// RewindTime handles POST /time/rewind.
func (h *TradeHandler) RewindTime(w http.ResponseWriter, r *http.Request) {
	var req timeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	now, err := h.svc.RewindTime(req.Minutes)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, timeResponse{CurrentTime: now})
}

// Buy handles POST /trades/buy.
func (h *TradeHandler) Buy(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	out, err := h.svc.Buy(req.User, req.Drink, req.Qty)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTradeResponse(out))
}

// Sell handles POST /trades/sell.
func (h *TradeHandler) Sell(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	out, err := h.svc.Sell(req.User, req.Drink, req.Qty)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTradeResponse(out))
}

// Consume handles POST /trades/consume.
func (h *TradeHandler) Consume(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := ParseJSON(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	out, err := h.svc.Consume(req.User, req.Drink)
	if err != nil {
		mapDomainError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, toTradeResponse(out))
}

// Undo handles POST /undo.
func (h *TradeHandler) Undo(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, undoResponse{Undone: h.svc.UndoLast()})
}

func toTradeResponse(out *service.TradeOutcome) tradeResponse {
	return tradeResponse{
		Executed:    out.Executed,
		UnitPrice:   out.UnitPrice.String(),
		MarketPrice: out.MarketPrice.String(),
		Recharged:   out.Recharged.String(),
	}
}
