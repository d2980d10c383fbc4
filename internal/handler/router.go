package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lcarva/drinkex/internal/service"
)

// NewRouter creates a chi router with all routes registered, request logging,
// and Content-Type validation middleware.
func NewRouter(svc *service.ExchangeService, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(requestLogging(logger))
	r.Use(contentTypeJSON)

	tradeH := NewTradeHandler(svc)
	marketH := NewMarketHandler(svc.Exchange())

	// Health check.
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	// Time control.
	r.Post("/time/advance", tradeH.AdvanceTime)
	r.Post("/time/rewind", tradeH.RewindTime)

	// Trades.
	r.Post("/trades/buy", tradeH.Buy)
	r.Post("/trades/sell", tradeH.Sell)
	r.Post("/trades/consume", tradeH.Consume)

	// Undo.
	r.Post("/undo", tradeH.Undo)

	// Users.
	r.Get("/users", marketH.ListUsers)
	r.Get("/users/{name}", marketH.GetUser)

	// Drinks and prices.
	r.Get("/drinks", marketH.ListDrinks)
	r.Get("/drinks/{name}/price", marketH.GetPrice)
	r.Get("/drinks/{name}/history", marketH.GetHistory)
	r.Get("/drinks/{name}/trades", marketH.GetTrades)
	r.Get("/prices", marketH.AllPrices)

	// Aggregates.
	r.Get("/stats", marketH.Stats)

	return r
}

// requestLogging returns middleware that logs each request's method, path,
// status code, and duration using slog.
func requestLogging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// contentTypeJSON is middleware that validates Content-Type for POST, PUT, and
// PATCH requests. If the Content-Type header doesn't start with
// "application/json", it returns 400 Bad Request before the handler runs.
// POST /undo takes no body and is exempt.
func contentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			if r.URL.Path != "/undo" {
				ct := r.Header.Get("Content-Type")
				if ct == "" || !strings.HasPrefix(ct, "application/json") {
					WriteError(w, http.StatusBadRequest, "invalid_request",
						"Content-Type must be application/json")
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
