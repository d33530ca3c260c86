package marketdata

import (
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/pkoukos/stockfolio/internal/modules/auth"
)

// streamInterval is how often the quote stream pushes updates. Quotes come
// from the cache-backed service, so a short interval does not hammer the
// providers.
const streamInterval = 30 * time.Second

// HandleStream pushes quote updates over a websocket until the client
// disconnects. Without an explicit symbols parameter the stream covers every
// symbol in the caller's ledger.
// GET /api/market/stream?symbols=AAPL,MSFT
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	symbols := splitSymbols(r.URL.Query().Get("symbols"))
	if len(symbols) == 0 {
		user, ok := auth.UserFromContext(r.Context())
		if !ok {
			h.writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		held, err := h.held.SymbolsForUser(user.ID)
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list held symbols")
			h.writeError(w, http.StatusInternalServerError, "Failed to list held symbols")
			return
		}
		symbols = held
	}
	if len(symbols) == 0 {
		h.writeError(w, http.StatusBadRequest, "no symbols to stream")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.log.Debug().Err(err).Msg("Websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	ctx := r.Context()
	h.log.Info().Strs("symbols", symbols).Msg("Quote stream opened")

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	// First push immediately, then on the ticker
	for {
		quotes := h.service.GetMultipleQuotes(symbols)
		if err := wsjson.Write(ctx, conn, quotes); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.log.Debug().Err(err).Msg("Quote stream write failed")
			}
			return
		}

		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case <-ticker.C:
		}
	}
}
