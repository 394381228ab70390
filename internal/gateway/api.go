package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/flemzord/chatrelay/internal/conversation"
	"github.com/flemzord/chatrelay/internal/history"
	"github.com/go-chi/chi/v5"
)

// turnJSON is the wire form of a stored turn.
type turnJSON struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

// WindowResponse is the JSON response for
// GET /api/conversations/{chat_id}/window.
type WindowResponse struct {
	ChatID  int64      `json:"chat_id"`
	Persona string     `json:"persona"`
	Turns   []turnJSON `json:"turns"`
}

// handleWindow returns the turns the next message in a chat would be
// answered with.
func (g *Gateway) handleWindow() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatID, err := strconv.ParseInt(chi.URLParam(r, "chat_id"), 10, 64)
		if err != nil || chatID == 0 {
			http.Error(w, "invalid chat id", http.StatusBadRequest)
			return
		}
		if g.conversations == nil {
			http.Error(w, "pipeline not running", http.StatusServiceUnavailable)
			return
		}

		turns, err := g.conversations.Window(r.Context(), chatID)
		if err != nil {
			g.logger.Error().Err(err).Int64("chat_id", chatID).Msg("window lookup failed")
			var sf *history.StorageFailure
			if errors.As(err, &sf) {
				http.Error(w, "history unavailable", http.StatusServiceUnavailable)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, WindowResponse{
			ChatID:  chatID,
			Persona: g.conversations.Persona(),
			Turns:   toTurnJSON(turns),
		})
	}
}

func toTurnJSON(turns []conversation.Turn) []turnJSON {
	out := make([]turnJSON, len(turns))
	for i, t := range turns {
		out[i] = turnJSON{
			ID:        t.ID,
			Role:      string(t.Role),
			Content:   t.Content,
			Provider:  t.Provider,
			CreatedAt: t.CreatedAt,
		}
	}
	return out
}
