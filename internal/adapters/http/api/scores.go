package api

import (
	"fmt"
	"net/http"
	"strconv"
)

// ScoresHandler serves a chat's current totals.
type ScoresHandler struct {
	scores ScoreReader
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(scores ScoreReader) *ScoresHandler {
	return &ScoresHandler{scores: scores}
}

type scoresResponse struct {
	ChatID int64          `json:"chat_id"`
	Scores map[string]int `json:"scores"`
}

// HandleGetScores handles GET /scores/{chat_id}. Unknown chats read as all
// zeros, the same as /score in the chat itself.
func (h *ScoresHandler) HandleGetScores(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_scores"
	chatID, err := strconv.ParseInt(r.PathValue("chat_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: chat_id must be an integer", op, ErrBadRequest))
		return
	}
	writeJSON(w, http.StatusOK, scoresResponse{ChatID: chatID, Scores: h.scores.Scores(r.Context(), chatID)})
}
