package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/okian/scorebot/internal/adapters/telegram"
	service "github.com/okian/scorebot/internal/app"
	"github.com/okian/scorebot/pkg/logger"
)

// WebhookPrefix is the path Telegram posts updates under, followed by the
// bot token.
const WebhookPrefix = "/webhook/"

const maxUpdateBytes = 1 << 20

// WebhookHandler accepts updates posted by Telegram.
type WebhookHandler struct {
	token    string
	updates  UpdateHandler
	validate *validator.Validate
	logger   logger.Logger
}

// NewWebhookHandler creates a handler that only answers on token's path.
func NewWebhookHandler(token string, updates UpdateHandler) *WebhookHandler {
	return &WebhookHandler{
		token:    token,
		updates:  updates,
		validate: validator.New(),
		logger:   logger.Named("webhook"),
	}
}

// HandleWebhook handles POST /webhook/{token}. Any path token other than the
// bot's own is answered with 404. Updates with nothing to do still get 200
// so Telegram does not redeliver them.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.webhook"
	if subtle.ConstantTimeCompare([]byte(r.PathValue("token")), []byte(h.token)) != 1 {
		http.NotFound(w, r)
		return
	}

	var u telegram.Update
	dec := json.NewDecoder(io.LimitReader(r.Body, maxUpdateBytes))
	if err := dec.Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(u); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}

	outcome, err := h.updates.HandleUpdate(r.Context(), u)
	if err != nil {
		// A non-2xx answer makes Telegram retry the update later.
		h.logger.Warn(r.Context(), "update not applied",
			logger.Int64("update_id", u.UpdateID),
			logger.Error(err),
		)
		if errors.Is(err, service.ErrNotStarted) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			writeError(w, http.StatusServiceUnavailable, "unavailable", fmt.Errorf("%s: %w", op, ErrUnavailable))
			return
		}
		writeError(w, http.StatusInternalServerError, "internal", fmt.Errorf("%s: %w", op, err))
		return
	}
	writeJSON(w, http.StatusOK, ackResponse{Status: string(outcome)})
}
