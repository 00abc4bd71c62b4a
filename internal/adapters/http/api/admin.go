package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/samber/lo"
)

// AdminHandler manages the Telegram webhook registration.
type AdminHandler struct {
	cfg   Config
	hooks WebhookManager
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(cfg Config, hooks WebhookManager) *AdminHandler {
	return &AdminHandler{cfg: cfg, hooks: hooks}
}

type setWebhookResponse struct {
	SetWebhookTo     string          `json:"set_webhook_to"`
	TelegramResponse json.RawMessage `json:"telegram_response"`
}

type deleteWebhookResponse struct {
	Deleted          bool            `json:"deleted"`
	TelegramResponse json.RawMessage `json:"telegram_response"`
}

// HandleSetWebhook handles GET /set_webhook. The base URL is taken from the
// url query parameter, then the configured public URLs, then the request's
// forwarded headers.
func (h *AdminHandler) HandleSetWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_webhook"
	base := h.baseURL(r)
	if base == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w", op, ErrNoBaseURL))
		return
	}

	target := WebhookURL(base, h.cfg.BotToken)
	resp, err := h.hooks.SetWebhook(r.Context(), target)
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream", fmt.Errorf("%s: %w: %w", op, ErrUpstream, err))
		return
	}
	writeJSON(w, http.StatusOK, setWebhookResponse{SetWebhookTo: target, TelegramResponse: resp})
}

// HandleDeleteWebhook handles GET /delete_webhook.
func (h *AdminHandler) HandleDeleteWebhook(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_webhook"
	resp, err := h.hooks.DeleteWebhook(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, "upstream", fmt.Errorf("%s: %w: %w", op, ErrUpstream, err))
		return
	}
	writeJSON(w, http.StatusOK, deleteWebhookResponse{Deleted: true, TelegramResponse: resp})
}

func (h *AdminHandler) baseURL(r *http.Request) string {
	if base := lo.FirstOrEmpty(lo.Compact([]string{
		strings.TrimSpace(r.URL.Query().Get("url")),
		strings.TrimSpace(h.cfg.PublicURL),
		strings.TrimSpace(h.cfg.RenderExternalURL),
	})); base != "" {
		return base
	}

	host := lo.CoalesceOrEmpty(r.Header.Get("X-Forwarded-Host"), r.Host)
	if host == "" {
		return ""
	}
	scheme := lo.CoalesceOrEmpty(r.Header.Get("X-Forwarded-Proto"), lo.Ternary(r.TLS != nil, "https", "http"))
	return scheme + "://" + host
}

// WebhookURL joins a public base URL and the token-bearing webhook path.
func WebhookURL(base, token string) string {
	return strings.TrimRight(base, "/") + WebhookPrefix + token
}
