// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/scorebot/internal/adapters/repository"
	"github.com/okian/scorebot/internal/adapters/telegram"
	service "github.com/okian/scorebot/internal/app"
)

// UpdateHandler applies one Telegram update.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, u telegram.Update) (service.Outcome, error)
}

// ScoreReader exposes a chat's current totals.
type ScoreReader interface {
	Scores(ctx context.Context, chatID int64) repository.Record
}

// Backend bundles everything the handlers need from the service layer.
type Backend interface {
	UpdateHandler
	ScoreReader
	StatsProvider
}

// WebhookManager registers and removes the bot's webhook.
type WebhookManager interface {
	SetWebhook(ctx context.Context, url string) (json.RawMessage, error)
	DeleteWebhook(ctx context.Context) (json.RawMessage, error)
}

// Config carries the settings the handlers need.
type Config struct {
	AppName           string
	BotToken          string
	PublicURL         string
	RenderExternalURL string
}

// Server wires HTTP routes for the bot.
type Server struct {
	webhookHandler *WebhookHandler
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoresHandler  *ScoresHandler
	adminHandler   *AdminHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(cfg Config, backend Backend, hooks WebhookManager) *Server {
	return &Server{
		webhookHandler: NewWebhookHandler(cfg.BotToken, backend),
		healthHandler:  NewHealthHandler(cfg.AppName),
		statsHandler:   NewStatsHandler(backend),
		scoresHandler:  NewScoresHandler(backend),
		adminHandler:   NewAdminHandler(cfg, hooks),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.Handle("POST "+WebhookPrefix+"{token}", Instrument("webhook", s.webhookHandler.HandleWebhook))
	mux.Handle("GET /healthz", Instrument("healthz", s.healthHandler.HandleHealth))
	mux.Handle("GET /metrics", Instrument("metrics", s.healthHandler.HandleMetrics))
	mux.Handle("GET /stats", Instrument("stats", s.statsHandler.HandleStats))
	mux.Handle("GET /scores/{chat_id}", Instrument("scores", s.scoresHandler.HandleGetScores))
	mux.Handle("GET /set_webhook", Instrument("set_webhook", s.adminHandler.HandleSetWebhook))
	mux.Handle("GET /delete_webhook", Instrument("delete_webhook", s.adminHandler.HandleDeleteWebhook))
}

type ackResponse struct {
	Status string `json:"status"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
