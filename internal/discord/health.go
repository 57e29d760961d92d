package discord

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type healthResponse struct {
	Status           string `json:"status"`
	Uptime           string `json:"uptime"`
	DiscordConnected bool   `json:"discord_connected"`
	Records          int    `json:"records"`
	ChainValid       bool   `json:"chain_valid"`
	BrokenAt         *int   `json:"broken_at,omitempty"`
	Timestamp        string `json:"timestamp"`
}

func (b *Bot) healthRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/health", b.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (b *Bot) handleHealth(w http.ResponseWriter, _ *http.Request) {
	report := b.svc.Ledger().Verify()
	connected := b.session != nil && b.session.State != nil && b.session.State.User != nil

	resp := healthResponse{
		Status:           "healthy",
		Uptime:           time.Since(b.startTime).Round(time.Second).String(),
		DiscordConnected: connected,
		Records:          b.svc.Ledger().Len(),
		ChainValid:       report.Valid,
		Timestamp:        time.Now().Format(time.RFC3339),
	}
	status := http.StatusOK
	if !report.Valid {
		resp.BrokenAt = &report.FailedIndex
	}
	if !connected || !report.Valid {
		resp.Status = "unhealthy"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
