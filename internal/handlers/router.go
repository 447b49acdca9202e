package handlers

import (
	"net/http"
	"strings"

	"ledger/internal/config"
	"ledger/internal/middleware"
	"ledger/internal/websocket"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
)

type Handler struct {
	cfg           config.Config
	log           zerolog.Logger
	anticipations AnticipationService
	settlement    SettlementService
	transfers     TransferService
	hub           *websocket.Hub
}

func New(cfg config.Config, log zerolog.Logger, anticipations AnticipationService, settlement SettlementService, transfers TransferService, hub *websocket.Hub) *Handler {
	return &Handler{
		cfg:           cfg,
		log:           log,
		anticipations: anticipations,
		settlement:    settlement,
		transfers:     transfers,
		hub:           hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(middleware.RequestLogger(h.log))
	router.Use(middleware.Recovery(h.log))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   splitOrigins(h.cfg.AllowedOrigins),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))
		r.Route("/series/{seriesID}", func(r chi.Router) {
			r.Get("/installments/eligible", h.ListEligibleInstallments)
			r.Get("/anticipations", h.ListAnticipations)
		})
		r.Post("/anticipations", h.CreateAnticipation)
		r.Delete("/anticipations/{anticipationID}", h.CancelAnticipation)
		r.Route("/cards/{cardID}/invoices/{period}", func(r chi.Router) {
			r.Get("/", h.GetInvoice)
			r.Put("/status", h.SetInvoiceStatus)
			r.Put("/payment-date", h.SetInvoicePaymentDate)
		})
		r.Post("/transfers", h.Transfer)
	})
	router.Get("/ws/ledger", h.WSLedger)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}

func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}
