package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ledger/internal/config"
	"ledger/internal/db"
	"ledger/internal/handlers"
	"ledger/internal/invalidation"
	"ledger/internal/logger"
	"ledger/internal/services"
	"ledger/internal/store"
	"ledger/internal/websocket"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel).With().Str("app_env", cfg.AppEnv).Logger()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect database")
	}
	defer database.Close()

	hub := websocket.NewHub()
	invalidators := invalidation.Multi{hub}
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("invalid redis url")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		invalidators = append(invalidators, invalidation.NewRedisInvalidator(client, log))
	}

	entries := store.NewEntryStore(database)
	anticipationStore := store.NewAnticipationStore(database)
	invoices := store.NewInvoiceStore(database)
	directory := store.NewDirectoryStore(database)
	txRunner := db.NewTxRunner(database)

	anticipations := services.NewAnticipationService(txRunner, entries, anticipationStore, directory, invalidators, log, cfg.Currency)
	settlement := services.NewSettlementService(txRunner, entries, invoices, directory, invalidators, log, cfg.PaymentCategoryName)
	transfers := services.NewTransferService(txRunner, entries, directory, invalidators, log, cfg.TransferCategoryName)

	handler := handlers.New(cfg, log, anticipations, settlement, transfers, hub)
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("ledger API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
