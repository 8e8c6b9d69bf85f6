package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/saty-git24/live-polling-system/internal/config"
	"github.com/saty-git24/live-polling-system/internal/handlers"
	"github.com/saty-git24/live-polling-system/internal/models"
	"github.com/saty-git24/live-polling-system/internal/services"
	"github.com/saty-git24/live-polling-system/internal/storage"
)

func main() {
	log, err := zap.NewProduction()
	if err != nil {
		os.Exit(1)
	}
	defer log.Sync()

	cfg := config.Load()

	// The durable store is optional: with no DATABASE_URL, or with the
	// database unreachable, the engine runs on the in-memory fallback.
	var durable *storage.PostgresStore
	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			log.Fatal("invalid database configuration", zap.Error(err))
		}
		defer db.Close()

		if err := storage.CreateSchema(db); err != nil {
			log.Warn("schema bootstrap failed, continuing without durable store", zap.Error(err))
		}
		durable = storage.NewPostgresStore(db)
	} else {
		log.Warn("DATABASE_URL not set, running with in-memory storage only")
	}

	var store *storage.Fallback
	if durable != nil {
		store = storage.NewFallback(durable, log)
	} else {
		store = storage.NewFallback(nil, log)
	}

	metrics := services.NewMetrics()
	hub := services.NewHub(metrics, log)
	go hub.Run()

	polls := services.NewPollService(store, hub, metrics, log)
	ledger := services.NewVoteLedger(store, metrics, log)
	sched := services.NewScheduler(polls, func(poll *models.Poll) {
		hub.Broadcast(models.MsgTypePollEnded, poll)
	}, log)

	// Rebuild the close schedule for any poll that survived a restart.
	if err := sched.Restore(context.Background()); err != nil {
		log.Error("failed to restore poll timers", zap.Error(err))
	}

	pollHandler := handlers.NewPollHandler(polls, ledger, sched, hub, store, log)
	wsHandler := handlers.NewWSHandler(hub, polls, ledger, sched, cfg.AllowedOrigins, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(handlers.CORS(cfg.AllowedOrigins))

	r.Route("/api/polls", func(r chi.Router) {
		r.Post("/", pollHandler.CreatePoll)
		r.Get("/current", pollHandler.GetCurrentPoll)
		r.Post("/vote", pollHandler.SubmitVote)
		r.Post("/end", pollHandler.EndPoll)
		r.Get("/vote-status", pollHandler.CheckVoteStatus)
		r.Get("/history", pollHandler.GetPollHistory)
		r.Get("/debug", pollHandler.Debug)
	})
	r.Get("/ws", wsHandler.HandleWebSocket)
	r.Get("/metrics", handlers.HandleMetrics(hub))
	r.Get("/healthz", handlers.HandleHealth(hub))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctrlc
		log.Info("shutting down")
		sched.Stop()
		hub.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("listening", zap.String("port", cfg.Port))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server closed unexpectedly", zap.Error(err))
	}
}
