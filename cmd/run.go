package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"predictor/api"
	"predictor/config"
	"predictor/database"
	"predictor/events"
	"predictor/infrastructure"
	"predictor/repository"
	"predictor/service"

	log "github.com/sirupsen/logrus"
)

// Run initializes and starts the application
func Run(ctx context.Context) error {
	cfg := config.Get()
	cfg.ConfigureLogging()

	log.WithField("environment", cfg.Environment).Info("Starting predictor...")

	db, err := database.NewConnection(ctx, cfg.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Database connection established")

	eventBus := events.NewBus()
	uowFactory := repository.NewUnitOfWorkFactory(db, eventBus)

	predictionService := service.NewPredictionService(uowFactory, service.SystemClock)
	betService := service.NewBetService(uowFactory, service.SystemClock)
	settlementService := service.NewSettlementService(uowFactory, service.SystemClock)
	leaderboardService := service.NewLeaderboardService(uowFactory)

	if cfg.NATSServers != "" {
		natsClient := infrastructure.NewNATSClient(cfg.NATSServers)
		if err := natsClient.Connect(ctx); err != nil {
			return fmt.Errorf("failed to initialize NATS: %w", err)
		}
		defer natsClient.Close()

		if err := natsClient.EnsureStream(infrastructure.DomainEventStream, infrastructure.AllSubjects()); err != nil {
			return fmt.Errorf("failed to ensure event stream: %w", err)
		}
		infrastructure.NewNATSEventPublisher(natsClient).Attach(eventBus)
	} else {
		log.Info("NATS_SERVERS not set, event forwarding disabled")
	}

	if cfg.DiscordToken != "" {
		session, err := infrastructure.NewDiscordSession(cfg.DiscordToken)
		if err != nil {
			return fmt.Errorf("failed to initialize Discord: %w", err)
		}
		defer session.Close()

		infrastructure.NewDiscordAnnouncer(session, cfg.DiscordChannelID).Attach(eventBus)
		log.WithField("channelID", cfg.DiscordChannelID).Info("Discord announcements enabled")
	}

	if cfg.SweepEnabled {
		stopSweep := StartDeadlineSweepWorker(ctx, predictionService, cfg.SweepInterval)
		defer stopSweep()
	}

	server := api.NewServer(api.Services{
		Predictions: predictionService,
		Bets:        betService,
		Settlement:  settlementService,
		Leaderboard: leaderboardService,
	}, db, api.Options{
		CORSOrigins:        cfg.CORSOrigins,
		RateLimitPerSecond: cfg.RateLimitPerSecond,
		RateLimitBurst:     cfg.RateLimitBurst,
	})
	httpServer := server.NewHTTPServer(cfg.HTTPAddr)

	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.HTTPAddr).Info("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
	}

	log.Info("Shutting down predictor...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server did not shut down cleanly")
	}

	log.Info("Shutdown completed")
	return nil
}
