package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/config"
	"github.com/mcdev12/draftroom/internal/dbconfig"
	"github.com/mcdev12/draftroom/internal/engine"
	"github.com/mcdev12/draftroom/internal/eventbus"
	"github.com/mcdev12/draftroom/internal/gateway"
	"github.com/mcdev12/draftroom/internal/store"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Catalog.Path).Msg("failed to load player catalog")
	}
	log.Info().Int("players", cat.Size()).Str("path", cfg.Catalog.Path).Msg("player catalog loaded")

	st, closeStore, err := setupStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up store")
	}
	defer closeStore()

	bus, err := setupBus(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up event bus")
	}
	defer bus.Close()

	manager := engine.NewManager(cat, st, bus, clockwork.NewRealClock())
	if err := manager.RestoreRooms(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to restore rooms")
	}

	gatewayService := gateway.NewService(gateway.DefaultConfig(), manager, bus)
	go gatewayService.Start(ctx)

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodPatch,
			http.MethodDelete,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      c.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	manager.Shutdown()
	log.Info().Msg("draftroomd shutdown complete")
}

func setupStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Storage.Backend {
	case "postgres":
		dbCfg := dbconfig.NewConfigFromEnv()
		pg, err := store.NewPostgres(ctx, dbCfg.DSN())
		if err != nil {
			return nil, nil, err
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, err
		}
		log.Info().Str("database", dbCfg.Database).Msg("connected to Postgres")
		return pg, pg.Close, nil
	default:
		log.Info().Msg("using in-memory store, rooms will not survive restarts")
		return store.NewMemory(), func() {}, nil
	}
}

func setupBus(ctx context.Context, cfg *config.Config) (eventbus.Bus, error) {
	switch cfg.Events.Backend {
	case "nats":
		jsCfg := eventbus.DefaultJetStreamConfig()
		jsCfg.URL = cfg.Events.NATSURL
		jsCfg.StreamName = cfg.Events.StreamName
		jsCfg.SubjectPrefix = cfg.Events.SubjectPrefix
		bus, err := eventbus.NewJetStream(ctx, jsCfg)
		if err != nil {
			return nil, err
		}
		log.Info().Str("url", jsCfg.URL).Str("stream", jsCfg.StreamName).Msg("connected to NATS JetStream")
		return bus, nil
	default:
		return eventbus.NewInProc(), nil
	}
}
