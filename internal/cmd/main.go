package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/draftroom/internal/catalog"
	"github.com/mcdev12/draftroom/internal/dbconfig"
	"github.com/mcdev12/draftroom/internal/draft/ledger"
	"github.com/mcdev12/draftroom/internal/draft/room"
	"github.com/mcdev12/draftroom/internal/events"
	"github.com/mcdev12/draftroom/internal/gateway"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file loaded")
	}
	setupLogging()

	cfg, err := loadConfig(getEnv("CONFIG_PATH", "config.yaml"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cat, err := catalog.NewFromFile(cfg.Catalog.PlayersFile)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Catalog.PlayersFile).Msg("failed to load player catalog")
	}

	stores, cleanup, err := setupStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to set up storage")
	}
	defer cleanup()

	bus := events.NewBus()
	sink := setupSink(cfg, bus)

	conns := gateway.NewConnectionManager(gateway.DefaultConnectionConfig())
	go conns.Run(ctx)
	go conns.Bridge(ctx, bus)

	rooms := room.NewManager()
	defer rooms.StopAll()

	handler := gateway.NewHandler(ctx, rooms, cat, sink, clockwork.NewRealClock(), stores, conns, gateway.Defaults{
		PickBudgetSec:      cfg.Draft.PickBudgetSec,
		GraceMillis:        cfg.Draft.GraceMillis,
		UrgentThresholdSec: cfg.Draft.UrgentThresholdSec,
	})

	srv := setupServer(handler, cfg.Gateway.Port)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}

func setupLogging() {
	level, err := zerolog.ParseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if getEnv("LOG_PRETTY", "") == "true" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

// setupStorage returns the per-room ledger factory. Postgres rooms share
// one pool; memory rooms exist only for local development.
func setupStorage(ctx context.Context, cfg *Config) (gateway.StoreFactory, func(), error) {
	if cfg.Storage.Backend != "postgres" {
		log.Warn().Msg("using in-memory ledger; picks will not survive a restart")
		return func(uuid.UUID) ledger.Store { return ledger.NewMemoryStore() }, func() {}, nil
	}

	dbCfg := dbconfig.NewConfigFromEnv()

	db, err := dbconfig.Open(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}
	if err := dbconfig.Migrate(db); err != nil {
		db.Close()
		return nil, nil, err
	}
	db.Close()

	pool, err := dbconfig.NewPool(ctx, dbCfg)
	if err != nil {
		return nil, nil, err
	}

	factory := func(roomID uuid.UUID) ledger.Store {
		return ledger.NewPostgresStore(pool, roomID)
	}
	return factory, pool.Close, nil
}

func setupSink(cfg *Config, bus *events.Bus) events.Sink {
	if !cfg.NATS.Enabled {
		return bus
	}

	jsCfg := events.DefaultJetStreamConfig()
	if cfg.NATS.URL != "" {
		jsCfg.URL = cfg.NATS.URL
	}
	if cfg.NATS.StreamName != "" {
		jsCfg.StreamName = cfg.NATS.StreamName
	}

	js, err := events.NewJetStreamSink(jsCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to NATS")
	}
	return events.Tee{bus, js}
}
