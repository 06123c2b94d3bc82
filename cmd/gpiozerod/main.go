package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"github.com/coreman2200/funtimes-gpiozero/internal/config"
	"github.com/coreman2200/funtimes-gpiozero/internal/hub"
	"github.com/coreman2200/funtimes-gpiozero/internal/server"
	"github.com/coreman2200/funtimes-gpiozero/internal/store"
	"github.com/coreman2200/funtimes-gpiozero/pins"
)

func main() {
	// ---- Flags (override config.yaml when given) ----
	var (
		configPath = flag.String("config", "config.yaml", "path to config.yaml")
		addr       = flag.String("addr", "", "HTTP listen address (default from config, :8080)")
		storePath  = flag.String("store", "", "bbolt database path (default from config)")
		logLevel   = flag.String("log-level", "info", "log level: debug | info | warn | error")
		sim        = flag.Bool("sim", false, "simulate pins in memory instead of driving GPIO")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		log.Warn().Err(err).Str("level", *logLevel).Msg("unknown log level; using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	// ---- Config ----
	cfg, err := config.Load(*configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn().Str("path", *configPath).Msg("no config file; starting without devices")
		cfg = config.Default()
	case err != nil:
		log.Fatal().Err(err).Str("path", *configPath).Msg("config load failed")
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *storePath != "" {
		cfg.Store = *storePath
	}

	// ---- Pins ----
	pin := hub.PinSource(pins.ByName)
	if *sim {
		pin = pins.Simulate
		log.Info().Msg("simulating pins")
	} else if err := pins.Init(); err != nil {
		log.Fatal().Err(err).Msg("gpio host init failed; use -sim on machines without GPIO")
	}

	// ---- Store ----
	st, err := store.OpenBBolt(cfg.Store, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store).Msg("store open failed")
	}
	defer st.Close()

	// ---- Devices ----
	h, err := hub.New(cfg, pin, st)
	if err != nil {
		log.Fatal().Err(err).Msg("device setup failed")
	}
	defer func() {
		if err := h.Close(); err != nil {
			log.Warn().Err(err).Msg("device close failed")
		}
	}()

	// ---- Serve until SIGINT/SIGTERM ----
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg.Addr, h, st)
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("http server stopped")
		return
	}
	log.Info().Msg("shutting down")
}
