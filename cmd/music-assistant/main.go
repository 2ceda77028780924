// Command music-assistant runs the music library server: providers,
// library database, sync engine, players and the stream transport behind
// one HTTP listener.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/marcelveldt/music-assistant/internal/cache"
	"github.com/marcelveldt/music-assistant/internal/config"
	"github.com/marcelveldt/music-assistant/internal/database"
	"github.com/marcelveldt/music-assistant/internal/events"
	"github.com/marcelveldt/music-assistant/internal/logger"
	"github.com/marcelveldt/music-assistant/internal/modules/modulemanager"
	"github.com/marcelveldt/music-assistant/internal/modules/musicmodule"
	"github.com/marcelveldt/music-assistant/internal/modules/playermodule"
	"github.com/marcelveldt/music-assistant/internal/modules/streammodule"
	"github.com/marcelveldt/music-assistant/internal/modules/syncmodule"
	"github.com/marcelveldt/music-assistant/internal/providers"
	"github.com/marcelveldt/music-assistant/internal/providers/filesystem"
	"github.com/marcelveldt/music-assistant/internal/server"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "music-assistant.yaml", "path to the configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format, os.Stdout)
	log := logger.Root()
	log.Info("starting music assistant", "addr", cfg.ListenAddr(), "database", cfg.Database.Type)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bus := events.NewBus(log.Named("events"), 0)
	bus.Start(ctx)
	defer bus.Stop()

	itemCache := cache.New(log.Named("cache"), cfg.Cache.MaxSize)
	itemCache.Start()
	defer itemCache.Stop()

	registry := providers.NewRegistry(log.Named("providers"))
	defer registry.StopAll(context.Background())
	if err := registerProviders(ctx, cfg, registry, log); err != nil {
		return err
	}

	music := musicmodule.New(db, log, bus, itemCache, registry)
	players := playermodule.New(log, bus, music)
	streams := streammodule.New(log, bus, db, music, players, cfg.Server.BaseURL, streammodule.Config{
		Normalization:  cfg.Streaming.Normalization,
		TargetLoudness: cfg.Streaming.TargetLoudness,
		FallbackGain:   cfg.Streaming.FallbackGain,
	})
	syncer := syncmodule.New(log, bus, music, registry, cfg.Sync.Interval)

	modules := modulemanager.NewRegistry(log)
	modules.Register(music)
	modules.Register(players)
	modules.Register(streams)
	modules.Register(syncer)
	if err := modules.LoadAll(db); err != nil {
		return err
	}
	if err := modules.StartServices(ctx); err != nil {
		return err
	}

	srv := server.New(log, bus)
	modules.RegisterRoutes(srv.Engine())
	serveErr := srv.Start(cfg.ListenAddr())

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown incomplete", "error", err)
	}
	modules.StopServices(shutdownCtx)
	log.Info("goodbye")
	return nil
}

// registerProviders instantiates every configured provider instance.
// Unknown domains fail startup: a typo in the config should not silently
// drop a music source.
func registerProviders(ctx context.Context, cfg *config.Config, registry *providers.Registry, log hclog.Logger) error {
	for _, pc := range cfg.Providers {
		switch pc.Domain {
		case filesystem.Domain:
			prov := filesystem.New(pc.InstanceID, pc.MusicDir, log)
			if err := registry.Register(ctx, prov); err != nil {
				return fmt.Errorf("register provider %s: %w", pc.InstanceID, err)
			}
		default:
			return fmt.Errorf("unknown provider domain %q for instance %s", pc.Domain, pc.InstanceID)
		}
		if pc.RateLimit > 0 {
			registry.SetRateLimit(pc.InstanceID, pc.RateLimit, 1)
		}
	}
	return nil
}
