package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/judev34/parking-montpellier-app/internal/catalog"
	"github.com/judev34/parking-montpellier-app/internal/config"
	"github.com/judev34/parking-montpellier-app/internal/fetchcache"
	"github.com/judev34/parking-montpellier-app/internal/fetchcache/redisstore"
	"github.com/judev34/parking-montpellier-app/internal/httpclient"
	"github.com/judev34/parking-montpellier-app/internal/invalidation/kafkaconsumer"
	"github.com/judev34/parking-montpellier-app/internal/logger"
	"github.com/judev34/parking-montpellier-app/internal/observability"
	"github.com/judev34/parking-montpellier-app/internal/opendata"
	"github.com/judev34/parking-montpellier-app/internal/prefs"
	"github.com/judev34/parking-montpellier-app/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	addrFlag := flag.String("addr", "", "listen address override")
	flag.Parse()

	cfg := config.FromEnv()
	if *addrFlag != "" {
		cfg.Addr = strings.TrimSpace(*addrFlag)
	}

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		Component: "parkingd",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting parkingd",
		"addr", cfg.Addr,
		"version", Version,
		"opendata", cfg.OpenDataURL,
		"cache_backend", cfg.CacheBackend,
		"cache_ttl", cfg.CacheTTL)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store fetchcache.Store
	switch cfg.CacheBackend {
	case "redis":
		rc, err := redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rc.Close() }()
		store = rc
	default:
		store = fetchcache.NewMemStore(cfg.CacheTTL, cfg.CacheMaxEntries)
	}
	cache := fetchcache.New(store, cfg.CacheTTL)

	client, err := opendata.New(appLog, cfg.OpenDataURL, httpclient.NewOutbound(cfg.UpstreamTimeout), cache)
	if err != nil {
		appLog.Error("open-data client setup failed", "err", err)
		return 1
	}

	state := catalog.New(appLog, client, prefs.NewFileStore(cfg.PrefsPath), cfg.RefreshInterval)
	state.RefreshCatalog(ctx)
	state.StartAutoRefresh(ctx)
	defer state.StopAutoRefresh()

	if cfg.Invalidation.Enabled {
		kcfg := kafkaconsumer.FromEnv()
		kcfg.Topic = cfg.Invalidation.Topic
		kcfg.GroupID = cfg.Invalidation.GroupID
		consumer := kafkaconsumer.New(kcfg, appLog, client, asyncRefresher{state})
		go func() {
			if err := consumer.Start(ctx); err != nil {
				appLog.Error("kafka consumer exited", "err", err)
			}
		}()
	}

	if err := server.Run(ctx, cfg, appLog, state); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

// asyncRefresher decouples the consumer from refresh latency; the store
// coalesces concurrent triggers itself.
type asyncRefresher struct {
	state *catalog.Store
}

func (a asyncRefresher) RefreshCatalog(ctx context.Context) {
	go a.state.RefreshCatalog(context.WithoutCancel(ctx))
}
