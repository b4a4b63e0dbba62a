package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/devhid/stackoverflow-clone-sub000/internal/config"
	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway"
	"github.com/devhid/stackoverflow-clone-sub000/internal/gateway/cache"
	"github.com/devhid/stackoverflow-clone-sub000/internal/logging"
	"github.com/devhid/stackoverflow-clone-sub000/internal/metrics"
	"github.com/devhid/stackoverflow-clone-sub000/internal/rpc"
	"github.com/devhid/stackoverflow-clone-sub000/internal/server"
	"github.com/devhid/stackoverflow-clone-sub000/internal/session"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "SOGATE", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	cacheLogger := logger.With(slog.String("agent", "cache_factory"))
	objectCache := buildObjectCache(cacheLogger, cfg.Server.Cache)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := objectCache.Close(shutdownCtx); err != nil {
			logger.Error("cache shutdown failed", slog.Any("error", err))
		}
	}()

	promRegistry := prometheus.NewRegistry()
	metricsRecorder := metrics.NewRecorder(promRegistry)

	transport := rpc.NewHTTPTransport(cfg.Services, nil, logger.With(slog.String("agent", "rpc")))

	var servicesWatcher *config.ServicesWatcher
	if cfg.Server.RPC.ServicesFile != "" {
		watcher, err := config.WatchServices(ctx, cfg.Server.RPC.ServicesFile, func(routes map[string]string) {
			merged := make(map[string]string, len(cfg.Services)+len(routes))
			for svc, base := range cfg.Services {
				merged[svc] = base
			}
			for svc, base := range routes {
				merged[svc] = base
			}
			transport.UpdateRoutes(merged)
			logger.Info("service routes reloaded", slog.Int("count", len(merged)))
		}, func(err error) {
			logger.Error("services watcher error", slog.Any("error", err))
		})
		if err != nil {
			logger.Error("services watcher setup failed", slog.Any("error", err))
		} else {
			servicesWatcher = watcher
			defer servicesWatcher.Stop()
		}
	}

	sessions := session.NewManager(objectCache, cfg.Server.Session.Cookie, cfg.SessionTTL(),
		logger.With(slog.String("agent", "session")))

	gw := gateway.New(gateway.Config{
		Cache:      objectCache,
		Transport:  transport,
		Sessions:   sessions,
		Logger:     logger.With(slog.String("agent", "dispatch")),
		Metrics:    metricsRecorder,
		TTL:        cfg.CacheTTL(),
		RPCTimeout: cfg.RPCTimeout(),
	})

	router := server.NewRouter(gw, metricsRecorder.Handler())

	srv, err := server.New(cfg, logger, router)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

func buildObjectCache(logger *slog.Logger, cfg config.ServerCacheConfig) cache.ObjectCache {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		if logger != nil {
			logger.Info("using memory object cache", slog.Duration("ttl", ttl))
		}
		return cache.NewMemory(ttl)
	case "redis":
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: cache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		}, ttl)
		if err != nil {
			if logger != nil {
				logger.Error("redis cache initialization failed", slog.Any("error", err))
				logger.Info("falling back to memory cache")
			}
			return cache.NewMemory(ttl)
		}
		if logger != nil {
			logger.Info("using redis object cache", slog.String("address", cfg.Redis.Address))
		}
		return redisCache
	default:
		if logger != nil {
			logger.Warn("unknown cache backend, using memory", slog.String("backend", cfg.Backend))
		}
		return cache.NewMemory(ttl)
	}
}
