package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lottohub-kr/lottosync/internal/config"
	"github.com/lottohub-kr/lottosync/internal/logger"
	"github.com/lottohub-kr/lottosync/internal/rawcache"
	"github.com/lottohub-kr/lottosync/internal/store"
	"github.com/lottohub-kr/lottosync/internal/syncer"
	"github.com/lottohub-kr/lottosync/pkg/httpclient"
	"github.com/lottohub-kr/lottosync/pkg/upstream"
)

// backfill runs one sync operation to completion in the foreground. Useful
// for seeding a fresh database without standing up the daemon.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "backfill failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		mode     = flag.String("mode", "missing", "operation: round | range | missing | latest")
		round    = flag.Int("round", 0, "round number for -mode round")
		start    = flag.Int("start", 0, "first round for -mode range")
		end      = flag.Int("end", 0, "last round for -mode range")
		scopeArg = flag.String("scope", "both", "sync scope: draw | shops | both")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	scope, err := syncer.ParseScope(*scopeArg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewStore(ctx, cfg.StoreType, storeDSN(cfg))
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	cache, err := rawcache.NewCache(cfg.RawCacheType, cfg.RawCachePath, rawcache.Options{
		PageTTL:         cfg.RawCacheTTL,
		CleanupInterval: cfg.RawCacheCleanup,
	})
	if err != nil {
		return fmt.Errorf("init raw cache: %w", err)
	}
	defer cache.Close()

	httpClient := httpclient.NewRestyClient(httpclient.Options{
		Timeout:      cfg.HTTPTimeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		RequestGap:   cfg.RequestDelay,
	})
	fetcher := upstream.NewClient(httpClient, upstream.Options{
		BaseURL:      cfg.UpstreamBaseURL,
		MaxShopPages: cfg.MaxShopPages,
		Cache:        cache,
	})

	orchestrator := syncer.New(st, fetcher, syncer.Options{Logger: logger.Default()})
	hooks := syncer.Hooks{
		Progress: func(current, total, completed int, status string) {
			logger.InfoObj("progress", "round", map[string]any{
				"current":   current,
				"total":     total,
				"completed": completed,
				"status":    status,
			})
		},
		Stop: func() bool { return ctx.Err() != nil },
	}

	switch *mode {
	case "round":
		if *round < 1 {
			return fmt.Errorf("-round must be positive for -mode round")
		}
		res := orchestrator.SyncRound(ctx, *round, scope)
		logger.InfoObj("round backfill finished", "result", res)
		if res.Err != nil {
			return res.Err
		}
	case "range":
		result, err := orchestrator.SyncRange(ctx, *start, *end, scope, hooks)
		if err != nil {
			return err
		}
		logger.InfoObj("range backfill finished", "result", result)
	case "missing":
		result, err := orchestrator.SyncMissing(ctx, scope, hooks)
		if err != nil {
			return err
		}
		logger.InfoObj("missing backfill finished", "result", result)
	case "latest":
		result, err := orchestrator.SyncToLatest(ctx, scope, hooks)
		if err != nil {
			return err
		}
		logger.InfoObj("latest backfill finished", "result", result)
	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}

	return nil
}

func storeDSN(cfg *config.Config) string {
	if cfg.StoreType == "postgres" {
		return cfg.PostgresDSN
	}
	return cfg.SQLitePath
}
