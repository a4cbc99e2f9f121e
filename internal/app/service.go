package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lottohub-kr/lottosync/internal/api"
	"github.com/lottohub-kr/lottosync/internal/config"
	"github.com/lottohub-kr/lottosync/internal/job"
	"github.com/lottohub-kr/lottosync/internal/logger"
	"github.com/lottohub-kr/lottosync/internal/notify"
	"github.com/lottohub-kr/lottosync/internal/rawcache"
	"github.com/lottohub-kr/lottosync/internal/store"
	"github.com/lottohub-kr/lottosync/internal/syncer"
	"github.com/lottohub-kr/lottosync/pkg/httpclient"
	"github.com/lottohub-kr/lottosync/pkg/upstream"
)

// Service is the sync daemon runtime. It wires the upstream client through
// the orchestrator and coordinator, exposes the HTTP control surface, and
// runs the periodic catch-up loop.
type Service struct {
	cfg    *config.Config
	log    logger.Logger
	store  store.Store
	cache  rawcache.Cache
	fanout *notify.Fanout
	coord  *job.Coordinator
	engine *gin.Engine
}

// NewService builds the daemon runtime from config.
func NewService(ctx context.Context, cfg *config.Config, log logger.Logger) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	st, err := store.NewStore(ctx, cfg.StoreType, storeDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	log.InfoObj("store initialized", "store_config", map[string]any{
		"type": cfg.StoreType,
	})

	cache, err := rawcache.NewCache(cfg.RawCacheType, cfg.RawCachePath, rawcache.Options{
		PageTTL:         cfg.RawCacheTTL,
		CleanupInterval: cfg.RawCacheCleanup,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("init raw cache: %w", err)
	}

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		cache.Close()
		st.Close()
		return nil, err
	}

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

	orchestrator := syncer.New(st, fetcher, syncer.Options{
		Notifier: notify.NewSyncNotifier(fanout, cfg.AppName, log),
		Logger:   log,
	})
	coord := job.NewCoordinator(orchestrator, log)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	api.NewHandler(coord, st, log).Register(engine)

	return &Service{
		cfg:    cfg,
		log:    log,
		store:  st,
		cache:  cache,
		fanout: fanout,
		coord:  coord,
		engine: engine,
	}, nil
}

func storeDSN(cfg *config.Config) string {
	if cfg.StoreType == "postgres" {
		return cfg.PostgresDSN
	}
	return cfg.SQLitePath
}

// buildFanout assembles the configured event sinks. No publishers file means
// no outbound events, which is a valid deployment.
func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*notify.Fanout, error) {
	if cfg.PublishersFile == "" {
		return notify.NewFanout(nil), nil
	}

	reg, err := notify.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := notify.BuildAll(ctx, notify.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, pubCfg := range enabled {
		summaries = append(summaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return notify.NewFanout(pubs), nil
}

// Coordinator exposes the job control surface.
func (s *Service) Coordinator() *job.Coordinator { return s.coord }

// Run serves the HTTP API and the auto-sync loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s == nil || s.engine == nil {
		return fmt.Errorf("service is not initialized")
	}
	defer s.closeResources()

	server := &http.Server{
		Addr:    s.cfg.ListenAddr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoObj("http server listening", "listen_addr", s.cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	go s.autoSyncLoop(ctx)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.log.InfoObj("service stopped", "app", s.cfg.AppName)
	return nil
}

// autoSyncLoop starts a catch-up job on a fixed cadence. A busy coordinator
// just means a manual sync is in flight; the next tick tries again.
func (s *Service) autoSyncLoop(ctx context.Context) {
	if s.cfg.AutoSyncInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.cfg.AutoSyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			id, err := s.coord.StartToLatest(syncer.ScopeBoth)
			switch {
			case errors.Is(err, job.ErrSyncRunning):
				s.log.DebugObj("auto sync deferred, job active", "progress", s.coord.Progress())
			case err != nil:
				s.log.ErrorObj("auto sync start failed", "error", err.Error())
			default:
				s.log.InfoObj("auto sync started", "job_id", id)
			}
		}
	}
}

func (s *Service) closeResources() {
	if s.cache != nil {
		if err := s.cache.Close(); err != nil {
			s.log.WarnObj("raw cache close failed", "error", err.Error())
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.log.WarnObj("store close failed", "error", err.Error())
		}
	}
}
