package app

import (
	"context"
	"fmt"
	"time"

	"mask-calibrator/internal/config"
	"mask-calibrator/internal/inference"
	"mask-calibrator/internal/ledger"
	"mask-calibrator/internal/logger"
	"mask-calibrator/internal/mask"
	"mask-calibrator/internal/models"
	"mask-calibrator/internal/pipeline"
	"mask-calibrator/internal/session"
	"mask-calibrator/internal/shutdown"
	"mask-calibrator/internal/threshold"
	"mask-calibrator/internal/timing"
)

const (
	AppName    = "Mask Calibrator"
	AppID      = "com.imageprocessing.maskcalibrator"
	AppVersion = "1.0.0"

	cachePingTimeout = 2 * time.Second
)

type Application struct {
	cfg      *config.Config
	logger   logger.Logger
	shutdown *shutdown.Manager
	surface  Surface
	runner   *session.Runner
}

// NewApplication loads the model and wires the review run. A model that cannot be
// loaded fails here, before any image is read.
func NewApplication(cfg *config.Config, log logger.Logger) (*Application, error) {
	log.Info("Application", "starting", map[string]interface{}{
		"version": AppVersion,
		"surface": cfg.Review.Surface,
		"input":   cfg.InputDir,
		"output":  cfg.OutputDir,
	})

	sm := shutdown.NewManager(log)

	log.Info("Application", "Loading model...", map[string]interface{}{"path": cfg.Model.Path})
	tfl, err := inference.NewTFLite(cfg.Model.Path, inference.Options{
		Threads: cfg.Model.Threads,
		EdgeTPU: cfg.Model.EdgeTPU,
	}, log)
	if err != nil {
		return nil, err
	}
	sm.Register("engine", tfl)
	log.Info("Application", "Model loaded.", nil)

	var engine inference.Engine = tfl
	if cfg.Cache.RedisAddr != "" {
		engine = withCache(tfl, cfg, sm, log)
	}

	ctrl, err := threshold.NewController(models.Threshold(cfg.Review.DefaultThreshold), log)
	if err != nil {
		sm.Shutdown()
		return nil, err
	}

	surface, err := newSurface(cfg, ctrl.ControlUnits(), log)
	if err != nil {
		sm.Shutdown()
		return nil, err
	}

	sc := &session.Context{
		Controller:   ctrl,
		Surface:      surface,
		Preprocessor: pipeline.NewPreprocessor(),
		Engine:       engine,
		Deriver:      mask.NewDeriver(),
		Writer:       pipeline.NewSaver(log),
		Logger:       log,
		Timings:      timing.NewTracker(),
	}
	runner := session.NewRunner(sc, pipeline.NewLoader(log), cfg.InputDir, cfg.OutputDir)

	if cfg.Ledger.Path != "" {
		store, err := ledger.Open(cfg.Ledger.Path)
		if err != nil {
			sm.Shutdown()
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		sm.Register("ledger", store)
		runner.WithRecorder(ledgerRecorder{store: store})
		log.Info("Application", "review ledger enabled", map[string]interface{}{"path": cfg.Ledger.Path})
	}

	return &Application{
		cfg:      cfg,
		logger:   log,
		shutdown: sm,
		surface:  surface,
		runner:   runner,
	}, nil
}

// withCache wraps the engine with the redis cache when the server answers. The cache
// is advisory: an unreachable server leaves the engine uncached.
func withCache(engine inference.Engine, cfg *config.Config, sm *shutdown.Manager, log logger.Logger) inference.Engine {
	store := inference.NewRedisStore(inference.RedisOptions{
		Addr:     cfg.Cache.RedisAddr,
		Password: cfg.Cache.RedisPassword,
		DB:       cfg.Cache.RedisDB,
		TTL:      cfg.Cache.TTL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cachePingTimeout)
	defer cancel()
	if err := store.Ping(ctx); err != nil {
		log.Warning("Application", "redis connection failed, cache disabled", map[string]interface{}{
			"addr":  cfg.Cache.RedisAddr,
			"error": err.Error(),
		})
		_ = store.Close()
		return engine
	}

	sm.Register("cache", store)
	log.Info("Application", "probability map cache enabled", map[string]interface{}{
		"addr": cfg.Cache.RedisAddr,
		"ttl":  cfg.Cache.TTL.String(),
	})
	return inference.NewCached(engine, store, log)
}
