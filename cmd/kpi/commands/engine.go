package commands

import (
	"fmt"

	"github.com/databokers/backoffice/internal/dataaccess"
	"github.com/databokers/backoffice/internal/kpi"
	"github.com/databokers/backoffice/pkg/config"
	"github.com/databokers/backoffice/pkg/database"
	"github.com/databokers/backoffice/pkg/logger"
	"github.com/databokers/backoffice/pkg/redis"
)

// deps bundles everything the subcommands wire up: one config, one
// logger, one pool, one engine.
type deps struct {
	cfg    *config.Config
	log    *logger.Logger
	db     *database.DB
	cache  *redis.Client
	repo   *kpi.Repository
	engine *kpi.Engine
}

// initEngine wires the full KPI engine from configuration.
func initEngine() (*deps, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	// 4. Connect to Redis (optional)
	cacheClient, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	// 5. Create repository and accessor
	repo := kpi.NewRepository(db.Pool)
	accessor := dataaccess.NewAccessor(db.Pool, cfg.Engine)

	// 6. Create engine components
	registry := kpi.NewRegistry()
	calculator := kpi.NewCalculator(registry, accessor, cfg.Engine, log)
	comparator := kpi.NewComparator(calculator, repo, log)
	emitter := kpi.NewEmitter(registry, repo, log)

	var historyCache *redis.Cache
	if cacheClient.Enabled() {
		historyCache = redis.NewCache(cacheClient, "kpi")
	}

	engine := kpi.NewEngine(registry, calculator, comparator, emitter, repo, historyCache, cfg.Engine, log)

	return &deps{
		cfg:    cfg,
		log:    log,
		db:     db,
		cache:  cacheClient,
		repo:   repo,
		engine: engine,
	}, nil
}

// Close releases the shared connections.
func (d *deps) Close() {
	if d.cache != nil {
		_ = d.cache.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
}
