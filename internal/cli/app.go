package cli

import (
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/lazypower/mnemo/internal/config"
	"github.com/lazypower/mnemo/internal/embed"
	"github.com/lazypower/mnemo/internal/engine"
	"github.com/lazypower/mnemo/internal/logging"
	"github.com/lazypower/mnemo/internal/store"
	"github.com/lazypower/mnemo/internal/tools"
)

// app is everything a command needs, built from configuration.
type app struct {
	cfg    config.Config
	log    *log.Logger
	db     *store.DB
	engine *engine.Engine
	tools  *tools.Toolbox
}

func newApp() (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, fmt.Errorf("resolve db path: %w", err)
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	emb, err := embed.NewCachedEmbedder(embed.NewHashEmbedder(cfg.Embedding.Dimensions), cfg.Embedding.CacheSize)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	eng := engine.New(db, emb, logger)
	eng.Opts.SearchLimit = cfg.Search.Limit
	eng.Opts.SearchThreshold = cfg.Search.Threshold
	eng.Opts.GraphDepth = cfg.Graph.Depth
	eng.Opts.MaxGraphDepth = cfg.Graph.MaxDepth

	tb, err := tools.New(eng, tools.NewSessions(cfg.Session.Project), logger)
	if err != nil {
		eng.Close()
		return nil, fmt.Errorf("register tools: %w", err)
	}

	logger.Debug("opened store", "db", dbPath, "model", emb.Model(), "dimensions", emb.Dimensions())
	return &app{cfg: cfg, log: logger, db: db, engine: eng, tools: tb}, nil
}

func (a *app) Close() error {
	return a.engine.Close()
}
