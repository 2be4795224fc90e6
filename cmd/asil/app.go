package main

import (
	"context"
	"fmt"
	"os"

	"github.com/suduli/AI-ASIL-Analyser/internal/catalog"
	"github.com/suduli/AI-ASIL-Analyser/internal/core"
	"github.com/suduli/AI-ASIL-Analyser/internal/llm"
	"github.com/suduli/AI-ASIL-Analyser/internal/repository"
)

// app bundles everything a command needs, built from the environment.
type app struct {
	config   *core.Config
	logger   core.Logger
	catalog  *catalog.Catalog
	analyzer *core.Analyzer
	client   *llm.Client

	closers []func() error
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := core.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	a := &app{config: cfg, logger: core.InstallDefault(cfg.LogLevel)}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.catalog, err = catalog.Open(ctx, store)
	if err != nil {
		a.close()
		return nil, err
	}

	var executor core.TaskExecutor
	if cfg.HasAPIKey() {
		a.client, err = llm.NewClient(cfg.LLMConfig())
		if err != nil {
			a.close()
			return nil, fmt.Errorf("create llm client: %w", err)
		}
		var gen llm.TextGenerator = a.client
		if cfg.UseGenkit {
			gen = llm.NewGenkitGenerator(ctx, a.client)
		}
		executor = core.NewRealTaskExecutor(gen)
		a.logger.Debug("generator configured", "provider", a.client.Provider(), "model", a.client.Model(), "genkit", cfg.UseGenkit)
	} else {
		a.logger.Debug("no API key configured, candidate ratings use the heuristic")
	}

	a.analyzer = core.NewAnalyzer(a.catalog, executor,
		core.WithTimeout(cfg.AnalysisTimeout),
		core.WithAutoLearn(cfg.AutoLearn),
		core.WithLogger(a.logger),
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (catalog.Store, error) {
	if a.config.CatalogDSN != "" {
		store, err := repository.OpenSQL(ctx, a.config.CatalogDSN)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	}
	owner := fmt.Sprintf("asil-%d", os.Getpid())
	return repository.NewRepository(a.config.DataDir,
		repository.WithLock(owner),
		repository.WithBaseline(catalog.LoadSeed),
	), nil
}

func (a *app) close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
	a.closers = nil
}
