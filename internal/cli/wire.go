package cli

import (
	"context"
	"fmt"
	"time"

	"logbook/config"
	"logbook/internal/adapter/cache"
	"logbook/internal/adapter/llm"
	"logbook/internal/adapter/sqlstore"
	"logbook/internal/adapter/store"
	"logbook/internal/domain"
	"logbook/internal/domaincontext"
	"logbook/internal/logger"
	"logbook/internal/orchestrator"
	"logbook/internal/port"
	"logbook/internal/resilience"
	"logbook/internal/retrieval"
	"logbook/internal/stages"
)

// openStore opens the configured entry store, wrapped in the read cache when enabled.
func openStore(ctx context.Context) (port.EntryStore, error) {
	cfg := GetConfig()
	rootDir := GetRootDir()

	if err := config.EnsureDataDir(rootDir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	path := config.EntryDBPath(rootDir, cfg.Storage.Backend)

	var st port.EntryStore
	var err error
	switch cfg.Storage.Backend {
	case "", "bolt":
		st, err = store.NewBoltStore(path)
	case "sqlite":
		st, err = sqlstore.Open(ctx, path)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open entry store: %w", err)
	}

	if cfg.Retrieval.CacheSize > 0 {
		st = cache.NewCachedStore(st, cfg.Retrieval.CacheSize, cfg.Retrieval.CacheTTL)
	}
	return st, nil
}

func loadRegistry() (*domaincontext.Registry, error) {
	cfg := GetConfig()
	dir := cfg.DomainsDir(GetRootDir())
	registry, err := domaincontext.LoadRegistry(dir, cfg.Domains.Pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to load domains from %s: %w", dir, err)
	}
	logger.Debug("domain registry loaded", "dir", dir, "domains", registry.Len())
	return registry, nil
}

// buildOrchestrator wires providers, stages and retrieval over st.
func buildOrchestrator(st port.EntryStore, registry *domaincontext.Registry) (*orchestrator.Orchestrator, error) {
	cfg := GetConfig()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resilience.NewClient(cfg, llm.NewProviders(cfg),
		resilience.WithBackoffObserver(func(agent string, retry int, delay time.Duration) {
			logger.Debug("backing off", "agent", agent, "retry", retry, "delay", delay)
		}))

	composer := domaincontext.NewComposer(registry)
	engine := retrieval.NewEngine(st, retrieval.WithExpansionTiers(cfg.Retrieval.ExpansionTiers))

	opts := []orchestrator.Option{
		orchestrator.WithMaxRetries(cfg.Orchestrator.MaxRetries),
		orchestrator.WithMaxEntries(cfg.Retrieval.MaxEntries),
		orchestrator.WithProgressiveExpansion(cfg.Retrieval.ProgressiveExpansion),
	}
	if name := cfg.Orchestrator.BaseDomain; name != "" {
		base, ok := registry.Get(name)
		if !ok {
			logger.Warn("base domain is not registered, using an empty one", "domain", name)
			base = domain.DomainModule{Name: name}
		}
		opts = append(opts, orchestrator.WithBaseDomain(&base))
	}

	return orchestrator.New(orchestrator.Stages{
		Classifier:  stages.NewClassifier(client, registry),
		Planner:     stages.NewPlanner(client, time.Now),
		Analyzer:    stages.NewAnalyzer(client),
		Synthesizer: stages.NewSynthesizer(client),
		Evaluator:   stages.NewEvaluator(client),
	}, engine, composer, opts...), nil
}
