package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/dirigent-ai/dirigent/a2a"
	"github.com/dirigent-ai/dirigent/agent"
	"github.com/dirigent-ai/dirigent/config"
	"github.com/dirigent-ai/dirigent/internal/metrics"
	"github.com/dirigent-ai/dirigent/internal/server"
	"github.com/dirigent-ai/dirigent/internal/telemetry"
	"github.com/dirigent-ai/dirigent/llm"
	"github.com/dirigent-ai/dirigent/orchestrator"
	"github.com/dirigent-ai/dirigent/persistence"
)

// app owns every long-lived component of the service and tears them
// down in reverse order of construction.
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	taskStore    persistence.TaskStore
	historyStore persistence.HistoryStore
	providers    *telemetry.Providers

	apiServer     *server.Manager
	metricsServer *server.Manager

	stopCleanup chan struct{}
}

// newApp wires the full service from configuration.
func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	storeCfg := storeConfigOf(cfg.Store)
	taskStore, err := persistence.NewTaskStore(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("create task store: %w", err)
	}
	historyStore, err := persistence.NewHistoryStore(storeCfg.History)
	if err != nil {
		return nil, fmt.Errorf("create history store: %w", err)
	}

	collector := metrics.NewCollector("dirigent", nil, logger)

	provider := llm.NewOpenAIProvider(llm.OpenAIConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)

	registry := agent.NewRegistry(cfg.Server.BaseURL, logger)

	clientCfg := a2a.DefaultClientConfig()
	clientCfg.Timeout = cfg.Orchestrator.DelegationTimeout
	if cfg.Server.AuthEnabled {
		clientCfg.AuthToken = cfg.Server.AuthToken
	}
	client := a2a.NewClient(clientCfg)

	orch := orchestrator.New(provider, registry, historyStore, client, orchestrator.Config{
		Model:             cfg.Orchestrator.Model,
		DelegationTimeout: cfg.Orchestrator.DelegationTimeout,
		ExitPhrases:       cfg.Orchestrator.ExitPhrases,
		MaxHistoryTurns:   cfg.Orchestrator.MaxHistoryTurns,
	}, logger, collector)
	if err := registry.Register(orch); err != nil {
		return nil, fmt.Errorf("register orchestrator: %w", err)
	}

	for _, agentCfg := range cfg.Agents {
		sub, err := agent.NewContextAgent(agent.ContextAgentConfig{
			ID:          agentCfg.ID,
			Name:        agentCfg.Name,
			Description: agentCfg.Description,
			Version:     agentCfg.Version,
			ContextDir:  cfg.Orchestrator.ContextDir,
			Model:       agentCfg.Model,
		}, provider, logger)
		if err != nil {
			return nil, fmt.Errorf("create agent %q: %w", agentCfg.ID, err)
		}
		if err := registry.Register(sub); err != nil {
			return nil, fmt.Errorf("register agent %q: %w", agentCfg.ID, err)
		}
	}
	logger.Info("agents registered", zap.Int("count", registry.Count()))

	manager := a2a.NewTaskManager(taskStore, a2a.ManagerConfig{
		AllowTerminalCancel: cfg.Server.AllowTerminalCancel,
	}, logger, collector)

	apiHandler := a2a.NewHTTPServer(&a2a.ServerConfig{
		BaseURL:        cfg.Server.BaseURL,
		DefaultAgentID: cfg.Server.DefaultAgentID,
		RequestTimeout: cfg.Server.RequestTimeout,
		EnableAuth:     cfg.Server.AuthEnabled,
		AuthToken:      cfg.Server.AuthToken,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		Logger:         logger,
	}, manager, registry, collector)
	apiHandler.RegisterHealthCheck("task_store", taskStore.Ping)
	apiHandler.RegisterHealthCheck("history_store", historyStore.Ping)
	apiHandler.RegisterHealthCheck("llm", provider.HealthCheck)

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = fmt.Sprintf(":%d", cfg.Server.HTTPPort)
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsCfg := server.DefaultConfig()
	metricsCfg.Addr = fmt.Sprintf(":%d", cfg.Server.MetricsPort)

	return &app{
		cfg:           cfg,
		logger:        logger,
		taskStore:     taskStore,
		historyStore:  historyStore,
		providers:     providers,
		apiServer:     server.NewManager(apiHandler, serverCfg, logger),
		metricsServer: server.NewManager(metricsMux, metricsCfg, logger.With(zap.String("server", "metrics"))),
		stopCleanup:   make(chan struct{}),
	}, nil
}

// Start brings up the API and metrics servers and the retention sweep.
func (a *app) Start() error {
	if err := a.apiServer.Start(); err != nil {
		return err
	}
	if err := a.metricsServer.Start(); err != nil {
		a.apiServer.Shutdown(context.Background())
		return err
	}
	go a.cleanupLoop()
	return nil
}

// WaitForShutdown blocks until the API server stops, then tears down
// the remaining components.
func (a *app) WaitForShutdown() {
	a.apiServer.WaitForShutdown()

	close(a.stopCleanup)

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.metricsServer.Shutdown(ctx); err != nil {
		a.logger.Warn("metrics server shutdown failed", zap.Error(err))
	}
	if err := a.providers.Shutdown(ctx); err != nil {
		a.logger.Warn("telemetry shutdown failed", zap.Error(err))
	}
	if err := a.historyStore.Close(); err != nil {
		a.logger.Warn("history store close failed", zap.Error(err))
	}
	if err := a.taskStore.Close(); err != nil {
		a.logger.Warn("task store close failed", zap.Error(err))
	}
}

// cleanupLoop sweeps terminal tasks past their retention hourly.
func (a *app) cleanupLoop() {
	retention := a.cfg.Store.TaskRetention
	if retention <= 0 {
		return
	}

	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCleanup:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			removed, err := a.taskStore.Cleanup(ctx, retention)
			cancel()
			if err != nil {
				a.logger.Warn("task cleanup failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				a.logger.Info("expired tasks removed", zap.Int("count", removed))
			}
		}
	}
}

// storeConfigOf maps the loaded configuration onto the persistence
// layer's config types.
func storeConfigOf(cfg config.StoreConfig) persistence.StoreConfig {
	out := persistence.DefaultStoreConfig()
	if cfg.Type != "" {
		out.Type = persistence.StoreType(cfg.Type)
	}
	if cfg.Redis.Addr != "" {
		out.Redis.Addr = cfg.Redis.Addr
	}
	out.Redis.Password = cfg.Redis.Password
	out.Redis.DB = cfg.Redis.DB
	if cfg.Redis.PoolSize > 0 {
		out.Redis.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.KeyPrefix != "" {
		out.Redis.KeyPrefix = cfg.Redis.KeyPrefix
	}
	if cfg.History.Dialect != "" {
		out.History.Dialect = persistence.StoreType(cfg.History.Dialect)
	}
	out.History.DSN = cfg.History.DSN
	if cfg.TaskRetention > 0 {
		out.TaskRetention = cfg.TaskRetention
	}
	return out
}
