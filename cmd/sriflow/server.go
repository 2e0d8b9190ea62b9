package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	agentcontext "github.com/BaSui01/sriflow/agent/context"
	"github.com/BaSui01/sriflow/agent/evolution"
	"github.com/BaSui01/sriflow/agent/memory"
	"github.com/BaSui01/sriflow/agent/observability"
	"github.com/BaSui01/sriflow/agent/sri"
	"github.com/BaSui01/sriflow/api/handlers"
	"github.com/BaSui01/sriflow/config"
	"github.com/BaSui01/sriflow/internal/metrics"
	"github.com/BaSui01/sriflow/internal/server"
	"github.com/BaSui01/sriflow/llm/tokenizer"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 sriflow 的主服务器
type Server struct {
	cfg        *config.Config
	loader     *config.Loader
	configPath string
	logger     *zap.Logger

	// SRI 运行时
	holder  *config.PipelineHolder
	store   *memory.EpisodicStore
	runtime *sri.Runtime

	// 指标
	registry         *prometheus.Registry
	metricsCollector *metrics.Collector

	// Handlers
	healthHandler  *handlers.HealthHandler
	memoryHandler  *handlers.MemoryHandler
	metricsHandler *handlers.MetricsHandler
	tuningHandler  *handlers.TuningHandler
}

// NewServer 组装运行时与 handlers。configPath 非空时 pipeline 段支持热更新
func NewServer(cfg *config.Config, loader *config.Loader, configPath string, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		cfg:        cfg,
		loader:     loader,
		configPath: configPath,
		logger:     logger,
		registry:   prometheus.NewRegistry(),
	}
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metricsCollector = metrics.NewCollectorWithRegisterer(cfg.Metrics.Namespace, s.registry, logger)

	if err := s.initRuntime(); err != nil {
		return nil, fmt.Errorf("failed to init runtime: %w", err)
	}
	s.initHandlers()
	return s, nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initRuntime 构建 holder → store → collector → tuner → pipeline → runtime
func (s *Server) initRuntime() error {
	holder, err := config.NewPipelineHolder(s.cfg.Pipeline, config.WithHolderLogger(s.logger))
	if err != nil {
		return err
	}
	s.holder = holder

	counter, err := tokenizer.New(s.cfg.Pipeline.Tokenizer, s.logger)
	if err != nil {
		return err
	}

	s.store = memory.NewEpisodicStore(holder, memory.EpisodicStoreConfig{
		Observer: s.metricsCollector,
	}, s.logger)

	collector := observability.NewTokenMetricsCollector(s.cfg.Metrics, s.logger,
		observability.WithSink(s.metricsCollector))
	tuner := evolution.NewAdaptiveTuner(s.cfg.Tuner, s.logger,
		evolution.WithObserver(s.metricsCollector))
	pipeline := sri.NewPipeline(holder, s.store, agentcontext.NewTransformer(counter), s.logger,
		sri.WithRecorder(collector))
	s.runtime = sri.NewRuntime(pipeline, collector, tuner, holder, s.logger)

	holder.OnApply(s.metricsCollector.ObserveConfig)
	holder.OnApply(func(oldCfg, newCfg config.PipelineConfig) {
		s.logger.Info("Pipeline configuration changed",
			zap.Float64("emotion_threshold", newCfg.EmotionThreshold),
			zap.Int("context_window", newCfg.ContextWindow),
			zap.Float64("memory_decay", newCfg.MemoryDecay),
			zap.Int("max_memories", newCfg.MaxMemories))
		if newCfg.MaxMemories < oldCfg.MaxMemories {
			s.store.EvictIfOverCapacity()
		}
	})
	s.metricsCollector.ObserveConfig(config.PipelineConfig{}, holder.Load())
	return nil
}

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() {
	s.healthHandler = handlers.NewHealthHandler(s.logger)
	s.healthHandler.RegisterCheck(handlers.NewPipelineConfigCheck(s.holder))
	s.healthHandler.RegisterCheck(handlers.NewStoreCapacityCheck(s.store, s.holder))

	s.memoryHandler = handlers.NewMemoryHandler(s.runtime, s.logger)
	s.metricsHandler = handlers.NewMetricsHandler(s.runtime, s.logger)
	s.tuningHandler = handlers.NewTuningHandler(s.runtime, s.logger)

	s.logger.Info("Handlers initialized")
}

// =============================================================================
// 🌐 路由
// =============================================================================

// routes 注册全部 API 路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查
	mux.HandleFunc("GET /health", s.healthHandler.HandleHealth)
	mux.HandleFunc("GET /healthz", s.healthHandler.HandleHealthz)
	mux.HandleFunc("GET /ready", s.healthHandler.HandleReady)
	mux.HandleFunc("GET /version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 记忆
	mux.HandleFunc("POST /api/v1/memory/optimize", s.memoryHandler.HandleOptimize)
	mux.HandleFunc("POST /api/v1/memory/experience", s.memoryHandler.HandleExperience)
	mux.HandleFunc("POST /api/v1/memory/feedback", s.memoryHandler.HandleFeedback)
	mux.HandleFunc("GET /api/v1/memory/stats", s.memoryHandler.HandleStats)
	mux.HandleFunc("POST /api/v1/memory/clear", s.memoryHandler.HandleClear)
	mux.HandleFunc("GET /api/v1/memory/export", s.memoryHandler.HandleExport)
	mux.HandleFunc("POST /api/v1/memory/import", s.memoryHandler.HandleImport)

	// 指标
	mux.HandleFunc("GET /api/v1/metrics/performance", s.metricsHandler.HandlePerformance)
	mux.HandleFunc("GET /api/v1/metrics/alerts", s.metricsHandler.HandleAlerts)
	mux.HandleFunc("GET /api/v1/metrics/agents/{id}", s.metricsHandler.HandleAgent)
	mux.HandleFunc("GET /api/v1/metrics/export", s.metricsHandler.HandleExport)

	// 调优
	mux.HandleFunc("GET /api/v1/tuning/recommendations", s.tuningHandler.HandleRecommendations)
	mux.HandleFunc("POST /api/v1/tuning/apply", s.tuningHandler.HandleApply)
	mux.HandleFunc("GET /api/v1/tuning/history", s.tuningHandler.HandleHistory)
	mux.HandleFunc("GET /api/v1/tuning/effectiveness", s.tuningHandler.HandleEffectiveness)
	mux.HandleFunc("GET /api/v1/config/pipeline", s.tuningHandler.HandleConfig)
	mux.HandleFunc("POST /api/v1/config/pipeline/rollback", s.tuningHandler.HandleRollback)

	return mux
}

// Handler 构建带中间件链的 API handler。ctx 结束时限流器的清理协程退出
func (s *Server) Handler(ctx context.Context) http.Handler {
	return Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		OTelTracing(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.metricsCollector),
		RateLimiter(ctx, float64(s.cfg.Server.RateLimitRPS), s.cfg.Server.RateLimitBurst, s.logger),
	)
}

// promHandler 暴露本服务的 Prometheus registry
func (s *Server) promHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry}))
	return mux
}

// =============================================================================
// 🚀 运行与关闭
// =============================================================================

// Run 启动 HTTP 与 Metrics 服务、自动调优循环和配置文件监听，
// 阻塞直到 ctx 结束或任一组件失败，随后全部优雅关闭
func (s *Server) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	httpManager := server.NewManager(s.Handler(ctx), server.ConfigFor(s.cfg.Server, s.cfg.Server.HTTPPort), s.logger)
	g.Go(func() error { return httpManager.Run(ctx) })

	if s.cfg.Server.MetricsPort > 0 {
		metricsManager := server.NewManager(s.promHandler(), server.ConfigFor(s.cfg.Server, s.cfg.Server.MetricsPort), s.logger)
		g.Go(func() error { return metricsManager.Run(ctx) })
	}

	if s.cfg.Tuner.Enabled {
		g.Go(func() error { return s.runtime.RunAutoTune(ctx, s.cfg.Tuner.Interval) })
	}

	if s.configPath != "" {
		watcher, err := config.NewFileWatcher(s.configPath, config.WithWatcherLogger(s.logger))
		if err != nil {
			return fmt.Errorf("failed to watch config file: %w", err)
		}
		config.ReloadPipelineOnChange(watcher, s.loader, s.holder, s.logger)
		g.Go(func() error {
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			return watcher.Stop()
		})
	}

	s.logger.Info("All servers started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("metrics_port", s.cfg.Server.MetricsPort),
		zap.Bool("auto_tune", s.cfg.Tuner.Enabled),
		zap.Bool("hot_reload_enabled", s.configPath != ""),
	)

	err := g.Wait()
	s.logger.Info("Graceful shutdown completed")
	return err
}
