package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"mca/agentd/internal/agents"
	"mca/agentd/internal/app/config"
	"mca/agentd/internal/app/domains/repo/rpjob"
	"mca/agentd/internal/app/domains/services/svjob"
	"mca/agentd/internal/app/infra/imagegen"
	"mca/agentd/internal/app/infra/llm"
	"mca/agentd/internal/app/infra/payment"
	"mca/agentd/internal/app/infra/persistence/redis"
	"mca/agentd/internal/app/infra/serp"
	"mca/agentd/internal/app/server/handlers/job"
	"mca/agentd/internal/app/server/routers"
	"mca/agentd/internal/metrics"
	"mca/agentd/internal/pipeline"
	"mca/agentd/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	// 2. 初始化日志与指标
	appLogger, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Sync()

	metrics.Register()

	ctx := context.Background()

	// 3. 任务存储：配置了 MySQL DSN 时落库，否则使用内存存储
	var repo rpjob.JobRepository
	if cfg.MySQL.DSN != "" {
		mysqlRepo, err := rpjob.NewMySQLJobRepository(cfg.MySQL.DSN)
		if err != nil {
			log.Fatalf("Failed to initialize mysql repository: %v", err)
		}
		repo = mysqlRepo
		appLogger.Infof(ctx, "[Main] Using mysql job repository")
	} else {
		repo = rpjob.NewMemoryJobRepository()
		appLogger.Infof(ctx, "[Main] Using in-memory job repository")
	}

	// 4. 结果通知通道：未配置 Redis 时 Smart Wait 退化为立即返回
	var notifier svjob.Notifier
	if cfg.Redis.Addr != "" {
		pubsub, err := redis.NewPubSubClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect redis: %v", err)
		}
		defer pubsub.Close()
		notifier = pubsub
		appLogger.Infof(ctx, "[Main] Redis result notification enabled")
	}

	// 5. 外部服务客户端
	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey,
		cfg.Payment.Network, cfg.Payment.AgentIdentifier, appLogger)
	llmClient := llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey,
		cfg.OpenAI.Model, cfg.OpenAI.Temperature)
	serpClient := serp.NewClient(cfg.Serp.APIKey, cfg.Serp.Engine, cfg.Serp.Location,
		cfg.Serp.Language, cfg.Serp.NumResults, cfg.Serp.Retries, appLogger)

	var imageGen imagegen.Generator
	if cfg.Image.BaseURL != "" {
		imageGen = imagegen.NewClient(cfg.Image.BaseURL, cfg.Payment.BaseURL, cfg.Payment.APIKey,
			cfg.Payment.Network, cfg.Image.ModelType, cfg.Image.IPFSGateway,
			cfg.Image.PollInterval, cfg.Image.MaxPolls, appLogger)
	}

	// 6. 流水线与任务服务
	stages := agents.BuildStages(serpClient, llmClient, imageGen, cfg.Serp.NumResults, appLogger)
	runner := pipeline.NewRunner(stages, appLogger)
	jobService := svjob.NewJobService(repo, gateway, runner, notifier, cfg.Payment, appLogger)
	defer jobService.Shutdown()

	// 7. HTTP Server
	jobHandler := job.NewJobHandler(jobService, cfg.Payment)
	engine := routers.SetupRoutes(jobHandler, appLogger)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		appLogger.Infof(ctx, "[Main] Starting HTTP server on %s", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 8. 优雅停机处理
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		appLogger.Infof(ctx, "[Main] Received shutdown signal, gracefully shutting down...")
		gracefulShutdown(ctx, server, jobService, appLogger)
	case err := <-serverErrChan:
		log.Fatalf("HTTP server error: %v", err)
	}

	appLogger.Infof(ctx, "[Main] Application stopped")
}

// gracefulShutdown 优雅停机：先停 HTTP 入口，再等待轮询器退出
func gracefulShutdown(ctx context.Context, server *http.Server, jobService *svjob.JobService, appLogger logger.Logger) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.Errorf(ctx, "[Main] HTTP server shutdown error: %v", err)
	} else {
		appLogger.Infof(ctx, "[Main] HTTP server stopped gracefully")
	}

	jobService.Shutdown()
	appLogger.Infof(ctx, "[Main] All services stopped gracefully")
}
