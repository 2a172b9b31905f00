package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"ojjudge/internal/common/cache"
	"ojjudge/internal/common/db"
	commonmw "ojjudge/internal/common/http/middleware"
	"ojjudge/internal/common/mq"
	"ojjudge/internal/common/storage"
	"ojjudge/internal/judge/controller"
	"ojjudge/internal/judge/judger"
	"ojjudge/internal/judge/repository"
	"ojjudge/internal/judge/sandbox"
	"ojjudge/internal/judge/service"
	"ojjudge/internal/judge/specialjudge"
	"ojjudge/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const queuePingTimeout = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Consume judge messages and serve the status API",
	RunE: func(cmd *cobra.Command, args []string) error {
		appCfg, err := loadAppConfig(configPath)
		if err != nil {
			return fmt.Errorf("load app config failed: %w", err)
		}
		if err := logger.Init(appCfg.Logger); err != nil {
			return fmt.Errorf("init logger failed: %w", err)
		}
		defer func() {
			_ = logger.Sync()
		}()
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, appCfg)
	},
}

// queueClients pairs the consumer with the publisher used for events and dead letters.
type queueClients struct {
	consumer  mq.Consumer
	publisher mq.Publisher
	closers   []func() error
}

// pingQueue fails startup when the broker cannot be reached.
func pingQueue(ctx context.Context, consumer mq.Consumer) error {
	pingCtx, cancel := context.WithTimeout(ctx, queuePingTimeout)
	defer cancel()
	if err := consumer.Ping(pingCtx); err != nil {
		return fmt.Errorf("failed to ping queue: %w", err)
	}
	return nil
}

func openQueue(ctx context.Context, cfg QueueConfig, limiter mq.FetchLimiter) (*queueClients, error) {
	switch cfg.Driver {
	case "sqs":
		queue, err := mq.NewSQSQueue(ctx, cfg.SQS, cfg.Consume, limiter)
		if err != nil {
			return nil, err
		}
		return &queueClients{consumer: queue, publisher: queue, closers: []func() error{queue.Close}}, nil
	default:
		publisher, err := mq.NewKafkaPublisher(cfg.Kafka)
		if err != nil {
			return nil, err
		}
		consumer, err := mq.NewKafkaConsumer(cfg.Kafka, cfg.Consume, limiter, publisher)
		if err != nil {
			_ = publisher.Close()
			return nil, err
		}
		return &queueClients{consumer: consumer, publisher: publisher, closers: []func() error{consumer.Close, publisher.Close}}, nil
	}
}

func (q *queueClients) Close() {
	for _, closeFn := range q.closers {
		_ = closeFn()
	}
}

func openStorage(ctx context.Context, cfg StorageConfig) (storage.ObjectStorage, error) {
	switch cfg.Driver {
	case "minio":
		return storage.NewMinIOStorage(cfg.MinIO)
	case "s3":
		return storage.NewS3Storage(ctx, cfg.S3)
	default:
		return nil, nil
	}
}

func serve(ctx context.Context, appCfg *AppConfig) error {
	database, err := db.Open(ctx, appCfg.Database.Driver, appCfg.Database.pool())
	if err != nil {
		logger.Error(ctx, "init database failed", zap.Error(err))
		return err
	}
	defer func() {
		_ = database.Close()
	}()
	dbProvider := db.NewManager(database)

	redisCache, err := cache.NewRedisCache(ctx, appCfg.Redis)
	if err != nil {
		logger.Error(ctx, "init redis failed", zap.Error(err))
		return err
	}
	defer func() {
		_ = redisCache.Close()
	}()

	queue, err := openQueue(ctx, appCfg.Queue, mq.NewTokenLimiter(appCfg.Worker.PoolSize))
	if err != nil {
		logger.Error(ctx, "init queue failed", zap.String("driver", appCfg.Queue.Driver), zap.Error(err))
		return err
	}
	defer queue.Close()
	if err := pingQueue(ctx, queue.consumer); err != nil {
		logger.Error(ctx, "queue unreachable", zap.String("driver", appCfg.Queue.Driver), zap.Error(err))
		return err
	}

	var archive *repository.ReportArchive
	objStorage, err := openStorage(ctx, appCfg.Storage)
	if err != nil {
		logger.Error(ctx, "init object storage failed", zap.String("driver", appCfg.Storage.Driver), zap.Error(err))
		return err
	}
	if objStorage != nil {
		if archive, err = repository.NewReportArchive(objStorage, appCfg.Report.Bucket, appCfg.Report.Prefix); err != nil {
			return err
		}
	}

	languages, err := sandbox.NewLanguages(appCfg.Languages)
	if err != nil {
		return fmt.Errorf("load languages failed: %w", err)
	}
	executor, err := sandbox.NewExecutor(appCfg.Sandbox, languages)
	if err != nil {
		return fmt.Errorf("init executor failed: %w", err)
	}
	dispatcher := judger.NewDispatcher(executor, specialjudge.NewEngine(executor))

	submissions := repository.NewSubmissionRepository(dbProvider)
	statusRepo := repository.NewStatusRepository(redisCache, appCfg.Status.TTL, appCfg.Status.MissTTL)
	svcCfg := service.Config{
		Submissions:      submissions,
		Problems:         repository.NewProblemRepository(dbProvider),
		Assignments:      repository.NewAssignmentRepository(dbProvider),
		Dispatcher:       dispatcher,
		Status:           statusRepo,
		Locker:           redisCache,
		LockTTL:          appCfg.Worker.LockTTL,
		LockPollInterval: appCfg.Worker.LockPoll,
		JudgeTimeout:     appCfg.Worker.JudgeTimeout,
		StatusTimeout:    appCfg.Status.Timeout,
	}
	if appCfg.Queue.StatusTopic != "" {
		svcCfg.Events = repository.NewMQStatusEventPublisher(queue.publisher, appCfg.Queue.StatusTopic)
	}
	if archive != nil {
		svcCfg.Reports = archive
	}
	judgeService, err := service.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("init judge service failed: %w", err)
	}

	var reports controller.ReportReader
	if archive != nil {
		reports = archive
	}
	router := gin.New()
	router.Use(gin.Recovery(), commonmw.TraceContext(), commonmw.RequestLogger())
	controller.NewJudgeController(statusRepo, submissions, reports).Register(router)
	controller.NewHealthController(map[string]controller.Pinger{
		"database": database,
		"cache":    redisCache,
		"queue":    queue.consumer,
	}, 0).Register(router)

	server := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge http server started", zap.String("addr", appCfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	consumeCtx, stopConsume := context.WithCancel(ctx)
	defer stopConsume()
	consumeErr := make(chan error, 1)
	go func() {
		logger.Info(ctx, "judge consumer started",
			zap.String("driver", appCfg.Queue.Driver),
			zap.Int("pool_size", appCfg.Worker.PoolSize),
		)
		consumeErr <- queue.consumer.Consume(consumeCtx, judgeService.HandleMessage)
	}()

	var runErr error
	consumerDone := false
	select {
	case <-ctx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	case runErr = <-serverErr:
		logger.Error(ctx, "http server failed", zap.Error(runErr))
	case runErr = <-consumeErr:
		consumerDone = true
		if runErr != nil && !errors.Is(runErr, context.Canceled) {
			logger.Error(ctx, "consumer stopped", zap.Error(runErr))
		} else {
			runErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), appCfg.Server.ShutdownTimeout)
	defer cancel()
	stopConsume()
	if !consumerDone {
		// in-flight messages finish or are abandoned for redelivery
		select {
		case <-consumeErr:
		case <-shutdownCtx.Done():
			logger.Warn(shutdownCtx, "consumer did not stop before shutdown timeout")
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "http server shutdown failed", zap.Error(err))
	}
	return runErr
}
