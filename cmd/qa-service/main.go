package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"classqa/internal/auth"
	"classqa/internal/classroom/controller"
	"classqa/internal/classroom/repository"
	"classqa/internal/classroom/service"
	"classqa/internal/common/cache"
	"classqa/internal/common/db"
	commonmw "classqa/internal/common/http/middleware"
	"classqa/internal/common/mq"
	"classqa/internal/common/storage"
	"classqa/internal/llm"
	"classqa/internal/student"
	"classqa/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	defaultConfigPath = "configs/qa_service.yaml"
	defaultEnvFile    = ".env"
)

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	envFile := flag.String("env", defaultEnvFile, "Path to optional .env file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath, *envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(appCfg); err != nil {
		logger.Error(context.Background(), "qa service stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(appCfg *AppConfig) error {
	ctx := context.Background()

	database, err := db.Open(&appCfg.Database)
	if err != nil {
		return fmt.Errorf("init database failed: %w", err)
	}
	defer func() {
		_ = database.Close()
	}()
	if err := repository.EnsureSchema(ctx, database); err != nil {
		return fmt.Errorf("ensure schema failed: %w", err)
	}
	dbProvider := db.NewStaticProvider(database)

	// cacheOps stays a nil interface when redis is off.
	var cacheOps cache.BasicOps
	var rateLimiter *commonmw.RateLimiter
	var redisCache *cache.RedisCache
	if appCfg.Redis.Enabled {
		redisCache, err = cache.NewRedisCacheWithConfig(&appCfg.Redis.RedisConfig)
		if err != nil {
			return fmt.Errorf("init redis failed: %w", err)
		}
		defer func() {
			_ = redisCache.Close()
		}()
		cacheOps = redisCache
		rateLimiter = commonmw.NewRateLimiter(redisCache, appCfg.RateLimit.Student.Window, appCfg.RateLimit.CacheTimeout)
	}

	var repoOpts []repository.QuestionOption
	if appCfg.Redis.AccessCodeTTL > 0 {
		repoOpts = append(repoOpts, repository.WithAccessCodeTTL(appCfg.Redis.AccessCodeTTL))
	}
	questionRepo := repository.NewQuestionRepository(database, cacheOps, repoOpts...)
	answerRepo := repository.NewAnswerRepository(database, nil)

	rosterSource, err := buildRosterSource(appCfg)
	if err != nil {
		return err
	}
	directory := student.NewRosterDirectory(rosterSource, appCfg.Roster.RefreshInterval)
	if _, err := directory.List(ctx); err != nil {
		logger.Warn(ctx, "initial roster load failed", zap.String("source", rosterSource.Name()), zap.Error(err))
	}

	var events service.EventPublisher
	if appCfg.Kafka.Enabled {
		producer, err := mq.NewKafkaProducer(appCfg.Kafka.KafkaConfig)
		if err != nil {
			return fmt.Errorf("init kafka failed: %w", err)
		}
		defer func() {
			_ = producer.Close()
		}()
		events = service.NewQuestionEventPublisher(producer, appCfg.Kafka.Topic)
	}

	llmClient := llm.NewClient(appCfg.OpenAI)
	if !llmClient.Configured() {
		logger.Warn(ctx, "openai api key not set, summaries and smart search will fail")
	}

	authService, err := auth.NewAuthService(auth.Config{
		Passcode:       appCfg.Auth.Passcode,
		JWTSecret:      []byte(appCfg.Auth.JWTSecret),
		JWTIssuer:      appCfg.Auth.JWTIssuer,
		TokenTTL:       appCfg.Auth.TokenTTL,
		LoginFailTTL:   appCfg.Auth.LoginFailTTL,
		LoginFailLimit: appCfg.Auth.LoginFailLimit,
	}, cacheOps)
	if err != nil {
		return fmt.Errorf("init auth failed: %w", err)
	}
	if appCfg.Auth.Passcode == "" {
		logger.Warn(ctx, "teacher passcode not set, teacher login is disabled")
	}
	if appCfg.Auth.JWTSecret == "" {
		logger.Warn(ctx, "jwt secret not set, sessions end on restart")
	}

	lifecycleService := service.NewLifecycleService(dbProvider, questionRepo, answerRepo, directory, events, service.LifecycleConfig{})
	aggregationService := service.NewAggregationService(questionRepo, answerRepo, directory, llmClient, llmClient, service.AggregationConfig{
		CollaboratorTimeout: appCfg.CollaboratorTimeout,
	})
	studentService := service.NewStudentService(directory)

	router := controller.NewRouter(controller.RouterConfig{
		Lifecycle:    lifecycleService,
		Aggregation:  aggregationService,
		Students:     studentService,
		Auth:         authService,
		RateLimiter:  rateLimiter,
		StudentLimit: appCfg.RateLimit.Student,
		LoginLimit:   appCfg.RateLimit.Login,
		CORS:         appCfg.CORS,
		HealthChecker: func(ctx context.Context) error {
			return database.Ping(ctx)
		},
	})

	httpServer := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "qa http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.String("db_driver", string(database.Dialect())),
			zap.Bool("redis", appCfg.Redis.Enabled),
			zap.Bool("kafka", appCfg.Kafka.Enabled),
			zap.String("roster", rosterSource.Name()),
		)
		errCh <- httpServer.ListenAndServe()
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var serveErr error
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("http server failed: %w", err)
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	stopCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(stopCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	return serveErr
}

func buildRosterSource(appCfg *AppConfig) (student.Source, error) {
	if appCfg.Roster.Source != "minio" {
		return student.NewFileSource(appCfg.Roster.Path), nil
	}
	objStorage, err := storage.NewMinIOStorage(appCfg.MinIO)
	if err != nil {
		return nil, fmt.Errorf("init minio failed: %w", err)
	}
	return student.NewObjectSource(objStorage, appCfg.MinIO.Bucket, appCfg.Roster.Key), nil
}
