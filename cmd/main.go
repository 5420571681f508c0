package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/harborview-properties/messaging-service/internal/api"
	"github.com/harborview-properties/messaging-service/internal/attachments"
	"github.com/harborview-properties/messaging-service/internal/auth"
	"github.com/harborview-properties/messaging-service/internal/config"
	"github.com/harborview-properties/messaging-service/internal/discovery"
	"github.com/harborview-properties/messaging-service/internal/events"
	"github.com/harborview-properties/messaging-service/internal/logger"
	"github.com/harborview-properties/messaging-service/internal/mail"
	"github.com/harborview-properties/messaging-service/internal/metrics"
	"github.com/harborview-properties/messaging-service/internal/middleware"
	"github.com/harborview-properties/messaging-service/internal/repository"
	"github.com/harborview-properties/messaging-service/internal/service"
	"github.com/harborview-properties/messaging-service/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	zlog, err := logger.New(logger.Config{Development: cfg.App.Env != "production"})
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zlog.Sync()

	metrics.Init()

	mc, err := repository.NewMongoClient(cfg.Mongo.URI)
	if err != nil {
		zlog.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()
	db := mc.Database(cfg.Mongo.DB)

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	pub := events.NewPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	defer pub.Close()

	disc, err := discovery.New(cfg.Mail.ConsulAddr, map[string]string{cfg.Mail.Service: cfg.Mail.BaseURL}, zlog)
	if err != nil {
		zlog.Fatalw("discovery init", "err", err)
	}
	mailSource := mail.NewClient(disc, mail.Options{
		Service:         cfg.Mail.Service,
		Timeout:         cfg.MailTimeout,
		RetryMaxElapsed: cfg.MailRetryMax,
		BreakerFailures: cfg.Mail.BreakerMaxFailures,
		BreakerTimeout:  cfg.BreakerTimeout,
	}, zlog)

	policy := attachments.NewPolicy(cfg.Attachments.MaxBytes, cfg.Attachments.AllowedTypes)

	convRepo := repository.NewMongoConversationRepo(db)
	msgRepo := repository.NewMongoMessageRepo(db)
	wmRepo := repository.NewMongoWatermarkRepo(db)

	svc := service.NewMessageService(convRepo, msgRepo, wmRepo, policy, pub, zlog)
	agg := service.NewUnreadAggregator(zlog, service.NewConversationSource(svc), mailSource)

	var blobs storage.BlobStore
	if cfg.S3.Bucket != "" {
		blobs, err = storage.NewS3Store(context.Background(), cfg.S3.Region, cfg.S3.Bucket)
		if err != nil {
			zlog.Fatalw("s3 init", "err", err)
		}
	}

	jv, err := auth.NewJWTValidator(cfg.JWT.Alg, cfg.JWT.PublicKeyPath, cfg.JWT.HSSecret)
	if err != nil {
		zlog.Fatalw("jwt init", "err", err)
	}

	rl := middleware.NewRateLimiter(rdb, cfg.Redis.Prefix+":rl", cfg.RateLimit.PerMinute, time.Minute)

	h := api.NewHandlers(svc, agg, blobs, policy, zlog)
	app := api.NewServer(h, jv, rl)

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			zlog.Fatalw("server listen", "err", err)
		}
	}()
	zlog.Infow("messaging-service started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zlog.Infow("messaging-service stopped")
}
