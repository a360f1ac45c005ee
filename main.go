package main

import (
	"os"
	"time"

	"TikTokAuto-server/config"
	"TikTokAuto-server/logger"
	"TikTokAuto-server/models"
	"TikTokAuto-server/ratelimit"
	"TikTokAuto-server/routers"
	"TikTokAuto-server/routers/api"
	"TikTokAuto-server/service"

	"github.com/hibiken/asynq"
)

func main() {
	config.InitConfig()
	logger.Init(os.Getenv("DEBUG") != "")
	defer logger.Sync()

	models.InitDB()
	store := models.NewStore(models.GormDB)
	logger.S().Info("database initialized")

	service.InitQueue()
	storage := service.InitMinIO()

	cfg := config.AppConfig
	counter := ratelimit.NewRedisCounter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.RateLimitDB)
	limiter := ratelimit.New(counter)
	limiter.AddWindow(service.ResourceReddit, cfg.RateLimit.RedditPerMinute, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	limiter.AddWindow(service.ResourceLLM, cfg.RateLimit.LLMPerMinute, time.Duration(cfg.RateLimit.WindowSeconds)*time.Second)
	limiter.AddDailyQuota(service.ResourceUpload, cfg.RateLimit.UploadsPerDay)

	notifier := service.NewEmailNotifier()
	worker := service.NewWorkerClient(cfg.Worker.Addr)

	retry := service.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay(),
		MaxDelay:    cfg.RetryMaxDelay(),
	}
	pipeline := service.NewPipeline(
		store, worker, worker, worker, worker,
		notifier, limiter, retry,
		time.Duration(cfg.Pipeline.UploadMaxWaitSec)*time.Second,
	)

	inspector := asynq.NewInspector(service.RedisOpt())
	maintenance := service.NewMaintenance(
		store, inspector, storage, notifier,
		service.EnqueueUploadDispatch,
		cfg.Retry.MaxAttempts,
		cfg.Maintenance.RetentionDays,
		cfg.Maintenance.SweepBatchSize,
	)

	acquirer, err := service.NewRedditAcquirer()
	if err != nil {
		logger.S().Fatalf("reddit acquirer init failed: %v", err)
	}
	acquisition := service.NewAcquisition(store, acquirer, limiter)

	processor := service.NewProcessor(pipeline, maintenance, acquisition)
	processor.Start(cfg.Pipeline.Concurrency)
	service.StartScheduler()

	api.Init(store, limiter)
	r := routers.InitRouter()
	logger.S().Infof("server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		logger.S().Fatalf("server stopped: %v", err)
	}
}
