package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/recipeai/recipe_video_server/config"
	"github.com/recipeai/recipe_video_server/internal/database"
	"github.com/recipeai/recipe_video_server/internal/llm"
	"github.com/recipeai/recipe_video_server/internal/pipeline"
	"github.com/recipeai/recipe_video_server/internal/pkg/oss"
	"github.com/recipeai/recipe_video_server/internal/pkg/pubsub"
	"github.com/recipeai/recipe_video_server/internal/repository"
	"github.com/recipeai/recipe_video_server/internal/sampler"
	"github.com/recipeai/recipe_video_server/internal/worker"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化数据库
	db, err := database.NewMySQL(&cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("Database connected")

	// 初始化 Redis（可选，仅用于进度推送）
	var publisher *pubsub.Publisher
	if cfg.Redis.Host != "" {
		rdb, err := database.NewRedis(&cfg.Redis)
		if err != nil {
			log.Printf("Warning: Failed to connect redis: %v", err)
		} else {
			publisher = pubsub.NewPublisher(rdb)
			log.Println("Redis connected")
		}
	}

	// 初始化 OSS（可选）
	var ossClient *oss.Client
	if cfg.OSS.Endpoint != "" && cfg.OSS.AccessKeyID != "" {
		ossClient, err = oss.NewClient(&cfg.OSS)
		if err != nil {
			log.Printf("Warning: Failed to init OSS client: %v", err)
		} else {
			log.Println("OSS client initialized")
		}
	}

	// 构建提供商链，空链拒绝启动
	chain, err := llm.NewChain(cfg.Providers)
	if err != nil {
		log.Fatalf("Failed to build provider chain: %v", err)
	}
	log.Printf("Provider chain ready, %d provider(s)", chain.Size())

	// 组装流水线
	downloader := pipeline.NewDownloader(cfg.Downloader)
	frameSampler := sampler.New(cfg.Sampler.MaxFrames, cfg.Sampler.Quality)
	pipe := pipeline.New(downloader, frameSampler, chain, nilStore(ossClient), nilPublisher(publisher), pipeline.Options{
		KeyFrames:     cfg.Sampler.KeyFrames,
		JobTimeout:    time.Duration(cfg.Pipeline.JobTimeoutSeconds) * time.Second,
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
	})

	// 创建轮询器
	jobRepo := repository.NewJobRepository(db)
	poller := worker.NewPoller(jobRepo, pipe, worker.Options{
		PollInterval: time.Duration(cfg.Worker.PollIntervalSeconds) * time.Second,
		BatchLimit:   cfg.Worker.BatchLimit,
		MaxWorkers:   cfg.Worker.MaxWorkers,
	})

	// 创建 context 用于优雅关闭
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 监听退出信号
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Println("Received shutdown signal")
		cancel()
	}()

	// 阻塞运行，收到信号后当前节拍跑完才退出
	poller.Run(ctx)
	log.Println("Worker shutdown complete")
}

func nilStore(c *oss.Client) pipeline.ThumbnailStore {
	if c == nil {
		return nil
	}
	return c
}

func nilPublisher(p *pubsub.Publisher) pipeline.ProgressPublisher {
	if p == nil {
		return nil
	}
	return p
}
