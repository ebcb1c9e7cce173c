package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/recipeai/recipe_video_server/config"
	"github.com/recipeai/recipe_video_server/internal/api"
	"github.com/recipeai/recipe_video_server/internal/api/handler"
	"github.com/recipeai/recipe_video_server/internal/database"
	"github.com/recipeai/recipe_video_server/internal/llm"
	"github.com/recipeai/recipe_video_server/internal/pipeline"
	"github.com/recipeai/recipe_video_server/internal/pkg/oss"
	"github.com/recipeai/recipe_video_server/internal/pkg/pubsub"
	"github.com/recipeai/recipe_video_server/internal/sampler"
)

func main() {
	// 加载配置
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 启动时检查外部工具，缺了只告警，/ready 会持续反映真实状态
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := sampler.CheckFFmpeg(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	if err := pipeline.CheckYtdlp(ctx); err != nil {
		log.Printf("Warning: %v", err)
	}
	cancel()

	// 构建提供商链，空链拒绝启动
	chain, err := llm.NewChain(cfg.Providers)
	if err != nil {
		log.Fatalf("Failed to build provider chain: %v", err)
	}
	log.Printf("Provider chain ready, %d provider(s)", chain.Size())

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

	// 组装流水线
	downloader := pipeline.NewDownloader(cfg.Downloader)
	frameSampler := sampler.New(cfg.Sampler.MaxFrames, cfg.Sampler.Quality)
	pipe := pipeline.New(downloader, frameSampler, chain, nilStore(ossClient), nilPublisher(publisher), pipeline.Options{
		KeyFrames:     cfg.Sampler.KeyFrames,
		JobTimeout:    time.Duration(cfg.Pipeline.JobTimeoutSeconds) * time.Second,
		MaxConcurrent: cfg.Pipeline.MaxConcurrent,
	})

	// 初始化 Handler 和 Router
	analyzeHandler := handler.NewAnalyzeHandler(pipe, cfg)
	healthHandler := handler.NewHealthHandler(chain)
	router := api.NewRouter(analyzeHandler, healthHandler, cfg)
	engine := router.Setup()

	// 启动服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Server starting on %s", addr)
	if err := engine.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// nilStore 把有类型的 nil 指针转成无类型 nil 接口，避免 nil 判断失效
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
