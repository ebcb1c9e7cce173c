package api

import (
	"github.com/gin-gonic/gin"

	"github.com/recipeai/recipe_video_server/config"
	"github.com/recipeai/recipe_video_server/internal/api/handler"
	"github.com/recipeai/recipe_video_server/internal/api/middleware"
)

type Router struct {
	analyzeHandler *handler.AnalyzeHandler
	healthHandler  *handler.HealthHandler
	cfg            *config.Config
}

func NewRouter(
	analyzeHandler *handler.AnalyzeHandler,
	healthHandler *handler.HealthHandler,
	cfg *config.Config,
) *Router {
	return &Router{
		analyzeHandler: analyzeHandler,
		healthHandler:  healthHandler,
		cfg:            cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.CORS(r.cfg.CORS))

	// 探针
	engine.GET("/health", r.healthHandler.Health)
	engine.GET("/ready", r.healthHandler.Ready)

	api := engine.Group("/api/v1")
	{
		api.POST("/analyze", r.analyzeHandler.AnalyzeUpload)
		api.POST("/analyze-from-url", r.analyzeHandler.AnalyzeURL)
	}

	return engine
}
