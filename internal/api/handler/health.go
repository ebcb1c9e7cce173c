package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recipeai/recipe_video_server/internal/llm"
	"github.com/recipeai/recipe_video_server/internal/pipeline"
	"github.com/recipeai/recipe_video_server/internal/sampler"
)

type HealthHandler struct {
	chain *llm.Chain
}

func NewHealthHandler(chain *llm.Chain) *HealthHandler {
	return &HealthHandler{chain: chain}
}

// Health 存活探针
// GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready 就绪探针：检查外部工具和模型配置是否可用
// GET /ready
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{
		"ffmpeg":    "ok",
		"ytdlp":     "ok",
		"providers": h.chain.Size(),
	}
	ready := true

	if err := sampler.CheckFFmpeg(ctx); err != nil {
		checks["ffmpeg"] = err.Error()
		ready = false
	}
	if err := pipeline.CheckYtdlp(ctx); err != nil {
		checks["ytdlp"] = err.Error()
		ready = false
	}
	if h.chain.Size() == 0 {
		ready = false
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
