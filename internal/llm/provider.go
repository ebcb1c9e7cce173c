package llm

import (
	"context"
	"net/http"
	"time"

	"github.com/recipeai/recipe_video_server/internal/model"
)

// VisionProvider 视觉补全接口：一组有序画面 + 固定指令 → 结构化食谱。
// 链路层只区分"成功解析"和"其他任何失败"，不要求错误子类型。
type VisionProvider interface {
	// Name 提供商标识（gemini / openai / grok）
	Name() string
	// Complete 用指定 key 发起一次视觉补全调用
	Complete(ctx context.Context, frames []model.Frame, apiKey string) (*model.Recipe, error)
}

// httpClient 所有提供商适配器共用的出站客户端。
// 单次调用的超时由任务级 context 控制，这里只设兜底上限。
var httpClient = &http.Client{
	Timeout: 5 * time.Minute,
}
