package llm

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/recipeai/recipe_video_server/config"
	"github.com/recipeai/recipe_video_server/internal/model"
)

// ProviderSpec 链中的一环：提供商 + 模型 + key 轮换环。
// 链在启动时构建，优先级顺序运行期不变，只有轮换环游标会推进。
type ProviderSpec struct {
	Provider VisionProvider
	Model    string
	Rotator  *KeyRotator
}

// Chain 按优先级排列的提供商降级链。
// 便宜的排前面，只有前面的挂了才会花更贵的钱。
type Chain struct {
	specs []ProviderSpec
}

// AttemptFailure 单个提供商的失败记录
type AttemptFailure struct {
	Provider        string
	CredentialIndex int
	Err             error
}

// ExhaustedError 整条链都失败时返回，按优先级顺序携带每个提供商的失败原因
type ExhaustedError struct {
	Failures []AttemptFailure
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s(key#%d): %v", f.Provider, f.CredentialIndex, f.Err))
	}
	return fmt.Sprintf("all %d providers failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

// NewChain 从配置构建提供商链，列表顺序即优先级。
// 没有任何可用 key 的提供商被跳过；结果为空链属于配置错误，
// 进程应当拒绝启动而不是逐请求失败。
func NewChain(providers []config.ProviderConfig) (*Chain, error) {
	var specs []ProviderSpec

	for _, pc := range providers {
		rotator, err := NewKeyRotator(pc.APIKeys)
		if err != nil {
			log.Printf("Skipping provider %s: %v", pc.Name, err)
			continue
		}

		var provider VisionProvider
		switch strings.ToLower(pc.Name) {
		case "gemini":
			provider = NewGeminiProvider(pc.Model, pc.BaseURL)
		case "openai":
			provider = NewOpenAIProvider("openai", pc.Model, pc.BaseURL)
		case "grok":
			// Grok 走 OpenAI 兼容协议
			baseURL := pc.BaseURL
			if baseURL == "" {
				baseURL = "https://api.x.ai/v1"
			}
			provider = NewOpenAIProvider("grok", pc.Model, baseURL)
		default:
			return nil, fmt.Errorf("unknown provider: %s", pc.Name)
		}

		specs = append(specs, ProviderSpec{
			Provider: provider,
			Model:    pc.Model,
			Rotator:  rotator,
		})
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("no LLM providers available, configure at least one of: gemini, openai, grok")
	}

	return &Chain{specs: specs}, nil
}

// NewChainFromSpecs 直接从 spec 列表构建（测试用）
func NewChainFromSpecs(specs []ProviderSpec) (*Chain, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("no LLM providers available, configure at least one of: gemini, openai, grok")
	}
	return &Chain{specs: specs}, nil
}

// Size 链中提供商数量
func (c *Chain) Size() int {
	return len(c.specs)
}

// Invoke 按优先级逐个尝试，每个提供商只取一个 key 调一次。
// 第一个能解析出食谱的提供商直接返回；全部失败则返回 ExhaustedError。
// 同一提供商不换 key 重试，总时延由此得到约束。
func (c *Chain) Invoke(ctx context.Context, frames []model.Frame) (*model.AnalysisResult, error) {
	start := time.Now()
	var failures []AttemptFailure

	for _, spec := range c.specs {
		key, keyIdx := spec.Rotator.Next()

		recipe, err := spec.Provider.Complete(ctx, frames, key)
		if err != nil {
			log.Printf("Provider %s (key#%d) failed: %v", spec.Provider.Name(), keyIdx, err)
			failures = append(failures, AttemptFailure{
				Provider:        spec.Provider.Name(),
				CredentialIndex: keyIdx,
				Err:             err,
			})
			continue
		}

		return &model.AnalysisResult{
			Recipe:          recipe,
			ProviderUsed:    spec.Provider.Name(),
			CredentialIndex: keyIdx,
			AttemptCount:    len(failures) + 1,
			ElapsedSeconds:  time.Since(start).Seconds(),
		}, nil
	}

	return nil, &ExhaustedError{Failures: failures}
}
