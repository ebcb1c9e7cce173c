package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/recipeai/recipe_video_server/internal/model"
)

const openaiBaseURL = "https://api.openai.com/v1"

// OpenAIProvider OpenAI Chat Completions 视觉接口适配器。
// Grok 走同一协议，换 baseURL（https://api.x.ai/v1）和 name 即可。
type OpenAIProvider struct {
	name    string
	model   string
	baseURL string
}

// NewOpenAIProvider 创建 OpenAI 兼容适配器
func NewOpenAIProvider(name, modelID, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openaiBaseURL
	}
	if name == "" {
		name = "openai"
	}
	return &OpenAIProvider{name: name, model: modelID, baseURL: baseURL}
}

func (p *OpenAIProvider) Name() string {
	return p.name
}

type openaiContent struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL *struct {
		URL string `json:"url"`
	} `json:"image_url,omitempty"`
}

type openaiRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string          `json:"role"`
		Content []openaiContent `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Complete 调用 chat/completions，画面以 data URL 方式内联
func (p *OpenAIProvider) Complete(ctx context.Context, frames []model.Frame, apiKey string) (*model.Recipe, error) {
	content := make([]openaiContent, 0, len(frames)+1)
	content = append(content, openaiContent{Type: "text", Text: recipePrompt})
	for _, f := range frames {
		dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(f.Data)
		item := openaiContent{Type: "image_url"}
		item.ImageURL = &struct {
			URL string `json:"url"`
		}{URL: dataURL}
		content = append(content, item)
	}

	reqBody := openaiRequest{
		Model:       p.model,
		Temperature: 0.7,
	}
	reqBody.Messages = append(reqBody.Messages, struct {
		Role    string          `json:"role"`
		Content []openaiContent `json:"content"`
	}{Role: "user", Content: content})

	payload, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", p.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d: %s", p.name, resp.StatusCode, truncate(string(body), 200))
	}

	var result openaiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("%s error: %s", p.name, result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%s returned empty choices", p.name)
	}

	return ParseRecipeResponse(result.Choices[0].Message.Content)
}
