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

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider Google Gemini 视觉接口适配器
type GeminiProvider struct {
	model   string
	baseURL string
}

// NewGeminiProvider 创建 Gemini 适配器，baseURL 为空时用官方地址
func NewGeminiProvider(modelID, baseURL string) *GeminiProvider {
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiProvider{model: modelID, baseURL: baseURL}
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type geminiRequest struct {
	Contents []struct {
		Parts []geminiPart `json:"parts"`
	} `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Complete 调用 generateContent，画面以 inline_data 方式内联
func (p *GeminiProvider) Complete(ctx context.Context, frames []model.Frame, apiKey string) (*model.Recipe, error) {
	parts := make([]geminiPart, 0, len(frames)+1)
	parts = append(parts, geminiPart{Text: recipePrompt})
	for _, f := range frames {
		parts = append(parts, geminiPart{
			InlineData: &geminiInlineData{
				MimeType: "image/jpeg",
				Data:     base64.StdEncoding.EncodeToString(f.Data),
			},
		})
	}

	var reqBody geminiRequest
	reqBody.Contents = append(reqBody.Contents, struct {
		Parts []geminiPart `json:"parts"`
	}{Parts: parts})

	payload, err := json.Marshal(&reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", p.baseURL, p.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var result geminiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("gemini error %d: %s", result.Error.Code, result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini returned empty candidates")
	}

	return ParseRecipeResponse(result.Candidates[0].Content.Parts[0].Text)
}

// truncate 截断过长的错误内容，避免日志爆炸
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
