package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Ingredient 食材
type Ingredient struct {
	Name   string `json:"name"`
	Amount string `json:"amount"`
	Unit   string `json:"unit,omitempty"`
}

// Step 烹饪步骤
type Step struct {
	StepNumber      int    `json:"step_number"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes,omitempty"`
	Temperature     string `json:"temperature,omitempty"`
}

// Recipe 从影片画面提取的结构化食谱
type Recipe struct {
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	Ingredients  []Ingredient `json:"ingredients"`
	Steps        []Step       `json:"steps"`
	Servings     int          `json:"servings,omitempty"`
	PrepTime     int          `json:"prep_time,omitempty"`
	CookTime     int          `json:"cook_time,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	Completeness string       `json:"completeness,omitempty"` // complete / incomplete
	ThumbnailURL string       `json:"thumbnail_url,omitempty"`
}

// Validate 校验必填字段，缺食材或步骤时标记为 incomplete
func (r *Recipe) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("recipe missing required field: name")
	}
	if r.Ingredients == nil {
		return fmt.Errorf("recipe missing required field: ingredients")
	}
	if r.Steps == nil {
		return fmt.Errorf("recipe missing required field: steps")
	}
	if len(r.Ingredients) == 0 || len(r.Steps) == 0 {
		r.Completeness = "incomplete"
	}
	if r.Completeness == "" {
		r.Completeness = "complete"
	}
	return nil
}

// VideoInfo 被分析影片的基本信息
type VideoInfo struct {
	DurationSeconds float64 `json:"duration_seconds"`
	FileSizeBytes   int64   `json:"file_size_bytes"`
	FramesExtracted int     `json:"frames_extracted"`
	FramesAnalyzed  int     `json:"frames_analyzed"`
}

// AnalysisResult 单次任务的最终产物，成功后不可变
type AnalysisResult struct {
	Recipe          *Recipe   `json:"recipe"`
	ProviderUsed    string    `json:"provider_used"`
	CredentialIndex int       `json:"credential_index_used"`
	AttemptCount    int       `json:"attempt_count"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	VideoInfo       VideoInfo `json:"video_info"`
	// PackagingError 软失败：食谱可用但缩略图上传失败
	PackagingError string `json:"packaging_error,omitempty"`
}

// ResultJSON 存进任务表 result 列的 JSON 字段
type ResultJSON struct {
	*AnalysisResult
}

func (r ResultJSON) Value() (driver.Value, error) {
	if r.AnalysisResult == nil {
		return nil, nil
	}
	return json.Marshal(r.AnalysisResult)
}

func (r *ResultJSON) Scan(value interface{}) error {
	if value == nil {
		r.AnalysisResult = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}
	var res AnalysisResult
	if err := json.Unmarshal(bytes, &res); err != nil {
		return err
	}
	r.AnalysisResult = &res
	return nil
}
