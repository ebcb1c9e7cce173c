package testutil

import (
	"testing"

	"gorm.io/gorm"

	"github.com/recipeai/recipe_video_server/internal/model"
)

// TestJob 创建测试任务
func TestJob(t *testing.T, db *gorm.DB, status string, opts ...func(*model.AnalysisJob)) *model.AnalysisJob {
	t.Helper()

	job := &model.AnalysisJob{
		VideoURL: "https://www.youtube.com/watch?v=example",
		Status:   status,
	}

	for _, opt := range opts {
		opt(job)
	}

	if err := db.Create(job).Error; err != nil {
		t.Fatalf("Failed to create test job: %v", err)
	}

	return job
}

// WithVideoURL 设置影片链接
func WithVideoURL(url string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.VideoURL = url
	}
}

// WithUploadPath 设置上传文件路径（清空 URL）
func WithUploadPath(path string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.VideoURL = ""
		j.UploadPath = path
	}
}

// WithErrorMessage 设置失败信息
func WithErrorMessage(kind, msg string) func(*model.AnalysisJob) {
	return func(j *model.AnalysisJob) {
		j.ErrorKind = kind
		j.ErrorMessage = msg
	}
}

// SampleRecipe 构造一份测试食谱
func SampleRecipe(name string) *model.Recipe {
	return &model.Recipe{
		Name:        name,
		Description: "測試用食譜",
		Ingredients: []model.Ingredient{
			{Name: "雞蛋", Amount: "2", Unit: "顆"},
			{Name: "番茄", Amount: "1", Unit: "顆"},
		},
		Steps: []model.Step{
			{StepNumber: 1, Description: "打蛋", DurationMinutes: 2},
			{StepNumber: 2, Description: "下鍋快炒", DurationMinutes: 5},
		},
		Servings:     2,
		Tags:         []string{"中式", "快炒", "簡易"},
		Completeness: "complete",
	}
}
