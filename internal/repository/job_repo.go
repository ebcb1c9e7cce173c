package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/recipeai/recipe_video_server/internal/model"
)

// JobRepository 外部任务库的访问层。
// 表归后端所有，这里只实现主动模式需要的两个操作：
// 拉取失败任务、回写结果。两者都要求可重复调用。
type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) GetByID(id int64) (*model.AnalysisJob, error) {
	var job model.AnalysisJob
	err := r.db.Where("id = ?", id).First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// ListFailed 获取待重试的失败任务，最早失败的排前面
func (r *JobRepository) ListFailed(limit int) ([]*model.AnalysisJob, error) {
	var jobs []*model.AnalysisJob
	err := r.db.Where("status = ?", model.JobStatusFailed).
		Order("created_at ASC").
		Limit(limit).
		Find(&jobs).Error
	return jobs, err
}

// MarkProcessing 把任务标记为处理中
func (r *JobRepository) MarkProcessing(id int64) error {
	now := time.Now()
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     model.JobStatusProcessing,
			"started_at": &now,
		}).Error
}

// SubmitResult 回写成功结果。任务已是成功态时是无操作，不报错，
// 所以重复提交是安全的。
func (r *JobRepository) SubmitResult(id int64, result *model.AnalysisResult) error {
	now := time.Now()
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status <> ?", id, model.JobStatusSucceeded).
		Updates(map[string]interface{}{
			"status":          model.JobStatusSucceeded,
			"result":          model.ResultJSON{AnalysisResult: result},
			"error_kind":      "",
			"error_message":   "",
			"completed_at":    &now,
			"elapsed_seconds": int(result.ElapsedSeconds),
		}).Error
}

// SubmitFailure 回写失败结果。不覆盖已成功的任务。
func (r *JobRepository) SubmitFailure(id int64, kind, message string) error {
	now := time.Now()
	return r.db.Model(&model.AnalysisJob{}).
		Where("id = ? AND status <> ?", id, model.JobStatusSucceeded).
		Updates(map[string]interface{}{
			"status":        model.JobStatusFailed,
			"error_kind":    kind,
			"error_message": message,
			"completed_at":  &now,
		}).Error
}
