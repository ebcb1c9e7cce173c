package model

import (
	"time"
)

// 任务状态
const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
)

// AnalysisJob 外部任务库中的分析任务，主动模式下由本服务轮询重试。
// 表归后端所有，这里只做读取和结果回写。
type AnalysisJob struct {
	ID             int64      `gorm:"primaryKey" json:"id"`
	VideoURL       string     `gorm:"size:1000" json:"video_url,omitempty"`
	UploadPath     string     `gorm:"size:500" json:"upload_path,omitempty"`
	Status         string     `gorm:"size:20;default:pending;index" json:"status"` // pending, processing, succeeded, failed
	Result         ResultJSON `gorm:"type:json" json:"result,omitempty"`
	ErrorKind      string     `gorm:"size:40" json:"error_kind,omitempty"`
	ErrorMessage   string     `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ElapsedSeconds int        `json:"elapsed_seconds,omitempty"`
}

func (AnalysisJob) TableName() string {
	return "analysis_jobs"
}

// Source 任务的影片来源：二选一，URL 优先
func (j *AnalysisJob) Source() (url string, uploadPath string) {
	return j.VideoURL, j.UploadPath
}
