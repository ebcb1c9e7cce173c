package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/recipeai/recipe_video_server/internal/model"
	"github.com/recipeai/recipe_video_server/internal/pkg/pubsub"
	"github.com/recipeai/recipe_video_server/internal/sampler"
)

// 失败阶段
const (
	StageAcquisition   = "acquisition_failed"
	StageSampling      = "sampling_failed"
	StageAnalysis      = "analysis_failed"
	StagePackaging     = "packaging_failed"
	StageConfiguration = "configuration_invalid"
)

// StageError 流水线阶段失败，携带阶段类别和可读消息
type StageError struct {
	Stage   string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Stage, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Job 一次分析任务的输入。URL 和本地文件二选一。
type Job struct {
	ID         string
	VideoURL   string
	LocalPath  string // 已上传到本地的文件（upload 模式）
	IsImage    bool   // 上传的是单张图片，跳过抽帧
	FrameCount int    // 0 表示按时长自动决定
}

// Acquirer 视频获取协作方（yt-dlp 包装器或测试替身）
type Acquirer interface {
	Download(ctx context.Context, videoURL, scratchDir string) (string, error)
}

// FrameSampler 抽帧协作方
type FrameSampler interface {
	ProbeDuration(ctx context.Context, videoPath string) (float64, error)
	Sample(ctx context.Context, videoPath, scratchDir string, k int) ([]model.Frame, int, error)
}

// Invoker 提供商链
type Invoker interface {
	Invoke(ctx context.Context, frames []model.Frame) (*model.AnalysisResult, error)
}

// ThumbnailStore 缩略图对象存储协作方
type ThumbnailStore interface {
	UploadThumbnail(data []byte, ext string) (string, error)
}

// ProgressPublisher 进度发布协作方
type ProgressPublisher interface {
	PublishProgress(ctx context.Context, msg *pubsub.ProgressMessage) error
}

// Options 流水线配置
type Options struct {
	KeyFrames     int           // 默认关键帧数（FrameCount 未指定且时长未知时使用）
	JobTimeout    time.Duration // 单任务总预算
	MaxConcurrent int           // 单实例并发上限
}

// Pipeline 分析流水线编排器：下载 → 抽帧 → 模型调用 → 打包 → 清理。
// 被动模式和主动模式共用同一个实例，并发由内部槽位统一约束。
type Pipeline struct {
	acquirer  Acquirer
	sampler   FrameSampler
	chain     Invoker
	store     ThumbnailStore    // 可为 nil（未配置 OSS）
	publisher ProgressPublisher // 可为 nil（未配置 Redis）
	opts      Options
	slots     chan struct{}
}

// New 创建流水线
func New(acquirer Acquirer, frameSampler FrameSampler, chain Invoker, store ThumbnailStore, publisher ProgressPublisher, opts Options) *Pipeline {
	if opts.KeyFrames <= 0 {
		opts.KeyFrames = 12
	}
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 10 * time.Minute
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 2
	}
	return &Pipeline{
		acquirer:  acquirer,
		sampler:   frameSampler,
		chain:     chain,
		store:     store,
		publisher: publisher,
		opts:      opts,
		slots:     make(chan struct{}, opts.MaxConcurrent),
	}
}

// Process 处理单个任务。任务一旦开始就跑到结束，唯一的取消机制是总超时。
// 无论在哪个阶段失败，临时目录都会在返回前被删掉（删除失败只记日志）。
func (p *Pipeline) Process(ctx context.Context, job *Job) (*model.AnalysisResult, error) {
	// 占用并发槽位，约束峰值内存和出站并发。
	// 排队超时还没进入任何阶段，不套阶段错误。
	select {
	case p.slots <- struct{}{}:
		defer func() { <-p.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("任务排队超时: %w", ctx.Err())
	}

	jobCtx, cancel := context.WithTimeout(ctx, p.opts.JobTimeout)
	defer cancel()

	scratchDir, err := os.MkdirTemp("", "recipe_job_")
	if err != nil {
		return nil, &StageError{Stage: StageAcquisition, Message: "无法创建临时目录", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(scratchDir); err != nil {
			log.Printf("Job %s: failed to cleanup scratch dir %s: %v", job.ID, scratchDir, err)
		}
	}()

	log.Printf("Job %s: pipeline started, scratch=%s", job.ID, scratchDir)

	publishProgress := func(step, status, errMsg string) {
		if p.publisher == nil {
			return
		}
		p.publisher.PublishProgress(jobCtx, &pubsub.ProgressMessage{
			JobID:  job.ID,
			Status: status,
			Step:   step,
			Error:  errMsg,
		})
	}

	handleError := func(step string, stageErr *StageError) (*model.AnalysisResult, error) {
		publishProgress(step, "failed", stageErr.Error())
		return nil, stageErr
	}

	// Step 1: 获取影片
	publishProgress(pubsub.StepDownloading, "processing", "")
	videoPath, err := p.acquire(jobCtx, job, scratchDir)
	if err != nil {
		return handleError(pubsub.StepDownloading, &StageError{Stage: StageAcquisition, Message: err.Error(), Err: err})
	}

	fileInfo, err := os.Stat(videoPath)
	if err != nil {
		return handleError(pubsub.StepDownloading, &StageError{Stage: StageAcquisition, Message: "影片文件不可读", Err: err})
	}
	fileSize := fileInfo.Size()

	// Step 2: 抽帧
	publishProgress(pubsub.StepExtracting, "processing", "")
	frames, extracted, duration, err := p.sampleFrames(jobCtx, job, videoPath, scratchDir)
	if err != nil {
		return handleError(pubsub.StepExtracting, &StageError{Stage: StageSampling, Message: err.Error(), Err: err})
	}
	log.Printf("Job %s: %d frames extracted, %d selected", job.ID, extracted, len(frames))

	// Step 3: 模型分析
	publishProgress(pubsub.StepAnalyzing, "processing", "")
	result, err := p.chain.Invoke(jobCtx, frames)
	if err != nil {
		return handleError(pubsub.StepAnalyzing, &StageError{Stage: StageAnalysis, Message: "AI 分析失败", Err: err})
	}
	log.Printf("Job %s: analyzed by %s (key#%d) after %d attempt(s)",
		job.ID, result.ProviderUsed, result.CredentialIndex, result.AttemptCount)

	result.VideoInfo = model.VideoInfo{
		DurationSeconds: duration,
		FileSizeBytes:   fileSize,
		FramesExtracted: extracted,
		FramesAnalyzed:  len(frames),
	}

	// Step 4: 打包缩略图（软失败：上传挂了食谱仍然可用）
	publishProgress(pubsub.StepUploading, "processing", "")
	if p.store != nil && len(frames) > 0 {
		thumbURL, err := p.store.UploadThumbnail(frames[0].Data, ".jpg")
		if err != nil {
			log.Printf("Job %s: thumbnail upload failed (soft): %v", job.ID, err)
			result.PackagingError = fmt.Sprintf("%s: %v", StagePackaging, err)
		} else {
			result.ThumbnailURL = thumbURL
			result.Recipe.ThumbnailURL = thumbURL
		}
	}

	publishProgress(pubsub.StepDone, "completed", "")
	log.Printf("Job %s: completed, recipe=%s", job.ID, result.Recipe.Name)

	return result, nil
}

// acquire 把影片弄到 scratch 目录里：URL 走下载器，上传文件挪进来。
// 挪进 scratch 是清理不变量的一部分：任务结束时源文件必须一起消失。
func (p *Pipeline) acquire(ctx context.Context, job *Job, scratchDir string) (string, error) {
	if job.VideoURL != "" {
		return p.acquirer.Download(ctx, job.VideoURL, scratchDir)
	}

	if job.LocalPath == "" {
		return "", fmt.Errorf("任务缺少影片来源（URL 或上传文件）")
	}

	dest := filepath.Join(scratchDir, filepath.Base(job.LocalPath))
	if err := moveFile(job.LocalPath, dest); err != nil {
		return "", fmt.Errorf("无法移动上传文件: %w", err)
	}
	return dest, nil
}

// sampleFrames 抽帧并决定关键帧数。单张图片直接作为一帧序列。
func (p *Pipeline) sampleFrames(ctx context.Context, job *Job, videoPath, scratchDir string) ([]model.Frame, int, float64, error) {
	if job.IsImage {
		data, err := os.ReadFile(videoPath)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("无法读取图片: %w", err)
		}
		frame := model.Frame{Index: 0, TimestampSeconds: 0, Path: videoPath, Data: data}
		return []model.Frame{frame}, 1, 0, nil
	}

	duration, err := p.sampler.ProbeDuration(ctx, videoPath)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("无法读取影片信息: %w", err)
	}

	frameCount := job.FrameCount
	if frameCount <= 0 {
		frameCount = sampler.OptimalFrameCount(int(duration))
		if frameCount <= 0 {
			frameCount = p.opts.KeyFrames
		}
	}

	framesDir := filepath.Join(scratchDir, "frames")
	frames, extracted, err := p.sampler.Sample(ctx, videoPath, framesDir, frameCount)
	if err != nil {
		return nil, 0, duration, err
	}
	if len(frames) == 0 {
		return nil, extracted, duration, fmt.Errorf("影片中没有可用画面")
	}

	return frames, extracted, duration, nil
}

// moveFile 优先 rename，跨文件系统时退回复制+删除
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	in.Close()
	return os.Remove(src)
}
