package worker

import (
	"context"
	"errors"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/recipeai/recipe_video_server/internal/model"
	"github.com/recipeai/recipe_video_server/internal/pipeline"
)

// skipResetInterval 本地失败记录的保留时长，到期清空重新给机会
const skipResetInterval = 24 * time.Hour

// JobStore 外部任务库，轮询和结果回写都必须可重复调用
type JobStore interface {
	ListFailed(limit int) ([]*model.AnalysisJob, error)
	MarkProcessing(id int64) error
	SubmitResult(id int64, result *model.AnalysisResult) error
	SubmitFailure(id int64, kind, message string) error
}

// Processor 分析流水线
type Processor interface {
	Process(ctx context.Context, job *pipeline.Job) (*model.AnalysisResult, error)
}

// Options 轮询器配置
type Options struct {
	PollInterval time.Duration
	BatchLimit   int // 单次轮询拉取的任务数上限
	MaxWorkers   int // 单次轮询内的并发处理数
}

// Poller 主动模式轮询器：定时从外部任务库拉取失败任务重试。
// 同一任务库同时只能跑一个实例——轮询器自己不做分布式锁，
// 多实例会重复处理任务，这由部署约束保证。
// 轮询节拍严格串行，节拍内的任务按 MaxWorkers 并发。
type Poller struct {
	store     JobStore
	processor Processor
	opts      Options

	// 重试也失败过的任务本地记录，防止无限重试；定期清空
	skipMu    sync.Mutex
	skipped   map[int64]struct{}
	lastReset time.Time
}

// NewPoller 创建轮询器
func NewPoller(store JobStore, processor Processor, opts Options) *Poller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = time.Minute
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 3
	}
	if opts.MaxWorkers <= 0 {
		opts.MaxWorkers = 1
	}
	return &Poller{
		store:     store,
		processor: processor,
		opts:      opts,
		skipped:   make(map[int64]struct{}),
		lastReset: time.Now(),
	}
}

// Run 启动轮询循环，直到 context 取消才退出
func (p *Poller) Run(ctx context.Context) {
	log.Printf("Poller started, interval=%v, batch=%d, workers=%d",
		p.opts.PollInterval, p.opts.BatchLimit, p.opts.MaxWorkers)

	ticker := time.NewTicker(p.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Poller stopped")
			return
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick 单次轮询：拉取 → 并发处理 → 回写。
// 没有任务时静默返回，不算错误也不记日志。
func (p *Poller) Tick(ctx context.Context) {
	p.skipMu.Lock()
	if time.Since(p.lastReset) > skipResetInterval {
		log.Printf("Resetting skipped jobs (tracked %d)", len(p.skipped))
		p.skipped = make(map[int64]struct{})
		p.lastReset = time.Now()
	}
	p.skipMu.Unlock()

	jobs, err := p.store.ListFailed(p.opts.BatchLimit)
	if err != nil {
		log.Printf("Failed to list failed jobs: %v", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	log.Printf("Found %d failed job(s)", len(jobs))

	// 有界并发：信号量 + WaitGroup，节拍结束前等所有任务完成
	sem := make(chan struct{}, p.opts.MaxWorkers)
	var wg sync.WaitGroup

	for _, job := range jobs {
		if p.isSkipped(job.ID) {
			log.Printf("Job %d: skipping (retry already failed, silently ignoring)", job.ID)
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(job *model.AnalysisJob) {
			defer wg.Done()
			defer func() { <-sem }()
			if !p.processOne(ctx, job) {
				p.markSkipped(job.ID)
			}
		}(job)
	}

	wg.Wait()
}

// markSkipped 记录重试失败的任务。同一节拍内工作协程边写、
// 调度循环边读，读写两侧都必须持锁。
func (p *Poller) markSkipped(id int64) {
	p.skipMu.Lock()
	defer p.skipMu.Unlock()
	p.skipped[id] = struct{}{}
}

func (p *Poller) isSkipped(id int64) bool {
	p.skipMu.Lock()
	defer p.skipMu.Unlock()
	_, ok := p.skipped[id]
	return ok
}

// processOne 处理单个任务并回写结果，返回是否成功
func (p *Poller) processOne(ctx context.Context, job *model.AnalysisJob) bool {
	log.Printf("Job %d: retrying", job.ID)

	if err := p.store.MarkProcessing(job.ID); err != nil {
		log.Printf("Job %d: failed to mark processing: %v", job.ID, err)
	}

	result, err := p.processor.Process(ctx, &pipeline.Job{
		ID:        strconv.FormatInt(job.ID, 10),
		VideoURL:  job.VideoURL,
		LocalPath: job.UploadPath,
	})

	if err != nil {
		kind, msg := classifyFailure(err)
		log.Printf("Job %d: retry failed (%s): %v", job.ID, kind, err)
		if submitErr := p.store.SubmitFailure(job.ID, kind, msg); submitErr != nil {
			log.Printf("Job %d: failed to submit failure: %v", job.ID, submitErr)
		}
		return false
	}

	if err := p.store.SubmitResult(job.ID, result); err != nil {
		log.Printf("Job %d: failed to submit result: %v", job.ID, err)
		return false
	}

	log.Printf("Job %d: retry completed successfully", job.ID)
	return true
}

// classifyFailure 从流水线错误中提取失败类别和可读消息
func classifyFailure(err error) (kind, message string) {
	var stageErr *pipeline.StageError
	if errors.As(err, &stageErr) {
		return stageErr.Stage, stageErr.Error()
	}
	return "unknown", err.Error()
}
