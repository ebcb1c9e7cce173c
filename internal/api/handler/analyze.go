package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/recipeai/recipe_video_server/config"
	"github.com/recipeai/recipe_video_server/internal/model"
	"github.com/recipeai/recipe_video_server/internal/pipeline"
	"github.com/recipeai/recipe_video_server/internal/pkg/response"
)

// Processor 分析流水线
type Processor interface {
	Process(ctx context.Context, job *pipeline.Job) (*model.AnalysisResult, error)
}

// 上传文件的扩展名白名单
var (
	videoExtensions = map[string]bool{
		".mp4": true, ".mov": true, ".avi": true,
		".mkv": true, ".webm": true, ".flv": true,
	}
	imageExtensions = map[string]bool{
		".jpg": true, ".jpeg": true, ".png": true,
		".webp": true, ".bmp": true,
	}
)

type AnalyzeHandler struct {
	processor Processor
	cfg       *config.Config
}

func NewAnalyzeHandler(processor Processor, cfg *config.Config) *AnalyzeHandler {
	return &AnalyzeHandler{
		processor: processor,
		cfg:       cfg,
	}
}

type analyzeURLRequest struct {
	VideoURL string `form:"video_url" json:"video_url" binding:"required"`
}

// AnalyzeURL 分析线上影片
// POST /api/v1/analyze-from-url
func (h *AnalyzeHandler) AnalyzeURL(c *gin.Context) {
	var req analyzeURLRequest
	if err := c.ShouldBind(&req); err != nil {
		response.ParamError(c, "请提供 video_url")
		return
	}

	if !strings.HasPrefix(req.VideoURL, "http://") && !strings.HasPrefix(req.VideoURL, "https://") {
		response.ParamError(c, "video_url 必须是 http(s) 链接")
		return
	}

	job := &pipeline.Job{
		ID:       newJobID(),
		VideoURL: req.VideoURL,
	}

	log.Printf("Job %s: analyze request, url=%s", job.ID, req.VideoURL)

	result, err := h.processor.Process(c.Request.Context(), job)
	if err != nil {
		h.writeError(c, job.ID, err)
		return
	}

	response.Success(c, result)
}

// AnalyzeUpload 分析上传的影片或图片
// POST /api/v1/analyze
func (h *AnalyzeHandler) AnalyzeUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		response.ParamError(c, "请上传文件")
		return
	}
	defer file.Close()

	if h.cfg.Upload.MaxSize > 0 && header.Size > h.cfg.Upload.MaxSize {
		response.ParamError(c, fmt.Sprintf("文件过大，最大支持 %dMB", h.cfg.Upload.MaxSize/(1024*1024)))
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	isImage := imageExtensions[ext]
	if !isImage && !videoExtensions[ext] {
		response.ParamError(c, "不支持的文件格式")
		return
	}

	localPath, err := h.saveUpload(file, ext)
	if err != nil {
		log.Printf("Failed to save uploaded file: %v", err)
		response.ServerError(c, "文件保存失败")
		return
	}

	job := &pipeline.Job{
		ID:        newJobID(),
		LocalPath: localPath,
		IsImage:   isImage,
	}

	log.Printf("Job %s: analyze upload, file=%s, size=%d, image=%v",
		job.ID, header.Filename, header.Size, isImage)

	result, err := h.processor.Process(c.Request.Context(), job)
	if err != nil {
		h.writeError(c, job.ID, err)
		return
	}

	response.Success(c, result)
}

// saveUpload 把上传内容落到临时目录，文件会在任务结束时随 scratch 目录一起删除
func (h *AnalyzeHandler) saveUpload(src io.Reader, ext string) (string, error) {
	if err := os.MkdirAll(h.cfg.Upload.TempDir, 0o755); err != nil {
		return "", err
	}

	dest, err := os.CreateTemp(h.cfg.Upload.TempDir, "upload-*"+ext)
	if err != nil {
		return "", err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, src); err != nil {
		os.Remove(dest.Name())
		return "", err
	}

	return dest.Name(), nil
}

// writeError 把流水线错误映射到响应错误码
func (h *AnalyzeHandler) writeError(c *gin.Context, jobID string, err error) {
	log.Printf("Job %s: failed: %v", jobID, err)

	var stageErr *pipeline.StageError
	if !errors.As(err, &stageErr) {
		response.ServerError(c, "")
		return
	}

	switch stageErr.Stage {
	case pipeline.StageAcquisition:
		// 下载错误带用户可读消息，直接透出
		var dlErr *pipeline.DownloadError
		if errors.As(err, &dlErr) {
			response.Error(c, response.CodeAcquisitionFailed, dlErr.UserMessage)
			return
		}
		response.Error(c, response.CodeAcquisitionFailed, "")
	case pipeline.StageSampling:
		response.Error(c, response.CodeSamplingFailed, "")
	case pipeline.StageAnalysis:
		response.Error(c, response.CodeAnalysisFailed, "")
	default:
		response.ServerError(c, "")
	}
}

func newJobID() string {
	return fmt.Sprintf("web-%d", time.Now().UnixNano())
}
