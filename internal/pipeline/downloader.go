package pipeline

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/recipeai/recipe_video_server/config"
)

// 下载失败类别
const (
	DownloadErrUnsupported = "unsupported_source"
	DownloadErrRateLimited = "rate_limited"
	DownloadErrUnavailable = "unavailable"
	DownloadErrNotFound    = "not_found"
	DownloadErrUnknown     = "download_failed"
)

// DownloadError 下载错误，包含类别、用户友好消息和原始错误
type DownloadError struct {
	Kind        string
	UserMessage string // 中文，给用户看
	RawError    error  // 原始错误，写日志
}

func (e *DownloadError) Error() string {
	return e.UserMessage
}

func (e *DownloadError) Unwrap() error {
	return e.RawError
}

// Downloader yt-dlp 包装器，把平台影片拉到本地临时目录。
// cookie 刷新、平台侧重试策略都是 yt-dlp 和部署层的事，这里不管。
type Downloader struct {
	cookiesFile   string
	timeout       time.Duration
	maxFileSizeMB int
}

// NewDownloader 创建下载器
func NewDownloader(cfg config.DownloaderConfig) *Downloader {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Downloader{
		cookiesFile:   cfg.CookiesFile,
		timeout:       timeout,
		maxFileSizeMB: cfg.MaxFileSizeMB,
	}
}

// classifyDownloadError 根据 yt-dlp 输出分类错误，返回中文用户提示
func classifyDownloadError(output string, err error) *DownloadError {
	lower := strings.ToLower(output + " " + err.Error())

	switch {
	case strings.Contains(lower, "unsupported url") ||
		strings.Contains(lower, "is not a valid url"):
		return &DownloadError{
			Kind:        DownloadErrUnsupported,
			UserMessage: "不支持的影片链接，请检查地址",
			RawError:    fmt.Errorf("%w, output: %s", err, output),
		}
	case strings.Contains(lower, "429") ||
		strings.Contains(lower, "rate limit") ||
		strings.Contains(lower, "too many requests"):
		return &DownloadError{
			Kind:        DownloadErrRateLimited,
			UserMessage: "平台限流，请稍后重试",
			RawError:    fmt.Errorf("%w, output: %s", err, output),
		}
	case strings.Contains(lower, "private") ||
		strings.Contains(lower, "members only") ||
		strings.Contains(lower, "login required") ||
		strings.Contains(lower, "not available in your country") ||
		strings.Contains(lower, "sign in to confirm"):
		return &DownloadError{
			Kind:        DownloadErrUnavailable,
			UserMessage: "影片无法访问（私密、付费或地区限制）",
			RawError:    fmt.Errorf("%w, output: %s", err, output),
		}
	case strings.Contains(lower, "404") ||
		strings.Contains(lower, "not found") ||
		strings.Contains(lower, "video unavailable") ||
		strings.Contains(lower, "has been removed"):
		return &DownloadError{
			Kind:        DownloadErrNotFound,
			UserMessage: "影片不存在或已被删除",
			RawError:    fmt.Errorf("%w, output: %s", err, output),
		}
	default:
		return &DownloadError{
			Kind:        DownloadErrUnknown,
			UserMessage: "影片下载失败，请检查链接后重试",
			RawError:    fmt.Errorf("%w, output: %s", err, output),
		}
	}
}

// Download 下载影片到 scratch 目录，返回本地文件路径。
// 这一层不做重试，任务级重试由主动模式的轮询提供。
func (d *Downloader) Download(ctx context.Context, videoURL, scratchDir string) (string, error) {
	if videoURL == "" {
		return "", &DownloadError{
			Kind:        DownloadErrUnsupported,
			UserMessage: "影片链接不能为空",
			RawError:    fmt.Errorf("empty video URL"),
		}
	}

	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return "", &DownloadError{
			Kind:        DownloadErrUnknown,
			UserMessage: "影片下载失败，请检查链接后重试",
			RawError:    fmt.Errorf("failed to create scratch dir: %w", err),
		}
	}

	dlCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	outputTemplate := filepath.Join(scratchDir, "video.%(ext)s")
	args := []string{
		"--no-playlist",
		"-f", "mp4/bestvideo*+bestaudio/best",
		"--merge-output-format", "mp4",
		"-o", outputTemplate,
	}
	if d.maxFileSizeMB > 0 {
		args = append(args, "--max-filesize", fmt.Sprintf("%dM", d.maxFileSizeMB))
	}
	if d.cookiesFile != "" {
		if _, err := os.Stat(d.cookiesFile); err == nil {
			args = append(args, "--cookies", d.cookiesFile)
		}
	}
	args = append(args, videoURL)

	cmd := exec.CommandContext(dlCtx, "yt-dlp", args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", classifyDownloadError(string(output), err)
	}

	// yt-dlp 会替换 %(ext)s，按通配符找实际产出文件
	matches, err := filepath.Glob(filepath.Join(scratchDir, "video.*"))
	if err != nil || len(matches) == 0 {
		return "", &DownloadError{
			Kind:        DownloadErrUnknown,
			UserMessage: "影片下载失败，请检查链接后重试",
			RawError:    fmt.Errorf("downloaded file not found in %s", scratchDir),
		}
	}

	return matches[0], nil
}

// CheckYtdlp 就绪检查：确认 yt-dlp 可执行
func CheckYtdlp(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "yt-dlp", "--version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("yt-dlp not available: %w", err)
	}
	return nil
}
