package sampler

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/recipeai/recipe_video_server/internal/model"
)

// Sampler 把影片转成有上限、按时间均匀分布的静帧序列。
// 先按 1fps 全量抽帧（受 maxFrames 保护），再等距下采样到目标帧数。
type Sampler struct {
	maxFrames int
	quality   int
}

// New 创建抽帧器
func New(maxFrames, quality int) *Sampler {
	if maxFrames <= 0 {
		maxFrames = 180
	}
	if quality <= 0 {
		quality = 2
	}
	return &Sampler{maxFrames: maxFrames, quality: quality}
}

// ExtractError 抽帧失败，携带 ffmpeg 诊断输出。
// 源文件损坏重抽也不会成功，所以这一层不做重试。
type ExtractError struct {
	Output   string
	RawError error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("ffmpeg extraction failed: %v, output: %s", e.RawError, e.Output)
}

func (e *ExtractError) Unwrap() error {
	return e.RawError
}

// ExtractFrames 以 1fps 抽帧到 scratch 目录，返回按时间排序的帧文件路径。
// 不负责删除产出文件，清理归流水线管。
func (s *Sampler) ExtractFrames(ctx context.Context, videoPath, scratchDir string) ([]string, error) {
	if _, err := os.Stat(videoPath); err != nil {
		return nil, &ExtractError{RawError: fmt.Errorf("video file not found: %w", err)}
	}

	if err := os.MkdirAll(scratchDir, 0755); err != nil {
		return nil, &ExtractError{RawError: fmt.Errorf("failed to create frames dir: %w", err)}
	}

	outputPattern := filepath.Join(scratchDir, "frame_%04d.jpg")
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", videoPath,
		"-vf", "fps=1",
		"-q:v", strconv.Itoa(s.quality),
		"-frames:v", strconv.Itoa(s.maxFrames),
		"-threads", "1",
		outputPattern,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, &ExtractError{Output: truncateOutput(string(output)), RawError: err}
	}

	paths, err := filepath.Glob(filepath.Join(scratchDir, "frame_*.jpg"))
	if err != nil {
		return nil, &ExtractError{RawError: err}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, &ExtractError{Output: truncateOutput(string(output)), RawError: fmt.Errorf("no frames extracted")}
	}

	return paths, nil
}

// SelectKeyFrames 从 N 帧中等距选出 k 帧。
// N <= k 时全部返回（短片帧数不足不是错误）；否则取 int(i*N/k)，
// 选择是确定性的，同一输入两次运行选出的下标完全一致。
func SelectKeyFrames(paths []string, k int) []string {
	if len(paths) <= k {
		return paths
	}

	step := float64(len(paths)) / float64(k)
	selected := make([]string, 0, k)
	for i := 0; i < k; i++ {
		selected = append(selected, paths[int(float64(i)*step)])
	}
	return selected
}

// Sample 抽帧 + 选帧 + 载入字节，一步到位。
// 帧的时间戳按 1fps 规则由原始帧序号换算。
func (s *Sampler) Sample(ctx context.Context, videoPath, scratchDir string, k int) ([]model.Frame, int, error) {
	paths, err := s.ExtractFrames(ctx, videoPath, scratchDir)
	if err != nil {
		return nil, 0, err
	}

	selected := SelectKeyFrames(paths, k)

	frames := make([]model.Frame, 0, len(selected))
	for i, p := range selected {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, len(paths), &ExtractError{RawError: fmt.Errorf("failed to read frame %s: %w", p, err)}
		}
		frames = append(frames, model.Frame{
			Index:            i,
			TimestampSeconds: float64(frameNumber(p)),
			Path:             p,
			Data:             data,
		})
	}

	return frames, len(paths), nil
}

// frameNumber 从 frame_0042.jpg 解析原始帧序号（1 起，对应第 N 秒）
func frameNumber(path string) int {
	base := filepath.Base(path)
	base = strings.TrimPrefix(base, "frame_")
	base = strings.TrimSuffix(base, ".jpg")
	n, err := strconv.Atoi(base)
	if err != nil {
		return 0
	}
	return n
}

// ProbeDuration 用 ffprobe 读取影片时长（秒）
func (s *Sampler) ProbeDuration(ctx context.Context, videoPath string) (float64, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoPath,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w, output: %s", err, truncateOutput(string(output)))
	}

	duration, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration: %w", err)
	}

	return duration, nil
}

// OptimalFrameCount 按影片时长决定送入模型的帧数，平衡准确率和成本。
// 短片密一点，长片稀一点，封顶 36 帧控制费用。
func OptimalFrameCount(durationSeconds int) int {
	switch {
	case durationSeconds < 300: // <5 分钟
		return 12
	case durationSeconds < 600: // <10 分钟
		return 18
	case durationSeconds < 900: // <15 分钟
		return 24
	default:
		n := durationSeconds / 30
		if n < 24 {
			n = 24
		}
		if n > 36 {
			n = 36
		}
		return n
	}
}

// CheckFFmpeg 就绪检查：确认 ffmpeg 可执行
func CheckFFmpeg(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", "-version")
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}
	return nil
}

// truncateOutput ffmpeg 输出可能很长，只保留尾部诊断信息
func truncateOutput(s string) string {
	const limit = 500
	if len(s) <= limit {
		return s
	}
	return "..." + s[len(s)-limit:]
}
