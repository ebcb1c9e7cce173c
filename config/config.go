package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	OSS        OSSConfig        `mapstructure:"oss"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Sampler    SamplerConfig    `mapstructure:"sampler"`
	Downloader DownloaderConfig `mapstructure:"downloader"`
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Worker     WorkerConfig     `mapstructure:"worker"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Providers  []ProviderConfig `mapstructure:"providers"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
	CDNDomain       string `mapstructure:"cdn_domain"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

// SamplerConfig 抽帧配置
type SamplerConfig struct {
	MaxFrames int `mapstructure:"max_frames"` // 1fps 提取的帧数上限
	KeyFrames int `mapstructure:"key_frames"` // 默认送入模型的关键帧数
	Quality   int `mapstructure:"quality"`    // JPEG 质量（1-31，越小越好）
}

// DownloaderConfig 视频下载配置
type DownloaderConfig struct {
	CookiesFile    string `mapstructure:"cookies_file"`    // yt-dlp cookies 文件路径（可选）
	TimeoutSeconds int    `mapstructure:"timeout_seconds"` // 单次下载超时
	MaxFileSizeMB  int    `mapstructure:"max_file_size_mb"`
}

// PipelineConfig 分析流水线配置
type PipelineConfig struct {
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds"` // 单任务总预算（下载+抽帧+分析）
	MaxConcurrent     int `mapstructure:"max_concurrent"`      // 单实例并发任务上限
}

// WorkerConfig 主动模式（轮询）配置
type WorkerConfig struct {
	PollIntervalSeconds int `mapstructure:"poll_interval_seconds"`
	BatchLimit          int `mapstructure:"batch_limit"` // 单次轮询最多拉取的失败任务数
	MaxWorkers          int `mapstructure:"max_workers"` // 单次轮询内的并发处理数
}

type UploadConfig struct {
	MaxSize           int64    `mapstructure:"max_size"`           // 最大文件大小（字节）
	TempDir           string   `mapstructure:"temp_dir"`           // 临时目录
	ExpireHours       int      `mapstructure:"expire_hours"`       // 过期时间（小时）
	AllowedExtensions []string `mapstructure:"allowed_extensions"` // 允许的扩展名
}

// ProviderConfig 视觉模型提供商配置，按列表顺序作为降级优先级
type ProviderConfig struct {
	Name    string   `mapstructure:"name"`     // gemini / openai / grok
	Model   string   `mapstructure:"model"`    // 模型 ID
	APIKeys []string `mapstructure:"api_keys"` // 多 key 轮换
	BaseURL string   `mapstructure:"base_url"` // OpenAI 兼容接口的自定义地址（grok 用）
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	// 检查 config.local.yaml 是否存在
	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// applyDefaults 填充未配置的默认值
func applyDefaults(cfg *Config) {
	if cfg.Sampler.MaxFrames <= 0 {
		cfg.Sampler.MaxFrames = 180
	}
	if cfg.Sampler.KeyFrames <= 0 {
		cfg.Sampler.KeyFrames = 12
	}
	if cfg.Sampler.Quality <= 0 {
		cfg.Sampler.Quality = 2
	}
	if cfg.Downloader.TimeoutSeconds <= 0 {
		cfg.Downloader.TimeoutSeconds = 300
	}
	if cfg.Pipeline.JobTimeoutSeconds <= 0 {
		cfg.Pipeline.JobTimeoutSeconds = 600
	}
	if cfg.Pipeline.MaxConcurrent <= 0 {
		cfg.Pipeline.MaxConcurrent = 2
	}
	if cfg.Worker.PollIntervalSeconds <= 0 {
		cfg.Worker.PollIntervalSeconds = 60
	}
	if cfg.Worker.BatchLimit <= 0 {
		cfg.Worker.BatchLimit = 3
	}
	if cfg.Worker.MaxWorkers <= 0 {
		cfg.Worker.MaxWorkers = 1
	}
	if cfg.Upload.TempDir == "" {
		cfg.Upload.TempDir = filepath.Join(os.TempDir(), "recipe_uploads")
	}
}
