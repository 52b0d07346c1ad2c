package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Config 应用配置
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Upload      UploadConfig      `yaml:"upload"`
	Storage     StorageConfig     `yaml:"storage"`
	Queue       QueueConfig       `yaml:"queue"`
	Transcriber TranscriberConfig `yaml:"transcriber"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int `yaml:"port"`
}

// UploadConfig 上传配置
type UploadConfig struct {
	AudioDir      string `yaml:"audio_dir"`      // 音频文件目录
	TranscriptDir string `yaml:"transcript_dir"` // 转录结果 JSON 目录
	MaxFileSize   int64  `yaml:"max_file_size"`  // 字节，默认 100MiB
}

// StorageConfig 任务存储配置
type StorageConfig struct {
	Type     string        `yaml:"type"` // memory / postgres / redis / hybrid
	Postgres string        `yaml:"postgres"`
	Redis    RedisConfig   `yaml:"redis"`
	TTL      time.Duration `yaml:"ttl"` // Redis 数据过期时间
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// QueueConfig 队列配置
type QueueConfig struct {
	Type       string         `yaml:"type"` // memory / rabbitmq
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL       string `yaml:"url"`
	QueueName string `yaml:"queue_name"`
}

// TranscriberConfig 转录引擎配置
type TranscriberConfig struct {
	PythonBin         string `yaml:"python_bin"`          // python 可执行文件
	ScriptPath        string `yaml:"script_path"`         // transcribe.py 路径
	ModelSize         string `yaml:"model_size"`          // tiny/base/small/medium/large
	Language          string `yaml:"language"`            // 空表示自动检测
	Device            string `yaml:"device"`              // cuda 或 cpu
	Diarization       bool   `yaml:"diarization"`         // 是否启用说话人分离
	AttemptTimeoutMin int    `yaml:"attempt_timeout_min"` // 单次尝试超时（分钟）
	MaxConcurrentJobs int    `yaml:"max_concurrent_jobs"` // Worker 池大小
	HuggingFaceToken  string `yaml:"huggingface_token"`   // 说话人分离所需凭证
}

// OpenAIConfig OpenAI 配置（说话人姓名解析）
type OpenAIConfig struct {
	APIKey          string `yaml:"api_key"`
	Model           string `yaml:"model"`
	ResolveSpeakers bool   `yaml:"resolve_speakers"` // 任务完成后自动解析说话人姓名
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &config, nil
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	if c.Upload.AudioDir == "" {
		c.Upload.AudioDir = "data/audio"
	}
	if c.Upload.TranscriptDir == "" {
		c.Upload.TranscriptDir = "data/transcripts"
	}
	if c.Upload.MaxFileSize <= 0 {
		c.Upload.MaxFileSize = 100 * 1024 * 1024 // 默认 100MiB
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	switch c.Storage.Type {
	case "memory", "postgres", "redis", "hybrid":
	default:
		return fmt.Errorf("不支持的存储类型: %s", c.Storage.Type)
	}
	if c.Storage.TTL <= 0 {
		c.Storage.TTL = 7 * 24 * time.Hour
	}

	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.Type == "rabbitmq" && c.Queue.RabbitMQ.QueueName == "" {
		c.Queue.RabbitMQ.QueueName = "meetscribe.transcription"
	}

	if c.Transcriber.PythonBin == "" {
		c.Transcriber.PythonBin = "python3"
	}
	if c.Transcriber.ScriptPath == "" {
		c.Transcriber.ScriptPath = "scripts/transcribe.py"
	}
	if c.Transcriber.ModelSize == "" {
		c.Transcriber.ModelSize = "base"
	}
	if c.Transcriber.Device == "" {
		c.Transcriber.Device = "cuda"
	}
	if c.Transcriber.Device != "cuda" && c.Transcriber.Device != "cpu" {
		return fmt.Errorf("不支持的设备类型: %s", c.Transcriber.Device)
	}
	if c.Transcriber.AttemptTimeoutMin <= 0 {
		c.Transcriber.AttemptTimeoutMin = 10 // 每次尝试 10 分钟
	}
	if c.Transcriber.MaxConcurrentJobs <= 0 {
		c.Transcriber.MaxConcurrentJobs = 2
	}
	if c.Transcriber.HuggingFaceToken == "" {
		c.Transcriber.HuggingFaceToken = os.Getenv("HUGGINGFACE_TOKEN")
	}

	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}

	return nil
}

// AttemptTimeout 单次转录尝试的超时时间
func (c *TranscriberConfig) AttemptTimeout() time.Duration {
	return time.Duration(c.AttemptTimeoutMin) * time.Minute
}
