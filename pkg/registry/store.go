package registry

import (
	"errors"
	"fmt"

	"github.com/z-wentao/meetscribe/pkg/config"
	"github.com/z-wentao/meetscribe/pkg/models"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("记录不存在")

// Store 音频文件 + 转录任务存储接口
type Store interface {
	// SaveFile 保存文件记录
	SaveFile(file *models.AudioFile) error

	// GetFile 获取文件记录
	GetFile(fileID string) (*models.AudioFile, error)

	// FindFileByHash 按内容哈希查找（去重强信号）
	FindFileByHash(hash string) (*models.AudioFile, error)

	// FindFileByNameSize 按原始文件名+大小查找（去重弱信号）
	FindFileByNameSize(name string, size int64) (*models.AudioFile, error)

	// ListFiles 列出所有文件
	ListFiles() ([]*models.AudioFile, error)

	// UpdateFile 更新文件记录（回调函数模式）
	UpdateFile(fileID string, updateFn func(*models.AudioFile)) error

	// SaveJob 保存任务
	SaveJob(job *models.TranscriptionJob) error

	// GetJob 获取任务
	GetJob(jobID string) (*models.TranscriptionJob, error)

	// GetJobByFile 获取文件当前的任务
	GetJobByFile(fileID string) (*models.TranscriptionJob, error)

	// UpdateJob 更新任务（回调函数模式）
	UpdateJob(jobID string, updateFn func(*models.TranscriptionJob)) error

	// ListJobs 列出所有任务
	ListJobs() ([]*models.TranscriptionJob, error)

	// Close 关闭存储连接
	Close() error
}

// NewStore 根据配置创建存储
func NewStore(cfg *config.StorageConfig) (Store, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "postgres":
		return NewPostgresStore(cfg.Postgres)
	case "redis":
		return NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.TTL)
	case "hybrid":
		redis, err := NewRedisStore(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.TTL)
		if err != nil {
			return nil, err
		}
		db, err := NewPostgresStore(cfg.Postgres)
		if err != nil {
			redis.Close()
			return nil, err
		}
		return NewHybridStore(redis, db), nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Type)
	}
}
