package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/z-wentao/meetscribe/pkg/models"
)

// RedisStore Redis 存储实现
// 支持分布式部署；哈希/文件名去重走二级索引 key
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration // 数据过期时间
	ctx    context.Context
}

// NewRedisStore 创建 Redis 存储
func NewRedisStore(addr, password string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// 测试连接
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("连接 Redis 失败: %w", err)
	}

	return &RedisStore{
		client: client,
		ttl:    ttl,
		ctx:    ctx,
	}, nil
}

// key 格式: "meetscribe:file:{fileID}" / "meetscribe:job:{jobID}"
func (rs *RedisStore) fileKey(fileID string) string {
	return fmt.Sprintf("meetscribe:file:%s", fileID)
}

func (rs *RedisStore) jobKey(jobID string) string {
	return fmt.Sprintf("meetscribe:job:%s", jobID)
}

func (rs *RedisStore) hashIndexKey(hash string) string {
	return fmt.Sprintf("meetscribe:file:hash:%s", hash)
}

func (rs *RedisStore) nameSizeIndexKey(name string, size int64) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	return fmt.Sprintf("meetscribe:file:name:%s:%d", normalized, size)
}

// SaveFile 保存文件记录及其去重索引
func (rs *RedisStore) SaveFile(file *models.AudioFile) error {
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("序列化文件记录失败: %w", err)
	}

	if err := rs.client.Set(rs.ctx, rs.fileKey(file.FileID), data, rs.ttl).Err(); err != nil {
		return fmt.Errorf("保存到 Redis 失败: %w", err)
	}

	// 去重索引：hash -> fileID，name+size -> fileID
	rs.client.Set(rs.ctx, rs.hashIndexKey(file.ContentHash), file.FileID, rs.ttl)
	rs.client.Set(rs.ctx, rs.nameSizeIndexKey(file.OriginalName, file.Size), file.FileID, rs.ttl)

	// 文件索引（Sorted Set，score 为上传时间戳，用于 List）
	if err := rs.client.ZAdd(rs.ctx, "meetscribe:files:index", redis.Z{
		Score:  float64(file.CreatedAt.Unix()),
		Member: file.FileID,
	}).Err(); err != nil {
		return fmt.Errorf("添加到文件索引失败: %w", err)
	}

	return nil
}

// GetFile 获取文件记录
func (rs *RedisStore) GetFile(fileID string) (*models.AudioFile, error) {
	data, err := rs.client.Get(rs.ctx, rs.fileKey(fileID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("读取 Redis 失败: %w", err)
	}

	var file models.AudioFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("反序列化文件记录失败: %w", err)
	}
	return &file, nil
}

func (rs *RedisStore) findFileByIndex(indexKey string) (*models.AudioFile, error) {
	fileID, err := rs.client.Get(rs.ctx, indexKey).Result()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("读取 Redis 索引失败: %w", err)
	}
	return rs.GetFile(fileID)
}

// FindFileByHash 按内容哈希查找
func (rs *RedisStore) FindFileByHash(hash string) (*models.AudioFile, error) {
	return rs.findFileByIndex(rs.hashIndexKey(hash))
}

// FindFileByNameSize 按规范化文件名+大小查找
func (rs *RedisStore) FindFileByNameSize(name string, size int64) (*models.AudioFile, error) {
	return rs.findFileByIndex(rs.nameSizeIndexKey(name, size))
}

// ListFiles 列出所有文件（按上传时间倒序，最多 100 条）
func (rs *RedisStore) ListFiles() ([]*models.AudioFile, error) {
	fileIDs, err := rs.client.ZRevRange(rs.ctx, "meetscribe:files:index", 0, 99).Result()
	if err != nil {
		return nil, fmt.Errorf("读取文件索引失败: %w", err)
	}

	files := make([]*models.AudioFile, 0, len(fileIDs))
	for _, fileID := range fileIDs {
		file, err := rs.GetFile(fileID)
		if err != nil {
			continue // 已过期的记录跳过
		}
		files = append(files, file)
	}
	return files, nil
}

// UpdateFile 更新文件记录
func (rs *RedisStore) UpdateFile(fileID string, updateFn func(*models.AudioFile)) error {
	file, err := rs.GetFile(fileID)
	if err != nil {
		return err
	}
	updateFn(file)
	file.UpdatedAt = time.Now()
	return rs.SaveFile(file)
}

// SaveJob 保存任务
func (rs *RedisStore) SaveJob(job *models.TranscriptionJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("序列化任务失败: %w", err)
	}

	if err := rs.client.Set(rs.ctx, rs.jobKey(job.JobID), data, rs.ttl).Err(); err != nil {
		return fmt.Errorf("保存到 Redis 失败: %w", err)
	}

	// 任务索引 + 文件->任务映射
	if err := rs.client.ZAdd(rs.ctx, "meetscribe:jobs:index", redis.Z{
		Score:  float64(job.CreatedAt.Unix()),
		Member: job.JobID,
	}).Err(); err != nil {
		return fmt.Errorf("添加到任务索引失败: %w", err)
	}
	rs.client.Set(rs.ctx, fmt.Sprintf("meetscribe:job:file:%s", job.FileID), job.JobID, rs.ttl)

	return nil
}

// GetJob 获取任务
func (rs *RedisStore) GetJob(jobID string) (*models.TranscriptionJob, error) {
	data, err := rs.client.Get(rs.ctx, rs.jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("读取 Redis 失败: %w", err)
	}

	var job models.TranscriptionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("反序列化任务失败: %w", err)
	}
	return &job, nil
}

// GetJobByFile 获取文件当前的任务
func (rs *RedisStore) GetJobByFile(fileID string) (*models.TranscriptionJob, error) {
	jobID, err := rs.client.Get(rs.ctx, fmt.Sprintf("meetscribe:job:file:%s", fileID)).Result()
	if err == redis.Nil {
		return nil, fmt.Errorf("%w: file=%s", ErrNotFound, fileID)
	}
	if err != nil {
		return nil, fmt.Errorf("读取 Redis 失败: %w", err)
	}
	return rs.GetJob(jobID)
}

// UpdateJob 更新任务
func (rs *RedisStore) UpdateJob(jobID string, updateFn func(*models.TranscriptionJob)) error {
	job, err := rs.GetJob(jobID)
	if err != nil {
		return err
	}
	updateFn(job)
	return rs.SaveJob(job)
}

// ListJobs 列出所有任务（按创建时间倒序，最多 100 条）
func (rs *RedisStore) ListJobs() ([]*models.TranscriptionJob, error) {
	jobIDs, err := rs.client.ZRevRange(rs.ctx, "meetscribe:jobs:index", 0, 99).Result()
	if err != nil {
		return nil, fmt.Errorf("读取任务索引失败: %w", err)
	}

	jobs := make([]*models.TranscriptionJob, 0, len(jobIDs))
	for _, jobID := range jobIDs {
		job, err := rs.GetJob(jobID)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Close 关闭 Redis 连接
func (rs *RedisStore) Close() error {
	return rs.client.Close()
}
