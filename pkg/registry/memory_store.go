package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/z-wentao/meetscribe/pkg/models"
)

// MemoryStore 内存存储实现
// 使用 RWMutex 保证并发安全
type MemoryStore struct {
	files map[string]*models.AudioFile
	jobs  map[string]*models.TranscriptionJob
	mu    sync.RWMutex
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		files: make(map[string]*models.AudioFile),
		jobs:  make(map[string]*models.TranscriptionJob),
	}
}

// SaveFile 保存文件记录
func (ms *MemoryStore) SaveFile(file *models.AudioFile) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.files[file.FileID] = file
	return nil
}

// GetFile 获取文件记录
func (ms *MemoryStore) GetFile(fileID string) (*models.AudioFile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	file, exists := ms.files[fileID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}
	return file, nil
}

// FindFileByHash 按内容哈希查找
func (ms *MemoryStore) FindFileByHash(hash string) (*models.AudioFile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, file := range ms.files {
		if file.ContentHash == hash {
			return file, nil
		}
	}
	return nil, ErrNotFound
}

// FindFileByNameSize 按规范化文件名+大小查找
func (ms *MemoryStore) FindFileByNameSize(name string, size int64) (*models.AudioFile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	normalized := strings.ToLower(strings.TrimSpace(name))
	for _, file := range ms.files {
		if strings.ToLower(strings.TrimSpace(file.OriginalName)) == normalized && file.Size == size {
			return file, nil
		}
	}
	return nil, ErrNotFound
}

// ListFiles 列出所有文件（按上传时间倒序）
func (ms *MemoryStore) ListFiles() ([]*models.AudioFile, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	files := make([]*models.AudioFile, 0, len(ms.files))
	for _, file := range ms.files {
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].CreatedAt.After(files[j].CreatedAt)
	})
	return files, nil
}

// UpdateFile 更新文件记录
func (ms *MemoryStore) UpdateFile(fileID string, updateFn func(*models.AudioFile)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	file, exists := ms.files[fileID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, fileID)
	}

	updateFn(file)
	file.UpdatedAt = time.Now()
	return nil
}

// SaveJob 保存任务
func (ms *MemoryStore) SaveJob(job *models.TranscriptionJob) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.jobs[job.JobID] = job
	return nil
}

// GetJob 获取任务
func (ms *MemoryStore) GetJob(jobID string) (*models.TranscriptionJob, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	return job, nil
}

// GetJobByFile 获取文件当前的任务（最近创建的一个）
func (ms *MemoryStore) GetJobByFile(fileID string) (*models.TranscriptionJob, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var latest *models.TranscriptionJob
	for _, job := range ms.jobs {
		if job.FileID != fileID {
			continue
		}
		if latest == nil || job.CreatedAt.After(latest.CreatedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("%w: file=%s", ErrNotFound, fileID)
	}
	return latest, nil
}

// UpdateJob 更新任务状态
func (ms *MemoryStore) UpdateJob(jobID string, updateFn func(*models.TranscriptionJob)) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, exists := ms.jobs[jobID]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}

	updateFn(job)
	return nil
}

// ListJobs 列出所有任务（按创建时间倒序）
func (ms *MemoryStore) ListJobs() ([]*models.TranscriptionJob, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	jobs := make([]*models.TranscriptionJob, 0, len(ms.jobs))
	for _, job := range ms.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs, nil
}

// Close 关闭存储（内存存储无需关闭）
func (ms *MemoryStore) Close() error {
	return nil
}
