package registry

import (
	"log"

	"github.com/z-wentao/meetscribe/pkg/models"
)

// HybridStore 混合存储：Redis（热数据） + PostgreSQL（冷数据）
// 策略：读写先走 Redis，终态任务异步落库
type HybridStore struct {
	redis     Store
	db        Store
	syncQueue chan *models.TranscriptionJob // 异步同步队列
	stopCh    chan struct{}
}

// NewHybridStore 创建混合存储
func NewHybridStore(redis, db Store) *HybridStore {
	store := &HybridStore{
		redis:     redis,
		db:        db,
		syncQueue: make(chan *models.TranscriptionJob, 100),
		stopCh:    make(chan struct{}),
	}

	// 启动后台同步 Worker
	go store.syncWorker()

	log.Println("✓ 混合存储初始化成功（Redis + PostgreSQL）")
	return store
}

// syncWorker 后台把终态任务同步到数据库
func (s *HybridStore) syncWorker() {
	for {
		select {
		case job := <-s.syncQueue:
			if err := s.db.SaveJob(job); err != nil {
				log.Printf("⚠️ 任务同步到数据库失败: %v", err)
			}
		case <-s.stopCh:
			// 清空剩余队列再退出
			for {
				select {
				case job := <-s.syncQueue:
					if err := s.db.SaveJob(job); err != nil {
						log.Printf("⚠️ 任务同步到数据库失败: %v", err)
					}
				default:
					return
				}
			}
		}
	}
}

func (s *HybridStore) asyncSyncToDB(job *models.TranscriptionJob) {
	select {
	case s.syncQueue <- job:
	default:
		// 队列满时退化为同步写，不丢终态
		if err := s.db.SaveJob(job); err != nil {
			log.Printf("⚠️ 任务同步到数据库失败: %v", err)
		}
	}
}

// SaveFile 文件记录直接双写（文件元数据量小且必须持久）
func (s *HybridStore) SaveFile(file *models.AudioFile) error {
	if err := s.redis.SaveFile(file); err != nil {
		log.Printf("⚠️ Redis 写入失败: %v", err)
	}
	return s.db.SaveFile(file)
}

// GetFile 优先 Redis，未命中查数据库并回写
func (s *HybridStore) GetFile(fileID string) (*models.AudioFile, error) {
	file, err := s.redis.GetFile(fileID)
	if err == nil {
		return file, nil
	}

	file, err = s.db.GetFile(fileID)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.redis.SaveFile(file); err != nil {
			log.Printf("⚠️ 回写 Redis 失败: %v", err)
		}
	}()
	return file, nil
}

// FindFileByHash 去重查询必须以数据库为准（Redis 索引可能过期）
func (s *HybridStore) FindFileByHash(hash string) (*models.AudioFile, error) {
	if file, err := s.redis.FindFileByHash(hash); err == nil {
		return file, nil
	}
	return s.db.FindFileByHash(hash)
}

// FindFileByNameSize 同上
func (s *HybridStore) FindFileByNameSize(name string, size int64) (*models.AudioFile, error) {
	if file, err := s.redis.FindFileByNameSize(name, size); err == nil {
		return file, nil
	}
	return s.db.FindFileByNameSize(name, size)
}

// ListFiles 文件列表走数据库（完整）
func (s *HybridStore) ListFiles() ([]*models.AudioFile, error) {
	return s.db.ListFiles()
}

// UpdateFile 更新双写
func (s *HybridStore) UpdateFile(fileID string, updateFn func(*models.AudioFile)) error {
	file, err := s.GetFile(fileID)
	if err != nil {
		return err
	}
	updateFn(file)
	if err := s.redis.SaveFile(file); err != nil {
		log.Printf("⚠️ Redis 写入失败: %v", err)
	}
	return s.db.SaveFile(file)
}

// SaveJob 立即写 Redis，终态任务异步落库
func (s *HybridStore) SaveJob(job *models.TranscriptionJob) error {
	if err := s.redis.SaveJob(job); err != nil {
		log.Printf("⚠️ Redis 写入失败: %v", err)
		// Redis 失败不影响业务，直接写数据库
		return s.db.SaveJob(job)
	}

	if job.Status.IsTerminal() {
		s.asyncSyncToDB(job)
	}
	return nil
}

// GetJob 优先 Redis，未命中查数据库并回写
func (s *HybridStore) GetJob(jobID string) (*models.TranscriptionJob, error) {
	job, err := s.redis.GetJob(jobID)
	if err == nil {
		return job, nil
	}

	log.Printf("📚 Redis 缓存未命中，查询数据库: %s", jobID)
	job, err = s.db.GetJob(jobID)
	if err != nil {
		return nil, err
	}

	go func() {
		if err := s.redis.SaveJob(job); err != nil {
			log.Printf("⚠️ 回写 Redis 失败: %v", err)
		}
	}()
	return job, nil
}

// GetJobByFile 获取文件当前的任务
func (s *HybridStore) GetJobByFile(fileID string) (*models.TranscriptionJob, error) {
	if job, err := s.redis.GetJobByFile(fileID); err == nil {
		return job, nil
	}
	return s.db.GetJobByFile(fileID)
}

// UpdateJob 更新任务
func (s *HybridStore) UpdateJob(jobID string, updateFn func(*models.TranscriptionJob)) error {
	job, err := s.GetJob(jobID)
	if err != nil {
		return err
	}
	updateFn(job)
	return s.SaveJob(job)
}

// ListJobs 任务列表走数据库（完整历史）
func (s *HybridStore) ListJobs() ([]*models.TranscriptionJob, error) {
	jobs, err := s.db.ListJobs()
	if err != nil {
		// 数据库不可用时降级到 Redis
		return s.redis.ListJobs()
	}
	return jobs, nil
}

// Close 关闭两层存储
func (s *HybridStore) Close() error {
	close(s.stopCh)
	s.redis.Close()
	return s.db.Close()
}
