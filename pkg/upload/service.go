package upload

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/models"
	"github.com/z-wentao/meetscribe/pkg/queue"
	"github.com/z-wentao/meetscribe/pkg/registry"
)

// Request 一次上传请求（已从 multipart 解出的字节）
type Request struct {
	Data            []byte
	OriginalName    string
	MimeType        string
	SpeakerCount    int  // 0/1 表示自动检测
	AllowDuplicates bool // 用户确认"仍然上传"
	Draft           bool // 草稿：只存文件，不创建转录任务
}

// Response 上传结果
type Response struct {
	FileID   string           `json:"file_id"`
	JobID    string           `json:"job_id,omitempty"`
	Status   models.JobStatus `json:"status,omitempty"`
	Duration int              `json:"duration"`
	Message  string           `json:"message"`
}

// Service 上传管线：校验 → 去重 → 落盘 → 建档 → 入队
// 同步走到入队为止，转录由 Worker 池异步处理
type Service struct {
	validator *Validator
	dedup     *Dedup
	files     *FileStore
	store     registry.Store
	jobs      queue.Queue

	modelSize   string
	language    string
	diarization bool
}

func NewService(
	validator *Validator,
	dedup *Dedup,
	files *FileStore,
	store registry.Store,
	jobs queue.Queue,
	modelSize string,
	language string,
	diarization bool,
) *Service {
	return &Service{
		validator:   validator,
		dedup:       dedup,
		files:       files,
		store:       store,
		jobs:        jobs,
		modelSize:   modelSize,
		language:    language,
		diarization: diarization,
	}
}

// HandleUpload 处理一次上传
// 错误语义：ValidationError / ConflictError / StorageError 同步返回调用方；
// 入队之后的一切失败只体现在任务状态里
func (s *Service) HandleUpload(ctx context.Context, req *Request) (*Response, error) {
	// 1. 校验（无副作用）
	size := int64(len(req.Data))
	if err := s.validator.Validate(req.OriginalName, size, req.MimeType); err != nil {
		return nil, err
	}

	// 2. 去重（任何落盘之前）
	hash := HashContent(req.Data)
	if err := s.dedup.Check(hash, req.OriginalName, size, req.AllowDuplicates); err != nil {
		return nil, err
	}

	// 3. 落盘 + 探测时长
	stored, err := s.files.Save(ctx, req.Data, req.OriginalName)
	if err != nil {
		return nil, err
	}

	// 4. 建档：AudioFile 和首个任务一起创建（草稿除外）
	now := time.Now()
	file := &models.AudioFile{
		FileID:       uuid.New().String(),
		StoredName:   stored.StoredName,
		OriginalName: req.OriginalName,
		Size:         size,
		MimeType:     req.MimeType,
		ContentHash:  hash,
		Duration:     stored.Duration,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if req.Draft {
		if err := s.store.SaveFile(file); err != nil {
			return nil, &apperr.StorageError{Op: "save_file", Err: err}
		}
		log.Printf("✓ 草稿已保存: %s (file_id=%s)", req.OriginalName, file.FileID)
		return &Response{
			FileID:   file.FileID,
			Duration: stored.Duration,
			Message:  "草稿已保存，未创建转录任务",
		}, nil
	}

	job := &models.TranscriptionJob{
		JobID:        uuid.New().String(),
		FileID:       file.FileID,
		Status:       models.StatusPending,
		ModelSize:    s.modelSize,
		Language:     s.language,
		Diarization:  s.diarization,
		SpeakerCount: req.SpeakerCount,
		Progress:     0,
		CreatedAt:    now,
	}
	file.TranscriptionStatus = models.StatusPending

	if err := s.store.SaveFile(file); err != nil {
		return nil, &apperr.StorageError{Op: "save_file", Err: err}
	}
	if err := s.store.SaveJob(job); err != nil {
		return nil, &apperr.StorageError{Op: "save_job", Err: err}
	}

	// 5. 入队，Worker 池异步消费
	if err := s.jobs.Enqueue(&queue.JobMessage{
		JobID:     job.JobID,
		FileID:    file.FileID,
		AudioPath: stored.Path,
	}); err != nil {
		return nil, &apperr.StorageError{Op: "enqueue", Err: err}
	}

	log.Printf("✓ 任务已加入队列: job=%s file=%s", job.JobID, req.OriginalName)

	return &Response{
		FileID:   file.FileID,
		JobID:    job.JobID,
		Status:   job.Status,
		Duration: stored.Duration,
		Message:  "上传成功，正在处理中...",
	}, nil
}
