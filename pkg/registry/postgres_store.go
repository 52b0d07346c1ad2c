package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/z-wentao/meetscribe/pkg/models"
)

// PostgresStore PostgreSQL 存储实现
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore 创建 PostgreSQL 存储
func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	// 测试连接
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &PostgresStore{db: db}, nil
}

// SaveFile 保存文件记录（UPSERT）
func (s *PostgresStore) SaveFile(file *models.AudioFile) error {
	query := `
	INSERT INTO audio_files (
	file_id, stored_name, original_name, size, mime_type,
	content_hash, duration, transcription_status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (file_id)
	DO UPDATE SET
	stored_name = EXCLUDED.stored_name,
	duration = EXCLUDED.duration,
	transcription_status = EXCLUDED.transcription_status,
	updated_at = EXCLUDED.updated_at
	`

	_, err := s.db.Exec(query,
		file.FileID,
		file.StoredName,
		file.OriginalName,
		file.Size,
		file.MimeType,
		file.ContentHash,
		file.Duration,
		string(file.TranscriptionStatus),
		file.CreatedAt,
		file.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("保存文件记录失败: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanFile(row *sql.Row) (*models.AudioFile, error) {
	var file models.AudioFile
	var status sql.NullString

	err := row.Scan(
		&file.FileID,
		&file.StoredName,
		&file.OriginalName,
		&file.Size,
		&file.MimeType,
		&file.ContentHash,
		&file.Duration,
		&status,
		&file.CreatedAt,
		&file.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}

	if status.Valid {
		file.TranscriptionStatus = models.JobStatus(status.String)
	}
	return &file, nil
}

const fileColumns = `file_id, stored_name, original_name, size, mime_type,
	content_hash, duration, transcription_status, created_at, updated_at`

// GetFile 获取文件记录
func (s *PostgresStore) GetFile(fileID string) (*models.AudioFile, error) {
	query := `SELECT ` + fileColumns + ` FROM audio_files WHERE file_id = $1`
	return s.scanFile(s.db.QueryRow(query, fileID))
}

// FindFileByHash 按内容哈希查找
func (s *PostgresStore) FindFileByHash(hash string) (*models.AudioFile, error) {
	query := `SELECT ` + fileColumns + ` FROM audio_files WHERE content_hash = $1 LIMIT 1`
	return s.scanFile(s.db.QueryRow(query, hash))
}

// FindFileByNameSize 按规范化文件名+大小查找
func (s *PostgresStore) FindFileByNameSize(name string, size int64) (*models.AudioFile, error) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	query := `SELECT ` + fileColumns + ` FROM audio_files
	WHERE LOWER(TRIM(original_name)) = $1 AND size = $2 LIMIT 1`
	return s.scanFile(s.db.QueryRow(query, normalized, size))
}

// ListFiles 列出所有文件（按上传时间倒序）
func (s *PostgresStore) ListFiles() ([]*models.AudioFile, error) {
	query := `SELECT ` + fileColumns + ` FROM audio_files ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	files := make([]*models.AudioFile, 0)
	for rows.Next() {
		var file models.AudioFile
		var status sql.NullString

		err := rows.Scan(
			&file.FileID,
			&file.StoredName,
			&file.OriginalName,
			&file.Size,
			&file.MimeType,
			&file.ContentHash,
			&file.Duration,
			&status,
			&file.CreatedAt,
			&file.UpdatedAt,
		)
		if err != nil {
			continue
		}
		if status.Valid {
			file.TranscriptionStatus = models.JobStatus(status.String)
		}
		files = append(files, &file)
	}
	return files, nil
}

// UpdateFile 更新文件记录
func (s *PostgresStore) UpdateFile(fileID string, updateFn func(*models.AudioFile)) error {
	file, err := s.GetFile(fileID)
	if err != nil {
		return err
	}
	updateFn(file)
	return s.SaveFile(file)
}

// SaveJob 保存任务（UPSERT）
func (s *PostgresStore) SaveJob(job *models.TranscriptionJob) error {
	segmentsJSON, err := json.Marshal(job.Segments)
	if err != nil {
		return fmt.Errorf("序列化 segments 失败: %w", err)
	}

	query := `
	INSERT INTO transcription_jobs (
	job_id, file_id, status, model_size, language,
	diarization, speaker_count, progress, segments, error,
	created_at, started_at, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	ON CONFLICT (job_id)
	DO UPDATE SET
	status = EXCLUDED.status,
	progress = EXCLUDED.progress,
	segments = EXCLUDED.segments,
	error = EXCLUDED.error,
	started_at = EXCLUDED.started_at,
	completed_at = EXCLUDED.completed_at
	`

	_, err = s.db.Exec(query,
		job.JobID,
		job.FileID,
		string(job.Status),
		job.ModelSize,
		job.Language,
		job.Diarization,
		job.SpeakerCount,
		job.Progress,
		segmentsJSON,
		job.Error,
		job.CreatedAt,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("保存任务失败: %w", err)
	}
	return nil
}

const jobColumns = `job_id, file_id, status, model_size, language,
	diarization, speaker_count, progress, segments, error,
	created_at, started_at, completed_at`

func (s *PostgresStore) scanJob(row *sql.Row) (*models.TranscriptionJob, error) {
	var job models.TranscriptionJob
	var segmentsJSON []byte
	var language, errorMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	err := row.Scan(
		&job.JobID,
		&job.FileID,
		&job.Status,
		&job.ModelSize,
		&language,
		&job.Diarization,
		&job.SpeakerCount,
		&job.Progress,
		&segmentsJSON,
		&errorMsg,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}

	if language.Valid {
		job.Language = language.String
	}
	if errorMsg.Valid {
		job.Error = errorMsg.String
	}
	if startedAt.Valid {
		job.StartedAt = startedAt.Time
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}
	if len(segmentsJSON) > 0 {
		json.Unmarshal(segmentsJSON, &job.Segments)
	}
	return &job, nil
}

// GetJob 获取任务
func (s *PostgresStore) GetJob(jobID string) (*models.TranscriptionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM transcription_jobs WHERE job_id = $1`
	return s.scanJob(s.db.QueryRow(query, jobID))
}

// GetJobByFile 获取文件当前的任务（最近创建的一个）
func (s *PostgresStore) GetJobByFile(fileID string) (*models.TranscriptionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM transcription_jobs
	WHERE file_id = $1 ORDER BY created_at DESC LIMIT 1`
	return s.scanJob(s.db.QueryRow(query, fileID))
}

// UpdateJob 更新任务
func (s *PostgresStore) UpdateJob(jobID string, updateFn func(*models.TranscriptionJob)) error {
	// 1. 获取现有任务
	job, err := s.GetJob(jobID)
	if err != nil {
		return err
	}

	// 2. 执行更新函数
	updateFn(job)

	// 3. 保存回数据库
	return s.SaveJob(job)
}

// ListJobs 列出所有任务（按创建时间倒序）
func (s *PostgresStore) ListJobs() ([]*models.TranscriptionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM transcription_jobs ORDER BY created_at DESC LIMIT 100`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.TranscriptionJob, 0)
	for rows.Next() {
		var job models.TranscriptionJob
		var segmentsJSON []byte
		var language, errorMsg sql.NullString
		var startedAt, completedAt sql.NullTime

		err := rows.Scan(
			&job.JobID,
			&job.FileID,
			&job.Status,
			&job.ModelSize,
			&language,
			&job.Diarization,
			&job.SpeakerCount,
			&job.Progress,
			&segmentsJSON,
			&errorMsg,
			&job.CreatedAt,
			&startedAt,
			&completedAt,
		)
		if err != nil {
			continue
		}

		if language.Valid {
			job.Language = language.String
		}
		if errorMsg.Valid {
			job.Error = errorMsg.String
		}
		if startedAt.Valid {
			job.StartedAt = startedAt.Time
		}
		if completedAt.Valid {
			job.CompletedAt = completedAt.Time
		}
		if len(segmentsJSON) > 0 {
			json.Unmarshal(segmentsJSON, &job.Segments)
		}
		jobs = append(jobs, &job)
	}
	return jobs, nil
}

// Close 关闭数据库连接
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// nullTime 零值时间写为 NULL
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}
