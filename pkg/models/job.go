package models

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// IsTerminal 是否为终态（终态只写入一次，之后不再变化）
func (s JobStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TranscriptSegment 转录片段（时间单位：秒）
type TranscriptSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"` // 原始标签如 SPEAKER_00，解析后为真实姓名
}

// TranscriptionJob 转录任务
// 约束：同一个音频文件同时最多存在一个非终态任务
type TranscriptionJob struct {
	JobID        string              `json:"job_id"`
	FileID       string              `json:"file_id"`
	Status       JobStatus           `json:"status"`
	ModelSize    string              `json:"model_size"`
	Language     string              `json:"language"` // 空字符串表示自动检测
	Diarization  bool                `json:"diarization"`
	SpeakerCount int                 `json:"speaker_count"` // 0/1 表示自动检测
	Progress     int                 `json:"progress"`
	Segments     []TranscriptSegment `json:"segments,omitempty"` // 仅 completed 状态存在
	Error        string              `json:"error,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    time.Time           `json:"started_at,omitzero"`
	CompletedAt  time.Time           `json:"completed_at,omitzero"`
}

// AudioFile 已上传的音频文件记录
type AudioFile struct {
	FileID              string    `json:"file_id"`
	StoredName          string    `json:"stored_name"`
	OriginalName        string    `json:"original_name"`
	Size                int64     `json:"size"`
	MimeType            string    `json:"mime_type"`
	ContentHash         string    `json:"content_hash"` // SHA-256 十六进制
	Duration            int       `json:"duration"`     // 秒，探测失败时为 0
	TranscriptionStatus JobStatus `json:"transcription_status,omitempty"` // 镜像当前任务状态
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// HasSpeakerLabels 转录结果中是否存在说话人标签
func HasSpeakerLabels(segments []TranscriptSegment) bool {
	for _, seg := range segments {
		if seg.Speaker != "" {
			return true
		}
	}
	return false
}
