package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError 上传参数错误（同步阶段，不落盘）
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validation(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// MatchKind 重复检测的命中方式
type MatchKind string

const (
	MatchContentHash MatchKind = "content_hash" // 内容哈希完全一致
	MatchNameSize    MatchKind = "name_size"    // 文件名+大小一致（弱信号）
)

// ConflictError 重复上传冲突，携带已存在记录的信息供前端展示"仍然上传"
type ConflictError struct {
	Match        MatchKind `json:"match"`
	FileID       string    `json:"file_id"`
	OriginalName string    `json:"original_name"`
	UploadedAt   time.Time `json:"uploaded_at"`
	Duration     int       `json:"duration"`
}

func (e *ConflictError) Error() string {
	if e.Match == MatchNameSize {
		return fmt.Sprintf("疑似重复文件（同名同大小）: %s (file_id=%s)", e.OriginalName, e.FileID)
	}
	return fmt.Sprintf("重复文件（内容一致）: %s (file_id=%s)", e.OriginalName, e.FileID)
}

// StorageError 磁盘写入失败（上传中止）
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("存储失败 (%s): %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// EngineError 转录引擎失败，只记录到任务的 error 字段，不向上抛出
type EngineError struct {
	Device   string // cuda 或 cpu
	TimedOut bool
	ExitCode int
	Stderr   string
}

func (e *EngineError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("转录超时 (device=%s)", e.Device)
	}
	return fmt.Sprintf("转录失败 (device=%s, exit=%d): %s", e.Device, e.ExitCode, e.Stderr)
}

// AIServiceError 语言模型调用失败，永远可恢复：跳过说话人解析，不影响任务状态
type AIServiceError struct {
	Message string
	Err     error
}

func (e *AIServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("AI 服务失败: %s: %v", e.Message, e.Err)
	}
	return fmt.Sprintf("AI 服务失败: %s", e.Message)
}

func (e *AIServiceError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func AsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
