package upload

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"

	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/registry"
)

// Dedup 重复上传检测
// 强信号：SHA-256 内容哈希；弱信号：规范化文件名+大小。
// 哈希优先：先查哈希，命中即冲突；只有哈希未命中才查文件名+大小
type Dedup struct {
	store registry.Store
}

func NewDedup(store registry.Store) *Dedup {
	return &Dedup{store: store}
}

// HashContent 计算内容哈希（SHA-256 十六进制）
func HashContent(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Check 重复检测，必须在任何落盘写入之前调用
// allowDuplicates 为 true 时跳过检测（用户确认"仍然上传"）
// 冲突时返回 ConflictError，携带已存在记录的信息
func (d *Dedup) Check(hash, originalName string, size int64, allowDuplicates bool) error {
	if allowDuplicates {
		return nil
	}

	// 1. 内容哈希（强信号，优先）
	existing, err := d.store.FindFileByHash(hash)
	if err == nil {
		return &apperr.ConflictError{
			Match:        apperr.MatchContentHash,
			FileID:       existing.FileID,
			OriginalName: existing.OriginalName,
			UploadedAt:   existing.CreatedAt,
			Duration:     existing.Duration,
		}
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return &apperr.StorageError{Op: "dedup.hash", Err: err}
	}

	// 2. 文件名+大小（弱信号，疑似重复，前端可提示后绕过）
	existing, err = d.store.FindFileByNameSize(originalName, size)
	if err == nil {
		return &apperr.ConflictError{
			Match:        apperr.MatchNameSize,
			FileID:       existing.FileID,
			OriginalName: existing.OriginalName,
			UploadedAt:   existing.CreatedAt,
			Duration:     existing.Duration,
		}
	}
	if !errors.Is(err, registry.ErrNotFound) {
		return &apperr.StorageError{Op: "dedup.name_size", Err: err}
	}

	return nil
}
