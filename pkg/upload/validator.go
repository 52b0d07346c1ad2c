package upload

import (
	"path/filepath"
	"strings"

	"github.com/z-wentao/meetscribe/pkg/apperr"
)

// 支持的音频扩展名
var validExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".m4a":  true,
	".mp4":  true, // 视频容器，引擎可以提取音频
	".webm": true,
	".ogg":  true,
	".flac": true,
	".aac":  true,
}

// 支持的 MIME 类型
var validMimeTypes = map[string]bool{
	"audio/mpeg":  true,
	"audio/mp3":   true,
	"audio/wav":   true,
	"audio/x-wav": true,
	"audio/wave":  true,
	"audio/mp4":   true,
	"audio/m4a":   true,
	"audio/x-m4a": true,
	"audio/webm":  true,
	"audio/ogg":   true,
	"audio/flac":  true,
	"audio/x-flac": true,
	"audio/aac":   true,
	"video/mp4":   true,
	"video/webm":  true,
}

// Validator 上传校验器（无副作用）
type Validator struct {
	maxFileSize int64
}

func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// Validate 校验上传文件的名称/大小/类型
// octet-stream 的处理：部分客户端不设置正确的 Content-Type，
// 此时只要扩展名在白名单内就放行
func (v *Validator) Validate(filename string, size int64, mimeType string) error {
	if strings.TrimSpace(filename) == "" {
		return apperr.Validation("缺少文件名")
	}
	if size <= 0 {
		return apperr.Validation("文件为空")
	}
	if size > v.maxFileSize {
		return apperr.Validation("文件太大，最大 %.0f MB", float64(v.maxFileSize)/1024/1024)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i]) // 去掉 "; charset=..." 参数
	}

	if validMimeTypes[mime] {
		return nil
	}
	if validExtensions[ext] && (mime == "" || mime == "application/octet-stream") {
		return nil
	}
	if validExtensions[ext] && !validMimeTypes[mime] && strings.HasPrefix(mime, "audio/") {
		// 宽容处理少见的 audio/* 子类型
		return nil
	}

	return apperr.Validation("不支持的文件格式 %s (%s)，支持: %s",
		ext, mimeType, strings.Join(supportedList(), ", "))
}

func supportedList() []string {
	return []string{".mp3", ".wav", ".m4a", ".mp4", ".webm", ".ogg", ".flac", ".aac"}
}
