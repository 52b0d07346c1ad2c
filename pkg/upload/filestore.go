package upload

import (
	"context"
	"log"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/media"
)

// FileStore 音频文件落盘
// 生成 uuid 存储名（保留原始扩展名），探测时长
type FileStore struct {
	audioDir string
	prober   *media.Prober
}

func NewFileStore(audioDir string, prober *media.Prober) *FileStore {
	return &FileStore{
		audioDir: audioDir,
		prober:   prober,
	}
}

// StoredFile 落盘结果
type StoredFile struct {
	StoredName string
	Path       string
	Duration   int // 秒，探测失败为 0
}

// Save 写入音频文件并探测时长
// 写入失败中止上传；时长探测失败不致命，时长记 0 继续
func (fs *FileStore) Save(ctx context.Context, data []byte, originalName string) (*StoredFile, error) {
	if err := os.MkdirAll(fs.audioDir, 0755); err != nil {
		return nil, &apperr.StorageError{Op: "mkdir", Err: err}
	}

	ext := filepath.Ext(originalName)
	storedName := uuid.New().String() + ext
	savePath := filepath.Join(fs.audioDir, storedName)

	if err := os.WriteFile(savePath, data, 0644); err != nil {
		return nil, &apperr.StorageError{Op: "write", Err: err}
	}
	log.Printf("✓ 文件已保存: %s (%.2f MB)", storedName, float64(len(data))/1024/1024)

	duration := 0
	if d, err := fs.prober.Duration(ctx, savePath); err != nil {
		log.Printf("⚠️ 时长探测失败，记为 0: %v", err)
	} else {
		duration = d
	}

	return &StoredFile{
		StoredName: storedName,
		Path:       savePath,
		Duration:   duration,
	}, nil
}

// Path 存储名对应的完整路径
func (fs *FileStore) Path(storedName string) string {
	return filepath.Join(fs.audioDir, storedName)
}
