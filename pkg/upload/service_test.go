package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/media"
	"github.com/z-wentao/meetscribe/pkg/models"
	"github.com/z-wentao/meetscribe/pkg/proc"
	"github.com/z-wentao/meetscribe/pkg/queue"
	"github.com/z-wentao/meetscribe/pkg/registry"
)

// probeRunner 假装 ffprobe 返回固定时长
type probeRunner struct {
	stdout string
}

func (p *probeRunner) Run(_ context.Context, _ proc.Command, _ time.Duration) (*proc.Result, error) {
	return &proc.Result{ExitCode: 0, Stdout: p.stdout}, nil
}

func newTestService(t *testing.T) (*Service, registry.Store, *queue.MemoryQueue, string) {
	t.Helper()
	audioDir := t.TempDir()
	store := registry.NewMemoryStore()
	jobs := queue.NewMemoryQueue(10)

	prober := media.NewProber(&probeRunner{stdout: "123.0\n"})
	svc := NewService(
		NewValidator(10*1024*1024),
		NewDedup(store),
		NewFileStore(audioDir, prober),
		store,
		jobs,
		"base",
		"",
		true,
	)
	return svc, store, jobs, audioDir
}

func TestHandleUpload(t *testing.T) {
	data := []byte("fake mp3 bytes")

	t.Run("full pipeline", func(t *testing.T) {
		svc, store, jobs, audioDir := newTestService(t)

		resp, err := svc.HandleUpload(context.Background(), &Request{
			Data:         data,
			OriginalName: "meeting.mp3",
			MimeType:     "audio/mpeg",
			SpeakerCount: 2,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.FileID)
		assert.NotEmpty(t, resp.JobID)
		assert.Equal(t, models.StatusPending, resp.Status)
		assert.Equal(t, 123, resp.Duration)

		// 文件记录
		file, err := store.GetFile(resp.FileID)
		require.NoError(t, err)
		assert.Equal(t, "meeting.mp3", file.OriginalName)
		assert.Equal(t, HashContent(data), file.ContentHash)
		assert.Equal(t, models.StatusPending, file.TranscriptionStatus)
		assert.Equal(t, ".mp3", filepath.Ext(file.StoredName))

		// 字节落盘
		saved, err := os.ReadFile(filepath.Join(audioDir, file.StoredName))
		require.NoError(t, err)
		assert.Equal(t, data, saved)

		// 任务记录
		job, err := store.GetJob(resp.JobID)
		require.NoError(t, err)
		assert.Equal(t, resp.FileID, job.FileID)
		assert.Equal(t, models.StatusPending, job.Status)
		assert.Equal(t, "base", job.ModelSize)
		assert.Equal(t, 2, job.SpeakerCount)
		assert.True(t, job.Diarization)

		// 队列消息
		msg, err := jobs.Dequeue()
		require.NoError(t, err)
		assert.Equal(t, resp.JobID, msg.JobID)
		assert.Equal(t, filepath.Join(audioDir, file.StoredName), msg.AudioPath)
	})

	t.Run("validation failure leaves no trace", func(t *testing.T) {
		svc, store, _, audioDir := newTestService(t)

		_, err := svc.HandleUpload(context.Background(), &Request{
			Data:         data,
			OriginalName: "notes.txt",
			MimeType:     "text/plain",
		})
		assert.True(t, apperr.IsValidation(err))

		files, _ := store.ListFiles()
		assert.Empty(t, files)
		entries, _ := os.ReadDir(audioDir)
		assert.Empty(t, entries)
	})

	t.Run("duplicate upload is rejected before disk write", func(t *testing.T) {
		svc, _, jobs, audioDir := newTestService(t)

		_, err := svc.HandleUpload(context.Background(), &Request{
			Data: data, OriginalName: "meeting.mp3", MimeType: "audio/mpeg",
		})
		require.NoError(t, err)
		drainOne(t, jobs)
		before, _ := os.ReadDir(audioDir)

		_, err = svc.HandleUpload(context.Background(), &Request{
			Data: data, OriginalName: "renamed.mp3", MimeType: "audio/mpeg",
		})
		conflict, ok := apperr.AsConflict(err)
		require.True(t, ok)
		assert.Equal(t, apperr.MatchContentHash, conflict.Match)

		// 重复上传不落盘、不入队
		after, _ := os.ReadDir(audioDir)
		assert.Equal(t, len(before), len(after))
	})

	t.Run("allow duplicates creates a second record", func(t *testing.T) {
		svc, store, jobs, _ := newTestService(t)

		first, err := svc.HandleUpload(context.Background(), &Request{
			Data: data, OriginalName: "meeting.mp3", MimeType: "audio/mpeg",
		})
		require.NoError(t, err)
		drainOne(t, jobs)

		second, err := svc.HandleUpload(context.Background(), &Request{
			Data: data, OriginalName: "meeting.mp3", MimeType: "audio/mpeg",
			AllowDuplicates: true,
		})
		require.NoError(t, err)
		assert.NotEqual(t, first.FileID, second.FileID)

		files, _ := store.ListFiles()
		assert.Len(t, files, 2)
	})

	t.Run("draft stores file without a job", func(t *testing.T) {
		svc, store, jobs, _ := newTestService(t)

		resp, err := svc.HandleUpload(context.Background(), &Request{
			Data: data, OriginalName: "meeting.mp3", MimeType: "audio/mpeg",
			Draft: true,
		})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.FileID)
		assert.Empty(t, resp.JobID)

		_, err = store.GetJobByFile(resp.FileID)
		assert.ErrorIs(t, err, registry.ErrNotFound)

		// 草稿不入队
		require.NoError(t, jobs.Close())
		_, err = jobs.Dequeue()
		assert.Error(t, err)
	})
}

func drainOne(t *testing.T, q *queue.MemoryQueue) {
	t.Helper()
	_, err := q.Dequeue()
	require.NoError(t, err)
}
