package upload

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/models"
	"github.com/z-wentao/meetscribe/pkg/registry"
)

func seedFile(t *testing.T, store registry.Store, name, hash string, size int64) *models.AudioFile {
	t.Helper()
	file := &models.AudioFile{
		FileID:       "file-" + hash[:8],
		OriginalName: name,
		Size:         size,
		ContentHash:  hash,
		Duration:     120,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.SaveFile(file))
	return file
}

func TestDedupCheck(t *testing.T) {
	data := []byte("fake audio bytes")
	hash := HashContent(data)

	t.Run("no conflict on empty store", func(t *testing.T) {
		d := NewDedup(registry.NewMemoryStore())
		assert.NoError(t, d.Check(hash, "meeting.mp3", int64(len(data)), false))
	})

	t.Run("content hash conflict", func(t *testing.T) {
		store := registry.NewMemoryStore()
		existing := seedFile(t, store, "old.mp3", hash, 999)

		// 文件名和大小都不同，哈希相同仍然冲突
		err := NewDedup(store).Check(hash, "renamed.mp3", 42, false)
		conflict, ok := apperr.AsConflict(err)
		require.True(t, ok)
		assert.Equal(t, apperr.MatchContentHash, conflict.Match)
		assert.Equal(t, existing.FileID, conflict.FileID)
		assert.Equal(t, "old.mp3", conflict.OriginalName)
	})

	t.Run("name and size conflict", func(t *testing.T) {
		store := registry.NewMemoryStore()
		existing := seedFile(t, store, "Weekly Sync.mp3", "otherhash0000000", 2048)

		// 内容不同但文件名+大小相同，视为疑似重复
		err := NewDedup(store).Check(hash, "weekly sync.mp3", 2048, false)
		conflict, ok := apperr.AsConflict(err)
		require.True(t, ok)
		assert.Equal(t, apperr.MatchNameSize, conflict.Match)
		assert.Equal(t, existing.FileID, conflict.FileID)
	})

	t.Run("hash match takes precedence over name match", func(t *testing.T) {
		store := registry.NewMemoryStore()
		byHash := seedFile(t, store, "a.mp3", hash, 100)
		seedFile(t, store, "b.mp3", "unrelatedhash000", 2048)

		err := NewDedup(store).Check(hash, "b.mp3", 2048, false)
		conflict, ok := apperr.AsConflict(err)
		require.True(t, ok)
		assert.Equal(t, apperr.MatchContentHash, conflict.Match)
		assert.Equal(t, byHash.FileID, conflict.FileID)
	})

	t.Run("same name different size is not a conflict", func(t *testing.T) {
		store := registry.NewMemoryStore()
		seedFile(t, store, "meeting.mp3", "otherhash0000000", 2048)

		assert.NoError(t, NewDedup(store).Check(hash, "meeting.mp3", 4096, false))
	})

	t.Run("allowDuplicates bypasses detection", func(t *testing.T) {
		store := registry.NewMemoryStore()
		seedFile(t, store, "meeting.mp3", hash, int64(len(data)))

		assert.NoError(t, NewDedup(store).Check(hash, "meeting.mp3", int64(len(data)), true))
	})
}

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("hello"))
	b := HashContent([]byte("hello"))
	c := HashContent([]byte("world"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64) // SHA-256 十六进制
}
