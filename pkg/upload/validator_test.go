package upload

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/z-wentao/meetscribe/pkg/apperr"
)

func TestValidator(t *testing.T) {
	v := NewValidator(100 * 1024 * 1024)

	t.Run("valid audio formats", func(t *testing.T) {
		cases := []struct {
			name string
			mime string
		}{
			{"meeting.mp3", "audio/mpeg"},
			{"meeting.wav", "audio/wav"},
			{"meeting.m4a", "audio/x-m4a"},
			{"recording.mp4", "video/mp4"},
			{"recording.webm", "video/webm"},
			{"meeting.ogg", "audio/ogg"},
			{"meeting.flac", "audio/flac"},
			{"meeting.aac", "audio/aac"},
		}
		for _, tc := range cases {
			assert.NoError(t, v.Validate(tc.name, 1024, tc.mime), tc.name)
		}
	})

	t.Run("octet-stream accepted only with whitelisted extension", func(t *testing.T) {
		// 部分客户端不设置 Content-Type，扩展名兜底
		assert.NoError(t, v.Validate("meeting.mp3", 1024, "application/octet-stream"))
		assert.NoError(t, v.Validate("meeting.wav", 1024, ""))

		err := v.Validate("meeting.exe", 1024, "application/octet-stream")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("rejects missing name", func(t *testing.T) {
		err := v.Validate("", 1024, "audio/mpeg")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("rejects empty file", func(t *testing.T) {
		err := v.Validate("meeting.mp3", 0, "audio/mpeg")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("rejects oversized file", func(t *testing.T) {
		err := v.Validate("meeting.mp3", 100*1024*1024+1, "audio/mpeg")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("rejects unsupported format", func(t *testing.T) {
		err := v.Validate("document.pdf", 1024, "application/pdf")
		assert.True(t, apperr.IsValidation(err))
	})

	t.Run("mime with charset parameter", func(t *testing.T) {
		assert.NoError(t, v.Validate("meeting.mp3", 1024, "audio/mpeg; charset=utf-8"))
	})
}
