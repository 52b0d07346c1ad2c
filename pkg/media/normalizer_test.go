package media

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/meetscribe/pkg/proc"
)

func TestNormalizer(t *testing.T) {
	t.Run("converts non-wav input", func(t *testing.T) {
		runner := &fakeRunner{results: map[string]*proc.Result{
			"ffmpeg": {ExitCode: 0},
		}}
		got := NewNormalizer(runner).Normalize(context.Background(), "/audio/meeting.mp3")
		assert.Equal(t, "/audio/meeting_16k.wav", got)

		// mp3 不需要探测，直接转换
		require.Len(t, runner.calls, 1)
		assert.Equal(t, "ffmpeg", runner.calls[0].Path)
		assert.Contains(t, runner.calls[0].Args, "pcm_s16le")
	})

	t.Run("canonical wav passes through", func(t *testing.T) {
		runner := &fakeRunner{results: map[string]*proc.Result{
			"ffprobe": {ExitCode: 0, Stdout: "16000\n1\n"},
		}}
		got := NewNormalizer(runner).Normalize(context.Background(), "/audio/meeting.wav")
		assert.Equal(t, "/audio/meeting.wav", got)

		// 已是规范格式，不触发 ffmpeg
		require.Len(t, runner.calls, 1)
		assert.Equal(t, "ffprobe", runner.calls[0].Path)
	})

	t.Run("non-canonical wav is converted", func(t *testing.T) {
		runner := &fakeRunner{results: map[string]*proc.Result{
			"ffprobe": {ExitCode: 0, Stdout: "44100\n2\n"},
			"ffmpeg":  {ExitCode: 0},
		}}
		got := NewNormalizer(runner).Normalize(context.Background(), "/audio/meeting.wav")
		assert.Equal(t, "/audio/meeting_16k.wav", got)
	})

	t.Run("conversion failure falls back to original", func(t *testing.T) {
		runner := &fakeRunner{results: map[string]*proc.Result{
			"ffmpeg": {ExitCode: 1, Stderr: "Unknown encoder"},
		}}
		got := NewNormalizer(runner).Normalize(context.Background(), "/audio/meeting.mp3")
		assert.Equal(t, "/audio/meeting.mp3", got)
	})

	t.Run("missing ffmpeg falls back to original", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("ffmpeg not installed")}
		got := NewNormalizer(runner).Normalize(context.Background(), "/audio/meeting.mp3")
		assert.Equal(t, "/audio/meeting.mp3", got)
	})
}
