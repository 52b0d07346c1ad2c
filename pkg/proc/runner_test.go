package proc

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecRunner(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("依赖 POSIX 工具")
	}
	r := NewExecRunner()

	t.Run("captures stdout", func(t *testing.T) {
		result, err := r.Run(context.Background(), Command{
			Path: "echo",
			Args: []string{"hello"},
		}, 5*time.Second)
		require.NoError(t, err)
		assert.True(t, result.Success())
		assert.Equal(t, "hello\n", result.Stdout)
	})

	t.Run("nonzero exit is a result not an error", func(t *testing.T) {
		result, err := r.Run(context.Background(), Command{
			Path: "sh",
			Args: []string{"-c", "echo oops >&2; exit 3"},
		}, 5*time.Second)
		require.NoError(t, err)
		assert.False(t, result.Success())
		assert.Equal(t, 3, result.ExitCode)
		assert.Contains(t, result.Stderr, "oops")
	})

	t.Run("timeout kills the process", func(t *testing.T) {
		start := time.Now()
		result, err := r.Run(context.Background(), Command{
			Path: "sleep",
			Args: []string{"10"},
		}, 200*time.Millisecond)
		require.NoError(t, err)
		assert.True(t, result.TimedOut)
		assert.False(t, result.Success())
		assert.Less(t, time.Since(start), 5*time.Second)
	})

	t.Run("missing binary is an error", func(t *testing.T) {
		_, err := r.Run(context.Background(), Command{
			Path: "definitely-not-a-real-binary-xyz",
		}, 5*time.Second)
		assert.Error(t, err)
	})

	t.Run("extra env is appended", func(t *testing.T) {
		result, err := r.Run(context.Background(), Command{
			Path: "sh",
			Args: []string{"-c", "printf %s \"$MEETSCRIBE_TEST_VAR\""},
			Env:  []string{"MEETSCRIBE_TEST_VAR=on"},
		}, 5*time.Second)
		require.NoError(t, err)
		assert.Equal(t, "on", result.Stdout)
	})

	t.Run("cancelled context stops the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(100 * time.Millisecond)
			cancel()
		}()
		result, err := r.Run(ctx, Command{
			Path: "sleep",
			Args: []string{"10"},
		}, time.Minute)
		require.NoError(t, err)
		assert.False(t, result.Success())
	})
}
