package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/meetscribe/pkg/proc"
)

// fakeRunner 按命令路径回放预设结果
type fakeRunner struct {
	results map[string]*proc.Result
	err     error
	calls   []proc.Command
}

func (f *fakeRunner) Run(_ context.Context, cmd proc.Command, _ time.Duration) (*proc.Result, error) {
	f.calls = append(f.calls, cmd)
	if f.err != nil {
		return nil, f.err
	}
	if r, ok := f.results[cmd.Path]; ok {
		return r, nil
	}
	return &proc.Result{ExitCode: 1, Stderr: "unexpected command: " + cmd.Path}, nil
}

func TestProberDuration(t *testing.T) {
	t.Run("rounds to whole seconds", func(t *testing.T) {
		cases := []struct {
			stdout string
			want   int
		}{
			{"125.3\n", 125},
			{"125.7\n", 126},
			{"0.4", 0},
			{"3600.0", 3600},
		}
		for _, tc := range cases {
			runner := &fakeRunner{results: map[string]*proc.Result{
				"ffprobe": {ExitCode: 0, Stdout: tc.stdout},
			}}
			d, err := NewProber(runner).Duration(context.Background(), "/audio/a.mp3")
			require.NoError(t, err)
			assert.Equal(t, tc.want, d, "stdout=%q", tc.stdout)
		}
	})

	t.Run("probe failure", func(t *testing.T) {
		runner := &fakeRunner{results: map[string]*proc.Result{
			"ffprobe": {ExitCode: 1, Stderr: "Invalid data found"},
		}}
		_, err := NewProber(runner).Duration(context.Background(), "/audio/bad.mp3")
		assert.Error(t, err)
	})

	t.Run("empty output", func(t *testing.T) {
		runner := &fakeRunner{results: map[string]*proc.Result{
			"ffprobe": {ExitCode: 0, Stdout: "  \n"},
		}}
		_, err := NewProber(runner).Duration(context.Background(), "/audio/a.mp3")
		assert.Error(t, err)
	})

	t.Run("runner error", func(t *testing.T) {
		runner := &fakeRunner{err: errors.New("ffprobe not installed")}
		_, err := NewProber(runner).Duration(context.Background(), "/audio/a.mp3")
		assert.Error(t, err)
	})
}
