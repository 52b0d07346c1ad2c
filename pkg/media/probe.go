package media

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/z-wentao/meetscribe/pkg/proc"
)

const probeTimeout = 30 * time.Second

// Prober 使用 ffprobe 探测音频时长
type Prober struct {
	runner proc.Runner
}

func NewProber(runner proc.Runner) *Prober {
	return &Prober{runner: runner}
}

// Duration 获取音频/视频文件时长（整秒）
// ffprobe -v error -show_entries format=duration -of default=noprint_wrappers=1:nokey=1 input.mp3
func (p *Prober) Duration(ctx context.Context, audioPath string) (int, error) {
	result, err := p.runner.Run(ctx, proc.Command{
		Path: "ffprobe",
		Args: []string{
			"-v", "error",
			"-show_entries", "format=duration",
			"-of", "default=noprint_wrappers=1:nokey=1",
			audioPath,
		},
	}, probeTimeout)
	if err != nil {
		return 0, fmt.Errorf("ffprobe 执行失败: %v", err)
	}
	if !result.Success() {
		return 0, fmt.Errorf("ffprobe 退出异常 (exit=%d): %s", result.ExitCode, result.Stderr)
	}

	durationStr := strings.TrimSpace(result.Stdout)
	if durationStr == "" {
		return 0, fmt.Errorf("ffprobe 未返回时长信息 (stderr: %s)", result.Stderr)
	}

	duration, err := strconv.ParseFloat(durationStr, 64)
	if err != nil {
		return 0, fmt.Errorf("解析时长失败: %v (output: %s)", err, durationStr)
	}

	return int(math.Round(duration)), nil
}
