package media

import (
	"context"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/z-wentao/meetscribe/pkg/proc"
)

const convertTimeout = 5 * time.Minute

// Normalizer 音频格式归一化器
// 转录引擎需要单声道 16kHz PCM WAV；其它格式先用 ffmpeg 转换
type Normalizer struct {
	runner proc.Runner
}

func NewNormalizer(runner proc.Runner) *Normalizer {
	return &Normalizer{runner: runner}
}

// Normalize 确保音频是引擎需要的规范格式
// 已是规范 WAV 时直接返回原路径；转换失败不致命，降级返回原路径让引擎自行尝试
func (n *Normalizer) Normalize(ctx context.Context, audioPath string) string {
	if n.isCanonical(ctx, audioPath) {
		return audioPath
	}

	ext := filepath.Ext(audioPath)
	outputPath := strings.TrimSuffix(audioPath, ext) + "_16k.wav"

	// ffmpeg -y -i input -ar 16000 -ac 1 -c:a pcm_s16le output_16k.wav
	result, err := n.runner.Run(ctx, proc.Command{
		Path: "ffmpeg",
		Args: []string{
			"-y",
			"-i", audioPath,
			"-ar", "16000",
			"-ac", "1",
			"-c:a", "pcm_s16le",
			outputPath,
		},
	}, convertTimeout)
	if err != nil {
		log.Printf("⚠️ ffmpeg 转换失败，使用原始文件: %v", err)
		return audioPath
	}
	if !result.Success() {
		log.Printf("⚠️ ffmpeg 转换失败 (exit=%d)，使用原始文件: %s", result.ExitCode, result.Stderr)
		return audioPath
	}

	log.Printf("✓ 音频已转换为 16kHz 单声道 WAV: %s", outputPath)
	return outputPath
}

// isCanonical 判断是否已经是单声道 16kHz PCM WAV
func (n *Normalizer) isCanonical(ctx context.Context, audioPath string) bool {
	if strings.ToLower(filepath.Ext(audioPath)) != ".wav" {
		return false
	}

	// ffprobe -v error -select_streams a:0 -show_entries stream=sample_rate,channels ...
	result, err := n.runner.Run(ctx, proc.Command{
		Path: "ffprobe",
		Args: []string{
			"-v", "error",
			"-select_streams", "a:0",
			"-show_entries", "stream=sample_rate,channels",
			"-of", "default=noprint_wrappers=1:nokey=1",
			audioPath,
		},
	}, probeTimeout)
	if err != nil || !result.Success() {
		return false
	}

	fields := strings.Fields(result.Stdout)
	if len(fields) < 2 {
		return false
	}
	return fields[0] == "16000" && fields[1] == "1"
}
