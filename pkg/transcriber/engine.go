package transcriber

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/config"
	"github.com/z-wentao/meetscribe/pkg/models"
	"github.com/z-wentao/meetscribe/pkg/proc"
)

// Request 一次转录请求
type Request struct {
	JobID        string
	AudioPath    string
	ModelSize    string
	Language     string // 空表示自动检测
	Diarization  bool
	SpeakerCount int // 仅 >1 时传给引擎
	FileDuration int // 已知的音频时长（秒），占位转录用
}

// Output 转录结果
type Output struct {
	Segments []models.TranscriptSegment
	Text     string
	Device   string // 实际成功的设备
}

// Engine 转录引擎编排器
// 以子进程方式调用 WhisperX 脚本，每次尝试独立的超时预算，
// CUDA 失败且错误特征与加速器相关时降级到 CPU 重试一次
type Engine struct {
	runner        proc.Runner
	cfg           config.TranscriberConfig
	transcriptDir string
}

// NewEngine 创建转录引擎
func NewEngine(runner proc.Runner, cfg config.TranscriberConfig, transcriptDir string) *Engine {
	return &Engine{
		runner:        runner,
		cfg:           cfg,
		transcriptDir: transcriptDir,
	}
}

// 加速器相关的错误特征（stderr 命中任意一条即触发 CPU 降级）
var acceleratorSignatures = []string{
	"cuda",
	"cudnn",
	"cublas",
	"out of memory",
	"gpu not available",
	"torch.cuda",
	"nvidia",
	"hip error",
}

// shouldFallback 判断 CUDA 尝试失败后是否降级到 CPU
// 两类情况：stderr 包含加速器错误特征，或进程被杀/崩溃退出
func shouldFallback(result *proc.Result) bool {
	if result.TimedOut {
		return true // 超时杀死，GPU 挂起也属于这一类
	}
	// 被信号杀死（ExitCode -1）或典型崩溃码
	switch result.ExitCode {
	case -1, 134, 137, 139:
		return true
	}

	stderr := strings.ToLower(result.Stderr)
	for _, sig := range acceleratorSignatures {
		if strings.Contains(stderr, sig) {
			return true
		}
	}
	return false
}

// Transcribe 执行转录
// 状态机语义：每个 job 只会被调用一次；成功返回解析后的片段，
// 失败返回 EngineError（由 Worker 写入任务的 error 字段）
func (e *Engine) Transcribe(ctx context.Context, req *Request) (*Output, error) {
	// 引擎脚本不存在时进入降级模式（无 GPU 也无 Python 环境的部署）
	if _, err := os.Stat(e.cfg.ScriptPath); os.IsNotExist(err) {
		log.Printf("⚠️ 转录脚本不存在 (%s)，使用占位转录", e.cfg.ScriptPath)
		return e.placeholderOutput(req)
	}

	outputPath := filepath.Join(e.transcriptDir, req.JobID+".json")
	if err := os.MkdirAll(e.transcriptDir, 0755); err != nil {
		return nil, fmt.Errorf("创建转录结果目录失败: %w", err)
	}

	device := e.cfg.Device
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		log.Printf("🎙 转录尝试 #%d: job=%s device=%s model=%s", attempt+1, req.JobID, device, req.ModelSize)

		result, err := e.runAttempt(ctx, req, device, outputPath)
		if err != nil {
			// 进程无法启动，与设备无关，不再重试
			return nil, &apperr.EngineError{Device: device, ExitCode: -1, Stderr: err.Error()}
		}

		if result.Success() {
			output, err := parseOutputFile(outputPath)
			if err != nil {
				// 输出解析失败视为任务失败，不保留部分结果
				return nil, &apperr.EngineError{
					Device:   device,
					ExitCode: 0,
					Stderr:   fmt.Sprintf("输出解析失败: %v", err),
				}
			}
			output.Device = device
			log.Printf("✅ 转录成功: job=%s device=%s segments=%d 耗时=%.1fs",
				req.JobID, device, len(output.Segments), result.Duration.Seconds())
			return output, nil
		}

		lastErr = &apperr.EngineError{
			Device:   device,
			TimedOut: result.TimedOut,
			ExitCode: result.ExitCode,
			Stderr:   tail(result.Stderr, 500),
		}

		// 降级判定：仅 CUDA 失败且错误特征与加速器相关时换 CPU 再来一次
		if device == "cuda" && shouldFallback(result) {
			log.Printf("⚠️ CUDA 转录失败，降级到 CPU: job=%s (timeout=%v exit=%d)",
				req.JobID, result.TimedOut, result.ExitCode)
			device = "cpu"
			continue
		}
		break
	}

	return nil, lastErr
}

// runAttempt 执行一次引擎子进程调用（独立的超时预算）
func (e *Engine) runAttempt(ctx context.Context, req *Request, device, outputPath string) (*proc.Result, error) {
	args := []string{
		e.cfg.ScriptPath,
		"--audio-file", req.AudioPath,
		"--output-file", outputPath,
		"--model-size", req.ModelSize,
		"--device", device,
	}
	if req.Language != "" {
		args = append(args, "--language", req.Language)
	}
	if req.Diarization {
		args = append(args, "--enable-diarization")
	} else {
		args = append(args, "--disable-diarization")
	}
	// 0/1/未指定 表示自动检测，仅显式多人时透传
	if req.SpeakerCount > 1 {
		args = append(args, "--num-speakers", strconv.Itoa(req.SpeakerCount))
	}

	env := []string{}
	if e.cfg.HuggingFaceToken != "" {
		env = append(env, "HUGGINGFACE_TOKEN="+e.cfg.HuggingFaceToken)
	}
	if device == "cpu" {
		// 去掉加速相关环境，避免脚本内部再碰 GPU
		env = append(env, "CUDA_VISIBLE_DEVICES=")
	}

	return e.runner.Run(ctx, proc.Command{
		Path: e.cfg.PythonBin,
		Args: args,
		Env:  env,
	}, e.cfg.AttemptTimeout())
}

// placeholderOutput 降级部署的占位转录
// 时长取文件已知时长，未知时按 10 秒
func (e *Engine) placeholderOutput(req *Request) (*Output, error) {
	duration := req.FileDuration
	if duration <= 0 {
		duration = 10
	}

	text := fmt.Sprintf("[转录引擎不可用] 音频时长约 %d 秒，此为占位转录。", duration)
	output := &Output{
		Segments: []models.TranscriptSegment{
			{Start: 0, End: float64(duration), Text: text},
		},
		Text:   text,
		Device: "none",
	}

	// 占位结果也落一份 JSON 工件，保持目录布局一致
	if err := writeOutputFile(filepath.Join(e.transcriptDir, req.JobID+".json"), output); err != nil {
		log.Printf("⚠️ 写入占位转录文件失败: %v", err)
	}
	return output, nil
}

// tail 截取字符串末尾（错误信息通常在 stderr 结尾）
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
