package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"
	"github.com/z-wentao/meetscribe/pkg/config"
	"github.com/z-wentao/meetscribe/pkg/media"
	"github.com/z-wentao/meetscribe/pkg/proc"
	"github.com/z-wentao/meetscribe/pkg/transcriber"
)

// 一次性转录命令行工具：不走服务器，直接对本地文件调用引擎
// 用法: transcribe -audio meeting.mp3 -model base -device cuda
func main() {
	audioPath := flag.String("audio", "", "音频文件路径")
	modelSize := flag.String("model", "base", "模型大小 (tiny/base/small/medium/large)")
	language := flag.String("language", "", "语言代码，空表示自动检测")
	device := flag.String("device", "cuda", "设备 (cuda/cpu)")
	diarization := flag.Bool("diarization", true, "启用说话人分离")
	speakers := flag.Int("speakers", 0, "说话人数量，0 表示自动检测")
	scriptPath := flag.String("script", "scripts/transcribe.py", "转录脚本路径")
	outputDir := flag.String("output-dir", "data/transcripts", "转录结果目录")
	flag.Parse()

	if *audioPath == "" {
		flag.Usage()
		os.Exit(1)
	}
	if _, err := os.Stat(*audioPath); err != nil {
		log.Fatalf("❌ 音频文件不存在: %s", *audioPath)
	}

	cfg := config.TranscriberConfig{
		ScriptPath:  *scriptPath,
		Device:      *device,
		Diarization: *diarization,
	}
	// 填充 python_bin、超时等默认值
	full := &config.Config{Transcriber: cfg}
	if err := full.Validate(); err != nil {
		log.Fatalf("❌ 配置无效: %v", err)
	}

	ctx := context.Background()
	runner := proc.NewExecRunner()

	// 归一化（尽力而为）
	normalizer := media.NewNormalizer(runner)
	normalized := normalizer.Normalize(ctx, *audioPath)

	engine := transcriber.NewEngine(runner, full.Transcriber, *outputDir)
	output, err := engine.Transcribe(ctx, &transcriber.Request{
		JobID:        uuid.New().String(),
		AudioPath:    normalized,
		ModelSize:    *modelSize,
		Language:     *language,
		Diarization:  *diarization,
		SpeakerCount: *speakers,
	})
	if err != nil {
		log.Fatalf("❌ 转录失败: %v", err)
	}

	fmt.Printf("设备: %s，片段数: %d\n\n", output.Device, len(output.Segments))
	for _, seg := range output.Segments {
		if seg.Speaker != "" {
			fmt.Printf("[%7.1f - %7.1f] %s: %s\n", seg.Start, seg.End, seg.Speaker, seg.Text)
		} else {
			fmt.Printf("[%7.1f - %7.1f] %s\n", seg.Start, seg.End, seg.Text)
		}
	}
}
