package transcriber

import (
	"fmt"
	"io"
	"strings"

	"github.com/z-wentao/meetscribe/pkg/models"
)

// WriteSRT 把转录片段渲染为 SRT 字幕
func WriteSRT(w io.Writer, segments []models.TranscriptSegment) error {
	var builder strings.Builder
	subtitleIndex := 1

	for _, seg := range segments {
		text := subtitleText(seg)
		if text == "" {
			continue
		}

		builder.WriteString(fmt.Sprintf("%d\n", subtitleIndex))
		builder.WriteString(fmt.Sprintf("%s --> %s\n", formatSRTTime(seg.Start), formatSRTTime(seg.End)))
		builder.WriteString(fmt.Sprintf("%s\n\n", text))

		subtitleIndex++
	}

	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("写入 SRT 失败: %w", err)
	}
	return nil
}

// WriteVTT 把转录片段渲染为 WebVTT 字幕（用于 HTML5 video 播放）
func WriteVTT(w io.Writer, segments []models.TranscriptSegment) error {
	var builder strings.Builder

	// VTT 文件必须以 "WEBVTT" 开头
	builder.WriteString("WEBVTT\n\n")

	subtitleIndex := 1
	for _, seg := range segments {
		text := subtitleText(seg)
		if text == "" {
			continue
		}

		builder.WriteString(fmt.Sprintf("%d\n", subtitleIndex))
		builder.WriteString(fmt.Sprintf("%s --> %s\n", formatVTTTime(seg.Start), formatVTTTime(seg.End)))
		builder.WriteString(fmt.Sprintf("%s\n\n", text))

		subtitleIndex++
	}

	if _, err := io.WriteString(w, builder.String()); err != nil {
		return fmt.Errorf("写入 VTT 失败: %w", err)
	}
	return nil
}

// subtitleText 字幕文本，有说话人时加前缀
func subtitleText(seg models.TranscriptSegment) string {
	text := strings.TrimSpace(seg.Text)
	if text == "" {
		return ""
	}
	if seg.Speaker != "" {
		return fmt.Sprintf("%s: %s", seg.Speaker, text)
	}
	return text
}

// formatSRTTime 将秒数格式化为 SRT 时间格式
// 例如: 65.5 -> 00:01:05,500（SRT 使用逗号分隔毫秒）
func formatSRTTime(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, secs, millis)
}

// formatVTTTime 将秒数格式化为 VTT 时间格式
// 例如: 65.5 -> 00:01:05.500（VTT 使用点号）
func formatVTTTime(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := int(seconds) % 60
	millis := int((seconds - float64(int(seconds))) * 1000)

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, secs, millis)
}
