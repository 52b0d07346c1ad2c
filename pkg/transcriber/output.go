package transcriber

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/z-wentao/meetscribe/pkg/models"
)

// engineOutput 引擎输出文件的结构
// {"segments": [{"start":0.0,"end":2.5,"text":"...","speaker":"SPEAKER_00"}], "text": "..."}
type engineOutput struct {
	Segments []engineSegment `json:"segments"`
	Text     string          `json:"text"`
}

type engineSegment struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Text    string  `json:"text"`
	Speaker string  `json:"speaker,omitempty"`
}

// parseOutputFile 读取并校验引擎输出
// segments 缺失视为输出损坏；文本去首尾空格，去空后为空的片段丢弃，顺序保持
func parseOutputFile(path string) (*Output, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取引擎输出失败: %w", err)
	}

	var raw engineOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("解析引擎输出失败: %w", err)
	}
	if raw.Segments == nil {
		return nil, fmt.Errorf("引擎输出缺少 segments 字段")
	}

	segments := make([]models.TranscriptSegment, 0, len(raw.Segments))
	var texts []string
	for _, seg := range raw.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, models.TranscriptSegment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    text,
			Speaker: seg.Speaker,
		})
		texts = append(texts, text)
	}

	text := raw.Text
	if text == "" {
		text = strings.Join(texts, " ")
	}

	return &Output{
		Segments: segments,
		Text:     text,
	}, nil
}

// writeOutputFile 把转录结果写成引擎输出格式的 JSON 工件
func writeOutputFile(path string, output *Output) error {
	raw := engineOutput{
		Segments: make([]engineSegment, len(output.Segments)),
		Text:     output.Text,
	}
	for i, seg := range output.Segments {
		raw.Segments[i] = engineSegment{
			Start:   seg.Start,
			End:     seg.End,
			Text:    seg.Text,
			Speaker: seg.Speaker,
		}
	}

	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化转录结果失败: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("创建目录失败: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入文件失败: %w", err)
	}
	return nil
}
