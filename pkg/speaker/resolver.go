package speaker

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sashabaranov/go-openai"
	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/models"
)

const (
	minSampleSegments = 5
	maxSampleSegments = 30
	sampleRatio       = 0.25
)

// ChatClient 语言模型客户端接口（便于测试注入假响应）
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Resolver 说话人姓名解析器
// 采样转录开头片段，让语言模型从自我介绍中识别 SPEAKER_XX 对应的真实姓名
type Resolver struct {
	client ChatClient
	model  string
}

// NewResolver 创建解析器
func NewResolver(apiKey, model string) *Resolver {
	return &Resolver{
		client: openai.NewClient(apiKey),
		model:  model,
	}
}

// NewResolverWithClient 使用自定义客户端创建（测试用）
func NewResolverWithClient(client ChatClient, model string) *Resolver {
	return &Resolver{client: client, model: model}
}

// SampleSize 采样片段数
// 取转录总数的 25%（向上取整），夹在 [5, 30] 之间：
// 自我介绍基本出现在开头，采样前缀即可，同时限制模型调用成本
func SampleSize(totalSegments int) int {
	n := int(math.Ceil(float64(totalSegments) * sampleRatio))
	if n < minSampleSegments {
		n = minSampleSegments
	}
	if n > maxSampleSegments {
		n = maxSampleSegments
	}
	return n
}

// Resolve 解析说话人姓名并重写片段
// 返回重写后的完整片段序列；任何失败都返回 AIServiceError，
// 调用方保留原始标签即可，不影响任务状态
func (r *Resolver) Resolve(ctx context.Context, segments []models.TranscriptSegment) ([]models.TranscriptSegment, error) {
	mapping, err := r.DetectNames(ctx, segments)
	if err != nil {
		return nil, err
	}
	return ApplyMapping(segments, mapping), nil
}

// DetectNames 采样片段并调用语言模型，返回 标签->姓名 映射（null 表示未识别）
func (r *Resolver) DetectNames(ctx context.Context, segments []models.TranscriptSegment) (map[string]*string, error) {
	sampleCount := SampleSize(len(segments))
	if sampleCount > len(segments) {
		sampleCount = len(segments)
	}
	sample := segments[:sampleCount]

	prompt := buildPrompt(sample)

	resp, err := r.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: r.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "你是一个会议转录分析助手。你的任务是从转录开头的自我介绍中识别每个说话人标签对应的真实姓名。只返回 JSON 对象，不要有任何其他文字。",
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1, // 降低温度，使输出更稳定
		MaxTokens:   500,
	})
	if err != nil {
		return nil, &apperr.AIServiceError{Message: "调用语言模型失败", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &apperr.AIServiceError{Message: "语言模型未返回结果"}
	}

	mapping, err := parseMapping(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &apperr.AIServiceError{Message: "解析语言模型响应失败", Err: err}
	}
	return mapping, nil
}

// buildPrompt 构建提示词：带时间戳的 "标签: 文本" 行 + 严格 JSON 输出要求
func buildPrompt(sample []models.TranscriptSegment) string {
	var lines strings.Builder
	for _, seg := range sample {
		label := seg.Speaker
		if label == "" {
			label = "UNKNOWN"
		}
		lines.WriteString(fmt.Sprintf("[%.1f-%.1f] %s: %s\n", seg.Start, seg.End, label, seg.Text))
	}

	return fmt.Sprintf(`以下是一段会议转录的开头部分，说话人以匿名标签（如 SPEAKER_00）标注。

请识别其中的自我介绍（例如 "I'm Alice"、"this is Bob"、"Carol here"、"我是小王"、"大家好，我叫李雷" 等各语言的表达），推断每个标签对应的真实姓名。

要求：
1. 输出一个严格的 JSON 对象：key 是出现过的说话人标签，value 是识别出的姓名字符串，未能识别的标签 value 为 null
2. 只依据文本里明确的自我介绍或他人称呼，不要凭空猜测姓名
3. 不要输出 JSON 以外的任何文字

示例输出：
{"SPEAKER_00": "Alice", "SPEAKER_01": null}

转录内容：
%s`, lines.String())
}

// codeFence 匹配 ``` 或 ```json 围栏标记
var codeFence = regexp.MustCompile("(?m)^```[a-zA-Z]*\\s*$")

// jsonObject 提取第一个 {...} 块（贪婪，跨行）
var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

// parseMapping 防御性解析模型输出
// 先剥掉代码围栏，再用正则定位第一个 JSON 对象，最后校验是非空对象
func parseMapping(content string) (map[string]*string, error) {
	cleaned := codeFence.ReplaceAllString(content, "")

	raw := jsonObject.FindString(cleaned)
	if raw == "" {
		return nil, fmt.Errorf("响应中没有 JSON 对象: %s", truncate(content, 200))
	}

	var parsed map[string]*string
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("JSON 解析失败: %w", err)
	}
	if parsed == nil {
		return nil, fmt.Errorf("响应不是 JSON 对象")
	}
	return parsed, nil
}

// ApplyMapping 用 标签->姓名 映射重写完整转录
// 仅当映射存在、非 null 且与当前标签不同才替换；其余片段保持不变
func ApplyMapping(segments []models.TranscriptSegment, mapping map[string]*string) []models.TranscriptSegment {
	result := make([]models.TranscriptSegment, len(segments))
	copy(result, segments)

	for i := range result {
		name, ok := mapping[result[i].Speaker]
		if !ok || name == nil {
			continue
		}
		if *name == "" || *name == result[i].Speaker {
			continue
		}
		result[i].Speaker = *name
	}
	return result
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
