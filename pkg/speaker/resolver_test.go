package speaker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/meetscribe/pkg/apperr"
	"github.com/z-wentao/meetscribe/pkg/models"
)

// fakeChatClient 返回预设响应的假客户端
type fakeChatClient struct {
	content string
	err     error
	lastReq openai.ChatCompletionRequest
}

func (f *fakeChatClient) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.content}},
		},
	}, nil
}

func makeSegments(n int) []models.TranscriptSegment {
	segs := make([]models.TranscriptSegment, n)
	for i := range segs {
		segs[i] = models.TranscriptSegment{
			Start:   float64(i) * 5,
			End:     float64(i)*5 + 4,
			Text:    fmt.Sprintf("segment %d", i),
			Speaker: fmt.Sprintf("SPEAKER_%02d", i%2),
		}
	}
	return segs
}

func TestSampleSize(t *testing.T) {
	cases := []struct {
		total int
		want  int
	}{
		{0, 5},
		{3, 5},   // 低于下限，夹到 5
		{10, 5},  // ceil(2.5)=3，仍然夹到 5
		{20, 5},
		{40, 10}, // 25% 生效
		{100, 25},
		{118, 30}, // ceil(29.5)=30，恰好到上限
		{200, 30}, // 超过上限，夹到 30
		{10000, 30},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SampleSize(tc.total), "total=%d", tc.total)
	}
}

func TestApplyMapping(t *testing.T) {
	alice := "Alice"
	empty := ""
	same := "SPEAKER_00"

	segments := []models.TranscriptSegment{
		{Start: 0, End: 4, Text: "hi I'm Alice", Speaker: "SPEAKER_00"},
		{Start: 5, End: 9, Text: "hello", Speaker: "SPEAKER_01"},
		{Start: 10, End: 14, Text: "next topic", Speaker: "SPEAKER_00"},
	}

	t.Run("replaces mapped labels everywhere", func(t *testing.T) {
		result := ApplyMapping(segments, map[string]*string{
			"SPEAKER_00": &alice,
			"SPEAKER_01": nil,
		})

		assert.Equal(t, "Alice", result[0].Speaker)
		assert.Equal(t, "SPEAKER_01", result[1].Speaker) // null 保留原标签
		assert.Equal(t, "Alice", result[2].Speaker)
		// 时间戳和文本不受影响
		assert.Equal(t, segments[0].Text, result[0].Text)
		assert.Equal(t, segments[2].Start, result[2].Start)
	})

	t.Run("does not mutate the input", func(t *testing.T) {
		_ = ApplyMapping(segments, map[string]*string{"SPEAKER_00": &alice})
		assert.Equal(t, "SPEAKER_00", segments[0].Speaker)
	})

	t.Run("ignores empty and identity mappings", func(t *testing.T) {
		result := ApplyMapping(segments, map[string]*string{
			"SPEAKER_00": &empty,
			"SPEAKER_01": &same,
		})
		assert.Equal(t, "SPEAKER_00", result[0].Speaker)
		assert.Equal(t, "SPEAKER_01", result[1].Speaker)
	})

	t.Run("labels missing from mapping are untouched", func(t *testing.T) {
		result := ApplyMapping(segments, map[string]*string{})
		assert.Equal(t, segments, result)
	})
}

func TestParseMapping(t *testing.T) {
	alice := "Alice"

	t.Run("plain json", func(t *testing.T) {
		m, err := parseMapping(`{"SPEAKER_00": "Alice", "SPEAKER_01": null}`)
		require.NoError(t, err)
		assert.Equal(t, map[string]*string{"SPEAKER_00": &alice, "SPEAKER_01": nil}, m)
	})

	t.Run("fenced json", func(t *testing.T) {
		m, err := parseMapping("```json\n{\"SPEAKER_00\": \"Alice\"}\n```")
		require.NoError(t, err)
		require.NotNil(t, m["SPEAKER_00"])
		assert.Equal(t, "Alice", *m["SPEAKER_00"])
	})

	t.Run("json surrounded by chatter", func(t *testing.T) {
		m, err := parseMapping("识别结果如下：\n{\"SPEAKER_00\": null}\n希望有帮助")
		require.NoError(t, err)
		assert.Contains(t, m, "SPEAKER_00")
	})

	t.Run("no json object", func(t *testing.T) {
		_, err := parseMapping("抱歉，我无法识别任何姓名")
		assert.Error(t, err)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := parseMapping(`{"SPEAKER_00": }`)
		assert.Error(t, err)
	})
}

func TestResolverResolve(t *testing.T) {
	t.Run("success rewrites labels", func(t *testing.T) {
		client := &fakeChatClient{content: `{"SPEAKER_00": "Alice", "SPEAKER_01": null}`}
		r := NewResolverWithClient(client, "gpt-4o-mini")

		result, err := r.Resolve(context.Background(), makeSegments(8))
		require.NoError(t, err)
		for _, seg := range result {
			assert.NotEqual(t, "SPEAKER_00", seg.Speaker)
		}
		assert.Equal(t, "gpt-4o-mini", client.lastReq.Model)
	})

	t.Run("samples a prefix of long transcripts", func(t *testing.T) {
		client := &fakeChatClient{content: `{}`}
		r := NewResolverWithClient(client, "gpt-4o-mini")

		_, err := r.Resolve(context.Background(), makeSegments(200))
		require.NoError(t, err)

		prompt := client.lastReq.Messages[1].Content
		assert.Contains(t, prompt, "segment 29")    // 采样上限 30 条
		assert.NotContains(t, prompt, "segment 30") // 之后的片段不进入提示
	})

	t.Run("api error is recoverable", func(t *testing.T) {
		client := &fakeChatClient{err: errors.New("rate limited")}
		r := NewResolverWithClient(client, "gpt-4o-mini")

		_, err := r.Resolve(context.Background(), makeSegments(8))
		var aiErr *apperr.AIServiceError
		require.ErrorAs(t, err, &aiErr)
		assert.ErrorIs(t, err, client.err)
	})

	t.Run("garbage response is recoverable", func(t *testing.T) {
		client := &fakeChatClient{content: "I could not find any names."}
		r := NewResolverWithClient(client, "gpt-4o-mini")

		_, err := r.Resolve(context.Background(), makeSegments(8))
		var aiErr *apperr.AIServiceError
		assert.ErrorAs(t, err, &aiErr)
	})
}
