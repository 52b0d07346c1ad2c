package transcriber

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/z-wentao/meetscribe/pkg/models"
)

func subtitleSegments() []models.TranscriptSegment {
	return []models.TranscriptSegment{
		{Start: 0, End: 2.5, Text: "hello everyone", Speaker: "Alice"},
		{Start: 2.5, End: 4, Text: "   ", Speaker: "Bob"}, // 空白片段跳过
		{Start: 65.5, End: 70, Text: "let's begin"},
	}
}

func TestWriteSRT(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteSRT(&buf, subtitleSegments()))
	got := buf.String()

	assert.Contains(t, got, "1\n00:00:00,000 --> 00:00:02,500\nAlice: hello everyone\n\n")
	// 空白片段不占编号
	assert.Contains(t, got, "2\n00:01:05,500 --> 00:01:10,000\nlet's begin\n\n")
	assert.NotContains(t, got, "Bob")
}

func TestWriteVTT(t *testing.T) {
	var buf strings.Builder
	require.NoError(t, WriteVTT(&buf, subtitleSegments()))
	got := buf.String()

	assert.True(t, strings.HasPrefix(got, "WEBVTT\n\n"))
	assert.Contains(t, got, "00:00:00.000 --> 00:00:02.500\nAlice: hello everyone")
	assert.Contains(t, got, "00:01:05.500 --> 00:01:10.000\nlet's begin")
}

func TestFormatSubtitleTime(t *testing.T) {
	cases := []struct {
		seconds float64
		srt     string
		vtt     string
	}{
		{0, "00:00:00,000", "00:00:00.000"},
		{65.5, "00:01:05,500", "00:01:05.500"},
		{3661.25, "01:01:01,250", "01:01:01.250"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.srt, formatSRTTime(tc.seconds))
		assert.Equal(t, tc.vtt, formatVTTTime(tc.seconds))
	}
}

func TestWriteEmptySegments(t *testing.T) {
	var srt, vtt strings.Builder
	require.NoError(t, WriteSRT(&srt, nil))
	require.NoError(t, WriteVTT(&vtt, nil))

	assert.Empty(t, srt.String())
	assert.Equal(t, "WEBVTT\n\n", vtt.String())
}
