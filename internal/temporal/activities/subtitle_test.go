package activities

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleVTT = `WEBVTT

NOTE this block is dropped

1
00:00:01.000 --> 00:00:04.000
First line

00:00:08.000 --> 00:00:12.500 align:start
Second line
continued

00:00:21.000 --> 00:00:24.000
Third line
`

func TestParseVTT(t *testing.T) {
	cues, err := parseVTT(sampleVTT)
	require.NoError(t, err)
	require.Len(t, cues, 3)

	assert.Equal(t, time.Second, cues[0].start)
	assert.Equal(t, 4*time.Second, cues[0].end)
	assert.Contains(t, cues[0].block, "First line")
	// cue identifier survives
	assert.True(t, strings.HasPrefix(cues[0].block, "1\n"))

	assert.Equal(t, 8*time.Second, cues[1].start)
	assert.Equal(t, 12*time.Second+500*time.Millisecond, cues[1].end)
	assert.Contains(t, cues[1].block, "continued")
}

func TestParseVTTStripsByteOrderMark(t *testing.T) {
	cues, err := parseVTT("\uFEFF" + sampleVTT)
	require.NoError(t, err)
	assert.Len(t, cues, 3)
}

func TestParseVTTRejectsMissingHeader(t *testing.T) {
	_, err := parseVTT("00:00:01.000 --> 00:00:02.000\nhello\n")
	assert.Error(t, err)
}

func TestParseVTTRejectsEmptyTrack(t *testing.T) {
	_, err := parseVTT("WEBVTT\n\nNOTE nothing here\n")
	assert.Error(t, err)
}

func TestParseVTTRejectsInvertedCue(t *testing.T) {
	_, err := parseVTT("WEBVTT\n\n00:00:05.000 --> 00:00:01.000\nbackwards\n")
	assert.Error(t, err)
}

func TestSegmentSubtitleCues(t *testing.T) {
	cues, err := parseVTT(sampleVTT)
	require.NoError(t, err)

	files := segmentSubtitleCues(cues, 10*time.Second)
	require.Len(t, files, 3)

	assert.Equal(t, "subtitle_000.vtt", files[0].fileName)
	assert.Contains(t, files[0].content, "First line")
	assert.Contains(t, files[0].content, "Second line")
	assert.Equal(t, 10*time.Second, files[0].duration)

	// middle window has no cues but still exists so sequence stays gapless
	assert.Equal(t, "subtitle_001.vtt", files[1].fileName)
	assert.NotContains(t, files[1].content, "-->")
	assert.True(t, strings.HasPrefix(files[1].content, "WEBVTT"))

	assert.Contains(t, files[2].content, "Third line")
	// trimmed to the final cue end: 24s - 20s
	assert.Equal(t, 4*time.Second, files[2].duration)
}

func TestSegmentSubtitleCuesEveryFileIsValidVTT(t *testing.T) {
	cues, err := parseVTT(sampleVTT)
	require.NoError(t, err)

	for _, f := range segmentSubtitleCues(cues, 5*time.Second) {
		assert.True(t, strings.HasPrefix(f.content, "WEBVTT\n"), f.fileName)
	}
}
