package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOutputFormat(t *testing.T) {
	out, err := ParseOutputFormat("hls")
	require.NoError(t, err)
	assert.Equal(t, OutputHLS, out)

	out, err = ParseOutputFormat("dash")
	require.NoError(t, err)
	assert.Equal(t, OutputDASH, out)

	for _, s := range []string{"", "HLS", "rtmp", "smooth"} {
		_, err := ParseOutputFormat(s)
		assert.Error(t, err, s)
	}
}

func TestOutputFormatFileNames(t *testing.T) {
	assert.Equal(t, "master.m3u8", OutputHLS.ManifestFileName())
	assert.Equal(t, "master.mpd", OutputDASH.ManifestFileName())
	assert.Equal(t, "video/MP2T", OutputHLS.SegmentContentType())
	assert.Equal(t, "video/iso.segment", OutputDASH.SegmentContentType())
}

func TestDispatchKeyIsDeterministic(t *testing.T) {
	videoID := uuid.New()
	profileID := uuid.New()

	first := DispatchKey(videoID, profileID, OutputHLS)
	second := DispatchKey(videoID, profileID, OutputHLS)
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)

	assert.NotEqual(t, first, DispatchKey(videoID, profileID, OutputDASH))
	assert.NotEqual(t, first, DispatchKey(uuid.New(), profileID, OutputHLS))
}

func TestNewRenditionCopiesProfile(t *testing.T) {
	video := NewVideo("sources", "file-1", 100)
	profile := NewProfile("720p", 2000, 128, 1280, 720)

	rendition := NewRendition(video, profile, OutputHLS)

	assert.Equal(t, RenditionPending, rendition.Status)
	assert.Equal(t, "720p", rendition.Name)
	assert.Equal(t, 2000, rendition.VideoBitRate)
	assert.Equal(t, video.ID.String()+"/renditions/"+rendition.ID.String(), rendition.Path)
	assert.Equal(t, DispatchKey(video.ID, profile.ID, OutputHLS), rendition.DispatchKey)

	// Two renditions of the same triple must not share a storage prefix.
	other := NewRendition(video, profile, OutputHLS)
	assert.NotEqual(t, rendition.Path, other.Path)
	assert.Equal(t, rendition.DispatchKey, other.DispatchKey)
}

func TestRenditionFallbacks(t *testing.T) {
	r := &Rendition{VideoBitRate: 2000, AudioBitRate: 128, Width: 1280, Height: 720}
	assert.Equal(t, (2000+128)*1024, r.FallbackBandwidth())
	assert.Equal(t, "1280x720", r.FallbackResolution())
}

func TestReplaceSourceClearsProbeSummary(t *testing.T) {
	video := NewVideo("sources", "file-1", 100)
	duration := 90.0
	width := 1920
	codec := "h264"
	previewID := uuid.New()
	video.Duration = &duration
	video.Width = &width
	video.VideoCodec = &codec
	video.PreviewID = &previewID

	video.ReplaceSource("sources", "file-2", 200)

	assert.Equal(t, "file-2", video.FileID)
	assert.Equal(t, int64(200), video.Size)
	assert.Nil(t, video.Duration)
	assert.Nil(t, video.Width)
	assert.Nil(t, video.VideoCodec)
	assert.Nil(t, video.PreviewID)
}

func TestValidSourceMimeType(t *testing.T) {
	assert.True(t, ValidSourceMimeType("video/mp4"))
	assert.True(t, ValidSourceMimeType("audio/mpeg"))
	assert.True(t, ValidSourceMimeType("application/ogg"))
	assert.False(t, ValidSourceMimeType("application/pdf"))
	assert.False(t, ValidSourceMimeType("text/vtt"))
}

func TestValidSubtitleMimeType(t *testing.T) {
	assert.True(t, ValidSubtitleMimeType("text/vtt"))
	assert.True(t, ValidSubtitleMimeType("text/plain"))
	assert.False(t, ValidSubtitleMimeType("application/x-subrip"))
}

func TestValidLanguageCode(t *testing.T) {
	assert.True(t, ValidLanguageCode("eng"))
	assert.True(t, ValidLanguageCode("und"))
	assert.False(t, ValidLanguageCode("en"))
	assert.False(t, ValidLanguageCode("engl"))
	assert.False(t, ValidLanguageCode("ENG"))
	assert.False(t, ValidLanguageCode("e1g"))
	assert.False(t, ValidLanguageCode(""))
}

func TestProfileValidate(t *testing.T) {
	valid := NewProfile("720p", 2000, 128, 1280, 720)
	assert.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Profile)
	}{
		{"empty name", func(p *Profile) { p.Name = "" }},
		{"video bitrate too low", func(p *Profile) { p.VideoBitRate = MinBitRateKbps - 1 }},
		{"video bitrate too high", func(p *Profile) { p.VideoBitRate = MaxBitRateKbps + 1 }},
		{"audio bitrate too low", func(p *Profile) { p.AudioBitRate = 0 }},
		{"width too small", func(p *Profile) { p.Width = MinDimension - 1 }},
		{"height too large", func(p *Profile) { p.Height = MaxDimension + 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProfile("720p", 2000, 128, 1280, 720)
			tc.mutate(p)
			assert.Error(t, p.Validate())
		})
	}
}

func TestSortSegments(t *testing.T) {
	renditionID := uuid.New()
	second := NewRenditionSegment(renditionID, 0, 1, 10, false, "p", "segment-stream0-00002.m4s", 1)
	first := NewRenditionSegment(renditionID, 0, 0, 10, false, "p", "segment-stream0-00001.m4s", 1)
	initSeg := NewRenditionSegment(renditionID, 0, 0, 0, true, "p", "init-stream0.m4s", 1)

	segments := []*Segment{second, first, initSeg}
	SortSegments(segments)

	assert.True(t, segments[0].IsInit)
	assert.Equal(t, 0, segments[1].Sequence)
	assert.Equal(t, 1, segments[2].Sequence)
}

func TestTotalDurationSkipsInit(t *testing.T) {
	renditionID := uuid.New()
	segments := []*Segment{
		NewRenditionSegment(renditionID, 0, 0, 0, true, "p", "init.m4s", 1),
		NewRenditionSegment(renditionID, 0, 0, 10, false, "p", "a.m4s", 1),
		NewRenditionSegment(renditionID, 0, 1, 5.5, false, "p", "b.m4s", 1),
	}
	assert.InDelta(t, 15.5, TotalDuration(segments), 1e-9)
}

func TestSegmentStorageKey(t *testing.T) {
	s := &Segment{Path: "v/renditions/r", FileName: "segment_000.ts"}
	assert.Equal(t, "v/renditions/r/segment_000.ts", s.StorageKey())
}

func TestNewSubtitlePath(t *testing.T) {
	videoID := uuid.New()
	subtitle := NewSubtitle(videoID, "b", "f", "English", "eng", true)
	assert.Equal(t, videoID.String()+"/subtitles", subtitle.Path)
	assert.Equal(t, SubtitlePending, subtitle.Status)
	assert.True(t, subtitle.Default)
}

func TestPreviewStorageKey(t *testing.T) {
	videoID := uuid.New()
	p := NewPreview(videoID, 5, false)
	assert.Equal(t, videoID.String()+"/previews/"+p.ID.String()+".jpg", p.StorageKey())
	assert.Equal(t, videoID.String()+"/timeline/timeline.vtt", TimelineKey(videoID))
}
