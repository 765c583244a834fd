package manifest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampack/vod/internal/domain"
)

func readyRendition(name string, streams []domain.StreamMetadata) *domain.Rendition {
	return &domain.Rendition{
		ID:             uuid.New(),
		VideoID:        uuid.New(),
		Name:           name,
		Output:         domain.OutputHLS,
		Status:         domain.RenditionReady,
		Width:          1280,
		Height:         720,
		VideoBitRate:   2000,
		AudioBitRate:   128,
		TargetDuration: 10,
		Metadata:       domain.RenditionMetadata{Streams: streams},
	}
}

func TestBuildMasterNoRenditions(t *testing.T) {
	builder := &HLSBuilder{}
	_, err := builder.BuildMaster(MasterInput{BaseURL: "/v1/videos/x/outputs/hls"})
	assert.ErrorIs(t, err, ErrNoRenditions)
}

func TestBuildMasterDeduplicatesAudioByLanguage(t *testing.T) {
	rendition := readyRendition("720p", []domain.StreamMetadata{
		{Type: domain.StreamVideo, ID: 0, Resolution: "1280x720", Bandwidth: 2500000, Codecs: "avc1.64001f"},
		{Type: domain.StreamAudio, ID: 1, Language: "eng"},
		{Type: domain.StreamAudio, ID: 2, Language: "eng"},
	})

	builder := &HLSBuilder{}
	out, err := builder.BuildMaster(MasterInput{
		BaseURL:    "/v1/videos/v/outputs/hls",
		Renditions: []*RenditionSource{{Rendition: rendition}},
	})
	require.NoError(t, err)

	master := string(out)
	assert.Equal(t, 1, strings.Count(master, "TYPE=AUDIO"))
	assert.Equal(t, 1, strings.Count(master, "#EXT-X-STREAM-INF"))
	assert.Contains(t, master, `LANGUAGE="eng"`)
	assert.Contains(t, master, `AUDIO="audio"`)
	assert.NotContains(t, master, `SUBTITLES=`)
}

func TestBuildMasterFallbacks(t *testing.T) {
	rendition := readyRendition("720p", []domain.StreamMetadata{
		{Type: domain.StreamVideo, ID: 0},
	})

	builder := &HLSBuilder{}
	out, err := builder.BuildMaster(MasterInput{
		BaseURL:    "/v1/videos/v/outputs/hls",
		Renditions: []*RenditionSource{{Rendition: rendition}},
	})
	require.NoError(t, err)

	master := string(out)
	// (2000 + 128) * 1024
	assert.Contains(t, master, "BANDWIDTH=2179072")
	assert.Contains(t, master, "RESOLUTION=1280x720")
}

func TestBuildMasterEmptyStreamMetadata(t *testing.T) {
	rendition := readyRendition("720p", nil)

	builder := &HLSBuilder{}
	out, err := builder.BuildMaster(MasterInput{
		BaseURL:    "/v1/videos/v/outputs/hls",
		Renditions: []*RenditionSource{{Rendition: rendition}},
	})
	require.NoError(t, err)

	master := string(out)
	assert.Equal(t, 1, strings.Count(master, "#EXT-X-STREAM-INF"))
	assert.Contains(t, master, "/streams/0/playlist.m3u8")
}

func TestBuildMasterSubtitleEntries(t *testing.T) {
	rendition := readyRendition("720p", []domain.StreamMetadata{
		{Type: domain.StreamVideo, ID: 0, Resolution: "1280x720", Bandwidth: 2500000},
	})
	defaultSub := &domain.Subtitle{ID: uuid.New(), Name: "English", Code: "eng", Default: true}
	otherSub := &domain.Subtitle{ID: uuid.New(), Name: "Deutsch", Code: "ger"}

	builder := &HLSBuilder{}
	out, err := builder.BuildMaster(MasterInput{
		BaseURL:    "/v1/videos/v/outputs/hls",
		Renditions: []*RenditionSource{{Rendition: rendition}},
		Subtitles:  []*domain.Subtitle{defaultSub, otherSub},
	})
	require.NoError(t, err)

	master := string(out)
	assert.Equal(t, 2, strings.Count(master, "TYPE=SUBTITLES"))
	assert.Equal(t, 1, strings.Count(master, "TYPE=SUBTITLES,GROUP-ID=\"subs\",NAME=\"English\",LANGUAGE=\"eng\",AUTOSELECT=YES,DEFAULT=YES"))
	assert.Contains(t, master, `SUBTITLES="subs"`)
	assert.Contains(t, master, "/subtitles/"+defaultSub.ID.String()+"/subtitles.m3u8")
}

func TestBuildMasterOrderIsStable(t *testing.T) {
	first := readyRendition("360p", []domain.StreamMetadata{
		{Type: domain.StreamVideo, ID: 0, Resolution: "640x360", Bandwidth: 800000},
	})
	second := readyRendition("720p", []domain.StreamMetadata{
		{Type: domain.StreamVideo, ID: 0, Resolution: "1280x720", Bandwidth: 2500000},
	})

	builder := &HLSBuilder{}
	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/hls",
		Renditions: []*RenditionSource{
			{Rendition: first},
			{Rendition: second},
		},
	})
	require.NoError(t, err)

	master := string(out)
	assert.Less(t, strings.Index(master, first.ID.String()), strings.Index(master, second.ID.String()))
}

func TestBuildMediaPlaylist(t *testing.T) {
	rendition := readyRendition("720p", nil)
	rid := rendition.ID
	segments := []*domain.Segment{
		{ID: uuid.New(), RenditionID: &rid, Sequence: 0, Duration: 10, FileName: "segment.ts"},
		{ID: uuid.New(), RenditionID: &rid, Sequence: 1, Duration: 8.5, FileName: "segment.ts"},
	}

	out, err := BuildMediaPlaylist("/v1/videos/v/outputs/hls", rendition, 0, segments)
	require.NoError(t, err)

	playlist := string(out)
	assert.Contains(t, playlist, "#EXTM3U")
	assert.Contains(t, playlist, "#EXT-X-TARGETDURATION:10")
	assert.Contains(t, playlist, "#EXTINF:10.000,")
	assert.Contains(t, playlist, "#EXTINF:8.500,")
	assert.Contains(t, playlist, "#EXT-X-ENDLIST")
	assert.Less(t, strings.Index(playlist, segments[0].ID.String()), strings.Index(playlist, segments[1].ID.String()))
}

func TestBuildMediaPlaylistNoSegments(t *testing.T) {
	rendition := readyRendition("720p", nil)
	_, err := BuildMediaPlaylist("/v1/videos/v/outputs/hls", rendition, 0, nil)
	assert.ErrorIs(t, err, ErrNoSegments)
}

func TestBuildSubtitlePlaylist(t *testing.T) {
	subtitle := &domain.Subtitle{ID: uuid.New(), Name: "English", Code: "eng", TargetDuration: 10}
	sid := subtitle.ID
	segments := []*domain.Segment{
		{ID: uuid.New(), SubtitleID: &sid, Sequence: 0, Duration: 10, FileName: "subtitle.vtt"},
		{ID: uuid.New(), SubtitleID: &sid, Sequence: 1, Duration: 4.2, FileName: "subtitle.vtt"},
	}

	out, err := BuildSubtitlePlaylist("/v1/videos/v/outputs/hls", subtitle, segments)
	require.NoError(t, err)

	playlist := string(out)
	assert.Contains(t, playlist, "#EXT-X-TARGETDURATION:10")
	assert.Contains(t, playlist, "/subtitles/"+subtitle.ID.String()+"/segments/")
	assert.Contains(t, playlist, "#EXT-X-ENDLIST")
}
