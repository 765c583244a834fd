package manifest

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streampack/vod/internal/domain"
)

const videoFragment = `<MPD mediaPresentationDuration="PT0H1M30.000S" maxSegmentDuration="PT10.0S" minBufferTime="PT5.0S">
  <Period>
    <AdaptationSet id="0" contentType="video" mimeType="video/mp4" segmentAlignment="true" startWithSAP="1">
      <Representation id="0" codecs="avc1.64001f" bandwidth="2500000" width="1280" height="720"/>
    </AdaptationSet>
    <AdaptationSet id="1" contentType="audio" mimeType="audio/mp4" lang="eng">
      <Representation id="1" codecs="mp4a.40.2" bandwidth="128000" audioSamplingRate="48000"/>
    </AdaptationSet>
  </Period>
</MPD>`

func dashRendition(fragment string) *domain.Rendition {
	return &domain.Rendition{
		ID:             uuid.New(),
		VideoID:        uuid.New(),
		Name:           "720p",
		Output:         domain.OutputDASH,
		Status:         domain.RenditionReady,
		Width:          1280,
		Height:         720,
		VideoBitRate:   2000,
		AudioBitRate:   128,
		TargetDuration: 10,
		Metadata:       domain.RenditionMetadata{MPD: fragment},
	}
}

func dashSegments(renditionID uuid.UUID, streamID int, durations []float64, withInit bool) []*domain.Segment {
	var segments []*domain.Segment
	if withInit {
		segments = append(segments, &domain.Segment{
			ID: uuid.New(), RenditionID: &renditionID, StreamID: streamID,
			IsInit: true, FileName: "segment.m4s",
		})
	}
	for i, d := range durations {
		segments = append(segments, &domain.Segment{
			ID: uuid.New(), RenditionID: &renditionID, StreamID: streamID,
			Sequence: i, Duration: d, FileName: "segment.m4s",
		})
	}
	return segments
}

func TestDASHBuildMasterNoRenditions(t *testing.T) {
	builder := &DASHBuilder{}
	_, err := builder.BuildMaster(MasterInput{BaseURL: "/v1/videos/x/outputs/dash"})
	assert.ErrorIs(t, err, ErrNoRenditions)
}

func TestDASHBuildMasterRebuildsSegmentLists(t *testing.T) {
	rendition := dashRendition(videoFragment)
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{{
			Rendition: rendition,
			Segments: map[int][]*domain.Segment{
				0: dashSegments(rendition.ID, 0, []float64{10, 10, 10}, true),
				1: dashSegments(rendition.ID, 1, []float64{10, 10, 10}, true),
			},
		}},
	})
	require.NoError(t, err)

	mpd := string(out)
	assert.Equal(t, 2, strings.Count(mpd, "<Initialization sourceURL="))
	assert.Equal(t, 6, strings.Count(mpd, "<SegmentURL media="))
	assert.Contains(t, mpd, `codecs="avc1.64001f"`)
	assert.Contains(t, mpd, `maxSegmentDuration="PT10.0S"`)
	assert.Contains(t, mpd, `<AdaptationSet id="0"`)
	assert.Contains(t, mpd, `<AdaptationSet id="1"`)
}

func TestDASHBuildMasterRecomputesDuration(t *testing.T) {
	rendition := dashRendition(videoFragment)
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{{
			Rendition: rendition,
			Segments: map[int][]*domain.Segment{
				0: dashSegments(rendition.ID, 0, []float64{10, 10, 5.5}, true),
			},
		}},
	})
	require.NoError(t, err)

	// Summed from stored segments, not the PT0H1M30.000S the fragment claims.
	assert.Contains(t, string(out), `mediaPresentationDuration="PT0H0M25.500S"`)
}

func TestDASHBuildMasterDropsEmptyAdaptationSets(t *testing.T) {
	rendition := dashRendition(videoFragment)
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{{
			Rendition: rendition,
			Segments: map[int][]*domain.Segment{
				0: dashSegments(rendition.ID, 0, []float64{10, 10}, true),
			},
		}},
	})
	require.NoError(t, err)

	mpd := string(out)
	assert.Equal(t, 1, strings.Count(mpd, "<AdaptationSet"))
	assert.NotContains(t, mpd, `contentType="audio"`)
}

func TestDASHBuildMasterDeduplicatesAudioLanguage(t *testing.T) {
	first := dashRendition(videoFragment)
	second := dashRendition(videoFragment)
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{
			{
				Rendition: first,
				Segments: map[int][]*domain.Segment{
					0: dashSegments(first.ID, 0, []float64{10}, true),
					1: dashSegments(first.ID, 1, []float64{10}, true),
				},
			},
			{
				Rendition: second,
				Segments: map[int][]*domain.Segment{
					0: dashSegments(second.ID, 0, []float64{10}, true),
					1: dashSegments(second.ID, 1, []float64{10}, true),
				},
			},
		},
	})
	require.NoError(t, err)

	mpd := string(out)
	assert.Equal(t, 2, strings.Count(mpd, `contentType="video"`))
	assert.Equal(t, 1, strings.Count(mpd, `contentType="audio"`))
}

func TestDASHBuildMasterHeaderAttrsFromFirstFragment(t *testing.T) {
	first := dashRendition(videoFragment)
	second := dashRendition(strings.Replace(videoFragment, `minBufferTime="PT5.0S"`, `minBufferTime="PT9.0S"`, 1))
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{
			{
				Rendition: first,
				Segments: map[int][]*domain.Segment{
					0: dashSegments(first.ID, 0, []float64{10}, true),
				},
			},
			{
				Rendition: second,
				Segments: map[int][]*domain.Segment{
					0: dashSegments(second.ID, 0, []float64{10}, true),
				},
			},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, string(out), `minBufferTime="PT5.0S"`, "first fragment wins")
	assert.NotContains(t, string(out), `minBufferTime="PT9.0S"`)
}

func TestDASHBuildMasterDefaultsMinBufferTime(t *testing.T) {
	bare := dashRendition(strings.Replace(videoFragment, ` minBufferTime="PT5.0S"`, "", 1))
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{{
			Rendition: bare,
			Segments: map[int][]*domain.Segment{
				0: dashSegments(bare.ID, 0, []float64{10}, true),
			},
		}},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), `minBufferTime="PT2S"`)
}

func TestDASHBuildMasterAppendsSubtitlesLast(t *testing.T) {
	rendition := dashRendition(videoFragment)
	subtitle := &domain.Subtitle{ID: uuid.New(), Name: "English", Code: "eng", Status: domain.SubtitleReady}
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{{
			Rendition: rendition,
			Segments: map[int][]*domain.Segment{
				0: dashSegments(rendition.ID, 0, []float64{10}, true),
			},
		}},
		Subtitles: []*domain.Subtitle{subtitle},
	})
	require.NoError(t, err)

	mpd := string(out)
	assert.Contains(t, mpd, `mimeType="text/vtt"`)
	assert.Contains(t, mpd, "/subtitles/"+subtitle.ID.String()+"/subtitle.vtt")
	assert.NotContains(t, mpd, subtitle.ID.String()+`"><SegmentList`)
	assert.Less(t, strings.Index(mpd, `contentType="video"`), strings.Index(mpd, `mimeType="text/vtt"`))
	// Subtitle sets get the next global adaptation id.
	assert.Contains(t, mpd, `<AdaptationSet id="1" contentType="text"`)
}

func TestDASHBuildMasterSkipsInvalidFragments(t *testing.T) {
	broken := dashRendition("not xml at all <")
	good := dashRendition(videoFragment)
	builder := &DASHBuilder{}

	out, err := builder.BuildMaster(MasterInput{
		BaseURL: "/v1/videos/v/outputs/dash",
		Renditions: []*RenditionSource{
			{Rendition: broken},
			{
				Rendition: good,
				Segments: map[int][]*domain.Segment{
					0: dashSegments(good.ID, 0, []float64{10}, true),
				},
			},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, string(out), good.ID.String())
	assert.NotContains(t, string(out), broken.ID.String())
}
