package manifest

import (
	"fmt"
	"strings"

	"github.com/streampack/vod/internal/domain"
)

const (
	hlsAudioGroup    = "audio"
	hlsSubtitleGroup = "subs"
)

// HLSBuilder renders HLS multivariant and media playlists.
type HLSBuilder struct{}

// ContentType implements Builder.
func (b *HLSBuilder) ContentType() string { return "application/x-mpegurl" }

// FileName implements Builder.
func (b *HLSBuilder) FileName() string { return "master.m3u8" }

// BuildMaster renders the multivariant playlist. Audio entries are
// de-duplicated by language across all renditions: the first occurrence
// wins, later same-language streams are skipped silently. The AUDIO and
// SUBTITLES group attributes are attached to every variant when at least
// one audio or subtitle entry exists anywhere in the manifest, not
// per-rendition.
func (b *HLSBuilder) BuildMaster(in MasterInput) ([]byte, error) {
	if len(in.Renditions) == 0 {
		return nil, ErrNoRenditions
	}

	hasAudio := false
	for _, src := range in.Renditions {
		for _, stream := range src.Rendition.Metadata.Streams {
			if stream.Type == domain.StreamAudio {
				hasAudio = true
			}
		}
	}

	groups := ""
	if hasAudio {
		groups += fmt.Sprintf(",AUDIO=\"%s\"", hlsAudioGroup)
	}
	if len(in.Subtitles) > 0 {
		groups += fmt.Sprintf(",SUBTITLES=\"%s\"", hlsSubtitleGroup)
	}

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:4\n")

	seenLanguages := map[string]bool{}
	firstAudio := true

	for _, src := range in.Renditions {
		rendition := src.Rendition
		for _, stream := range rendition.Metadata.Streams {
			if stream.Type != domain.StreamAudio {
				continue
			}
			language := stream.Language
			if language == "" {
				language = "und"
			}
			if seenLanguages[language] {
				continue
			}
			seenLanguages[language] = true

			defaultFlag := "NO"
			if firstAudio {
				defaultFlag = "YES"
				firstAudio = false
			}

			sb.WriteString(fmt.Sprintf(
				"#EXT-X-MEDIA:TYPE=AUDIO,GROUP-ID=\"%s\",NAME=\"%s\",LANGUAGE=\"%s\",AUTOSELECT=YES,DEFAULT=%s,URI=\"%s/renditions/%s/streams/%d/playlist.m3u8\"\n",
				hlsAudioGroup, language, language, defaultFlag, in.BaseURL, rendition.ID, stream.ID))
		}
	}

	for _, subtitle := range in.Subtitles {
		defaultFlag := "NO"
		if subtitle.Default {
			defaultFlag = "YES"
		}
		sb.WriteString(fmt.Sprintf(
			"#EXT-X-MEDIA:TYPE=SUBTITLES,GROUP-ID=\"%s\",NAME=\"%s\",LANGUAGE=\"%s\",AUTOSELECT=YES,DEFAULT=%s,URI=\"%s/subtitles/%s/subtitles.m3u8\"\n",
			hlsSubtitleGroup, subtitle.Name, subtitle.Code, defaultFlag, in.BaseURL, subtitle.ID))
	}

	for _, src := range in.Renditions {
		rendition := src.Rendition
		streams := rendition.Metadata.Streams
		if len(streams) == 0 {
			// Pre-metadata encoder output: a single video variant built
			// from the profile parameters captured at dispatch time.
			streams = []domain.StreamMetadata{{Type: domain.StreamVideo, ID: 0}}
		}

		for _, stream := range streams {
			if stream.Type != domain.StreamVideo {
				continue
			}

			bandwidth := stream.Bandwidth
			if bandwidth == 0 {
				bandwidth = rendition.FallbackBandwidth()
			}
			resolution := stream.Resolution
			if resolution == "" {
				resolution = rendition.FallbackResolution()
			}

			sb.WriteString(fmt.Sprintf("#EXT-X-STREAM-INF:BANDWIDTH=%d,RESOLUTION=%s", bandwidth, resolution))
			if stream.Codecs != "" {
				sb.WriteString(fmt.Sprintf(",CODECS=\"%s\"", stream.Codecs))
			}
			sb.WriteString(fmt.Sprintf(",NAME=\"%s\"%s\n", rendition.Name, groups))
			sb.WriteString(fmt.Sprintf("%s/renditions/%s/streams/%d/playlist.m3u8\n", in.BaseURL, rendition.ID, stream.ID))
		}
	}

	return []byte(sb.String()), nil
}

// BuildMediaPlaylist renders the per-stream playlist of a ready rendition.
// Segments must already be in playback order.
func BuildMediaPlaylist(baseURL string, rendition *domain.Rendition, streamID int, segments []*domain.Segment) ([]byte, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:4\n")
	sb.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", rendition.TargetDuration))
	sb.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	sb.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	for _, segment := range segments {
		if segment.IsInit {
			sb.WriteString(fmt.Sprintf("#EXT-X-MAP:URI=\"%s/renditions/%s/streams/%d/segments/%s/%s\"\n",
				baseURL, rendition.ID, streamID, segment.ID, segment.FileName))
			continue
		}
		sb.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", segment.Duration))
		sb.WriteString(fmt.Sprintf("%s/renditions/%s/streams/%d/segments/%s/%s\n",
			baseURL, rendition.ID, streamID, segment.ID, segment.FileName))
	}

	sb.WriteString("#EXT-X-ENDLIST\n")

	return []byte(sb.String()), nil
}

// BuildSubtitlePlaylist renders the segmented-VTT playlist of a ready
// subtitle track.
func BuildSubtitlePlaylist(baseURL string, subtitle *domain.Subtitle, segments []*domain.Segment) ([]byte, error) {
	if len(segments) == 0 {
		return nil, ErrNoSegments
	}

	var sb strings.Builder
	sb.WriteString("#EXTM3U\n")
	sb.WriteString("#EXT-X-VERSION:4\n")
	sb.WriteString(fmt.Sprintf("#EXT-X-TARGETDURATION:%d\n", subtitle.TargetDuration))
	sb.WriteString("#EXT-X-MEDIA-SEQUENCE:0\n")
	sb.WriteString("#EXT-X-PLAYLIST-TYPE:VOD\n")

	for _, segment := range segments {
		if segment.IsInit {
			continue
		}
		sb.WriteString(fmt.Sprintf("#EXTINF:%.3f,\n", segment.Duration))
		sb.WriteString(fmt.Sprintf("%s/subtitles/%s/segments/%s/%s\n",
			baseURL, subtitle.ID, segment.ID, segment.FileName))
	}

	sb.WriteString("#EXT-X-ENDLIST\n")

	return []byte(sb.String()), nil
}
