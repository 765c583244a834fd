package activities

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/ffmpeg"
)

// segmentEntry is one file of the encoder output mapped onto the segment
// index schema.
type segmentEntry struct {
	streamID int
	sequence int
	duration float64
	isInit   bool
	fileName string
}

// segmentPlan is the indexed encoder output, ready to be turned into
// segment rows once upload sizes are known.
type segmentPlan struct {
	entries        []segmentEntry
	mpd            string
	targetDuration int
	output         domain.OutputFormat
	audioStreamIDs []int
}

var (
	extinfRegex      = regexp.MustCompile(`^#EXTINF:([\d.]+)`)
	dashInitRegex    = regexp.MustCompile(`^init-stream(\d+)\.m4s$`)
	dashSegmentRegex = regexp.MustCompile(`^segment-stream(\d+)-(\d+)\.m4s$`)
)

// buildSegmentPlan indexes the encoder output directory. For HLS the
// per-segment durations come from the playlist ffmpeg wrote; for DASH they
// are derived from the source duration, with the remainder on the last
// segment of each stream.
func buildSegmentPlan(outputDir string, output domain.OutputFormat, sourceDuration float64, configuredTarget int) (*segmentPlan, error) {
	if output == domain.OutputDASH {
		return buildDASHPlan(outputDir, sourceDuration, configuredTarget)
	}
	return buildHLSPlan(outputDir, configuredTarget)
}

func buildHLSPlan(outputDir string, configuredTarget int) (*segmentPlan, error) {
	entries, err := parseHLSPlaylist(filepath.Join(outputDir, "playlist.m3u8"))
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("playlist lists no segments")
	}

	plan := &segmentPlan{output: domain.OutputHLS}
	durations := make([]float64, 0, len(entries))
	for i, e := range entries {
		plan.entries = append(plan.entries, segmentEntry{
			streamID: 0,
			sequence: i,
			duration: e.duration,
			fileName: e.fileName,
		})
		durations = append(durations, e.duration)
	}
	plan.targetDuration = targetDurationFor(durations, configuredTarget)
	return plan, nil
}

func buildDASHPlan(outputDir string, sourceDuration float64, configuredTarget int) (*segmentPlan, error) {
	mpdBytes, err := os.ReadFile(filepath.Join(outputDir, "manifest.mpd"))
	if err != nil {
		return nil, fmt.Errorf("failed to read packager manifest: %w", err)
	}

	dirEntries, err := os.ReadDir(outputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read output directory: %w", err)
	}

	plan := &segmentPlan{output: domain.OutputDASH, mpd: string(mpdBytes), targetDuration: configuredTarget}
	perStream := make(map[int][]segmentEntry)

	for _, de := range dirEntries {
		name := de.Name()
		if m := dashInitRegex.FindStringSubmatch(name); m != nil {
			streamID, _ := strconv.Atoi(m[1])
			plan.entries = append(plan.entries, segmentEntry{
				streamID: streamID,
				isInit:   true,
				fileName: name,
			})
			continue
		}
		if m := dashSegmentRegex.FindStringSubmatch(name); m != nil {
			streamID, _ := strconv.Atoi(m[1])
			number, _ := strconv.Atoi(m[2])
			perStream[streamID] = append(perStream[streamID], segmentEntry{
				streamID: streamID,
				sequence: number - 1,
				fileName: name,
			})
		}
	}

	if len(perStream) == 0 {
		return nil, fmt.Errorf("packager produced no media segments")
	}

	for streamID, segs := range perStream {
		sort.Slice(segs, func(i, j int) bool { return segs[i].sequence < segs[j].sequence })
		for i := range segs {
			segs[i].duration = float64(configuredTarget)
		}
		if last := len(segs) - 1; sourceDuration > 0 {
			remainder := sourceDuration - float64(configuredTarget*last)
			if remainder > 0 && remainder <= float64(configuredTarget) {
				segs[last].duration = remainder
			}
		}
		plan.entries = append(plan.entries, segs...)
		if streamID > 0 {
			plan.audioStreamIDs = append(plan.audioStreamIDs, streamID)
		}
	}
	sort.Ints(plan.audioStreamIDs)
	sort.Slice(plan.entries, func(i, j int) bool {
		if plan.entries[i].streamID != plan.entries[j].streamID {
			return plan.entries[i].streamID < plan.entries[j].streamID
		}
		if plan.entries[i].isInit != plan.entries[j].isInit {
			return plan.entries[i].isInit
		}
		return plan.entries[i].sequence < plan.entries[j].sequence
	})

	return plan, nil
}

// streams reports the stream metadata stamped on markReady. HLS output is a
// single muxed stream; DASH splits video and audio into separate streams the
// way the packager numbered them.
func (p *segmentPlan) streams(rendition *domain.Rendition, info *ffmpeg.SourceInfo) []domain.StreamMetadata {
	if p.output != domain.OutputDASH {
		return []domain.StreamMetadata{{
			Type:       domain.StreamVideo,
			ID:         0,
			Resolution: rendition.FallbackResolution(),
			Bandwidth:  rendition.FallbackBandwidth(),
		}}
	}

	streams := []domain.StreamMetadata{{
		Type:       domain.StreamVideo,
		ID:         0,
		Resolution: rendition.FallbackResolution(),
		Bandwidth:  rendition.VideoBitRate * 1024,
	}}
	for _, id := range p.audioStreamIDs {
		meta := domain.StreamMetadata{
			Type:      domain.StreamAudio,
			ID:        id,
			Bandwidth: rendition.AudioBitRate * 1024,
		}
		if idx := id - 1; idx >= 0 && idx < len(info.AudioTracks) {
			meta.Language = info.AudioTracks[idx].Language
		}
		streams = append(streams, meta)
	}
	return streams
}

type playlistEntry struct {
	fileName string
	duration float64
}

// parseHLSPlaylist reads segment file names and durations out of the media
// playlist ffmpeg emitted. The playlist itself is not published; it only
// seeds the segment index.
func parseHLSPlaylist(path string) ([]playlistEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open playlist: %w", err)
	}
	defer file.Close()

	var entries []playlistEntry
	var pending float64
	havePending := false

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if m := extinfRegex.FindStringSubmatch(line); m != nil {
			pending, _ = strconv.ParseFloat(m[1], 64)
			havePending = true
			continue
		}
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if havePending {
			entries = append(entries, playlistEntry{
				fileName: filepath.Base(line),
				duration: pending,
			})
			havePending = false
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan playlist: %w", err)
	}
	return entries, nil
}

func parseVTTTimestamp(ts string) (time.Duration, error) {
	parts := strings.Split(ts, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}

	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}

	secParts := strings.SplitN(parts[2], ".", 2)
	seconds, err := strconv.Atoi(secParts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp %q", ts)
	}
	millis := 0
	if len(secParts) == 2 {
		// Scale the fraction by its digit count so "5.5" is 500ms, not 5ms.
		fraction := secParts[1]
		if len(fraction) > 3 {
			fraction = fraction[:3]
		}
		millis, err = strconv.Atoi(fraction)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q", ts)
		}
		for i := len(fraction); i < 3; i++ {
			millis *= 10
		}
	}

	return time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

func formatVTTTimestamp(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60
	millis := int(d.Milliseconds()) % 1000

	return fmt.Sprintf("%02d:%02d:%02d.%03d", hours, minutes, seconds, millis)
}
