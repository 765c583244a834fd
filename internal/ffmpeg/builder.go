package ffmpeg

import (
	"fmt"
	"path/filepath"
)

// EncodeParams are the profile parameters an encode runs with. Bitrates are
// Kbps.
type EncodeParams struct {
	Width           int
	Height          int
	VideoBitRate    int
	AudioBitRate    int
	SegmentDuration int
}

// CommandBuilder builds ffmpeg argument lists for the pipeline stages.
type CommandBuilder struct {
	ffmpegPath string
}

// NewCommandBuilder creates a new command builder
func NewCommandBuilder(ffmpegPath string) *CommandBuilder {
	return &CommandBuilder{ffmpegPath: ffmpegPath}
}

func (b *CommandBuilder) baseArgs(inputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-progress", "pipe:1",
		"-i", inputPath,
	}
}

func (b *CommandBuilder) encodeArgs(p EncodeParams) []string {
	return []string{
		"-c:v", "libx264",
		"-preset", "medium",
		"-profile:v", "high",
		"-vf", fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2", p.Width, p.Height, p.Width, p.Height),
		"-b:v", fmt.Sprintf("%dk", p.VideoBitRate),
		"-maxrate", fmt.Sprintf("%dk", p.VideoBitRate),
		"-bufsize", fmt.Sprintf("%dk", p.VideoBitRate*2),
		"-c:a", "aac",
		"-b:a", fmt.Sprintf("%dk", p.AudioBitRate),
		"-ac", "2",
	}
}

// BuildHLSEncode transcodes the source into segmented TS output. The
// playlist ffmpeg writes is discarded; playlists are generated on read
// from the segment index.
func (b *CommandBuilder) BuildHLSEncode(inputPath, outputDir string, p EncodeParams) []string {
	args := b.baseArgs(inputPath)
	args = append(args, b.encodeArgs(p)...)
	args = append(args,
		"-f", "hls",
		"-hls_time", fmt.Sprintf("%d", p.SegmentDuration),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-hls_segment_filename", filepath.Join(outputDir, "segment_%03d.ts"),
		filepath.Join(outputDir, "playlist.m3u8"),
	)
	return args
}

// BuildDASHEncode transcodes the source into fMP4 segments plus the MPD
// the packager emits; the MPD is kept as the rendition's stored fragment.
func (b *CommandBuilder) BuildDASHEncode(inputPath, outputDir string, p EncodeParams) []string {
	args := b.baseArgs(inputPath)
	args = append(args, b.encodeArgs(p)...)
	args = append(args,
		"-f", "dash",
		"-seg_duration", fmt.Sprintf("%d", p.SegmentDuration),
		"-use_template", "0",
		"-use_timeline", "0",
		"-init_seg_name", "init-stream$RepresentationID$.m4s",
		"-media_seg_name", "segment-stream$RepresentationID$-$Number%05d$.m4s",
		filepath.Join(outputDir, "manifest.mpd"),
	)
	return args
}

// BuildFrameExtract grabs a single frame at a second offset.
func (b *CommandBuilder) BuildFrameExtract(inputPath string, second float64, outputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-ss", fmt.Sprintf("%.3f", second),
		"-i", inputPath,
		"-frames:v", "1",
		"-q:v", "2",
		outputPath,
	}
}

// BuildTimelineFrames extracts one scaled frame per interval for the seek
// timeline sprites.
func (b *CommandBuilder) BuildTimelineFrames(inputPath string, intervalSec, width, height int, outputPattern string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-i", inputPath,
		"-vf", fmt.Sprintf("fps=1/%d,scale=%d:%d", intervalSec, width, height),
		"-q:v", "4",
		outputPattern,
	}
}

// BuildSpriteTile tiles extracted frames into one sprite sheet.
func (b *CommandBuilder) BuildSpriteTile(framePattern string, columns, rows int, outputPath string) []string {
	return []string{
		"-y",
		"-hide_banner",
		"-i", framePattern,
		"-filter_complex", fmt.Sprintf("tile=%dx%d", columns, rows),
		"-q:v", "4",
		outputPath,
	}
}
