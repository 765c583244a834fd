package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// SourceInfo is the probe summary of a source asset. Bitrates are Kbps to
// match profile units.
type SourceInfo struct {
	Duration        float64
	Size            int64
	Width           int
	Height          int
	VideoCodec      string
	VideoBitRate    int
	FrameRate       float64
	AudioCodec      string
	AudioBitRate    int
	AudioSampleRate int
	AudioTracks     []AudioTrack
}

// AudioTrack describes one audio stream of the source.
type AudioTrack struct {
	Index      int
	Codec      string
	Language   string
	Channels   int
	SampleRate int
	BitRate    int
}

// Prober extracts metadata from media files
type Prober struct {
	ffprobePath string
}

// NewProber creates a new prober
func NewProber(ffprobePath string) *Prober {
	return &Prober{ffprobePath: ffprobePath}
}

// Probe extracts metadata from a media file
func (p *Prober) Probe(ctx context.Context, inputPath string) (*SourceInfo, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	var probeData probeOutput
	if err := json.Unmarshal(output, &probeData); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	return parseProbeOutput(&probeData), nil
}

type probeOutput struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type probeStream struct {
	Index      int               `json:"index"`
	CodecName  string            `json:"codec_name"`
	CodecType  string            `json:"codec_type"`
	Width      int               `json:"width"`
	Height     int               `json:"height"`
	RFrameRate string            `json:"r_frame_rate"`
	BitRate    string            `json:"bit_rate"`
	Channels   int               `json:"channels"`
	SampleRate string            `json:"sample_rate"`
	Tags       map[string]string `json:"tags"`
}

func parseProbeOutput(data *probeOutput) *SourceInfo {
	info := &SourceInfo{}

	if duration, err := strconv.ParseFloat(data.Format.Duration, 64); err == nil {
		info.Duration = duration
	}
	if size, err := strconv.ParseInt(data.Format.Size, 10, 64); err == nil {
		info.Size = size
	}

	for _, stream := range data.Streams {
		switch stream.CodecType {
		case "video":
			if info.VideoCodec != "" {
				continue
			}
			info.VideoCodec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			info.FrameRate = parseFrameRate(stream.RFrameRate)
			if br, err := strconv.Atoi(stream.BitRate); err == nil {
				info.VideoBitRate = br / 1000
			}
		case "audio":
			track := AudioTrack{
				Index:    stream.Index,
				Codec:    stream.CodecName,
				Language: getLanguage(stream.Tags),
				Channels: stream.Channels,
			}
			if sr, err := strconv.Atoi(stream.SampleRate); err == nil {
				track.SampleRate = sr
			}
			if br, err := strconv.Atoi(stream.BitRate); err == nil {
				track.BitRate = br / 1000
			}
			info.AudioTracks = append(info.AudioTracks, track)
			if info.AudioCodec == "" {
				info.AudioCodec = track.Codec
				info.AudioBitRate = track.BitRate
				info.AudioSampleRate = track.SampleRate
			}
		}
	}

	return info
}

func parseFrameRate(rate string) float64 {
	parts := strings.Split(rate, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}

func getLanguage(tags map[string]string) string {
	if lang, ok := tags["language"]; ok {
		return lang
	}
	return "und"
}
