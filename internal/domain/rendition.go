package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// OutputFormat is the closed set of supported packaging formats. Adding a
// protocol means a new constant plus a new manifest.Builder implementation,
// nothing else.
type OutputFormat string

const (
	OutputHLS  OutputFormat = "hls"
	OutputDASH OutputFormat = "dash"
)

// ParseOutputFormat validates an output format string.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputHLS:
		return OutputHLS, nil
	case OutputDASH:
		return OutputDASH, nil
	}
	return "", fmt.Errorf("unsupported output format %q", s)
}

// SegmentFileName returns the segment file name served for this format.
func (o OutputFormat) SegmentFileName() string {
	if o == OutputDASH {
		return "segment.m4s"
	}
	return "segment.ts"
}

// SegmentContentType returns the media type of segment bytes for this format.
func (o OutputFormat) SegmentContentType() string {
	if o == OutputDASH {
		return "video/iso.segment"
	}
	return "video/MP2T"
}

// ManifestFileName returns the master manifest file name for this format.
func (o OutputFormat) ManifestFileName() string {
	if o == OutputDASH {
		return "master.mpd"
	}
	return "master.m3u8"
}

// RenditionStatus is the rendition state machine: pending -> ready | failed.
// A failed rendition is terminal; it is superseded by a new record, never
// resurrected.
type RenditionStatus string

const (
	RenditionPending RenditionStatus = "pending"
	RenditionReady   RenditionStatus = "ready"
	RenditionFailed  RenditionStatus = "failed"
)

// StreamType discriminates per-stream metadata entries.
type StreamType string

const (
	StreamVideo StreamType = "video"
	StreamAudio StreamType = "audio"
)

// StreamMetadata describes one elementary stream of a ready rendition as
// reported by the encoder. Only trustworthy once the rendition is ready.
type StreamMetadata struct {
	Type       StreamType `json:"type"`
	ID         int        `json:"id"`
	Language   string     `json:"language,omitempty"`
	Resolution string     `json:"resolution,omitempty"`
	Bandwidth  int        `json:"bandwidth,omitempty"`
	Codecs     string     `json:"codecs,omitempty"`
}

// RenditionMetadata is the encoder output captured on markReady: the HLS
// stream list and, for DASH, the partial MPD fragment the packager emitted.
type RenditionMetadata struct {
	Streams []StreamMetadata `json:"streams,omitempty"`
	MPD     string           `json:"mpd,omitempty"`
}

// Rendition is one encode pass of a video under a profile and output format.
type Rendition struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	VideoID        uuid.UUID         `json:"videoId" db:"video_id"`
	ProfileID      uuid.UUID         `json:"profileId" db:"profile_id"`
	Name           string            `json:"name" db:"name"`
	Output         OutputFormat      `json:"output" db:"output"`
	Status         RenditionStatus   `json:"status" db:"status"`
	Progress       int               `json:"progress" db:"progress"`
	Width          int               `json:"width" db:"width"`
	Height         int               `json:"height" db:"height"`
	VideoBitRate   int               `json:"videoBitRate" db:"video_bit_rate"`
	AudioBitRate   int               `json:"audioBitRate" db:"audio_bit_rate"`
	TargetDuration int               `json:"targetDuration" db:"target_duration"`
	Metadata       RenditionMetadata `json:"metadata" db:"metadata"`
	Path           string            `json:"path" db:"path"`
	FailureReason  *string           `json:"failureReason,omitempty" db:"failure_reason"`
	DispatchKey    string            `json:"-" db:"dispatch_key"`
	CreatedAt      time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time         `json:"updatedAt" db:"updated_at"`
}

// NewRendition creates a pending rendition for a video/profile/output triple.
// The profile's parameters are copied in so later profile edits cannot change
// what was encoded.
func NewRendition(video *Video, profile *Profile, output OutputFormat) *Rendition {
	id := uuid.New()
	now := time.Now().UTC()
	return &Rendition{
		ID:           id,
		VideoID:      video.ID,
		ProfileID:    profile.ID,
		Name:         profile.Name,
		Output:       output,
		Status:       RenditionPending,
		Width:        profile.Width,
		Height:       profile.Height,
		VideoBitRate: profile.VideoBitRate,
		AudioBitRate: profile.AudioBitRate,
		Path:         video.ID.String() + "/renditions/" + id.String(),
		DispatchKey:  DispatchKey(video.ID, profile.ID, output),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (o OutputFormat) String() string { return string(o) }

// DispatchKey derives the deterministic idempotency key for a dispatch
// request, so concurrent requests for the same triple collapse into one
// pending record instead of racing into duplicates.
func DispatchKey(videoID, profileID uuid.UUID, output OutputFormat) string {
	sum := sha256.Sum256([]byte(videoID.String() + "|" + profileID.String() + "|" + string(output)))
	return hex.EncodeToString(sum[:])
}

// FallbackBandwidth is the bandwidth used for a video stream entry when the
// encoder did not report one: the profile bitrate sum, Kbps to bps.
func (r *Rendition) FallbackBandwidth() int {
	return (r.VideoBitRate + r.AudioBitRate) * 1024
}

// FallbackResolution is the resolution used when the encoder did not report
// one per stream.
func (r *Rendition) FallbackResolution() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}
