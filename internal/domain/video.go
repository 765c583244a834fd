package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Video references a source media object in an external bucket and carries
// the probe summary filled in by the worker once the source has been analyzed.
type Video struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	BucketID        string     `json:"bucketId" db:"bucket_id"`
	FileID          string     `json:"fileId" db:"file_id"`
	Size            int64      `json:"size" db:"size"`
	Duration        *float64   `json:"duration,omitempty" db:"duration"`
	Width           *int       `json:"width,omitempty" db:"width"`
	Height          *int       `json:"height,omitempty" db:"height"`
	VideoCodec      *string    `json:"videoCodec,omitempty" db:"video_codec"`
	VideoBitRate    *int       `json:"videoBitRate,omitempty" db:"video_bit_rate"`
	VideoFrameRate  *float64   `json:"videoFrameRate,omitempty" db:"video_frame_rate"`
	AudioCodec      *string    `json:"audioCodec,omitempty" db:"audio_codec"`
	AudioBitRate    *int       `json:"audioBitRate,omitempty" db:"audio_bit_rate"`
	AudioSampleRate *int       `json:"audioSampleRate,omitempty" db:"audio_sample_rate"`
	PreviewID       *uuid.UUID `json:"previewId,omitempty" db:"preview_id"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time  `json:"updatedAt" db:"updated_at"`
}

// NewVideo creates a video attached to a source file.
func NewVideo(bucketID, fileID string, size int64) *Video {
	now := time.Now().UTC()
	return &Video{
		ID:        uuid.New(),
		BucketID:  bucketID,
		FileID:    fileID,
		Size:      size,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ReplaceSource points the video at a new source file and clears everything
// derived from the previous one. Renditions and subtitles are left alone;
// they captured their own copy of the source at encode time.
func (v *Video) ReplaceSource(bucketID, fileID string, size int64) {
	v.BucketID = bucketID
	v.FileID = fileID
	v.Size = size
	v.Duration = nil
	v.Width = nil
	v.Height = nil
	v.VideoCodec = nil
	v.VideoBitRate = nil
	v.VideoFrameRate = nil
	v.AudioCodec = nil
	v.AudioBitRate = nil
	v.AudioSampleRate = nil
	v.PreviewID = nil
	v.UpdatedAt = time.Now().UTC()
}

// ValidSourceMimeType reports whether a source file mime type is accepted
// for transcoding.
func ValidSourceMimeType(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/") ||
		strings.HasPrefix(mimeType, "audio/") ||
		mimeType == "application/ogg"
}

// ValidSubtitleMimeType reports whether a subtitle source file mime type is
// accepted.
func ValidSubtitleMimeType(mimeType string) bool {
	return mimeType == "text/vtt" || mimeType == "text/plain"
}
