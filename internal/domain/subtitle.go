package domain

import (
	"time"

	"github.com/google/uuid"
)

// SubtitleStatus mirrors the rendition state machine.
type SubtitleStatus string

const (
	SubtitlePending SubtitleStatus = "pending"
	SubtitleReady   SubtitleStatus = "ready"
	SubtitleFailed  SubtitleStatus = "failed"
)

// Subtitle is a text track attached to a video. For HLS the track is served
// as a segmented playlist; for DASH as one flat VTT resource.
type Subtitle struct {
	ID             uuid.UUID      `json:"id" db:"id"`
	VideoID        uuid.UUID      `json:"videoId" db:"video_id"`
	BucketID       string         `json:"bucketId" db:"bucket_id"`
	FileID         string         `json:"fileId" db:"file_id"`
	Name           string         `json:"name" db:"name"`
	Code           string         `json:"code" db:"code"`
	Default        bool           `json:"default" db:"is_default"`
	Status         SubtitleStatus `json:"status" db:"status"`
	TargetDuration int            `json:"targetDuration" db:"target_duration"`
	Path           string         `json:"path" db:"path"`
	CreatedAt      time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time      `json:"updatedAt" db:"updated_at"`
}

// NewSubtitle creates a pending subtitle track.
func NewSubtitle(videoID uuid.UUID, bucketID, fileID, name, code string, isDefault bool) *Subtitle {
	now := time.Now().UTC()
	return &Subtitle{
		ID:        uuid.New(),
		VideoID:   videoID,
		BucketID:  bucketID,
		FileID:    fileID,
		Name:      name,
		Code:      code,
		Default:   isDefault,
		Status:    SubtitlePending,
		Path:      videoID.String() + "/subtitles",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ValidLanguageCode checks an ISO 639-2 three letter code.
func ValidLanguageCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, c := range code {
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}
