package domain

import (
	"time"

	"github.com/google/uuid"
)

// Preview is a frame image extracted from the source video at a second
// offset. The timeline VTT is not an entity; it lives in the content store
// at {videoId}/timeline/timeline.vtt alongside the sprite sheets the worker
// generated it from.
type Preview struct {
	ID        uuid.UUID `json:"id" db:"id"`
	VideoID   uuid.UUID `json:"videoId" db:"video_id"`
	Second    int       `json:"second" db:"second"`
	Path      string    `json:"path" db:"path"`
	Name      string    `json:"name" db:"name"`
	Sprite    bool      `json:"sprite" db:"sprite"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// NewPreview creates a preview record with its deterministic storage path.
func NewPreview(videoID uuid.UUID, second int, sprite bool) *Preview {
	id := uuid.New()
	return &Preview{
		ID:        id,
		VideoID:   videoID,
		Second:    second,
		Path:      videoID.String() + "/previews/",
		Name:      id.String() + ".jpg",
		Sprite:    sprite,
		CreatedAt: time.Now().UTC(),
	}
}

// StorageKey returns the content-store key of the preview image.
func (p *Preview) StorageKey() string { return p.Path + p.Name }

// TimelineKey returns the content-store key of a video's timeline cue file.
func TimelineKey(videoID uuid.UUID) string {
	return videoID.String() + "/timeline/timeline.vtt"
}
