package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Bitrates are expressed in Kbps throughout; manifests convert to bps.
const (
	MinBitRateKbps = 32
	MaxBitRateKbps = 5000
	MinDimension   = 6
	MaxDimension   = 3000
)

// Profile is a named target encode configuration. It is referenced by, but
// not owned by, renditions: deleting a profile does not touch the metadata
// renditions captured at encode time.
type Profile struct {
	ID           uuid.UUID `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	VideoBitRate int       `json:"videoBitRate" db:"video_bit_rate"`
	AudioBitRate int       `json:"audioBitRate" db:"audio_bit_rate"`
	Width        int       `json:"width" db:"width"`
	Height       int       `json:"height" db:"height"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}

// NewProfile creates a profile.
func NewProfile(name string, videoBitRate, audioBitRate, width, height int) *Profile {
	now := time.Now().UTC()
	return &Profile{
		ID:           uuid.New(),
		Name:         name,
		VideoBitRate: videoBitRate,
		AudioBitRate: audioBitRate,
		Width:        width,
		Height:       height,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// Validate checks the profile parameters against the accepted ranges.
func (p *Profile) Validate() error {
	if p.Name == "" || len(p.Name) > 128 {
		return fmt.Errorf("profile name must be 1-128 characters")
	}
	if p.VideoBitRate < MinBitRateKbps || p.VideoBitRate > MaxBitRateKbps {
		return fmt.Errorf("videoBitRate must be between %d and %d Kbps", MinBitRateKbps, MaxBitRateKbps)
	}
	if p.AudioBitRate < MinBitRateKbps || p.AudioBitRate > MaxBitRateKbps {
		return fmt.Errorf("audioBitRate must be between %d and %d Kbps", MinBitRateKbps, MaxBitRateKbps)
	}
	if p.Width < MinDimension || p.Width > MaxDimension {
		return fmt.Errorf("width must be between %d and %d", MinDimension, MaxDimension)
	}
	if p.Height < MinDimension || p.Height > MaxDimension {
		return fmt.Errorf("height must be between %d and %d", MinDimension, MaxDimension)
	}
	return nil
}
