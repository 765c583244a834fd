package domain

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Segment is one addressable chunk of a rendition stream or a subtitle
// track. Exactly one of RenditionID/SubtitleID is set. Within a
// (parent, stream) pair at most one segment carries IsInit and it sorts
// before all media segments; media segments order strictly by sequence.
type Segment struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	RenditionID *uuid.UUID `json:"renditionId,omitempty" db:"rendition_id"`
	SubtitleID  *uuid.UUID `json:"subtitleId,omitempty" db:"subtitle_id"`
	StreamID    int        `json:"streamId" db:"stream_id"`
	Sequence    int        `json:"sequence" db:"sequence"`
	Duration    float64    `json:"duration" db:"duration"`
	IsInit      bool       `json:"isInit" db:"is_init"`
	Path        string     `json:"path" db:"path"`
	FileName    string     `json:"fileName" db:"file_name"`
	Size        int64      `json:"size" db:"size"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
}

// NewRenditionSegment creates a segment owned by a rendition stream.
func NewRenditionSegment(renditionID uuid.UUID, streamID, sequence int, duration float64, isInit bool, path, fileName string, size int64) *Segment {
	return &Segment{
		ID:          uuid.New(),
		RenditionID: &renditionID,
		StreamID:    streamID,
		Sequence:    sequence,
		Duration:    duration,
		IsInit:      isInit,
		Path:        path,
		FileName:    fileName,
		Size:        size,
		CreatedAt:   time.Now().UTC(),
	}
}

// NewSubtitleSegment creates a segment owned by a subtitle track.
func NewSubtitleSegment(subtitleID uuid.UUID, sequence int, duration float64, path, fileName string, size int64) *Segment {
	return &Segment{
		ID:         uuid.New(),
		SubtitleID: &subtitleID,
		Sequence:   sequence,
		Duration:   duration,
		Path:       path,
		FileName:   fileName,
		Size:       size,
		CreatedAt:  time.Now().UTC(),
	}
}

// StorageKey returns the content-store key of the segment bytes.
func (s *Segment) StorageKey() string {
	return s.Path + "/" + s.FileName
}

// SortSegments orders segments for manifest assembly: the init segment
// first, then media segments ascending by sequence. Storage order is by
// insertion and must never be relied on.
func SortSegments(segments []*Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		if segments[i].IsInit != segments[j].IsInit {
			return segments[i].IsInit
		}
		return segments[i].Sequence < segments[j].Sequence
	})
}

// TotalDuration sums media segment durations, skipping the init segment.
func TotalDuration(segments []*Segment) float64 {
	var total float64
	for _, s := range segments {
		if s.IsInit {
			continue
		}
		total += s.Duration
	}
	return total
}
