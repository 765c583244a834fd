package manifest

import (
	"errors"
	"fmt"

	"github.com/streampack/vod/internal/domain"
)

var (
	// ErrNoRenditions is returned when a master manifest is requested for a
	// video with zero ready renditions for the output.
	ErrNoRenditions = errors.New("no ready renditions")
	// ErrNoSegments is returned when a stream playlist is requested and the
	// store holds no segments for the stream.
	ErrNoSegments = errors.New("no segments")
)

// RenditionSource is one ready rendition plus its stored segments, keyed by
// stream id in playback order.
type RenditionSource struct {
	Rendition *domain.Rendition
	Segments  map[int][]*domain.Segment
}

// MasterInput is everything a master manifest is assembled from. Renditions
// must be ordered by creation time ascending; the first entry drives default
// track selection.
type MasterInput struct {
	BaseURL    string
	Renditions []*RenditionSource
	Subtitles  []*domain.Subtitle
}

// Builder assembles a master manifest for one output format.
type Builder interface {
	// BuildMaster renders the master manifest from current registry state.
	BuildMaster(in MasterInput) ([]byte, error)
	// ContentType is the media type the manifest is served with.
	ContentType() string
	// FileName is the canonical master file name.
	FileName() string
}

// ForOutput returns the builder for an output format. The format set is
// closed; anything else is an error, not a fallthrough.
func ForOutput(output domain.OutputFormat) (Builder, error) {
	switch output {
	case domain.OutputHLS:
		return &HLSBuilder{}, nil
	case domain.OutputDASH:
		return &DASHBuilder{}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", output)
	}
}
