package preview

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
)

// Format is an output image format for preview frames.
type Format string

const (
	FormatWebP Format = "webp"
	FormatJPEG Format = "jpg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
)

// ParseFormat validates a requested output format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "webp":
		return FormatWebP, nil
	case "jpg", "jpeg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "gif":
		return FormatGIF, nil
	}
	return "", fmt.Errorf("unsupported image format %q", s)
}

// ContentType returns the media type for the format.
func (f Format) ContentType() string {
	switch f {
	case FormatWebP:
		return "image/webp"
	case FormatPNG:
		return "image/png"
	case FormatGIF:
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// Negotiate downgrades webp to jpeg when the request's Accept header does
// not admit image/webp. Other formats pass through.
func Negotiate(requested Format, accept string) Format {
	if requested != FormatWebP {
		return requested
	}
	if strings.Contains(accept, "image/webp") || strings.Contains(accept, "image/*") || strings.Contains(accept, "*/*") {
		return FormatWebP
	}
	return FormatJPEG
}

// Transform describes the requested preview rendering.
type Transform struct {
	Width  int
	Height int
	Output Format
}

// Processor converts stored preview frames into the requested size and
// format.
type Processor struct {
	maxWidth  int
	maxHeight int
	quality   int
}

// NewProcessor creates a processor with size caps and encode quality.
func NewProcessor(maxWidth, maxHeight, quality int) *Processor {
	return &Processor{
		maxWidth:  maxWidth,
		maxHeight: maxHeight,
		quality:   quality,
	}
}

// Process decodes a stored frame, applies a center-gravity crop/resize and
// re-encodes in the target format. Zero width/height dimensions keep the
// source aspect ratio.
func (p *Processor) Process(data []byte, t Transform) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		// Stored sprites may be webp, which the stdlib decoders do not cover.
		img, err = webp.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode image: %w", err)
		}
	}

	width := t.Width
	height := t.Height
	if width > p.maxWidth {
		width = p.maxWidth
	}
	if height > p.maxHeight {
		height = p.maxHeight
	}

	switch {
	case width > 0 && height > 0:
		img = imaging.Fill(img, width, height, imaging.Center, imaging.Lanczos)
	case width > 0:
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	case height > 0:
		img = imaging.Resize(img, 0, height, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch t.Output {
	case FormatWebP:
		if err := webp.Encode(&buf, img, &webp.Options{Quality: float32(p.quality)}); err != nil {
			return nil, fmt.Errorf("failed to encode webp: %w", err)
		}
	case FormatPNG:
		if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
			return nil, fmt.Errorf("failed to encode png: %w", err)
		}
	case FormatGIF:
		if err := imaging.Encode(&buf, img, imaging.GIF); err != nil {
			return nil, fmt.Errorf("failed to encode gif: %w", err)
		}
	default:
		if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
			return nil, fmt.Errorf("failed to encode jpeg: %w", err)
		}
	}

	return buf.Bytes(), nil
}
