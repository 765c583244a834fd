package manifest

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"

	"github.com/streampack/vod/internal/domain"
)

// DASHBuilder assembles one MPD from the partial fragments the packager
// stored per rendition.
type DASHBuilder struct{}

// ContentType implements Builder.
func (b *DASHBuilder) ContentType() string { return "application/dash+xml" }

// FileName implements Builder.
func (b *DASHBuilder) FileName() string { return "master.mpd" }

// mpdFragment is the per-rendition partial MPD stored on markReady. Only the
// parts carried over into the assembled document are mapped.
type mpdFragment struct {
	XMLName                   xml.Name            `xml:"MPD"`
	MediaPresentationDuration string              `xml:"mediaPresentationDuration,attr"`
	MaxSegmentDuration        string              `xml:"maxSegmentDuration,attr"`
	MinBufferTime             string              `xml:"minBufferTime,attr"`
	Period                    mpdFragmentPeriod   `xml:"Period"`
}

type mpdFragmentPeriod struct {
	AdaptationSets []mpdAdaptationSet `xml:"AdaptationSet"`
}

type mpdAdaptationSet struct {
	ID               string              `xml:"id,attr"`
	ContentType      string              `xml:"contentType,attr"`
	MimeType         string              `xml:"mimeType,attr"`
	Lang             string              `xml:"lang,attr"`
	SegmentAlignment string              `xml:"segmentAlignment,attr"`
	StartWithSAP     string              `xml:"startWithSAP,attr"`
	Representations  []mpdRepresentation `xml:"Representation"`
}

type mpdRepresentation struct {
	ID                string `xml:"id,attr"`
	MimeType          string `xml:"mimeType,attr"`
	Codecs            string `xml:"codecs,attr"`
	Bandwidth         string `xml:"bandwidth,attr"`
	Width             string `xml:"width,attr"`
	Height            string `xml:"height,attr"`
	FrameRate         string `xml:"frameRate,attr"`
	AudioSamplingRate string `xml:"audioSamplingRate,attr"`
}

func (a mpdAdaptationSet) isAudio() bool {
	return a.ContentType == "audio" || strings.HasPrefix(a.MimeType, "audio/")
}

// BuildMaster parses each ready rendition's stored fragment, drops
// adaptation sets with no stored segments, de-duplicates audio languages,
// assigns global sequential adaptation ids and rebuilds every SegmentList
// from the store. Subtitle tracks are appended last as flat text/vtt sets.
// mediaPresentationDuration is recomputed from the summed segment durations
// rather than copied from a fragment, so manifest duration and actual media
// length cannot drift apart.
func (b *DASHBuilder) BuildMaster(in MasterInput) ([]byte, error) {
	if len(in.Renditions) == 0 {
		return nil, ErrNoRenditions
	}

	maxSegmentDuration := ""
	minBufferTime := ""

	var body strings.Builder
	adaptationID := 0
	seenLanguages := map[string]bool{}
	var presentationDuration float64

	for _, src := range in.Renditions {
		rendition := src.Rendition
		if rendition.Metadata.MPD == "" {
			continue
		}

		var fragment mpdFragment
		if err := xml.Unmarshal([]byte(rendition.Metadata.MPD), &fragment); err != nil {
			continue
		}

		if maxSegmentDuration == "" && fragment.MaxSegmentDuration != "" {
			maxSegmentDuration = fragment.MaxSegmentDuration
		}
		if minBufferTime == "" && fragment.MinBufferTime != "" {
			minBufferTime = fragment.MinBufferTime
		}

		for _, set := range fragment.Period.AdaptationSets {
			streamID, err := strconv.Atoi(set.ID)
			if err != nil {
				continue
			}
			segments := src.Segments[streamID]
			if countMediaSegments(segments) == 0 {
				continue
			}

			if set.isAudio() {
				language := set.Lang
				if language == "" {
					language = "und"
				}
				if seenLanguages[language] {
					continue
				}
				seenLanguages[language] = true
			}

			if total := domain.TotalDuration(segments); total > presentationDuration {
				presentationDuration = total
			}

			writeAdaptationSet(&body, in.BaseURL, rendition, streamID, adaptationID, set, segments)
			adaptationID++
		}
	}

	for _, subtitle := range in.Subtitles {
		body.WriteString(fmt.Sprintf("    <AdaptationSet id=\"%d\" contentType=\"text\" mimeType=\"text/vtt\" lang=\"%s\">\n",
			adaptationID, subtitle.Code))
		body.WriteString(fmt.Sprintf("      <Representation id=\"%s\" bandwidth=\"256\">\n", subtitle.ID))
		body.WriteString(fmt.Sprintf("        <BaseURL>%s/subtitles/%s/subtitle.vtt</BaseURL>\n", in.BaseURL, subtitle.ID))
		body.WriteString("      </Representation>\n")
		body.WriteString("    </AdaptationSet>\n")
		adaptationID++
	}

	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	sb.WriteString("\n")
	sb.WriteString(`<MPD xmlns="urn:mpeg:dash:schema:mpd:2011" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
		`xsi:schemaLocation="urn:mpeg:dash:schema:mpd:2011 DASH-MPD.xsd" ` +
		`profiles="urn:mpeg:dash:profile:isoff-main:2011" ` +
		`type="static" ` +
		fmt.Sprintf(`mediaPresentationDuration="%s" `, formatMPDDuration(presentationDuration)))
	if maxSegmentDuration != "" {
		sb.WriteString(fmt.Sprintf(`maxSegmentDuration="%s" `, maxSegmentDuration))
	}
	if minBufferTime == "" {
		minBufferTime = "PT2S"
	}
	sb.WriteString(fmt.Sprintf(`minBufferTime="%s">`, minBufferTime))
	sb.WriteString("\n")
	sb.WriteString("  <Period>\n")
	sb.WriteString(body.String())
	sb.WriteString("  </Period>\n")
	sb.WriteString("</MPD>\n")

	return []byte(sb.String()), nil
}

func writeAdaptationSet(sb *strings.Builder, baseURL string, rendition *domain.Rendition, streamID, adaptationID int, set mpdAdaptationSet, segments []*domain.Segment) {
	sb.WriteString(fmt.Sprintf("    <AdaptationSet id=\"%d\"", adaptationID))
	writeAttr(sb, "contentType", set.ContentType)
	writeAttr(sb, "mimeType", set.MimeType)
	writeAttr(sb, "lang", set.Lang)
	writeAttr(sb, "segmentAlignment", set.SegmentAlignment)
	writeAttr(sb, "startWithSAP", set.StartWithSAP)
	sb.WriteString(">\n")

	for _, rep := range set.Representations {
		sb.WriteString(fmt.Sprintf("      <Representation id=\"%s\"", rep.ID))
		writeAttr(sb, "mimeType", rep.MimeType)
		writeAttr(sb, "codecs", rep.Codecs)
		writeAttr(sb, "bandwidth", rep.Bandwidth)
		writeAttr(sb, "width", rep.Width)
		writeAttr(sb, "height", rep.Height)
		writeAttr(sb, "frameRate", rep.FrameRate)
		writeAttr(sb, "audioSamplingRate", rep.AudioSamplingRate)
		sb.WriteString(">\n")

		sb.WriteString(fmt.Sprintf("        <SegmentList timescale=\"1000\" duration=\"%d\">\n", rendition.TargetDuration*1000))
		for _, segment := range segments {
			url := fmt.Sprintf("%s/renditions/%s/streams/%d/segments/%s/%s", baseURL, rendition.ID, streamID, segment.ID, segment.FileName)
			if segment.IsInit {
				sb.WriteString(fmt.Sprintf("          <Initialization sourceURL=\"%s\"/>\n", url))
			} else {
				sb.WriteString(fmt.Sprintf("          <SegmentURL media=\"%s\"/>\n", url))
			}
		}
		sb.WriteString("        </SegmentList>\n")
		sb.WriteString("      </Representation>\n")
	}

	sb.WriteString("    </AdaptationSet>\n")
}

func writeAttr(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	sb.WriteString(fmt.Sprintf(" %s=\"%s\"", name, value))
}

func countMediaSegments(segments []*domain.Segment) int {
	n := 0
	for _, segment := range segments {
		if !segment.IsInit {
			n++
		}
	}
	return n
}

// formatMPDDuration renders seconds as an ISO 8601 duration.
func formatMPDDuration(seconds float64) string {
	hours := int(seconds) / 3600
	minutes := (int(seconds) % 3600) / 60
	secs := seconds - float64(hours*3600) - float64(minutes*60)
	return fmt.Sprintf("PT%dH%dM%.3fS", hours, minutes, secs)
}
