package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/manifest"
)

// GetMasterManifest assembles the master manifest for an output format from
// current registry state. Nothing is persisted; every GET regenerates.
func (h *Handler) GetMasterManifest(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	output, err := domain.ParseOutputFormat(chi.URLParam(r, "output"))
	if err != nil {
		h.writeError(w, CodeOutputNotValid, err.Error())
		return
	}
	builder, err := manifest.ForOutput(output)
	if err != nil {
		h.writeError(w, CodeOutputNotValid, err.Error())
		return
	}
	if chi.URLParam(r, "fileName") != builder.FileName() {
		h.writeError(w, CodeRenditionNotFound, "unknown manifest file")
		return
	}

	ctx := r.Context()
	if _, err := h.videos.GetByID(ctx, videoID); err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeVideoNotFound, "video not found")
			return
		}
		h.logger.Error("Failed to get video", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get video")
		return
	}

	renditions, err := h.renditions.ListReadyByVideo(ctx, videoID, output)
	if err != nil {
		h.logger.Error("Failed to list renditions", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list renditions")
		return
	}

	sources := make([]*manifest.RenditionSource, 0, len(renditions))
	for _, rendition := range renditions {
		segments, err := h.segments.ListByRendition(ctx, rendition.ID)
		if err != nil {
			h.logger.Error("Failed to list segments", zap.Error(err))
			h.writeError(w, CodeInternalError, "failed to list segments")
			return
		}
		byStream := make(map[int][]*domain.Segment)
		for _, s := range segments {
			byStream[s.StreamID] = append(byStream[s.StreamID], s)
		}
		sources = append(sources, &manifest.RenditionSource{
			Rendition: rendition,
			Segments:  byStream,
		})
	}

	subtitles, err := h.subtitles.ListReadyByVideo(ctx, videoID)
	if err != nil {
		h.logger.Error("Failed to list subtitles", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list subtitles")
		return
	}

	data, err := builder.BuildMaster(manifest.MasterInput{
		BaseURL:    h.outputBaseURL(videoID.String(), output),
		Renditions: sources,
		Subtitles:  subtitles,
	})
	if err != nil {
		if errors.Is(err, manifest.ErrNoRenditions) {
			h.writeError(w, CodeRenditionNotFound, "no ready renditions for output")
			return
		}
		h.logger.Error("Failed to build manifest", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to build manifest")
		return
	}

	h.metrics.IncrementManifestsTotal(output.String())
	w.Header().Set("Content-Type", builder.ContentType())
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetMediaPlaylist assembles the per-stream HLS media playlist from the
// segment index.
func (h *Handler) GetMediaPlaylist(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	renditionID, ok := h.urlUUID(w, r, "renditionId", CodeRenditionNotFound)
	if !ok {
		return
	}
	output, err := domain.ParseOutputFormat(chi.URLParam(r, "output"))
	if err != nil {
		h.writeError(w, CodeOutputNotValid, err.Error())
		return
	}
	streamID, err := strconv.Atoi(chi.URLParam(r, "streamId"))
	if err != nil || streamID < 0 {
		h.writeError(w, CodeSegmentNotFound, "invalid stream id")
		return
	}

	ctx := r.Context()
	rendition, err := h.renditions.GetReady(ctx, renditionID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeRenditionNotFound, "rendition not found")
			return
		}
		h.logger.Error("Failed to get rendition", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get rendition")
		return
	}
	if rendition.VideoID != videoID {
		h.writeError(w, CodeRenditionNotFound, "rendition not found")
		return
	}

	segments, err := h.segments.ListByRenditionStream(ctx, renditionID, streamID)
	if err != nil {
		h.logger.Error("Failed to list segments", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list segments")
		return
	}

	data, err := manifest.BuildMediaPlaylist(h.outputBaseURL(videoID.String(), output), rendition, streamID, segments)
	if err != nil {
		if errors.Is(err, manifest.ErrNoSegments) {
			h.writeError(w, CodeSegmentNotFound, "no segments for stream")
			return
		}
		h.logger.Error("Failed to build playlist", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to build playlist")
		return
	}

	w.Header().Set("Content-Type", "application/x-mpegurl")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetSubtitleFile serves a subtitle track resource: the segmented playlist
// for HLS or the flat VTT for DASH.
func (h *Handler) GetSubtitleFile(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	subtitleID, ok := h.urlUUID(w, r, "subtitleId", CodeSubtitleNotFound)
	if !ok {
		return
	}
	output, err := domain.ParseOutputFormat(chi.URLParam(r, "output"))
	if err != nil {
		h.writeError(w, CodeOutputNotValid, err.Error())
		return
	}

	ctx := r.Context()
	subtitle, err := h.subtitles.GetReady(ctx, subtitleID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeSubtitleNotFound, "subtitle not found")
			return
		}
		h.logger.Error("Failed to get subtitle", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get subtitle")
		return
	}
	if subtitle.VideoID != videoID {
		h.writeError(w, CodeSubtitleNotFound, "subtitle not found")
		return
	}

	switch chi.URLParam(r, "fileName") {
	case "subtitles.m3u8":
		segments, err := h.segments.ListBySubtitle(ctx, subtitleID)
		if err != nil {
			h.logger.Error("Failed to list subtitle segments", zap.Error(err))
			h.writeError(w, CodeInternalError, "failed to list subtitle segments")
			return
		}
		data, err := manifest.BuildSubtitlePlaylist(h.outputBaseURL(videoID.String(), output), subtitle, segments)
		if err != nil {
			if errors.Is(err, manifest.ErrNoSegments) {
				h.writeError(w, CodeSegmentNotFound, "no segments for subtitle")
				return
			}
			h.logger.Error("Failed to build subtitle playlist", zap.Error(err))
			h.writeError(w, CodeInternalError, "failed to build subtitle playlist")
			return
		}
		w.Header().Set("Content-Type", "application/x-mpegurl")
		w.WriteHeader(http.StatusOK)
		w.Write(data)

	case "subtitle.vtt":
		key := subtitle.Path + "/" + subtitle.ID.String() + "/subtitle.vtt"
		data, err := h.store.Read(ctx, key)
		if err != nil {
			h.writeError(w, CodeSubtitleNotFound, "subtitle track not stored")
			return
		}
		w.Header().Set("Content-Type", "text/vtt")
		w.WriteHeader(http.StatusOK)
		w.Write(data)

	default:
		h.writeError(w, CodeSubtitleNotFound, "unknown subtitle file")
	}
}

// GetSegment serves rendition segment bytes with byte-range support.
func (h *Handler) GetSegment(w http.ResponseWriter, r *http.Request) {
	renditionID, ok := h.urlUUID(w, r, "renditionId", CodeRenditionNotFound)
	if !ok {
		return
	}
	segmentID, ok := h.urlUUID(w, r, "segmentId", CodeSegmentNotFound)
	if !ok {
		return
	}

	ctx := r.Context()
	segment, err := h.segments.GetByID(ctx, segmentID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeSegmentNotFound, "segment not found")
			return
		}
		h.logger.Error("Failed to get segment", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get segment")
		return
	}
	if segment.RenditionID == nil || *segment.RenditionID != renditionID {
		h.writeError(w, CodeSegmentNotFound, "segment not found")
		return
	}

	contentType := "video/MP2T"
	if strings.HasSuffix(segment.FileName, ".m4s") {
		contentType = "video/iso.segment"
	}
	h.serveStoredObject(w, r, segment.StorageKey(), segment.Size, contentType)
}

// GetSubtitleSegment serves subtitle segment bytes with byte-range support.
func (h *Handler) GetSubtitleSegment(w http.ResponseWriter, r *http.Request) {
	subtitleID, ok := h.urlUUID(w, r, "subtitleId", CodeSubtitleNotFound)
	if !ok {
		return
	}
	segmentID, ok := h.urlUUID(w, r, "segmentId", CodeSegmentNotFound)
	if !ok {
		return
	}

	segment, err := h.segments.GetByID(r.Context(), segmentID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeSegmentNotFound, "segment not found")
			return
		}
		h.logger.Error("Failed to get segment", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get segment")
		return
	}
	if segment.SubtitleID == nil || *segment.SubtitleID != subtitleID {
		h.writeError(w, CodeSegmentNotFound, "segment not found")
		return
	}

	h.serveStoredObject(w, r, segment.StorageKey(), segment.Size, "text/vtt")
}

// serveStoredObject streams object bytes, honoring a single bytes range.
// Copies run through a capped buffer so one large segment cannot pin an
// arbitrary amount of memory per request.
func (h *Handler) serveStoredObject(w http.ResponseWriter, r *http.Request, key string, size int64, contentType string) {
	start, end := int64(0), size-1
	partial := false

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		var err error
		start, end, err = parseByteRange(rangeHeader, size)
		if err != nil {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
			h.writeError(w, CodeInvalidRange, err.Error())
			return
		}
		partial = true
	}

	body, err := h.store.ReadRange(r.Context(), key, start, end)
	if err != nil {
		h.logger.Error("Failed to read segment bytes", zap.String("key", key), zap.Error(err))
		h.writeError(w, CodeSegmentNotFound, "segment bytes not available")
		return
	}
	defer body.Close()

	length := end - start + 1
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if partial {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	buf := make([]byte, h.config.Segments.ServeChunkBytes)
	written, err := io.CopyBuffer(w, body, buf)
	if err != nil {
		h.logger.Warn("Segment copy interrupted", zap.String("key", key), zap.Error(err))
	}
	h.metrics.AddSegmentBytesServed(float64(written))
}

// parseByteRange parses a single "bytes=start-end" range. An invalid unit,
// an inverted range or an end at/past the size is rejected rather than
// clamped.
func parseByteRange(header string, size int64) (int64, int64, error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multiple ranges are not supported")
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found || startStr == "" {
		return 0, 0, fmt.Errorf("malformed range")
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("malformed range start")
	}

	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range end")
		}
		if end >= size {
			return 0, 0, fmt.Errorf("range end beyond content length")
		}
	}

	if start > end || start >= size {
		return 0, 0, fmt.Errorf("inverted or out of bounds range")
	}
	return start, end, nil
}

func (h *Handler) outputBaseURL(videoID string, output domain.OutputFormat) string {
	return "/v1/videos/" + videoID + "/outputs/" + output.String()
}
