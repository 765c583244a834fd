package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/preview"
)

// CreateVideoRequest attaches a source file to transcoding
type CreateVideoRequest struct {
	BucketID string `json:"bucketId"`
	FileID   string `json:"fileId"`
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType,omitempty"`
}

// ListVideosResponse is a paginated video listing
type ListVideosResponse struct {
	Total  int             `json:"total"`
	Videos []*domain.Video `json:"videos"`
}

// CreateVideo registers a source video and kicks off source analysis.
func (h *Handler) CreateVideo(w http.ResponseWriter, r *http.Request) {
	var req CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeVideoNotValid, "invalid request body")
		return
	}
	if req.BucketID == "" || req.FileID == "" {
		h.writeError(w, CodeVideoNotValid, "bucketId and fileId are required")
		return
	}
	if req.MimeType != "" && !domain.ValidSourceMimeType(req.MimeType) {
		h.writeError(w, CodeVideoNotValid, fmt.Sprintf("unsupported source mime type %q", req.MimeType))
		return
	}

	ctx := r.Context()
	video := domain.NewVideo(req.BucketID, req.FileID, req.Size)

	if err := h.videos.Create(ctx, video); err != nil {
		h.logger.Error("Failed to create video", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to create video")
		return
	}

	if err := h.dispatcher.DispatchTimeline(ctx, video); err != nil {
		// The video record stands; analysis can be retried by a source update.
		h.logger.Error("Failed to dispatch source analysis",
			zap.String("videoId", video.ID.String()), zap.Error(err))
	}

	h.writeJSON(w, http.StatusCreated, video)
}

// GetVideo returns one video with its probe summary.
func (h *Handler) GetVideo(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	video, err := h.videos.GetByID(r.Context(), videoID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeVideoNotFound, "video not found")
			return
		}
		h.logger.Error("Failed to get video", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get video")
		return
	}

	h.writeJSON(w, http.StatusOK, video)
}

// ListVideos returns a paginated video listing.
func (h *Handler) ListVideos(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 25)
	offset := queryInt(r, "offset", 0)
	if limit < 1 || limit > 100 {
		limit = 25
	}
	if offset < 0 {
		offset = 0
	}

	ctx := r.Context()
	videos, err := h.videos.List(ctx, limit, offset)
	if err != nil {
		h.logger.Error("Failed to list videos", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list videos")
		return
	}
	total, err := h.videos.Count(ctx)
	if err != nil {
		h.logger.Error("Failed to count videos", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list videos")
		return
	}

	h.writeJSON(w, http.StatusOK, ListVideosResponse{Total: total, Videos: videos})
}

// UpdateVideo replaces the video's source file. The probe summary and
// default preview reset; existing renditions keep what they encoded.
func (h *Handler) UpdateVideo(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	var req CreateVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeVideoNotValid, "invalid request body")
		return
	}
	if req.BucketID == "" || req.FileID == "" {
		h.writeError(w, CodeVideoNotValid, "bucketId and fileId are required")
		return
	}
	if req.MimeType != "" && !domain.ValidSourceMimeType(req.MimeType) {
		h.writeError(w, CodeVideoNotValid, fmt.Sprintf("unsupported source mime type %q", req.MimeType))
		return
	}

	ctx := r.Context()
	video, err := h.videos.GetByID(ctx, videoID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeVideoNotFound, "video not found")
			return
		}
		h.logger.Error("Failed to get video", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get video")
		return
	}

	video.ReplaceSource(req.BucketID, req.FileID, req.Size)
	if err := h.videos.Update(ctx, video); err != nil {
		h.logger.Error("Failed to update video", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to update video")
		return
	}

	if err := h.dispatcher.DispatchTimeline(ctx, video); err != nil {
		h.logger.Error("Failed to dispatch source analysis",
			zap.String("videoId", video.ID.String()), zap.Error(err))
	}

	h.writeJSON(w, http.StatusOK, video)
}

// DeleteVideo removes a video, its derived records and its stored assets.
// The storage prefix goes first; if that fails the record stays intact so
// the delete can be retried.
func (h *Handler) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
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

	if err := h.store.DeletePrefix(ctx, videoID.String()+"/"); err != nil {
		h.logger.Error("Failed to delete video assets", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete video assets")
		return
	}

	renditions, err := h.renditions.ListByVideo(ctx, videoID)
	if err != nil {
		h.logger.Error("Failed to list renditions", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete video")
		return
	}
	for _, rendition := range renditions {
		if err := h.segments.DeleteByRendition(ctx, rendition.ID); err != nil {
			h.logger.Error("Failed to delete rendition segments", zap.Error(err))
			h.writeError(w, CodeInternalError, "failed to delete video")
			return
		}
		if err := h.renditions.Delete(ctx, rendition.ID); err != nil && !isNotFound(err) {
			h.logger.Error("Failed to delete rendition", zap.Error(err))
			h.writeError(w, CodeInternalError, "failed to delete video")
			return
		}
	}

	subtitles, err := h.subtitles.ListByVideo(ctx, videoID)
	if err != nil {
		h.logger.Error("Failed to list subtitles", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete video")
		return
	}
	for _, subtitle := range subtitles {
		if err := h.segments.DeleteBySubtitle(ctx, subtitle.ID); err != nil {
			h.logger.Error("Failed to delete subtitle segments", zap.Error(err))
			h.writeError(w, CodeInternalError, "failed to delete video")
			return
		}
		if err := h.subtitles.Delete(ctx, subtitle.ID); err != nil && !isNotFound(err) {
			h.logger.Error("Failed to delete subtitle", zap.Error(err))
			h.writeError(w, CodeInternalError, "failed to delete video")
			return
		}
	}

	if err := h.previews.DeleteByVideo(ctx, videoID); err != nil {
		h.logger.Error("Failed to delete previews", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete video")
		return
	}

	if err := h.videos.Delete(ctx, videoID); err != nil {
		h.logger.Error("Failed to delete video", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete video")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetTimeline serves the video's seek timeline cue file.
func (h *Handler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
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

	data, err := h.store.Read(ctx, domain.TimelineKey(videoID))
	if err != nil {
		h.writeError(w, CodeTimelineNotFound, "timeline not generated yet")
		return
	}

	w.Header().Set("Content-Type", "text/vtt")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// CreatePreviewRequest requests a preview frame at a second offset
type CreatePreviewRequest struct {
	Second int `json:"second"`
}

// CreatePreview enqueues extraction of a preview frame. The preview becomes
// fetchable once the worker stores the frame.
func (h *Handler) CreatePreview(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	var req CreatePreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeVideoNotValid, "invalid request body")
		return
	}
	if req.Second < 0 {
		h.writeError(w, CodeVideoNotValid, "second must not be negative")
		return
	}

	ctx := r.Context()
	video, err := h.videos.GetByID(ctx, videoID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeVideoNotFound, "video not found")
			return
		}
		h.logger.Error("Failed to get video", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get video")
		return
	}

	p, err := h.dispatcher.DispatchPreview(ctx, video, req.Second)
	if err != nil {
		h.logger.Error("Failed to dispatch preview", zap.Error(err))
		h.writeError(w, CodeUpstreamFailed, "failed to enqueue preview extraction")
		return
	}

	h.writeJSON(w, http.StatusAccepted, p)
}

// ListPreviews lists a video's preview frames and sprite sheets.
func (h *Handler) ListPreviews(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	previews, err := h.previews.ListByVideo(r.Context(), videoID)
	if err != nil {
		h.logger.Error("Failed to list previews", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list previews")
		return
	}

	h.writeJSON(w, http.StatusOK, previews)
}

// GetPreview serves a preview image, cropped/resized/converted per query
// parameters, through the bounded read-through cache. webp falls back to
// jpeg when the client's Accept header does not admit it.
func (h *Handler) GetPreview(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	previewID, ok := h.urlUUID(w, r, "previewId", CodePreviewNotFound)
	if !ok {
		return
	}

	width := queryInt(r, "width", 0)
	height := queryInt(r, "height", 0)
	if width < 0 || height < 0 {
		h.writeError(w, CodePreviewNotFound, "invalid dimensions")
		return
	}

	format := preview.FormatJPEG
	if output := r.URL.Query().Get("output"); output != "" {
		parsed, err := preview.ParseFormat(output)
		if err != nil {
			h.writeError(w, CodeOutputNotValid, err.Error())
			return
		}
		format = parsed
	}
	format = preview.Negotiate(format, r.Header.Get("Accept"))

	ctx := r.Context()
	p, err := h.previews.GetByID(ctx, previewID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodePreviewNotFound, "preview not found")
			return
		}
		h.logger.Error("Failed to get preview", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get preview")
		return
	}
	if p.VideoID != videoID {
		h.writeError(w, CodePreviewNotFound, "preview not found")
		return
	}

	cacheKey := fmt.Sprintf("%s:%dx%d:%s", previewID, width, height, format)
	if data, contentType, ok := h.previewCache.Get(cacheKey); ok {
		h.metrics.IncrementPreviewCache("hit")
		servePreviewImage(w, data, contentType)
		return
	}
	h.metrics.IncrementPreviewCache("miss")

	raw, err := h.store.Read(ctx, p.StorageKey())
	if err != nil {
		h.writeError(w, CodePreviewNotFound, "preview image not stored yet")
		return
	}

	data, err := h.processor.Process(raw, preview.Transform{
		Width:  width,
		Height: height,
		Output: format,
	})
	if err != nil {
		h.logger.Error("Failed to process preview image", zap.Error(err))
		h.writeError(w, CodeUpstreamFailed, "failed to process preview image")
		return
	}

	contentType := format.ContentType()
	h.previewCache.Put(cacheKey, data, contentType)
	servePreviewImage(w, data, contentType)
}

func servePreviewImage(w http.ResponseWriter, data []byte, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "private, max-age=2592000")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
