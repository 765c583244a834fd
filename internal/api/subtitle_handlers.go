package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/streampack/vod/internal/domain"
)

// CreateSubtitleRequest attaches a subtitle source file to a video
type CreateSubtitleRequest struct {
	BucketID string `json:"bucketId"`
	FileID   string `json:"fileId"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Default  bool   `json:"default"`
	MimeType string `json:"mimeType,omitempty"`
}

// UpdateSubtitleRequest changes subtitle metadata
type UpdateSubtitleRequest struct {
	Name    *string `json:"name,omitempty"`
	Code    *string `json:"code,omitempty"`
	Default *bool   `json:"default,omitempty"`
}

// CreateSubtitle registers a subtitle track and enqueues its processing.
func (h *Handler) CreateSubtitle(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	var req CreateSubtitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeSubtitleNotValid, "invalid request body")
		return
	}
	if req.BucketID == "" || req.FileID == "" || req.Name == "" {
		h.writeError(w, CodeSubtitleNotValid, "bucketId, fileId and name are required")
		return
	}
	if req.MimeType != "" && !domain.ValidSubtitleMimeType(req.MimeType) {
		h.writeError(w, CodeSubtitleNotValid, "subtitle source must be WebVTT")
		return
	}
	if !domain.ValidLanguageCode(req.Code) {
		h.writeError(w, CodeLanguageCodeNotValid, "code must be an ISO 639-2 three letter code")
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

	subtitle, err := h.dispatcher.DispatchSubtitle(ctx, video, req.BucketID, req.FileID, req.Name, req.Code, req.Default)
	if err != nil {
		h.logger.Error("Failed to dispatch subtitle", zap.Error(err))
		h.writeError(w, CodeUpstreamFailed, "failed to enqueue subtitle processing")
		return
	}

	h.writeJSON(w, http.StatusCreated, subtitle)
}

// ListSubtitles lists a video's subtitle tracks in every state.
func (h *Handler) ListSubtitles(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	subtitles, err := h.subtitles.ListByVideo(r.Context(), videoID)
	if err != nil {
		h.logger.Error("Failed to list subtitles", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list subtitles")
		return
	}
	h.writeJSON(w, http.StatusOK, subtitles)
}

// GetSubtitle returns one subtitle track.
func (h *Handler) GetSubtitle(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	subtitleID, ok := h.urlUUID(w, r, "subtitleId", CodeSubtitleNotFound)
	if !ok {
		return
	}

	subtitle, err := h.subtitles.GetByID(r.Context(), subtitleID)
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
	h.writeJSON(w, http.StatusOK, subtitle)
}

// UpdateSubtitle changes subtitle metadata. Setting default clears sibling
// defaults in the same transaction, so at most one track per video is
// default at any point.
func (h *Handler) UpdateSubtitle(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	subtitleID, ok := h.urlUUID(w, r, "subtitleId", CodeSubtitleNotFound)
	if !ok {
		return
	}

	var req UpdateSubtitleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeSubtitleNotValid, "invalid request body")
		return
	}
	if req.Code != nil && !domain.ValidLanguageCode(*req.Code) {
		h.writeError(w, CodeLanguageCodeNotValid, "code must be an ISO 639-2 three letter code")
		return
	}

	ctx := r.Context()
	subtitle, err := h.subtitles.GetByID(ctx, subtitleID)
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

	if req.Name != nil {
		subtitle.Name = *req.Name
	}
	if req.Code != nil {
		subtitle.Code = *req.Code
	}
	if req.Default != nil {
		subtitle.Default = *req.Default
	}

	if err := h.subtitles.Update(ctx, subtitle); err != nil {
		h.logger.Error("Failed to update subtitle", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to update subtitle")
		return
	}
	h.writeJSON(w, http.StatusOK, subtitle)
}

// DeleteSubtitle removes a subtitle track and its stored segments.
func (h *Handler) DeleteSubtitle(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	subtitleID, ok := h.urlUUID(w, r, "subtitleId", CodeSubtitleNotFound)
	if !ok {
		return
	}

	ctx := r.Context()
	subtitle, err := h.subtitles.GetByID(ctx, subtitleID)
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

	if err := h.store.DeletePrefix(ctx, subtitle.Path+"/"+subtitle.ID.String()+"/"); err != nil {
		h.logger.Error("Failed to delete subtitle assets", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete subtitle assets")
		return
	}
	if err := h.segments.DeleteBySubtitle(ctx, subtitleID); err != nil {
		h.logger.Error("Failed to delete subtitle segments", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete subtitle")
		return
	}
	if err := h.subtitles.Delete(ctx, subtitleID); err != nil {
		h.logger.Error("Failed to delete subtitle", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete subtitle")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
