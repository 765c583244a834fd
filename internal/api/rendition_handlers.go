package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/domain"
)

// DispatchRenditionRequest requests an encode of a video under a profile
type DispatchRenditionRequest struct {
	ProfileID uuid.UUID `json:"profileId"`
	Output    string    `json:"output"`
}

// DispatchRendition enqueues an encode. Dispatch is fire-and-forget:
// failures after this point are observable only via the rendition status.
// Re-dispatching the same (video, profile, output) is accepted and collapses
// onto the existing rendition.
func (h *Handler) DispatchRendition(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	var req DispatchRenditionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeOutputNotValid, "invalid request body")
		return
	}

	output, err := domain.ParseOutputFormat(req.Output)
	if err != nil {
		h.writeError(w, CodeOutputNotValid, err.Error())
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

	profile, err := h.profiles.GetByID(ctx, req.ProfileID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeProfileNotFound, "profile not found")
			return
		}
		h.logger.Error("Failed to get profile", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get profile")
		return
	}

	if _, err := h.dispatcher.DispatchEncode(ctx, video, profile, output); err != nil {
		h.logger.Error("Failed to dispatch encode", zap.Error(err))
		h.writeError(w, CodeUpstreamFailed, "failed to enqueue encode")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListRenditions lists a video's renditions in every state.
func (h *Handler) ListRenditions(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}

	renditions, err := h.renditions.ListByVideo(r.Context(), videoID)
	if err != nil {
		h.logger.Error("Failed to list renditions", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list renditions")
		return
	}
	h.writeJSON(w, http.StatusOK, renditions)
}

// ListAllRenditions lists renditions across all videos.
func (h *Handler) ListAllRenditions(w http.ResponseWriter, r *http.Request) {
	renditions, err := h.renditions.ListAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to list renditions", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list renditions")
		return
	}
	h.writeJSON(w, http.StatusOK, renditions)
}

// GetRendition returns one rendition with its status and progress.
func (h *Handler) GetRendition(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	renditionID, ok := h.urlUUID(w, r, "renditionId", CodeRenditionNotFound)
	if !ok {
		return
	}

	rendition, err := h.renditions.GetByID(r.Context(), renditionID)
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
	h.writeJSON(w, http.StatusOK, rendition)
}

// DeleteRendition removes a rendition and its stored segments. Assets go
// first so a storage failure leaves the record intact for retry.
func (h *Handler) DeleteRendition(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.urlUUID(w, r, "videoId", CodeVideoNotFound)
	if !ok {
		return
	}
	renditionID, ok := h.urlUUID(w, r, "renditionId", CodeRenditionNotFound)
	if !ok {
		return
	}

	ctx := r.Context()
	rendition, err := h.renditions.GetByID(ctx, renditionID)
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

	if err := h.store.DeletePrefix(ctx, rendition.Path+"/"); err != nil {
		h.logger.Error("Failed to delete rendition assets", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete rendition assets")
		return
	}
	if err := h.segments.DeleteByRendition(ctx, renditionID); err != nil {
		h.logger.Error("Failed to delete rendition segments", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete rendition")
		return
	}
	if err := h.renditions.Delete(ctx, renditionID); err != nil {
		h.logger.Error("Failed to delete rendition", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete rendition")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
