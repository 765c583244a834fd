package api

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/streampack/vod/internal/domain"
)

// ProfileRequest carries profile parameters for create and update
type ProfileRequest struct {
	Name         string `json:"name"`
	VideoBitRate int    `json:"videoBitRate"`
	AudioBitRate int    `json:"audioBitRate"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
}

// CreateProfile registers an encode profile.
func (h *Handler) CreateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeProfileNotValid, "invalid request body")
		return
	}

	profile := domain.NewProfile(req.Name, req.VideoBitRate, req.AudioBitRate, req.Width, req.Height)
	if err := profile.Validate(); err != nil {
		h.writeError(w, CodeProfileNotValid, err.Error())
		return
	}

	if err := h.profiles.Create(r.Context(), profile); err != nil {
		h.logger.Error("Failed to create profile", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to create profile")
		return
	}

	h.writeJSON(w, http.StatusCreated, profile)
}

// ListProfiles lists all encode profiles.
func (h *Handler) ListProfiles(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.profiles.List(r.Context())
	if err != nil {
		h.logger.Error("Failed to list profiles", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to list profiles")
		return
	}
	h.writeJSON(w, http.StatusOK, profiles)
}

// GetProfile returns one profile.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.urlUUID(w, r, "profileId", CodeProfileNotFound)
	if !ok {
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), profileID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeProfileNotFound, "profile not found")
			return
		}
		h.logger.Error("Failed to get profile", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get profile")
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// UpdateProfile changes profile parameters. Existing renditions keep the
// parameters they captured at encode time.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.urlUUID(w, r, "profileId", CodeProfileNotFound)
	if !ok {
		return
	}

	var req ProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, CodeProfileNotValid, "invalid request body")
		return
	}

	ctx := r.Context()
	profile, err := h.profiles.GetByID(ctx, profileID)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeProfileNotFound, "profile not found")
			return
		}
		h.logger.Error("Failed to get profile", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to get profile")
		return
	}

	if req.Name != "" {
		profile.Name = req.Name
	}
	if req.VideoBitRate != 0 {
		profile.VideoBitRate = req.VideoBitRate
	}
	if req.AudioBitRate != 0 {
		profile.AudioBitRate = req.AudioBitRate
	}
	if req.Width != 0 {
		profile.Width = req.Width
	}
	if req.Height != 0 {
		profile.Height = req.Height
	}
	if err := profile.Validate(); err != nil {
		h.writeError(w, CodeProfileNotValid, err.Error())
		return
	}

	if err := h.profiles.Update(ctx, profile); err != nil {
		h.logger.Error("Failed to update profile", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to update profile")
		return
	}
	h.writeJSON(w, http.StatusOK, profile)
}

// DeleteProfile removes a profile. Renditions referencing it are untouched.
func (h *Handler) DeleteProfile(w http.ResponseWriter, r *http.Request) {
	profileID, ok := h.urlUUID(w, r, "profileId", CodeProfileNotFound)
	if !ok {
		return
	}

	if err := h.profiles.Delete(r.Context(), profileID); err != nil {
		if isNotFound(err) {
			h.writeError(w, CodeProfileNotFound, "profile not found")
			return
		}
		h.logger.Error("Failed to delete profile", zap.Error(err))
		h.writeError(w, CodeInternalError, "failed to delete profile")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
