package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/config"
	"github.com/streampack/vod/internal/db"
	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/metrics"
	"github.com/streampack/vod/internal/preview"
)

type videoStore interface {
	Create(ctx context.Context, video *domain.Video) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error)
	List(ctx context.Context, limit, offset int) ([]*domain.Video, error)
	Count(ctx context.Context) (int, error)
	Update(ctx context.Context, video *domain.Video) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type profileStore interface {
	Create(ctx context.Context, profile *domain.Profile) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Profile, error)
	List(ctx context.Context) ([]*domain.Profile, error)
	Update(ctx context.Context, profile *domain.Profile) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type renditionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Rendition, error)
	GetReady(ctx context.Context, id uuid.UUID) (*domain.Rendition, error)
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Rendition, error)
	ListAll(ctx context.Context) ([]*domain.Rendition, error)
	ListReadyByVideo(ctx context.Context, videoID uuid.UUID, output domain.OutputFormat) ([]*domain.Rendition, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type subtitleStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Subtitle, error)
	GetReady(ctx context.Context, id uuid.UUID) (*domain.Subtitle, error)
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Subtitle, error)
	ListReadyByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Subtitle, error)
	Update(ctx context.Context, subtitle *domain.Subtitle) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type segmentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Segment, error)
	ListByRendition(ctx context.Context, renditionID uuid.UUID) ([]*domain.Segment, error)
	ListByRenditionStream(ctx context.Context, renditionID uuid.UUID, streamID int) ([]*domain.Segment, error)
	ListBySubtitle(ctx context.Context, subtitleID uuid.UUID) ([]*domain.Segment, error)
	DeleteByRendition(ctx context.Context, renditionID uuid.UUID) error
	DeleteBySubtitle(ctx context.Context, subtitleID uuid.UUID) error
}

type previewStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Preview, error)
	ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Preview, error)
	DeleteByVideo(ctx context.Context, videoID uuid.UUID) error
}

type objectStore interface {
	Read(ctx context.Context, key string) ([]byte, error)
	ReadRange(ctx context.Context, key string, start, end int64) (io.ReadCloser, error)
	DeletePrefix(ctx context.Context, prefix string) error
	Health(ctx context.Context) error
}

type jobDispatcher interface {
	DispatchEncode(ctx context.Context, video *domain.Video, profile *domain.Profile, output domain.OutputFormat) (*domain.Rendition, error)
	DispatchSubtitle(ctx context.Context, video *domain.Video, bucketID, fileID, name, code string, isDefault bool) (*domain.Subtitle, error)
	DispatchTimeline(ctx context.Context, video *domain.Video) error
	DispatchPreview(ctx context.Context, video *domain.Video, second int) (*domain.Preview, error)
}

// Handler holds API dependencies
type Handler struct {
	config       *config.Config
	videos       videoStore
	profiles     profileStore
	renditions   renditionStore
	subtitles    subtitleStore
	segments     segmentStore
	previews     previewStore
	store        objectStore
	dispatcher   jobDispatcher
	previewCache *preview.Cache
	processor    *preview.Processor
	logger       *zap.Logger
	metrics      *metrics.Metrics
}

// NewHandler creates a new handler
func NewHandler(
	cfg *config.Config,
	videos videoStore,
	profiles profileStore,
	renditions renditionStore,
	subtitles subtitleStore,
	segments segmentStore,
	previews previewStore,
	store objectStore,
	dispatcher jobDispatcher,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		config:       cfg,
		videos:       videos,
		profiles:     profiles,
		renditions:   renditions,
		subtitles:    subtitles,
		segments:     segments,
		previews:     previews,
		store:        store,
		dispatcher:   dispatcher,
		previewCache: preview.NewCache(cfg.Preview.CacheEntries, cfg.Preview.CacheTTL),
		processor:    preview.NewProcessor(cfg.Preview.MaxWidth, cfg.Preview.MaxHeight, cfg.Preview.Quality),
		logger:       logger,
		metrics:      m,
	}
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]string{"status": "healthy"}

	if _, err := h.videos.GetByID(ctx, uuid.Nil); err != nil && !isNotFound(err) {
		h.logger.Error("Database health check failed", zap.Error(err))
		status["database"] = "unhealthy"
		status["status"] = "unhealthy"
	} else {
		status["database"] = "healthy"
	}

	if err := h.store.Health(ctx); err != nil {
		h.logger.Error("Storage health check failed", zap.Error(err))
		status["storage"] = "unhealthy"
		status["status"] = "unhealthy"
	} else {
		status["storage"] = "healthy"
	}

	statusCode := http.StatusOK
	if status["status"] == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSON(w, statusCode, status)
}

// ReadyCheck returns readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := map[string]string{"status": "ready"}

	if _, err := h.videos.GetByID(ctx, uuid.Nil); err != nil && !isNotFound(err) {
		status["status"] = "not ready"
		status["database"] = "not connected"
	}
	if err := h.store.Health(ctx); err != nil {
		status["status"] = "not ready"
		status["storage"] = "not connected"
	}

	statusCode := http.StatusOK
	if status["status"] != "ready" {
		statusCode = http.StatusServiceUnavailable
	}
	h.writeJSON(w, statusCode, status)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) writeError(w http.ResponseWriter, code, message string) {
	h.writeJSON(w, statusForCode(code), map[string]string{
		"code":    code,
		"message": message,
	})
}

func isNotFound(err error) bool {
	return errors.Is(err, db.ErrNotFound)
}

func (h *Handler) urlUUID(w http.ResponseWriter, r *http.Request, param, notFoundCode string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		h.writeError(w, notFoundCode, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}
