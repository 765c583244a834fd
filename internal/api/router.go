package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// NewRouter creates the API router
func NewRouter(h *Handler, logger *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(requestLogger(logger))

	r.Get("/healthz", h.HealthCheck)
	r.Get("/readyz", h.ReadyCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/videos", func(r chi.Router) {
			r.Post("/", h.CreateVideo)
			r.Get("/", h.ListVideos)
			r.Get("/renditions", h.ListAllRenditions)

			r.Route("/profiles", func(r chi.Router) {
				r.Post("/", h.CreateProfile)
				r.Get("/", h.ListProfiles)
				r.Get("/{profileId}", h.GetProfile)
				r.Patch("/{profileId}", h.UpdateProfile)
				r.Delete("/{profileId}", h.DeleteProfile)
			})

			r.Route("/{videoId}", func(r chi.Router) {
				r.Get("/", h.GetVideo)
				r.Put("/", h.UpdateVideo)
				r.Delete("/", h.DeleteVideo)

				r.Post("/rendition", h.DispatchRendition)
				r.Get("/renditions", h.ListRenditions)
				r.Get("/renditions/{renditionId}", h.GetRendition)
				r.Delete("/renditions/{renditionId}", h.DeleteRendition)

				r.Post("/subtitles", h.CreateSubtitle)
				r.Get("/subtitles", h.ListSubtitles)
				r.Get("/subtitles/{subtitleId}", h.GetSubtitle)
				r.Patch("/subtitles/{subtitleId}", h.UpdateSubtitle)
				r.Delete("/subtitles/{subtitleId}", h.DeleteSubtitle)

				r.Get("/timeline", h.GetTimeline)
				r.Post("/previews", h.CreatePreview)
				r.Get("/previews", h.ListPreviews)
				r.Get("/preview/{previewId}", h.GetPreview)

				r.Route("/outputs/{output}", func(r chi.Router) {
					r.Get("/{fileName}", h.GetMasterManifest)
					r.Get("/renditions/{renditionId}/streams/{streamId}/playlist.m3u8", h.GetMediaPlaylist)
					r.Get("/renditions/{renditionId}/streams/{streamId}/segments/{segmentId}/{fileName}", h.GetSegment)
					// segment ids are globally unique, the stream segment is
					// addressable without the stream path too
					r.Get("/renditions/{renditionId}/segments/{segmentId}/{fileName}", h.GetSegment)
					r.Get("/subtitles/{subtitleId}/{fileName}", h.GetSubtitleFile)
					r.Get("/subtitles/{subtitleId}/segments/{segmentId}/subtitle.vtt", h.GetSubtitleSegment)
				})
			})
		})
	})

	return r
}

// requestLogger logs HTTP requests
func requestLogger(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				logger.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Duration("duration", time.Since(start)),
					zap.String("requestId", middleware.GetReqID(r.Context())),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
