package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/domain"
)

// Starter enqueues pipeline runs on the worker fleet.
type Starter interface {
	StartEncode(ctx context.Context, rendition *domain.Rendition, video *domain.Video) error
	StartSubtitle(ctx context.Context, subtitle *domain.Subtitle) error
	StartTimeline(ctx context.Context, video *domain.Video) error
	StartPreview(ctx context.Context, preview *domain.Preview, video *domain.Video) error
}

// renditionStore is the slice of the rendition repository dispatch needs.
type renditionStore interface {
	CreateIfAbsent(ctx context.Context, rendition *domain.Rendition) (*domain.Rendition, bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
}

// subtitleStore is the slice of the subtitle repository dispatch needs.
type subtitleStore interface {
	Create(ctx context.Context, subtitle *domain.Subtitle) error
	MarkFailed(ctx context.Context, id uuid.UUID) error
}

// Dispatcher creates pending records and enqueues the runs that will
// complete them. A record is never left pending with nothing in flight:
// when the enqueue fails the record is marked failed before the error
// surfaces.
type Dispatcher struct {
	starter    Starter
	renditions renditionStore
	subtitles  subtitleStore
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher
func NewDispatcher(starter Starter, renditions renditionStore, subtitles subtitleStore, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		starter:    starter,
		renditions: renditions,
		subtitles:  subtitles,
		logger:     logger,
	}
}

// DispatchEncode requests an encode of video under profile for the given
// output. Concurrent requests for the same triple collapse onto one record
// via the dispatch key; the existing pending or ready rendition is returned
// without starting a second run. A failed rendition no longer holds the key,
// so dispatching again after a failure starts a fresh encode.
func (d *Dispatcher) DispatchEncode(ctx context.Context, video *domain.Video, profile *domain.Profile, output domain.OutputFormat) (*domain.Rendition, error) {
	rendition := domain.NewRendition(video, profile, output)

	existing, created, err := d.renditions.CreateIfAbsent(ctx, rendition)
	if err != nil {
		return nil, fmt.Errorf("failed to create rendition: %w", err)
	}
	if !created {
		d.logger.Info("Encode already dispatched",
			zap.String("renditionId", existing.ID.String()),
			zap.String("status", string(existing.Status)))
		return existing, nil
	}

	if err := d.starter.StartEncode(ctx, rendition, video); err != nil {
		if markErr := d.renditions.MarkFailed(ctx, rendition.ID, "failed to enqueue encode"); markErr != nil {
			d.logger.Error("Failed to mark unenqueued rendition",
				zap.String("renditionId", rendition.ID.String()),
				zap.Error(markErr))
		}
		return nil, fmt.Errorf("failed to enqueue encode: %w", err)
	}

	d.logger.Info("Encode dispatched",
		zap.String("renditionId", rendition.ID.String()),
		zap.String("videoId", video.ID.String()),
		zap.String("output", output.String()))
	return rendition, nil
}

// DispatchSubtitle registers a subtitle track and enqueues its processing.
func (d *Dispatcher) DispatchSubtitle(ctx context.Context, video *domain.Video, bucketID, fileID, name, code string, isDefault bool) (*domain.Subtitle, error) {
	subtitle := domain.NewSubtitle(video.ID, bucketID, fileID, name, code, isDefault)

	if err := d.subtitles.Create(ctx, subtitle); err != nil {
		return nil, fmt.Errorf("failed to create subtitle: %w", err)
	}

	if err := d.starter.StartSubtitle(ctx, subtitle); err != nil {
		if markErr := d.subtitles.MarkFailed(ctx, subtitle.ID); markErr != nil {
			d.logger.Error("Failed to mark unenqueued subtitle",
				zap.String("subtitleId", subtitle.ID.String()),
				zap.Error(markErr))
		}
		return nil, fmt.Errorf("failed to enqueue subtitle processing: %w", err)
	}

	d.logger.Info("Subtitle dispatched",
		zap.String("subtitleId", subtitle.ID.String()),
		zap.String("code", code))
	return subtitle, nil
}

// DispatchTimeline enqueues source analysis and seek timeline generation.
// There is no pending record to fail; an enqueue error surfaces directly.
func (d *Dispatcher) DispatchTimeline(ctx context.Context, video *domain.Video) error {
	if err := d.starter.StartTimeline(ctx, video); err != nil {
		return fmt.Errorf("failed to enqueue timeline generation: %w", err)
	}
	d.logger.Info("Timeline dispatched", zap.String("videoId", video.ID.String()))
	return nil
}

// DispatchPreview enqueues extraction of a preview frame at a second
// offset. The preview record appears only once the frame is stored, so the
// returned preview may not be fetchable yet.
func (d *Dispatcher) DispatchPreview(ctx context.Context, video *domain.Video, second int) (*domain.Preview, error) {
	preview := domain.NewPreview(video.ID, second, false)

	if err := d.starter.StartPreview(ctx, preview, video); err != nil {
		return nil, fmt.Errorf("failed to enqueue preview extraction: %w", err)
	}

	d.logger.Info("Preview dispatched",
		zap.String("previewId", preview.ID.String()),
		zap.Int("second", second))
	return preview, nil
}
