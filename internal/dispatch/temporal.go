package dispatch

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/client"

	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/temporal/workflows"
)

// TemporalStarter enqueues pipeline runs as Temporal workflows.
type TemporalStarter struct {
	client    client.Client
	taskQueue string
}

// NewTemporalStarter creates a starter bound to a task queue
func NewTemporalStarter(c client.Client, taskQueue string) *TemporalStarter {
	return &TemporalStarter{client: c, taskQueue: taskQueue}
}

func (s *TemporalStarter) StartEncode(ctx context.Context, rendition *domain.Rendition, video *domain.Video) error {
	options := client.StartWorkflowOptions{
		ID:        "encode-" + rendition.ID.String(),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, workflows.EncodeWorkflow, workflows.EncodeWorkflowInput{
		RenditionID: rendition.ID,
		VideoID:     rendition.VideoID,
		BucketID:    video.BucketID,
		FileID:      video.FileID,
		Output:      rendition.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to start encode workflow: %w", err)
	}
	return nil
}

func (s *TemporalStarter) StartSubtitle(ctx context.Context, subtitle *domain.Subtitle) error {
	options := client.StartWorkflowOptions{
		ID:        "subtitle-" + subtitle.ID.String(),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, workflows.SubtitleWorkflow, workflows.SubtitleWorkflowInput{
		SubtitleID: subtitle.ID,
		VideoID:    subtitle.VideoID,
		BucketID:   subtitle.BucketID,
		FileID:     subtitle.FileID,
	})
	if err != nil {
		return fmt.Errorf("failed to start subtitle workflow: %w", err)
	}
	return nil
}

func (s *TemporalStarter) StartTimeline(ctx context.Context, video *domain.Video) error {
	options := client.StartWorkflowOptions{
		ID:        "timeline-" + video.ID.String(),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, workflows.TimelineWorkflow, workflows.TimelineWorkflowInput{
		VideoID:  video.ID,
		BucketID: video.BucketID,
		FileID:   video.FileID,
	})
	if err != nil {
		return fmt.Errorf("failed to start timeline workflow: %w", err)
	}
	return nil
}

func (s *TemporalStarter) StartPreview(ctx context.Context, preview *domain.Preview, video *domain.Video) error {
	options := client.StartWorkflowOptions{
		ID:        "preview-" + preview.ID.String(),
		TaskQueue: s.taskQueue,
	}
	_, err := s.client.ExecuteWorkflow(ctx, options, workflows.PreviewWorkflow, workflows.PreviewWorkflowInput{
		PreviewID: preview.ID,
		VideoID:   preview.VideoID,
		BucketID:  video.BucketID,
		FileID:    video.FileID,
		Second:    preview.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to start preview workflow: %w", err)
	}
	return nil
}
