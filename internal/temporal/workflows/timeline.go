package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/streampack/vod/internal/temporal/activities"
)

// TimelineWorkflowInput holds workflow input
type TimelineWorkflowInput struct {
	VideoID  uuid.UUID `json:"videoId"`
	BucketID string    `json:"bucketId"`
	FileID   string    `json:"fileId"`
}

// TimelineWorkflowOutput holds workflow output
type TimelineWorkflowOutput struct {
	SpriteCount int    `json:"spriteCount"`
	Error       string `json:"error,omitempty"`
}

// TimelineWorkflow analyzes a new source: probes it, stamps the video's
// probe summary, extracts seek-timeline frames, tiles sprite sheets and
// publishes them with the timeline cue file.
func TimelineWorkflow(ctx workflow.Context, input TimelineWorkflowInput) (*TimelineWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting timeline workflow", "videoId", input.VideoID.String())

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Hour,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	output := &TimelineWorkflowOutput{}

	err := workflow.ExecuteActivity(ctx, "DownloadSource", activities.DownloadInput{
		RunID:    input.VideoID,
		BucketID: input.BucketID,
		FileID:   input.FileID,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("download failed: %v", err)
		return output, err
	}

	err = workflow.ExecuteActivity(ctx, "ProbeVideo", activities.ProbeVideoInput{
		VideoID: input.VideoID,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("probe failed: %v", err)
		return output, err
	}

	var timelineOutput *activities.GenerateTimelineOutput
	err = workflow.ExecuteActivity(ctx, "GenerateTimeline", activities.GenerateTimelineInput{
		VideoID: input.VideoID,
	}).Get(ctx, &timelineOutput)
	if err != nil {
		output.Error = fmt.Sprintf("timeline generation failed: %v", err)
		return output, err
	}

	cleanupCtx, _ := workflow.NewDisconnectedContext(ctx)
	cleanupOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	cleanupCtx = workflow.WithActivityOptions(cleanupCtx, cleanupOptions)
	_ = workflow.ExecuteActivity(cleanupCtx, "CleanupWorkspace", activities.CleanupInput{
		RunID: input.VideoID,
	}).Get(cleanupCtx, nil)

	output.SpriteCount = timelineOutput.SpriteCount
	logger.Info("Timeline workflow completed",
		"videoId", input.VideoID.String(),
		"spriteCount", output.SpriteCount)

	return output, nil
}
