package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/streampack/vod/internal/temporal/activities"
)

// PreviewWorkflowInput holds workflow input
type PreviewWorkflowInput struct {
	PreviewID uuid.UUID `json:"previewId"`
	VideoID   uuid.UUID `json:"videoId"`
	BucketID  string    `json:"bucketId"`
	FileID    string    `json:"fileId"`
	Second    int       `json:"second"`
}

// PreviewWorkflowOutput holds workflow output
type PreviewWorkflowOutput struct {
	Error string `json:"error,omitempty"`
}

// PreviewWorkflow extracts a single preview frame at a second offset and
// publishes it under the video's preview path. The preview record becomes
// visible only after the frame is stored.
func PreviewWorkflow(ctx workflow.Context, input PreviewWorkflowInput) (*PreviewWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting preview workflow",
		"previewId", input.PreviewID.String(),
		"second", input.Second)

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	output := &PreviewWorkflowOutput{}

	err := workflow.ExecuteActivity(ctx, "DownloadSource", activities.DownloadInput{
		RunID:    input.PreviewID,
		BucketID: input.BucketID,
		FileID:   input.FileID,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("download failed: %v", err)
		return output, err
	}

	err = workflow.ExecuteActivity(ctx, "ExtractPreviewFrame", activities.ExtractPreviewInput{
		PreviewID: input.PreviewID,
		VideoID:   input.VideoID,
		Second:    input.Second,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("frame extraction failed: %v", err)
		return output, err
	}

	logger.Info("Preview workflow completed", "previewId", input.PreviewID.String())
	return output, nil
}
