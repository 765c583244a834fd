package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/streampack/vod/internal/temporal/activities"
)

// SubtitleWorkflowInput holds workflow input
type SubtitleWorkflowInput struct {
	SubtitleID uuid.UUID `json:"subtitleId"`
	VideoID    uuid.UUID `json:"videoId"`
	BucketID   string    `json:"bucketId"`
	FileID     string    `json:"fileId"`
}

// SubtitleWorkflowOutput holds workflow output
type SubtitleWorkflowOutput struct {
	SegmentCount int    `json:"segmentCount"`
	Error        string `json:"error,omitempty"`
}

// SubtitleWorkflow processes a subtitle source: download, validate, cut
// into timed segments for HLS, publish the flat VTT for DASH, mark ready.
func SubtitleWorkflow(ctx workflow.Context, input SubtitleWorkflowInput) (*SubtitleWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting subtitle workflow", "subtitleId", input.SubtitleID.String())

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	output := &SubtitleWorkflowOutput{}
	defer func() {
		finalizeCtx, _ := workflow.NewDisconnectedContext(ctx)
		finalizeOptions := workflow.ActivityOptions{
			StartToCloseTimeout: 1 * time.Minute,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:    time.Second,
				BackoffCoefficient: 2.0,
				MaximumInterval:    10 * time.Second,
				MaximumAttempts:    5,
			},
		}
		finalizeCtx = workflow.WithActivityOptions(finalizeCtx, finalizeOptions)

		_ = workflow.ExecuteActivity(finalizeCtx, "FinalizeSubtitle", activities.FinalizeSubtitleInput{
			SubtitleID: input.SubtitleID,
			Error:      output.Error,
		}).Get(finalizeCtx, nil)
	}()

	err := workflow.ExecuteActivity(ctx, "DownloadSource", activities.DownloadInput{
		RunID:    input.SubtitleID,
		BucketID: input.BucketID,
		FileID:   input.FileID,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("download failed: %v", err)
		return output, err
	}

	var processOutput *activities.ProcessSubtitleOutput
	err = workflow.ExecuteActivity(ctx, "ProcessSubtitle", activities.ProcessSubtitleInput{
		SubtitleID: input.SubtitleID,
	}).Get(ctx, &processOutput)
	if err != nil {
		output.Error = fmt.Sprintf("subtitle processing failed: %v", err)
		return output, err
	}

	output.SegmentCount = processOutput.SegmentCount
	logger.Info("Subtitle workflow completed",
		"subtitleId", input.SubtitleID.String(),
		"segmentCount", output.SegmentCount)

	return output, nil
}
