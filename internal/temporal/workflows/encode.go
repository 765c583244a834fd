package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/temporal/activities"
)

// EncodeWorkflowInput holds workflow input
type EncodeWorkflowInput struct {
	RenditionID uuid.UUID           `json:"renditionId"`
	VideoID     uuid.UUID           `json:"videoId"`
	BucketID    string              `json:"bucketId"`
	FileID      string              `json:"fileId"`
	Output      domain.OutputFormat `json:"output"`
}

// EncodeWorkflowOutput holds workflow output
type EncodeWorkflowOutput struct {
	SegmentCount int    `json:"segmentCount"`
	Error        string `json:"error,omitempty"`
}

// EncodeWorkflow drives one rendition encode: download, transcode into the
// local workspace, then publish (upload, record segment rows, mark ready).
// Any failure marks the pending rendition failed; a rendition deleted while
// the encode is in flight makes the finalize a no-op.
func EncodeWorkflow(ctx workflow.Context, input EncodeWorkflowInput) (*EncodeWorkflowOutput, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting encode workflow",
		"renditionId", input.RenditionID.String(),
		"output", string(input.Output))

	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 1 * time.Hour,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	output := &EncodeWorkflowOutput{}
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

		_ = workflow.ExecuteActivity(finalizeCtx, "FinalizeRendition", activities.FinalizeRenditionInput{
			RenditionID: input.RenditionID,
			Error:       output.Error,
		}).Get(finalizeCtx, nil)
	}()

	err := workflow.ExecuteActivity(ctx, "DownloadSource", activities.DownloadInput{
		RunID:    input.RenditionID,
		BucketID: input.BucketID,
		FileID:   input.FileID,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("download failed: %v", err)
		return output, err
	}

	transcodeOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 12 * time.Hour,
		HeartbeatTimeout:    5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    10 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Minute,
			MaximumAttempts:    2,
		},
	}
	transcodeCtx := workflow.WithActivityOptions(ctx, transcodeOptions)

	err = workflow.ExecuteActivity(transcodeCtx, "TranscodeRendition", activities.TranscodeInput{
		RenditionID: input.RenditionID,
		Output:      input.Output,
	}).Get(ctx, nil)
	if err != nil {
		output.Error = fmt.Sprintf("transcode failed: %v", err)
		return output, err
	}

	publishOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Hour,
		HeartbeatTimeout:    1 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    5,
		},
	}
	publishCtx := workflow.WithActivityOptions(ctx, publishOptions)

	var publishOutput *activities.PublishRenditionOutput
	err = workflow.ExecuteActivity(publishCtx, "PublishRendition", activities.PublishRenditionInput{
		RenditionID: input.RenditionID,
		VideoID:     input.VideoID,
		Output:      input.Output,
	}).Get(ctx, &publishOutput)
	if err != nil {
		output.Error = fmt.Sprintf("publish failed: %v", err)
		return output, err
	}

	output.SegmentCount = publishOutput.SegmentCount
	logger.Info("Encode workflow completed",
		"renditionId", input.RenditionID.String(),
		"segmentCount", output.SegmentCount)

	return output, nil
}
