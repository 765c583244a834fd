package activities

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/config"
	"github.com/streampack/vod/internal/db"
	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/ffmpeg"
	"github.com/streampack/vod/internal/metrics"
	"github.com/streampack/vod/internal/storage/s3"
)

// Activities holds all activity implementations
type Activities struct {
	config        *config.Config
	videoRepo     *db.VideoRepository
	renditionRepo *db.RenditionRepository
	subtitleRepo  *db.SubtitleRepository
	segmentRepo   *db.SegmentRepository
	previewRepo   *db.PreviewRepository
	s3Client      *s3.Client
	uploader      *s3.DirectoryUploader
	prober        *ffmpeg.Prober
	runner        *ffmpeg.Runner
	builder       *ffmpeg.CommandBuilder
	logger        *zap.Logger
	metrics       *metrics.Metrics
}

// NewActivities creates a new activities instance
func NewActivities(
	cfg *config.Config,
	videoRepo *db.VideoRepository,
	renditionRepo *db.RenditionRepository,
	subtitleRepo *db.SubtitleRepository,
	segmentRepo *db.SegmentRepository,
	previewRepo *db.PreviewRepository,
	s3Client *s3.Client,
	logger *zap.Logger,
	m *metrics.Metrics,
) *Activities {
	return &Activities{
		config:        cfg,
		videoRepo:     videoRepo,
		renditionRepo: renditionRepo,
		subtitleRepo:  subtitleRepo,
		segmentRepo:   segmentRepo,
		previewRepo:   previewRepo,
		s3Client:      s3Client,
		uploader:      s3.NewDirectoryUploader(s3Client, cfg.Worker.MaxParallelUploads),
		prober:        ffmpeg.NewProber(cfg.FFmpeg.FFprobePath),
		runner:        ffmpeg.NewRunner(cfg.FFmpeg.BinaryPath, cfg.FFmpeg.ProcessTimeout),
		builder:       ffmpeg.NewCommandBuilder(cfg.FFmpeg.BinaryPath),
		logger:        logger,
		metrics:       m,
	}
}

func (a *Activities) workspace(runID uuid.UUID) *ffmpeg.Workspace {
	return ffmpeg.NewWorkspace(a.config.Worker.WorkdirRoot, runID)
}

const sourceFileName = "source"

// DownloadInput holds input for source download
type DownloadInput struct {
	RunID    uuid.UUID `json:"runId"`
	BucketID string    `json:"bucketId"`
	FileID   string    `json:"fileId"`
}

// DownloadSource fetches the source asset into the run workspace.
func (a *Activities) DownloadSource(ctx context.Context, input DownloadInput) error {
	logger := a.logger.With(zap.String("runId", input.RunID.String()), zap.String("activity", "DownloadSource"))
	startTime := time.Now()

	ws := a.workspace(input.RunID)
	if err := ws.Create(); err != nil {
		return fmt.Errorf("failed to create workspace: %w", err)
	}

	stopHeartbeat := startPeriodicHeartbeat(ctx, 30*time.Second, "downloading")
	defer stopHeartbeat()

	destPath := ws.InputPath(sourceFileName)
	if err := a.s3Client.Download(ctx, input.BucketID, input.FileID, destPath); err != nil {
		a.metrics.IncrementStageFailures("download", "storage")
		return fmt.Errorf("failed to download source: %w", err)
	}

	a.metrics.RecordStageDuration("download", time.Since(startTime).Seconds())
	logger.Info("Source downloaded", zap.Duration("elapsed", time.Since(startTime)))
	return nil
}

// TranscodeInput holds input for rendition transcoding
type TranscodeInput struct {
	RenditionID uuid.UUID           `json:"renditionId"`
	Output      domain.OutputFormat `json:"output"`
}

// TranscodeRendition runs ffmpeg to produce the segmented output in the
// local workspace. Nothing is published here; readers cannot observe a
// partial encode.
func (a *Activities) TranscodeRendition(ctx context.Context, input TranscodeInput) error {
	logger := a.logger.With(zap.String("renditionId", input.RenditionID.String()), zap.String("activity", "TranscodeRendition"))
	startTime := time.Now()

	rendition, err := a.renditionRepo.GetByID(ctx, input.RenditionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Rendition deleted before transcode, skipping")
			return nil
		}
		return fmt.Errorf("failed to load rendition: %w", err)
	}

	ws := a.workspace(input.RenditionID)
	inputPath := ws.InputPath(sourceFileName)

	info, err := a.prober.Probe(ctx, inputPath)
	if err != nil {
		a.metrics.IncrementStageFailures("transcode", "probe")
		return fmt.Errorf("failed to probe source: %w", err)
	}

	params := ffmpeg.EncodeParams{
		Width:           rendition.Width,
		Height:          rendition.Height,
		VideoBitRate:    rendition.VideoBitRate,
		AudioBitRate:    rendition.AudioBitRate,
		SegmentDuration: a.config.Segments.TargetDurationSec,
	}

	var args []string
	if input.Output == domain.OutputDASH {
		args = a.builder.BuildDASHEncode(inputPath, ws.Paths().Output, params)
	} else {
		args = a.builder.BuildHLSEncode(inputPath, ws.Paths().Output, params)
	}

	total := time.Duration(info.Duration * float64(time.Second))
	a.metrics.IncrementFFmpegProcesses()
	defer a.metrics.DecrementFFmpegProcesses()

	err = a.runner.Run(ctx, args, func(p ffmpeg.Progress) {
		activity.RecordHeartbeat(ctx, p.OutTime.Seconds())
		progress := ffmpeg.CalculateProgress(p.OutTime, total)
		if err := a.renditionRepo.UpdateProgress(ctx, input.RenditionID, progress); err != nil {
			logger.Warn("Failed to update progress", zap.Error(err))
		}
	})
	if err != nil {
		a.metrics.IncrementStageFailures("transcode", "ffmpeg")
		return fmt.Errorf("ffmpeg failed: %w", err)
	}

	manifestName := "playlist.m3u8"
	if input.Output == domain.OutputDASH {
		manifestName = "manifest.mpd"
	}
	if err := ffmpeg.ValidateOutput(ws.OutputPath(manifestName)); err != nil {
		a.metrics.IncrementStageFailures("transcode", "output")
		return fmt.Errorf("encoder produced no usable output: %w", err)
	}

	a.metrics.RecordStageDuration("transcode", time.Since(startTime).Seconds())
	logger.Info("Transcode finished", zap.Duration("elapsed", time.Since(startTime)))
	return nil
}

// PublishRenditionInput holds input for rendition publishing
type PublishRenditionInput struct {
	RenditionID uuid.UUID           `json:"renditionId"`
	VideoID     uuid.UUID           `json:"videoId"`
	Output      domain.OutputFormat `json:"output"`
}

// PublishRenditionOutput holds publish results
type PublishRenditionOutput struct {
	SegmentCount int `json:"segmentCount"`
}

// PublishRendition uploads the encoder output, records the segment index
// and marks the rendition ready. A rendition deleted while the encode was
// in flight turns this into a no-op.
func (a *Activities) PublishRendition(ctx context.Context, input PublishRenditionInput) (*PublishRenditionOutput, error) {
	logger := a.logger.With(zap.String("renditionId", input.RenditionID.String()), zap.String("activity", "PublishRendition"))
	startTime := time.Now()

	rendition, err := a.renditionRepo.GetByID(ctx, input.RenditionID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Rendition deleted before publish, skipping")
			return &PublishRenditionOutput{}, nil
		}
		return nil, fmt.Errorf("failed to load rendition: %w", err)
	}

	ws := a.workspace(input.RenditionID)

	info, err := a.prober.Probe(ctx, ws.InputPath(sourceFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to probe source: %w", err)
	}

	plan, err := buildSegmentPlan(ws.Paths().Output, input.Output, info.Duration, a.config.Segments.TargetDurationSec)
	if err != nil {
		a.metrics.IncrementStageFailures("publish", "plan")
		return nil, fmt.Errorf("failed to index encoder output: %w", err)
	}

	stopHeartbeat := startPeriodicHeartbeat(ctx, 30*time.Second, "uploading")
	defer stopHeartbeat()

	uploaded, err := a.uploader.UploadDirectory(ctx, ws.Paths().Output, a.s3Client.GetDefaultBucket(), rendition.Path, func(p s3.UploadProgress) {
		activity.RecordHeartbeat(ctx, p)
	})
	if err != nil {
		a.metrics.IncrementStageFailures("publish", "upload")
		return nil, fmt.Errorf("failed to upload rendition: %w", err)
	}

	sizes := make(map[string]int64, len(uploaded))
	var totalBytes int64
	for _, f := range uploaded {
		sizes[f.RelPath] = f.Size
		totalBytes += f.Size
	}
	a.metrics.AddUploadBytes(float64(totalBytes))

	segments := make([]*domain.Segment, 0, len(plan.entries))
	for _, entry := range plan.entries {
		segment := domain.NewRenditionSegment(
			rendition.ID,
			entry.streamID,
			entry.sequence,
			entry.duration,
			entry.isInit,
			rendition.Path,
			entry.fileName,
			sizes[entry.fileName],
		)
		segments = append(segments, segment)
	}
	if err := a.segmentRepo.CreateBatch(ctx, segments); err != nil {
		return nil, fmt.Errorf("failed to record segments: %w", err)
	}

	metadata := domain.RenditionMetadata{
		Streams: plan.streams(rendition, info),
		MPD:     plan.mpd,
	}

	err = a.renditionRepo.MarkReady(ctx, rendition.ID, metadata,
		rendition.Width, rendition.Height,
		rendition.VideoBitRate, rendition.AudioBitRate,
		plan.targetDuration)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Rendition deleted during publish, leaving store cleanup to cascade")
			return &PublishRenditionOutput{}, nil
		}
		return nil, fmt.Errorf("failed to mark rendition ready: %w", err)
	}

	if err := ws.Cleanup(); err != nil {
		logger.Warn("Failed to clean workspace", zap.Error(err))
	}

	a.metrics.RecordStageDuration("publish", time.Since(startTime).Seconds())
	a.metrics.IncrementEncodesTotal(string(input.Output), "ready")
	logger.Info("Rendition published",
		zap.Int("segments", len(segments)),
		zap.Int64("bytes", totalBytes))

	return &PublishRenditionOutput{SegmentCount: len(segments)}, nil
}

// FinalizeRenditionInput holds input for encode finalization
type FinalizeRenditionInput struct {
	RenditionID uuid.UUID `json:"renditionId"`
	Error       string    `json:"error,omitempty"`
}

// FinalizeRendition marks a failed encode and removes the workspace. Runs
// on every workflow exit; success leaves the ready status untouched.
func (a *Activities) FinalizeRendition(ctx context.Context, input FinalizeRenditionInput) error {
	logger := a.logger.With(zap.String("renditionId", input.RenditionID.String()), zap.String("activity", "FinalizeRendition"))

	if input.Error != "" {
		err := a.renditionRepo.MarkFailed(ctx, input.RenditionID, input.Error)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("failed to mark rendition failed: %w", err)
		}
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Rendition gone or already terminal, nothing to mark")
		}
	}

	if err := a.workspace(input.RenditionID).Cleanup(); err != nil {
		logger.Warn("Failed to clean workspace", zap.Error(err))
	}
	return nil
}

// CleanupInput holds input for workspace cleanup
type CleanupInput struct {
	RunID uuid.UUID `json:"runId"`
}

// CleanupWorkspace removes a run's local workspace.
func (a *Activities) CleanupWorkspace(ctx context.Context, input CleanupInput) error {
	return a.workspace(input.RunID).Cleanup()
}

// targetDurationFor rounds the longest observed segment up to whole seconds
// so EXT-X-TARGETDURATION always covers every segment.
func targetDurationFor(durations []float64, configured int) int {
	target := configured
	for _, d := range durations {
		if ceil := int(math.Ceil(d)); ceil > target {
			target = ceil
		}
	}
	return target
}

func startPeriodicHeartbeat(ctx context.Context, interval time.Duration, details interface{}) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				activity.RecordHeartbeat(ctx, details)
			}
		}
	}()
	return func() { close(done) }
}
