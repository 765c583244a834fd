package activities

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/db"
	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/ffmpeg"
	"github.com/streampack/vod/internal/storage/s3"
)

// ProbeVideoInput holds input for source probing
type ProbeVideoInput struct {
	VideoID uuid.UUID `json:"videoId"`
}

// ProbeVideo analyzes the downloaded source and stamps the probe summary
// onto the video record.
func (a *Activities) ProbeVideo(ctx context.Context, input ProbeVideoInput) error {
	logger := a.logger.With(zap.String("videoId", input.VideoID.String()), zap.String("activity", "ProbeVideo"))

	video, err := a.videoRepo.GetByID(ctx, input.VideoID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Video deleted before probe, skipping")
			return nil
		}
		return fmt.Errorf("failed to load video: %w", err)
	}

	ws := a.workspace(input.VideoID)
	info, err := a.prober.Probe(ctx, ws.InputPath(sourceFileName))
	if err != nil {
		a.metrics.IncrementStageFailures("probe", "ffprobe")
		return fmt.Errorf("failed to probe source: %w", err)
	}

	video.Duration = &info.Duration
	video.Width = &info.Width
	video.Height = &info.Height
	if info.VideoCodec != "" {
		video.VideoCodec = &info.VideoCodec
	}
	if info.VideoBitRate > 0 {
		video.VideoBitRate = &info.VideoBitRate
	}
	if info.FrameRate > 0 {
		video.VideoFrameRate = &info.FrameRate
	}
	if info.AudioCodec != "" {
		video.AudioCodec = &info.AudioCodec
	}
	if info.AudioBitRate > 0 {
		video.AudioBitRate = &info.AudioBitRate
	}
	if info.AudioSampleRate > 0 {
		video.AudioSampleRate = &info.AudioSampleRate
	}

	if err := a.videoRepo.Update(ctx, video); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Video deleted during probe, skipping")
			return nil
		}
		return fmt.Errorf("failed to store probe summary: %w", err)
	}

	logger.Info("Source probed",
		zap.Float64("duration", info.Duration),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height))
	return nil
}

// GenerateTimelineInput holds input for timeline generation
type GenerateTimelineInput struct {
	VideoID uuid.UUID `json:"videoId"`
}

// GenerateTimelineOutput holds timeline generation results
type GenerateTimelineOutput struct {
	SpriteCount int `json:"spriteCount"`
}

// GenerateTimeline extracts one frame per interval, tiles them into sprite
// sheets and publishes the sheets with the timeline cue file that maps
// seconds to sheet regions.
func (a *Activities) GenerateTimeline(ctx context.Context, input GenerateTimelineInput) (*GenerateTimelineOutput, error) {
	logger := a.logger.With(zap.String("videoId", input.VideoID.String()), zap.String("activity", "GenerateTimeline"))
	startTime := time.Now()
	cfg := a.config.Timeline

	ws := a.workspace(input.VideoID)
	inputPath := ws.InputPath(sourceFileName)

	a.metrics.IncrementFFmpegProcesses()
	args := a.builder.BuildTimelineFrames(inputPath, cfg.IntervalSec, cfg.FrameWidth, cfg.FrameHeight, ws.FramePattern())
	err := a.runner.Run(ctx, args, func(p ffmpeg.Progress) {
		activity.RecordHeartbeat(ctx, p.OutTime.Seconds())
	})
	a.metrics.DecrementFFmpegProcesses()
	if err != nil {
		a.metrics.IncrementStageFailures("timeline", "ffmpeg")
		return nil, fmt.Errorf("frame extraction failed: %w", err)
	}

	frameCount := countFiles(ws.Paths().Frames, "frame_")
	if frameCount == 0 {
		return nil, fmt.Errorf("no timeline frames extracted")
	}

	columns := cfg.SpriteColumns
	rows := columns
	framesPerSprite := columns * rows
	spriteCount := (frameCount + framesPerSprite - 1) / framesPerSprite

	tileArgs := a.builder.BuildSpriteTile(
		ws.FramePattern(),
		columns, rows,
		filepath.Join(ws.Paths().Sprites, "sprite_%03d.jpg"),
	)
	if err := a.runner.Run(ctx, tileArgs, nil); err != nil {
		a.metrics.IncrementStageFailures("timeline", "ffmpeg")
		return nil, fmt.Errorf("sprite tiling failed: %w", err)
	}

	vttPath := filepath.Join(ws.Paths().Sprites, "timeline.vtt")
	if err := generateTimelineVTT(vttPath, frameCount, spriteCount, float64(cfg.IntervalSec), cfg.FrameWidth, cfg.FrameHeight, columns, rows); err != nil {
		return nil, fmt.Errorf("failed to write timeline cues: %w", err)
	}

	timelinePrefix := input.VideoID.String() + "/timeline"
	uploaded, err := a.uploader.UploadDirectory(ctx, ws.Paths().Sprites, a.s3Client.GetDefaultBucket(), timelinePrefix, func(p s3.UploadProgress) {
		activity.RecordHeartbeat(ctx, p)
	})
	if err != nil {
		a.metrics.IncrementStageFailures("timeline", "upload")
		return nil, fmt.Errorf("failed to upload timeline: %w", err)
	}

	now := time.Now().UTC()
	for i := 1; i <= spriteCount; i++ {
		sprite := &domain.Preview{
			ID:        uuid.New(),
			VideoID:   input.VideoID,
			Second:    (i - 1) * framesPerSprite * cfg.IntervalSec,
			Path:      timelinePrefix + "/",
			Name:      fmt.Sprintf("sprite_%03d.jpg", i),
			Sprite:    true,
			CreatedAt: now,
		}
		if err := a.previewRepo.Create(ctx, sprite); err != nil {
			return nil, fmt.Errorf("failed to record sprite sheet: %w", err)
		}
	}

	a.metrics.RecordStageDuration("timeline", time.Since(startTime).Seconds())
	logger.Info("Timeline published",
		zap.Int("frames", frameCount),
		zap.Int("sprites", spriteCount),
		zap.Int("files", len(uploaded)))

	return &GenerateTimelineOutput{SpriteCount: spriteCount}, nil
}

// ExtractPreviewInput holds input for preview frame extraction
type ExtractPreviewInput struct {
	PreviewID uuid.UUID `json:"previewId"`
	VideoID   uuid.UUID `json:"videoId"`
	Second    int       `json:"second"`
}

// ExtractPreviewFrame grabs a single frame at a second offset and publishes
// it. The preview record is created only after the image is stored, so a
// listed preview always has bytes behind it.
func (a *Activities) ExtractPreviewFrame(ctx context.Context, input ExtractPreviewInput) error {
	logger := a.logger.With(zap.String("previewId", input.PreviewID.String()), zap.String("activity", "ExtractPreviewFrame"))
	startTime := time.Now()

	ws := a.workspace(input.PreviewID)
	framePath := ws.OutputPath("preview.jpg")

	args := a.builder.BuildFrameExtract(ws.InputPath(sourceFileName), float64(input.Second), framePath)
	if err := a.runner.Run(ctx, args, nil); err != nil {
		a.metrics.IncrementStageFailures("preview", "ffmpeg")
		return fmt.Errorf("frame extraction failed: %w", err)
	}

	data, err := os.ReadFile(framePath)
	if err != nil {
		return fmt.Errorf("failed to read extracted frame: %w", err)
	}

	preview := &domain.Preview{
		ID:        input.PreviewID,
		VideoID:   input.VideoID,
		Second:    input.Second,
		Path:      input.VideoID.String() + "/previews/",
		Name:      input.PreviewID.String() + ".jpg",
		Sprite:    false,
		CreatedAt: time.Now().UTC(),
	}

	if err := a.s3Client.Put(ctx, preview.StorageKey(), data); err != nil {
		a.metrics.IncrementStageFailures("preview", "storage")
		return fmt.Errorf("failed to store preview image: %w", err)
	}

	if err := a.previewRepo.Create(ctx, preview); err != nil {
		return fmt.Errorf("failed to record preview: %w", err)
	}

	if err := ws.Cleanup(); err != nil {
		logger.Warn("Failed to clean workspace", zap.Error(err))
	}

	a.metrics.RecordStageDuration("preview", time.Since(startTime).Seconds())
	logger.Info("Preview published", zap.Int("second", input.Second), zap.Int("bytes", len(data)))
	return nil
}

func countFiles(dir, prefix string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	count := 0
	for _, e := range entries {
		if !e.IsDir() && len(e.Name()) > len(prefix) && e.Name()[:len(prefix)] == prefix {
			count++
		}
	}
	return count
}

// generateTimelineVTT writes the cue file mapping playback seconds to
// sprite sheet regions via #xywh media fragments.
func generateTimelineVTT(vttPath string, frameCount, spriteCount int, interval float64, width, height, columns, rows int) error {
	file, err := os.Create(vttPath)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	writer.WriteString("WEBVTT\n\n")

	framesPerSprite := columns * rows
	frame := 0
	for sprite := 1; sprite <= spriteCount && frame < frameCount; sprite++ {
		for y := 0; y < rows && frame < frameCount; y++ {
			for x := 0; x < columns && frame < frameCount; x++ {
				start := time.Duration(float64(frame) * interval * float64(time.Second))
				end := time.Duration(float64(frame+1) * interval * float64(time.Second))

				fmt.Fprintf(writer, "%s --> %s\n", formatVTTTimestamp(start), formatVTTTimestamp(end))
				fmt.Fprintf(writer, "sprite_%03d.jpg#xywh=%d,%d,%d,%d\n\n",
					sprite, x*width, y*height, width, height)

				frame++
				if frame >= sprite*framesPerSprite {
					break
				}
			}
			if frame >= sprite*framesPerSprite {
				break
			}
		}
	}

	return writer.Flush()
}
