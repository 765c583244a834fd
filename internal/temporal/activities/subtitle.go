package activities

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/streampack/vod/internal/db"
	"github.com/streampack/vod/internal/domain"
	"github.com/streampack/vod/internal/storage/s3"
)

const flatSubtitleFileName = "subtitle.vtt"

// ProcessSubtitleInput holds input for subtitle processing
type ProcessSubtitleInput struct {
	SubtitleID uuid.UUID `json:"subtitleId"`
}

// ProcessSubtitleOutput holds subtitle processing results
type ProcessSubtitleOutput struct {
	SegmentCount int `json:"segmentCount"`
}

// ProcessSubtitle validates the downloaded VTT source, cuts it into timed
// segments for HLS, publishes segments plus the flat track for DASH and
// marks the subtitle ready.
func (a *Activities) ProcessSubtitle(ctx context.Context, input ProcessSubtitleInput) (*ProcessSubtitleOutput, error) {
	logger := a.logger.With(zap.String("subtitleId", input.SubtitleID.String()), zap.String("activity", "ProcessSubtitle"))
	startTime := time.Now()

	subtitle, err := a.subtitleRepo.GetByID(ctx, input.SubtitleID)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Subtitle deleted before processing, skipping")
			return &ProcessSubtitleOutput{}, nil
		}
		return nil, fmt.Errorf("failed to load subtitle: %w", err)
	}

	ws := a.workspace(input.SubtitleID)
	content, err := os.ReadFile(ws.InputPath(sourceFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to read subtitle source: %w", err)
	}

	cues, err := parseVTT(string(content))
	if err != nil {
		a.metrics.IncrementStageFailures("subtitle", "parse")
		return nil, fmt.Errorf("invalid subtitle source: %w", err)
	}

	targetDuration := a.config.Segments.TargetDurationSec
	files := segmentSubtitleCues(cues, time.Duration(targetDuration)*time.Second)

	for _, f := range files {
		if err := os.WriteFile(ws.SubtitlePath(f.fileName), []byte(f.content), 0644); err != nil {
			return nil, fmt.Errorf("failed to write subtitle segment: %w", err)
		}
	}
	if err := os.WriteFile(ws.SubtitlePath(flatSubtitleFileName), content, 0644); err != nil {
		return nil, fmt.Errorf("failed to write flat subtitle: %w", err)
	}

	storagePath := subtitle.Path + "/" + subtitle.ID.String()
	uploaded, err := a.uploader.UploadDirectory(ctx, ws.Paths().Subtitles, a.s3Client.GetDefaultBucket(), storagePath, func(p s3.UploadProgress) {
		activity.RecordHeartbeat(ctx, p)
	})
	if err != nil {
		a.metrics.IncrementStageFailures("subtitle", "upload")
		return nil, fmt.Errorf("failed to upload subtitle track: %w", err)
	}

	sizes := make(map[string]int64, len(uploaded))
	for _, f := range uploaded {
		sizes[f.RelPath] = f.Size
	}

	segments := make([]*domain.Segment, 0, len(files))
	for i, f := range files {
		segments = append(segments, domain.NewSubtitleSegment(
			subtitle.ID, i, f.duration.Seconds(),
			storagePath, f.fileName, sizes[f.fileName],
		))
	}
	if err := a.segmentRepo.CreateBatch(ctx, segments); err != nil {
		return nil, fmt.Errorf("failed to record subtitle segments: %w", err)
	}

	if err := a.subtitleRepo.MarkReady(ctx, subtitle.ID, targetDuration); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Subtitle deleted during processing, leaving store cleanup to cascade")
			return &ProcessSubtitleOutput{}, nil
		}
		return nil, fmt.Errorf("failed to mark subtitle ready: %w", err)
	}

	a.metrics.RecordStageDuration("subtitle", time.Since(startTime).Seconds())
	logger.Info("Subtitle published",
		zap.Int("cues", len(cues)),
		zap.Int("segments", len(segments)))

	return &ProcessSubtitleOutput{SegmentCount: len(segments)}, nil
}

// FinalizeSubtitleInput holds input for subtitle finalization
type FinalizeSubtitleInput struct {
	SubtitleID uuid.UUID `json:"subtitleId"`
	Error      string    `json:"error,omitempty"`
}

// FinalizeSubtitle marks a failed track and removes the workspace.
func (a *Activities) FinalizeSubtitle(ctx context.Context, input FinalizeSubtitleInput) error {
	logger := a.logger.With(zap.String("subtitleId", input.SubtitleID.String()), zap.String("activity", "FinalizeSubtitle"))

	if input.Error != "" {
		err := a.subtitleRepo.MarkFailed(ctx, input.SubtitleID)
		if err != nil && !errors.Is(err, db.ErrNotFound) {
			return fmt.Errorf("failed to mark subtitle failed: %w", err)
		}
		if errors.Is(err, db.ErrNotFound) {
			logger.Warn("Subtitle gone or already terminal, nothing to mark")
		}
	}

	if err := a.workspace(input.SubtitleID).Cleanup(); err != nil {
		logger.Warn("Failed to clean workspace", zap.Error(err))
	}
	return nil
}

// vttCue is one cue block of a VTT file: optional identifier, timing line
// and payload, kept verbatim apart from the parsed timing.
type vttCue struct {
	start time.Duration
	end   time.Duration
	block string
}

// parseVTT validates the WEBVTT header and extracts timed cues. Non-cue
// blocks (NOTE, STYLE, REGION) are dropped; segmented output carries cues
// only.
func parseVTT(content string) ([]vttCue, error) {
	content = strings.TrimPrefix(content, "\uFEFF")
	normalized := strings.ReplaceAll(content, "\r\n", "\n")

	if !strings.HasPrefix(normalized, "WEBVTT") {
		return nil, fmt.Errorf("missing WEBVTT header")
	}

	var cues []vttCue
	for _, block := range strings.Split(normalized, "\n\n") {
		block = strings.Trim(block, "\n")
		if block == "" || strings.HasPrefix(block, "WEBVTT") ||
			strings.HasPrefix(block, "NOTE") || strings.HasPrefix(block, "STYLE") ||
			strings.HasPrefix(block, "REGION") {
			continue
		}

		lines := strings.Split(block, "\n")
		timingIdx := -1
		for i, line := range lines {
			if strings.Contains(line, "-->") {
				timingIdx = i
				break
			}
		}
		if timingIdx < 0 {
			continue
		}

		timingParts := strings.SplitN(lines[timingIdx], "-->", 2)
		start, err := parseVTTTimestamp(strings.TrimSpace(timingParts[0]))
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", len(cues)+1, err)
		}
		endField := strings.Fields(strings.TrimSpace(timingParts[1]))
		if len(endField) == 0 {
			return nil, fmt.Errorf("cue %d: missing end timestamp", len(cues)+1)
		}
		end, err := parseVTTTimestamp(endField[0])
		if err != nil {
			return nil, fmt.Errorf("cue %d: %w", len(cues)+1, err)
		}
		if end < start {
			return nil, fmt.Errorf("cue %d: end before start", len(cues)+1)
		}

		cues = append(cues, vttCue{start: start, end: end, block: block})
	}

	if len(cues) == 0 {
		return nil, fmt.Errorf("no cues found")
	}
	return cues, nil
}

type subtitleSegmentFile struct {
	fileName string
	duration time.Duration
	content  string
}

// segmentSubtitleCues cuts cues into fixed windows by cue start time. Cue
// timestamps stay absolute; players map them against the playlist offset.
// The last window's duration is trimmed to the final cue end.
func segmentSubtitleCues(cues []vttCue, window time.Duration) []subtitleSegmentFile {
	var lastEnd time.Duration
	buckets := make(map[int][]vttCue)
	maxBucket := 0
	for _, cue := range cues {
		idx := int(cue.start / window)
		buckets[idx] = append(buckets[idx], cue)
		if idx > maxBucket {
			maxBucket = idx
		}
		if cue.end > lastEnd {
			lastEnd = cue.end
		}
	}

	files := make([]subtitleSegmentFile, 0, maxBucket+1)
	for i := 0; i <= maxBucket; i++ {
		var b strings.Builder
		b.WriteString("WEBVTT\n")
		for _, cue := range buckets[i] {
			b.WriteString("\n")
			b.WriteString(cue.block)
			b.WriteString("\n")
		}

		duration := window
		if i == maxBucket {
			duration = lastEnd - time.Duration(i)*window
			if duration <= 0 {
				duration = window
			}
		}

		files = append(files, subtitleSegmentFile{
			fileName: fmt.Sprintf("subtitle_%03d.vtt", i),
			duration: duration,
			content:  b.String(),
		})
	}
	return files
}
