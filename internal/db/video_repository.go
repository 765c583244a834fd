package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/streampack/vod/internal/domain"
)

// VideoRepository handles video persistence.
type VideoRepository struct {
	db *DB
}

// NewVideoRepository creates a new video repository.
func NewVideoRepository(db *DB) *VideoRepository {
	return &VideoRepository{db: db}
}

const videoColumns = `id, bucket_id, file_id, size, duration, width, height,
	video_codec, video_bit_rate, video_frame_rate,
	audio_codec, audio_bit_rate, audio_sample_rate,
	preview_id, created_at, updated_at`

// Create creates a new video.
func (r *VideoRepository) Create(ctx context.Context, video *domain.Video) error {
	query := `
		INSERT INTO videos (` + videoColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		video.ID,
		video.BucketID,
		video.FileID,
		video.Size,
		video.Duration,
		video.Width,
		video.Height,
		video.VideoCodec,
		video.VideoBitRate,
		video.VideoFrameRate,
		video.AudioCodec,
		video.AudioBitRate,
		video.AudioSampleRate,
		video.PreviewID,
		video.CreatedAt,
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create video: %w", err)
	}

	return nil
}

// GetByID retrieves a video by ID.
func (r *VideoRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos WHERE id = $1`
	return scanVideo(r.db.Pool.QueryRow(ctx, query, id))
}

// List lists videos ordered by creation time descending.
func (r *VideoRepository) List(ctx context.Context, limit, offset int) ([]*domain.Video, error) {
	query := `SELECT ` + videoColumns + ` FROM videos ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list videos: %w", err)
	}
	defer rows.Close()

	var videos []*domain.Video
	for rows.Next() {
		video, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, video)
	}

	return videos, rows.Err()
}

// Count counts all videos.
func (r *VideoRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM videos`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count videos: %w", err)
	}
	return count, nil
}

// Update updates a video.
func (r *VideoRepository) Update(ctx context.Context, video *domain.Video) error {
	query := `
		UPDATE videos SET
			bucket_id = $2,
			file_id = $3,
			size = $4,
			duration = $5,
			width = $6,
			height = $7,
			video_codec = $8,
			video_bit_rate = $9,
			video_frame_rate = $10,
			audio_codec = $11,
			audio_bit_rate = $12,
			audio_sample_rate = $13,
			preview_id = $14,
			updated_at = $15
		WHERE id = $1
	`

	result, err := r.db.Pool.Exec(ctx, query,
		video.ID,
		video.BucketID,
		video.FileID,
		video.Size,
		video.Duration,
		video.Width,
		video.Height,
		video.VideoCodec,
		video.VideoBitRate,
		video.VideoFrameRate,
		video.AudioCodec,
		video.AudioBitRate,
		video.AudioSampleRate,
		video.PreviewID,
		video.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update video: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a video record. Cascading cleanup of renditions, subtitles,
// previews and stored assets is driven by the caller.
func (r *VideoRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM videos WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete video: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanVideo(row pgx.Row) (*domain.Video, error) {
	var video domain.Video
	err := row.Scan(
		&video.ID,
		&video.BucketID,
		&video.FileID,
		&video.Size,
		&video.Duration,
		&video.Width,
		&video.Height,
		&video.VideoCodec,
		&video.VideoBitRate,
		&video.VideoFrameRate,
		&video.AudioCodec,
		&video.AudioBitRate,
		&video.AudioSampleRate,
		&video.PreviewID,
		&video.CreatedAt,
		&video.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan video: %w", err)
	}
	return &video, nil
}
