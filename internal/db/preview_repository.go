package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/streampack/vod/internal/domain"
)

// PreviewRepository handles preview frame persistence.
type PreviewRepository struct {
	db *DB
}

// NewPreviewRepository creates a new preview repository.
func NewPreviewRepository(db *DB) *PreviewRepository {
	return &PreviewRepository{db: db}
}

const previewColumns = `id, video_id, second, path, name, sprite, created_at`

// Create records a preview frame.
func (r *PreviewRepository) Create(ctx context.Context, preview *domain.Preview) error {
	query := `
		INSERT INTO previews (` + previewColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		preview.ID,
		preview.VideoID,
		preview.Second,
		preview.Path,
		preview.Name,
		preview.Sprite,
		preview.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create preview: %w", err)
	}

	return nil
}

// GetByID retrieves a preview by ID.
func (r *PreviewRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Preview, error) {
	query := `SELECT ` + previewColumns + ` FROM previews WHERE id = $1`
	return scanPreview(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByVideoSecond retrieves the preview frame for an exact second of a
// video, excluding sprite sheets.
func (r *PreviewRepository) GetByVideoSecond(ctx context.Context, videoID uuid.UUID, second int) (*domain.Preview, error) {
	query := `SELECT ` + previewColumns + ` FROM previews WHERE video_id = $1 AND second = $2 AND sprite = FALSE`
	return scanPreview(r.db.Pool.QueryRow(ctx, query, videoID, second))
}

// ListByVideo lists all preview frames of a video ordered by second.
func (r *PreviewRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Preview, error) {
	query := `SELECT ` + previewColumns + ` FROM previews WHERE video_id = $1 ORDER BY second ASC`

	rows, err := r.db.Pool.Query(ctx, query, videoID)
	if err != nil {
		return nil, fmt.Errorf("failed to query previews: %w", err)
	}
	defer rows.Close()

	var previews []*domain.Preview
	for rows.Next() {
		preview, err := scanPreview(rows)
		if err != nil {
			return nil, err
		}
		previews = append(previews, preview)
	}

	return previews, rows.Err()
}

// DeleteByVideo removes all preview rows of a video.
func (r *PreviewRepository) DeleteByVideo(ctx context.Context, videoID uuid.UUID) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM previews WHERE video_id = $1`, videoID); err != nil {
		return fmt.Errorf("failed to delete previews: %w", err)
	}
	return nil
}

func scanPreview(row pgx.Row) (*domain.Preview, error) {
	var preview domain.Preview
	err := row.Scan(
		&preview.ID,
		&preview.VideoID,
		&preview.Second,
		&preview.Path,
		&preview.Name,
		&preview.Sprite,
		&preview.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan preview: %w", err)
	}
	return &preview, nil
}
