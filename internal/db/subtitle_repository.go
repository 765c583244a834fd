package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/streampack/vod/internal/domain"
)

// SubtitleRepository handles subtitle persistence.
type SubtitleRepository struct {
	db *DB
}

// NewSubtitleRepository creates a new subtitle repository.
func NewSubtitleRepository(db *DB) *SubtitleRepository {
	return &SubtitleRepository{db: db}
}

const subtitleColumns = `id, video_id, bucket_id, file_id, name, code, is_default,
	status, target_duration, path, created_at, updated_at`

// Create creates a subtitle. When the new track is flagged default, sibling
// defaults are cleared in the same transaction so at most one default exists
// per video.
func (r *SubtitleRepository) Create(ctx context.Context, subtitle *domain.Subtitle) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if subtitle.Default {
		if _, err := tx.Exec(ctx,
			`UPDATE subtitles SET is_default = FALSE WHERE video_id = $1`,
			subtitle.VideoID,
		); err != nil {
			return fmt.Errorf("failed to clear default subtitles: %w", err)
		}
	}

	query := `
		INSERT INTO subtitles (` + subtitleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err = tx.Exec(ctx, query,
		subtitle.ID,
		subtitle.VideoID,
		subtitle.BucketID,
		subtitle.FileID,
		subtitle.Name,
		subtitle.Code,
		subtitle.Default,
		subtitle.Status,
		subtitle.TargetDuration,
		subtitle.Path,
		subtitle.CreatedAt,
		subtitle.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create subtitle: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a subtitle by ID.
func (r *SubtitleRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Subtitle, error) {
	query := `SELECT ` + subtitleColumns + ` FROM subtitles WHERE id = $1`
	return scanSubtitle(r.db.Pool.QueryRow(ctx, query, id))
}

// GetReady retrieves a subtitle by ID only if it is ready.
func (r *SubtitleRepository) GetReady(ctx context.Context, id uuid.UUID) (*domain.Subtitle, error) {
	query := `SELECT ` + subtitleColumns + ` FROM subtitles WHERE id = $1 AND status = $2`
	return scanSubtitle(r.db.Pool.QueryRow(ctx, query, id, domain.SubtitleReady))
}

// ListByVideo lists all subtitles of a video ordered by creation time
// ascending.
func (r *SubtitleRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Subtitle, error) {
	query := `SELECT ` + subtitleColumns + ` FROM subtitles WHERE video_id = $1 ORDER BY created_at ASC`
	return r.querySubtitles(ctx, query, videoID)
}

// ListReadyByVideo lists ready subtitles of a video in stable order.
func (r *SubtitleRepository) ListReadyByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Subtitle, error) {
	query := `
		SELECT ` + subtitleColumns + `
		FROM subtitles
		WHERE video_id = $1 AND status = $2
		ORDER BY created_at ASC
	`
	return r.querySubtitles(ctx, query, videoID, domain.SubtitleReady)
}

// Update replaces a subtitle's source file and display metadata, resetting
// it to pending for reprocessing. Default handling matches Create.
func (r *SubtitleRepository) Update(ctx context.Context, subtitle *domain.Subtitle) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if subtitle.Default {
		if _, err := tx.Exec(ctx,
			`UPDATE subtitles SET is_default = FALSE WHERE video_id = $1 AND id <> $2`,
			subtitle.VideoID, subtitle.ID,
		); err != nil {
			return fmt.Errorf("failed to clear default subtitles: %w", err)
		}
	}

	query := `
		UPDATE subtitles SET
			bucket_id = $2,
			file_id = $3,
			name = $4,
			code = $5,
			is_default = $6,
			status = $7,
			updated_at = $8
		WHERE id = $1
	`

	result, err := tx.Exec(ctx, query,
		subtitle.ID,
		subtitle.BucketID,
		subtitle.FileID,
		subtitle.Name,
		subtitle.Code,
		subtitle.Default,
		subtitle.Status,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update subtitle: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// MarkReady transitions a subtitle to ready. Same no-op semantics as
// renditions when the record was deleted mid-flight.
func (r *SubtitleRepository) MarkReady(ctx context.Context, id uuid.UUID, targetDuration int) error {
	query := `
		UPDATE subtitles SET
			status = $2,
			target_duration = $3,
			updated_at = $4
		WHERE id = $1 AND status IN ($5, $6)
	`

	result, err := r.db.Pool.Exec(ctx, query,
		id, domain.SubtitleReady, targetDuration, time.Now().UTC(),
		domain.SubtitlePending, domain.SubtitleReady,
	)
	if err != nil {
		return fmt.Errorf("failed to mark subtitle ready: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkFailed transitions a pending subtitle to failed.
func (r *SubtitleRepository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE subtitles SET status = $2, updated_at = $3 WHERE id = $1 AND status = $4`

	result, err := r.db.Pool.Exec(ctx, query, id, domain.SubtitleFailed, time.Now().UTC(), domain.SubtitlePending)
	if err != nil {
		return fmt.Errorf("failed to mark subtitle failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a subtitle record.
func (r *SubtitleRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM subtitles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subtitle: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SubtitleRepository) querySubtitles(ctx context.Context, query string, args ...any) ([]*domain.Subtitle, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subtitles: %w", err)
	}
	defer rows.Close()

	var subtitles []*domain.Subtitle
	for rows.Next() {
		subtitle, err := scanSubtitle(rows)
		if err != nil {
			return nil, err
		}
		subtitles = append(subtitles, subtitle)
	}

	return subtitles, rows.Err()
}

func scanSubtitle(row pgx.Row) (*domain.Subtitle, error) {
	var subtitle domain.Subtitle
	err := row.Scan(
		&subtitle.ID,
		&subtitle.VideoID,
		&subtitle.BucketID,
		&subtitle.FileID,
		&subtitle.Name,
		&subtitle.Code,
		&subtitle.Default,
		&subtitle.Status,
		&subtitle.TargetDuration,
		&subtitle.Path,
		&subtitle.CreatedAt,
		&subtitle.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan subtitle: %w", err)
	}
	return &subtitle, nil
}
