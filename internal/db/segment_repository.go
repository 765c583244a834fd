package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/streampack/vod/internal/domain"
)

// SegmentRepository handles segment index persistence.
type SegmentRepository struct {
	db *DB
}

// NewSegmentRepository creates a new segment repository.
func NewSegmentRepository(db *DB) *SegmentRepository {
	return &SegmentRepository{db: db}
}

const segmentColumns = `id, rendition_id, subtitle_id, stream_id, sequence,
	duration, is_init, path, file_name, size, created_at`

// Create records a segment row.
func (r *SegmentRepository) Create(ctx context.Context, segment *domain.Segment) error {
	query := `
		INSERT INTO segments (` + segmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		segment.ID,
		segment.RenditionID,
		segment.SubtitleID,
		segment.StreamID,
		segment.Sequence,
		segment.Duration,
		segment.IsInit,
		segment.Path,
		segment.FileName,
		segment.Size,
		segment.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create segment: %w", err)
	}

	return nil
}

// CreateBatch records segment rows in a single transaction so a rendition's
// index never becomes visible half-written.
func (r *SegmentRepository) CreateBatch(ctx context.Context, segments []*domain.Segment) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO segments (` + segmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	for _, segment := range segments {
		if _, err := tx.Exec(ctx, query,
			segment.ID,
			segment.RenditionID,
			segment.SubtitleID,
			segment.StreamID,
			segment.Sequence,
			segment.Duration,
			segment.IsInit,
			segment.Path,
			segment.FileName,
			segment.Size,
			segment.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create segment: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a segment by ID.
func (r *SegmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE id = $1`
	return scanSegment(r.db.Pool.QueryRow(ctx, query, id))
}

// GetByName retrieves a rendition segment by its file name.
func (r *SegmentRepository) GetByName(ctx context.Context, renditionID uuid.UUID, fileName string) (*domain.Segment, error) {
	query := `SELECT ` + segmentColumns + ` FROM segments WHERE rendition_id = $1 AND file_name = $2`
	return scanSegment(r.db.Pool.QueryRow(ctx, query, renditionID, fileName))
}

// ListByRendition lists all segments of a rendition in playback order:
// init segments first, then media segments by sequence ascending.
func (r *SegmentRepository) ListByRendition(ctx context.Context, renditionID uuid.UUID) ([]*domain.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `
		FROM segments
		WHERE rendition_id = $1
		ORDER BY is_init DESC, sequence ASC
	`
	return r.querySegments(ctx, query, renditionID)
}

// ListByRenditionStream lists segments of one stream within a rendition in
// playback order.
func (r *SegmentRepository) ListByRenditionStream(ctx context.Context, renditionID uuid.UUID, streamID int) ([]*domain.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `
		FROM segments
		WHERE rendition_id = $1 AND stream_id = $2
		ORDER BY is_init DESC, sequence ASC
	`
	return r.querySegments(ctx, query, renditionID, streamID)
}

// ListBySubtitle lists segments of a subtitle track in playback order.
func (r *SegmentRepository) ListBySubtitle(ctx context.Context, subtitleID uuid.UUID) ([]*domain.Segment, error) {
	query := `
		SELECT ` + segmentColumns + `
		FROM segments
		WHERE subtitle_id = $1
		ORDER BY is_init DESC, sequence ASC
	`
	return r.querySegments(ctx, query, subtitleID)
}

// DeleteByRendition removes all segment rows of a rendition.
func (r *SegmentRepository) DeleteByRendition(ctx context.Context, renditionID uuid.UUID) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM segments WHERE rendition_id = $1`, renditionID); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

// DeleteBySubtitle removes all segment rows of a subtitle track.
func (r *SegmentRepository) DeleteBySubtitle(ctx context.Context, subtitleID uuid.UUID) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM segments WHERE subtitle_id = $1`, subtitleID); err != nil {
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

func (r *SegmentRepository) querySegments(ctx context.Context, query string, args ...any) ([]*domain.Segment, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query segments: %w", err)
	}
	defer rows.Close()

	var segments []*domain.Segment
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}

	return segments, rows.Err()
}

func scanSegment(row pgx.Row) (*domain.Segment, error) {
	var segment domain.Segment
	err := row.Scan(
		&segment.ID,
		&segment.RenditionID,
		&segment.SubtitleID,
		&segment.StreamID,
		&segment.Sequence,
		&segment.Duration,
		&segment.IsInit,
		&segment.Path,
		&segment.FileName,
		&segment.Size,
		&segment.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan segment: %w", err)
	}
	return &segment, nil
}
