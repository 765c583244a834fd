package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/streampack/vod/internal/domain"
)

// RenditionRepository handles rendition persistence.
type RenditionRepository struct {
	db *DB
}

// NewRenditionRepository creates a new rendition repository.
func NewRenditionRepository(db *DB) *RenditionRepository {
	return &RenditionRepository{db: db}
}

const renditionColumns = `id, video_id, profile_id, name, output, status, progress,
	width, height, video_bit_rate, audio_bit_rate, target_duration,
	metadata, path, failure_reason, dispatch_key, created_at, updated_at`

// CreateIfAbsent inserts a pending rendition keyed by its dispatch key. When
// a live rendition with the same key already exists the existing record is
// returned with created=false, collapsing concurrent dispatches for the same
// (video, profile, output) triple into one record. Failed renditions have
// their key retired by MarkFailed and never collide here, so a re-dispatch
// after failure creates a fresh record.
func (r *RenditionRepository) CreateIfAbsent(ctx context.Context, rendition *domain.Rendition) (*domain.Rendition, bool, error) {
	metadataJSON, err := json.Marshal(rendition.Metadata)
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		INSERT INTO renditions (` + renditionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (dispatch_key) DO NOTHING
	`

	// The holder of the key can fail (retiring the key) between our insert
	// conflict and the re-select. One retry covers that window.
	for attempt := 0; attempt < 2; attempt++ {
		result, err := r.db.Pool.Exec(ctx, query,
			rendition.ID,
			rendition.VideoID,
			rendition.ProfileID,
			rendition.Name,
			rendition.Output,
			rendition.Status,
			rendition.Progress,
			rendition.Width,
			rendition.Height,
			rendition.VideoBitRate,
			rendition.AudioBitRate,
			rendition.TargetDuration,
			metadataJSON,
			rendition.Path,
			rendition.FailureReason,
			rendition.DispatchKey,
			rendition.CreatedAt,
			rendition.UpdatedAt,
		)
		if err != nil {
			return nil, false, fmt.Errorf("failed to create rendition: %w", err)
		}

		if result.RowsAffected() == 0 {
			existing, err := r.getByDispatchKey(ctx, rendition.DispatchKey)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}

		return rendition, true, nil
	}

	return nil, false, fmt.Errorf("failed to create rendition: dispatch key contention")
}

// GetByID retrieves a rendition by ID.
func (r *RenditionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Rendition, error) {
	query := `SELECT ` + renditionColumns + ` FROM renditions WHERE id = $1`
	return scanRendition(r.db.Pool.QueryRow(ctx, query, id))
}

// GetReady retrieves a rendition by ID only if it is ready.
func (r *RenditionRepository) GetReady(ctx context.Context, id uuid.UUID) (*domain.Rendition, error) {
	query := `SELECT ` + renditionColumns + ` FROM renditions WHERE id = $1 AND status = $2`
	return scanRendition(r.db.Pool.QueryRow(ctx, query, id, domain.RenditionReady))
}

func (r *RenditionRepository) getByDispatchKey(ctx context.Context, key string) (*domain.Rendition, error) {
	query := `SELECT ` + renditionColumns + ` FROM renditions WHERE dispatch_key = $1`
	return scanRendition(r.db.Pool.QueryRow(ctx, query, key))
}

// ListByVideo lists all renditions of a video ordered by creation time
// ascending.
func (r *RenditionRepository) ListByVideo(ctx context.Context, videoID uuid.UUID) ([]*domain.Rendition, error) {
	query := `SELECT ` + renditionColumns + ` FROM renditions WHERE video_id = $1 ORDER BY created_at ASC`
	return r.queryRenditions(ctx, query, videoID)
}

// ListAll lists all renditions ordered by creation time ascending.
func (r *RenditionRepository) ListAll(ctx context.Context) ([]*domain.Rendition, error) {
	query := `SELECT ` + renditionColumns + ` FROM renditions ORDER BY created_at ASC`
	return r.queryRenditions(ctx, query)
}

// ListReadyByVideo lists ready renditions of a video. Ordering by creation
// time ascending is load-bearing: the first dispatched rendition is the
// first entry in the master manifest, which drives default track selection.
func (r *RenditionRepository) ListReadyByVideo(ctx context.Context, videoID uuid.UUID, output domain.OutputFormat) ([]*domain.Rendition, error) {
	query := `
		SELECT ` + renditionColumns + `
		FROM renditions
		WHERE video_id = $1 AND output = $2 AND status = $3
		ORDER BY created_at ASC
	`
	return r.queryRenditions(ctx, query, videoID, output, domain.RenditionReady)
}

// MarkReady transitions a rendition to ready and records the encoder's
// metadata. Idempotent: marking an already-ready rendition overwrites with
// the same observable result. Returns ErrNotFound when the rendition was
// deleted while the encode was in flight; callers treat that as a no-op.
func (r *RenditionRepository) MarkReady(ctx context.Context, id uuid.UUID, metadata domain.RenditionMetadata, width, height, videoBitRate, audioBitRate, targetDuration int) error {
	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	query := `
		UPDATE renditions SET
			status = $2,
			progress = 100,
			metadata = $3,
			width = $4,
			height = $5,
			video_bit_rate = $6,
			audio_bit_rate = $7,
			target_duration = $8,
			failure_reason = NULL,
			updated_at = $9
		WHERE id = $1 AND status IN ($10, $11)
	`

	result, err := r.db.Pool.Exec(ctx, query,
		id,
		domain.RenditionReady,
		metadataJSON,
		width,
		height,
		videoBitRate,
		audioBitRate,
		targetDuration,
		time.Now().UTC(),
		domain.RenditionPending,
		domain.RenditionReady,
	)
	if err != nil {
		return fmt.Errorf("failed to mark rendition ready: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// MarkFailed transitions a pending rendition to failed. Terminal: a failed
// rendition is superseded by a new record, never resurrected. The dispatch
// key is retired (suffixed with the record id) so the failed record stops
// occupying the (video, profile, output) slot and a re-dispatch inserts
// fresh instead of colliding with it.
func (r *RenditionRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE renditions SET
			status = $2,
			failure_reason = $3,
			updated_at = $4,
			dispatch_key = dispatch_key || ':' || id::text
		WHERE id = $1 AND status = $5
	`

	result, err := r.db.Pool.Exec(ctx, query, id, domain.RenditionFailed, reason, time.Now().UTC(), domain.RenditionPending)
	if err != nil {
		return fmt.Errorf("failed to mark rendition failed: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// UpdateProgress updates encode progress.
func (r *RenditionRepository) UpdateProgress(ctx context.Context, id uuid.UUID, progress int) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE renditions SET progress = $2 WHERE id = $1`, id, progress)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", err)
	}
	return nil
}

// Delete removes a rendition record. Segment rows and stored media are
// cleaned up by the caller.
func (r *RenditionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Pool.Exec(ctx, `DELETE FROM renditions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete rendition: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RenditionRepository) queryRenditions(ctx context.Context, query string, args ...any) ([]*domain.Rendition, error) {
	rows, err := r.db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query renditions: %w", err)
	}
	defer rows.Close()

	var renditions []*domain.Rendition
	for rows.Next() {
		rendition, err := scanRendition(rows)
		if err != nil {
			return nil, err
		}
		renditions = append(renditions, rendition)
	}

	return renditions, rows.Err()
}

func scanRendition(row pgx.Row) (*domain.Rendition, error) {
	var rendition domain.Rendition
	var metadataJSON []byte

	err := row.Scan(
		&rendition.ID,
		&rendition.VideoID,
		&rendition.ProfileID,
		&rendition.Name,
		&rendition.Output,
		&rendition.Status,
		&rendition.Progress,
		&rendition.Width,
		&rendition.Height,
		&rendition.VideoBitRate,
		&rendition.AudioBitRate,
		&rendition.TargetDuration,
		&metadataJSON,
		&rendition.Path,
		&rendition.FailureReason,
		&rendition.DispatchKey,
		&rendition.CreatedAt,
		&rendition.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan rendition: %w", err)
	}

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &rendition.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &rendition, nil
}
