package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/domain"
	"github.com/stratovisor/stratovisor/internal/rulestore"
)

// Ensure RecommendationRepository implements rulestore.RecommendationStore
var _ rulestore.RecommendationStore = (*RecommendationRepository)(nil)

// RecommendationRepository implements recommendation history storage using
// PostgreSQL.
type RecommendationRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRecommendationRepository creates a new PostgreSQL recommendation repository.
func NewRecommendationRepository(db *DB, logger *zap.Logger) *RecommendationRepository {
	return &RecommendationRepository{
		db:     db,
		logger: logger.With(zap.String("repository", "recommendation")),
	}
}

const recommendationColumns = `
	id, workload_id, workload_name, source_host_id, source_host_name,
	target_host_id, target_host_name, resource, improvement, priority,
	reason, status, created_at, applied_at, applied_by
`

// Create stores a new recommendation.
func (r *RecommendationRepository) Create(ctx context.Context, rec *domain.RelocationRecommendation) (*domain.RelocationRecommendation, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = domain.RecommendationPending
	}

	query := `
		INSERT INTO recommendations (
			id, workload_id, workload_name, source_host_id, source_host_name,
			target_host_id, target_host_name, resource, improvement, priority,
			reason, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := r.db.pool.QueryRow(ctx, query,
		rec.ID,
		rec.WorkloadID,
		rec.WorkloadName,
		rec.SourceHostID,
		rec.SourceHostName,
		rec.TargetHostID,
		rec.TargetHostName,
		string(rec.Resource),
		rec.Improvement,
		string(rec.Priority),
		rec.Reason,
		string(rec.Status),
	).Scan(&rec.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to insert recommendation: %w", err)
	}
	return rec, nil
}

// Get retrieves a recommendation by ID.
func (r *RecommendationRepository) Get(ctx context.Context, id string) (*domain.RelocationRecommendation, error) {
	query := `SELECT ` + recommendationColumns + ` FROM recommendations WHERE id = $1`

	rec, err := scanRecommendation(r.db.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recommendation: %w", err)
	}
	return rec, nil
}

// List returns recommendations with the given status, newest first.
func (r *RecommendationRepository) List(ctx context.Context, status domain.RecommendationStatus, limit int) ([]*domain.RelocationRecommendation, error) {
	query := `SELECT ` + recommendationColumns + `
		FROM recommendations
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.pool.Query(ctx, query, string(status), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recommendations: %w", err)
	}
	defer rows.Close()

	var recs []*domain.RelocationRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Update updates a recommendation's lifecycle fields.
func (r *RecommendationRepository) Update(ctx context.Context, rec *domain.RelocationRecommendation) (*domain.RelocationRecommendation, error) {
	query := `
		UPDATE recommendations
		SET status = $2, applied_at = $3, applied_by = $4
		WHERE id = $1
	`

	result, err := r.db.pool.Exec(ctx, query, rec.ID, string(rec.Status), rec.AppliedAt, rec.AppliedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to update recommendation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// DeleteOld removes recommendations created before the cutoff.
func (r *RecommendationRepository) DeleteOld(ctx context.Context, olderThan time.Time) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM recommendations WHERE created_at < $1`, olderThan)
	if err != nil {
		return fmt.Errorf("failed to delete old recommendations: %w", err)
	}
	if n := result.RowsAffected(); n > 0 {
		r.logger.Debug("Deleted old recommendations", zap.Int64("count", n))
	}
	return nil
}

// scanRecommendation scans one recommendation row.
func scanRecommendation(row pgx.Row) (*domain.RelocationRecommendation, error) {
	rec := &domain.RelocationRecommendation{}
	var resource, priority, status string

	err := row.Scan(
		&rec.ID,
		&rec.WorkloadID,
		&rec.WorkloadName,
		&rec.SourceHostID,
		&rec.SourceHostName,
		&rec.TargetHostID,
		&rec.TargetHostName,
		&resource,
		&rec.Improvement,
		&priority,
		&rec.Reason,
		&status,
		&rec.CreatedAt,
		&rec.AppliedAt,
		&rec.AppliedBy,
	)
	if err != nil {
		return nil, err
	}

	rec.Resource = domain.Resource(resource)
	rec.Priority = domain.PriorityTier(priority)
	rec.Status = domain.RecommendationStatus(status)
	return rec, nil
}
