package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/stratovisor/stratovisor/internal/domain"
	"github.com/stratovisor/stratovisor/internal/rulestore"
)

// Ensure RuleRepository implements rulestore.Store
var _ rulestore.Store = (*RuleRepository)(nil)

// RuleRepository implements affinity-rule storage using PostgreSQL.
type RuleRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRuleRepository creates a new PostgreSQL rule repository.
func NewRuleRepository(db *DB, logger *zap.Logger) *RuleRepository {
	return &RuleRepository{
		db:     db,
		logger: logger.With(zap.String("repository", "affinity_rule")),
	}
}

// Create stores a new affinity rule after validating it.
func (r *RuleRepository) Create(ctx context.Context, rule *domain.AffinityRule) (*domain.AffinityRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	query := `
		INSERT INTO affinity_rules (id, name, kind, enabled, members, scope)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.pool.QueryRow(ctx, query,
		rule.ID,
		rule.Name,
		string(rule.Kind),
		rule.Enabled,
		rule.Members,
		rule.Scope,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)

	if err != nil {
		r.logger.Error("Failed to create affinity rule", zap.Error(err), zap.String("name", rule.Name))
		return nil, fmt.Errorf("failed to insert affinity rule: %w", err)
	}

	r.logger.Info("Created affinity rule",
		zap.String("id", rule.ID),
		zap.String("name", rule.Name),
		zap.String("kind", string(rule.Kind)),
	)
	return rule, nil
}

// Get retrieves an affinity rule by ID.
func (r *RuleRepository) Get(ctx context.Context, id string) (*domain.AffinityRule, error) {
	query := `
		SELECT id, name, kind, enabled, members, scope, created_at, updated_at
		FROM affinity_rules
		WHERE id = $1
	`

	rule := &domain.AffinityRule{}
	var kind string

	err := r.db.pool.QueryRow(ctx, query, id).Scan(
		&rule.ID,
		&rule.Name,
		&kind,
		&rule.Enabled,
		&rule.Members,
		&rule.Scope,
		&rule.CreatedAt,
		&rule.UpdatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affinity rule: %w", err)
	}

	rule.Kind = domain.RuleKind(kind)
	return rule, nil
}

// List returns affinity rules matching the filter.
func (r *RuleRepository) List(ctx context.Context, filter rulestore.RuleFilter) ([]*domain.AffinityRule, error) {
	query := `
		SELECT id, name, kind, enabled, members, scope, created_at, updated_at
		FROM affinity_rules
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if filter.Scope != "" {
		query += fmt.Sprintf(" AND scope = $%d", argNum)
		args = append(args, filter.Scope)
		argNum++
	}

	if filter.Kind != "" {
		query += fmt.Sprintf(" AND kind = $%d", argNum)
		args = append(args, string(filter.Kind))
		argNum++
	}

	if filter.EnabledOnly {
		query += " AND enabled = TRUE"
	}

	query += " ORDER BY name ASC"

	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list affinity rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.AffinityRule
	for rows.Next() {
		rule := &domain.AffinityRule{}
		var kind string

		err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&kind,
			&rule.Enabled,
			&rule.Members,
			&rule.Scope,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan affinity rule: %w", err)
		}

		rule.Kind = domain.RuleKind(kind)
		rules = append(rules, rule)
	}

	return rules, rows.Err()
}

// ListEnabled returns the enabled rules for a scope, loaded fresh per pass.
func (r *RuleRepository) ListEnabled(ctx context.Context, scope string) ([]*domain.AffinityRule, error) {
	return r.List(ctx, rulestore.RuleFilter{Scope: scope, EnabledOnly: true})
}

// Update updates an affinity rule after validating it.
func (r *RuleRepository) Update(ctx context.Context, rule *domain.AffinityRule) (*domain.AffinityRule, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	query := `
		UPDATE affinity_rules
		SET name = $2, kind = $3, enabled = $4, members = $5, scope = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.pool.QueryRow(ctx, query,
		rule.ID,
		rule.Name,
		string(rule.Kind),
		rule.Enabled,
		rule.Members,
		rule.Scope,
	).Scan(&rule.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update affinity rule: %w", err)
	}

	r.logger.Info("Updated affinity rule", zap.String("id", rule.ID))
	return rule, nil
}

// Delete removes an affinity rule.
func (r *RuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.pool.Exec(ctx, `DELETE FROM affinity_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete affinity rule: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	r.logger.Info("Deleted affinity rule", zap.String("id", id))
	return nil
}

// SetEnabled enables or disables an affinity rule.
func (r *RuleRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.pool.Exec(ctx,
		`UPDATE affinity_rules SET enabled = $2, updated_at = NOW() WHERE id = $1`, id, enabled)
	if err != nil {
		return fmt.Errorf("failed to set affinity rule enabled: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}

	r.logger.Info("Set affinity rule enabled", zap.String("id", id), zap.Bool("enabled", enabled))
	return nil
}
