package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stratovisor/stratovisor/internal/domain"
	"github.com/stratovisor/stratovisor/internal/rulestore"
)

// Ensure RecommendationRepository implements rulestore.RecommendationStore
var _ rulestore.RecommendationStore = (*RecommendationRepository)(nil)

// RecommendationRepository is an in-memory implementation of the
// recommendation store.
type RecommendationRepository struct {
	mu   sync.RWMutex
	data map[string]*domain.RelocationRecommendation
}

// NewRecommendationRepository creates a new in-memory recommendation repository.
func NewRecommendationRepository() *RecommendationRepository {
	return &RecommendationRepository{
		data: make(map[string]*domain.RelocationRecommendation),
	}
}

// Create stores a new recommendation.
func (r *RecommendationRepository) Create(ctx context.Context, rec *domain.RelocationRecommendation) (*domain.RelocationRecommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Status == "" {
		rec.Status = domain.RecommendationPending
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	stored := cloneRecommendation(rec)
	r.data[stored.ID] = stored

	return cloneRecommendation(stored), nil
}

// Get retrieves a recommendation by ID.
func (r *RecommendationRepository) Get(ctx context.Context, id string) (*domain.RelocationRecommendation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.data[id]
	if !ok {
		return nil, domain.ErrNotFound
	}

	return cloneRecommendation(rec), nil
}

// List returns recommendations with the given status, newest first.
func (r *RecommendationRepository) List(ctx context.Context, status domain.RecommendationStatus, limit int) ([]*domain.RelocationRecommendation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.RelocationRecommendation
	for _, rec := range r.data {
		if rec.Status != status {
			continue
		}
		result = append(result, cloneRecommendation(rec))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Update updates a recommendation's lifecycle fields.
func (r *RecommendationRepository) Update(ctx context.Context, rec *domain.RelocationRecommendation) (*domain.RelocationRecommendation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.data[rec.ID]; !ok {
		return nil, domain.ErrNotFound
	}

	stored := cloneRecommendation(rec)
	r.data[rec.ID] = stored

	return cloneRecommendation(stored), nil
}

// DeleteOld removes recommendations created before the cutoff.
func (r *RecommendationRepository) DeleteOld(ctx context.Context, olderThan time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rec := range r.data {
		if rec.CreatedAt.Before(olderThan) {
			delete(r.data, id)
		}
	}

	return nil
}

// cloneRecommendation creates a deep copy of a RelocationRecommendation.
func cloneRecommendation(rec *domain.RelocationRecommendation) *domain.RelocationRecommendation {
	if rec == nil {
		return nil
	}

	clone := *rec
	if rec.AppliedAt != nil {
		t := *rec.AppliedAt
		clone.AppliedAt = &t
	}
	return &clone
}
