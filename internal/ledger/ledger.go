// Package ledger owns the saved-meal collection and the goal configuration.
// The in-memory copy is the sole source of truth for reads; every mutation
// is mirrored write-through to the blob store. Storage trouble is recovered
// locally (empty list, default goals) and never interrupts the user.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kingpromise/promeals/internal/domain"
)

// Blob names match the original deployment's storage keys so an upgraded
// install keeps its history.
const (
	mealsBlob = "promeals_meals"
	goalsBlob = "promeals_goals"
)

// blobStore is the subset of store.BlobStore the ledger needs.
type blobStore interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
}

type Ledger struct {
	store  blobStore
	logger *slog.Logger

	mu    sync.Mutex
	meals []domain.SavedMeal
	goals domain.NutritionGoals
}

func New(store blobStore, logger *slog.Logger) *Ledger {
	return &Ledger{store: store, logger: logger, goals: domain.DefaultGoals()}
}

// Load reads both blobs from storage. Malformed or absent entries fall back
// to an empty meal list and default goals; it never fails.
func (l *Ledger) Load(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var meals []domain.SavedMeal
	if _, err := l.store.Get(ctx, mealsBlob, &meals); err != nil {
		l.logger.Warn("stored meals unreadable, starting empty", "error", err)
		meals = nil
	}
	l.meals = meals

	goals := domain.DefaultGoals()
	if _, err := l.store.Get(ctx, goalsBlob, &goals); err != nil {
		l.logger.Warn("stored goals unreadable, using defaults", "error", err)
		goals = domain.DefaultGoals()
	}
	l.goals = goals
}

// Append inserts meal at the front (iteration order is most-recent-first)
// and persists the full list.
func (l *Ledger) Append(ctx context.Context, meal domain.SavedMeal) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.meals = append([]domain.SavedMeal{meal}, l.meals...)
	if err := l.store.Set(ctx, mealsBlob, l.meals); err != nil {
		l.logger.Warn("failed to persist meals", "error", err)
	}
}

// AdjustGoal applies delta to the named goal field, clamping at zero, and
// persists the result. Unknown field names are rejected.
func (l *Ledger) AdjustGoal(ctx context.Context, field string, delta float64) (domain.NutritionGoals, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var target *float64
	switch field {
	case "calories":
		target = &l.goals.Calories
	case "protein":
		target = &l.goals.Protein
	case "carbs":
		target = &l.goals.Carbs
	case "fat":
		target = &l.goals.Fat
	default:
		return l.goals, fmt.Errorf("unknown goal field %q", field)
	}

	*target += delta
	if *target < 0 {
		*target = 0
	}

	if err := l.store.Set(ctx, goalsBlob, l.goals); err != nil {
		l.logger.Warn("failed to persist goals", "error", err)
	}
	return l.goals, nil
}

// Meals returns a copy of the saved meals, most recent first.
func (l *Ledger) Meals() []domain.SavedMeal {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]domain.SavedMeal, len(l.meals))
	copy(out, l.meals)
	return out
}

// MealByID looks up one saved meal.
func (l *Ledger) MealByID(id string) (domain.SavedMeal, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range l.meals {
		if m.ID == id {
			return m, true
		}
	}
	return domain.SavedMeal{}, false
}

func (l *Ledger) Goals() domain.NutritionGoals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.goals
}
