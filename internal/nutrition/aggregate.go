// Package nutrition holds the pure aggregation arithmetic: food-list totals,
// calendar-day rollups, and goal percentages.
package nutrition

import (
	"math"
	"time"

	"github.com/kingpromise/promeals/internal/domain"
)

// SumItems returns the field-wise sum of the items' macros. An empty list
// yields all-zero totals. NaN, infinite, or negative values coming out of a
// malformed recognizer response count as zero.
func SumItems(items []domain.FoodItem) domain.NutritionTotals {
	var t domain.NutritionTotals
	for _, it := range items {
		t.Calories += sanitize(it.Calories)
		t.Protein += sanitize(it.Protein)
		t.Carbs += sanitize(it.Carbs)
		t.Fat += sanitize(it.Fat)
	}
	return t
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

// SumMealsOn sums the stored totals of meals whose creation instant falls on
// the same calendar day as day in loc. The filter is a local calendar date,
// not a rolling 24h window: a meal logged late yesterday is excluded even if
// it is only minutes old. No meals on the day is all-zero, not an error.
func SumMealsOn(meals []domain.SavedMeal, day time.Time, loc *time.Location) domain.NutritionTotals {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := day.In(loc).Date()

	var t domain.NutritionTotals
	for _, meal := range meals {
		my, mm, md := meal.Date.In(loc).Date()
		if my != y || mm != m || md != d {
			continue
		}
		t.Calories += meal.Nutrition.Total.Calories
		t.Protein += meal.Nutrition.Total.Protein
		t.Carbs += meal.Nutrition.Total.Carbs
		t.Fat += meal.Nutrition.Total.Fat
	}
	return t
}

// PercentOfGoal returns round(100*actual/goal), unclamped: eating past a
// goal reports more than 100. A zero goal has no defined percentage and
// reports 0 rather than dividing by zero.
func PercentOfGoal(actual, goal float64) int {
	if goal == 0 {
		return 0
	}
	return int(math.Round(100 * actual / goal))
}

// MacroProgress reports one macro's consumption against its goal. Percent is
// the unclamped percentage; BarPercent is the display width for a progress
// bar, held to [0, 100].
type MacroProgress struct {
	Consumed   float64 `json:"consumed"`
	Goal       float64 `json:"goal"`
	Percent    int     `json:"percent"`
	BarPercent int     `json:"barPercent"`
}

// Progress computes per-macro progress for a day's totals against the goals.
func Progress(totals domain.NutritionTotals, goals domain.NutritionGoals) map[string]MacroProgress {
	return map[string]MacroProgress{
		"calories": macroProgress(totals.Calories, goals.Calories),
		"protein":  macroProgress(totals.Protein, goals.Protein),
		"carbs":    macroProgress(totals.Carbs, goals.Carbs),
		"fat":      macroProgress(totals.Fat, goals.Fat),
	}
}

func macroProgress(consumed, goal float64) MacroProgress {
	p := PercentOfGoal(consumed, goal)
	bar := min(max(p, 0), 100)
	return MacroProgress{Consumed: consumed, Goal: goal, Percent: p, BarPercent: bar}
}
