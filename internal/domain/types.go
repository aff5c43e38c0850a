package domain

import (
	"fmt"
	"time"
)

// FoodItem is a single recognized food with its estimated macros. Items are
// produced by an analyzer backend (or the placeholder result) and are never
// mutated after creation.
type FoodItem struct {
	Name     string  `json:"name"`
	Quantity string  `json:"quantity"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// NutritionTotals is the element-wise sum of a food list's macros.
type NutritionTotals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// Source records where a NutritionResult came from. Placeholder results are
// returned when the recognizer only acknowledged the request asynchronously;
// they are demonstration data, not a real analysis, and stay tagged as such
// all the way into the ledger.
type Source string

const (
	SourceAnalysis    Source = "analysis"
	SourcePlaceholder Source = "placeholder"
)

// NutritionResult is the unit produced by one analysis cycle.
type NutritionResult struct {
	Food   []FoodItem      `json:"food"`
	Total  NutritionTotals `json:"total"`
	Source Source          `json:"source"`
}

type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// ParseMealType validates a user-supplied meal type tag. An empty string
// defaults to lunch, matching the analyzer view's initial selection.
func ParseMealType(s string) (MealType, error) {
	switch MealType(s) {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return MealType(s), nil
	case "":
		return MealLunch, nil
	}
	return "", fmt.Errorf("invalid meal type %q", s)
}

// SavedMeal is one persisted analysis. Created exactly once at save time and
// immutable afterwards; Image holds the media storage key of the captured
// photo.
type SavedMeal struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	Time      string          `json:"time"`
	Image     string          `json:"image"`
	Nutrition NutritionResult `json:"nutrition"`
	MealType  MealType        `json:"mealType"`
}

// NutritionGoals are the user's daily macro targets. Fields never go below
// zero; adjustments clamp there.
type NutritionGoals struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

func DefaultGoals() NutritionGoals {
	return NutritionGoals{Calories: 2000, Protein: 150, Carbs: 250, Fat: 65}
}
