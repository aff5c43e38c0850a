package web

import (
	"io"
	"net/http"
	"time"

	"github.com/kingpromise/promeals/internal/domain"
	"github.com/kingpromise/promeals/internal/nutrition"
)

type mealListResponse struct {
	Meals []domain.SavedMeal `json:"meals"`
}

func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	meals := s.ledger.Meals()
	if meals == nil {
		meals = []domain.SavedMeal{}
	}
	s.writeJSON(w, http.StatusOK, mealListResponse{Meals: meals})
}

func (s *Server) handleGetMealImage(w http.ResponseWriter, r *http.Request) {
	meal, ok := s.ledger.MealByID(r.PathValue("id"))
	if !ok {
		http.Error(w, "meal not found", http.StatusNotFound)
		return
	}

	rc, mimeType, err := s.media.Get(r.Context(), meal.Image)
	if err != nil {
		http.Error(w, "image not found", http.StatusNotFound)
		return
	}
	defer func() {
		if err := rc.Close(); err != nil {
			s.logger.Error("failed to close image", "error", err)
		}
	}()

	w.Header().Set("Content-Type", mimeType)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Error("failed to write image", "error", err)
	}
}

type progressResponse struct {
	Date     string                             `json:"date"`
	Totals   domain.NutritionTotals             `json:"totals"`
	Goals    domain.NutritionGoals              `json:"goals"`
	Progress map[string]nutrition.MacroProgress `json:"progress"`
}

// handleGetProgress reports today's rollup against the goals. "Today" is the
// server's local calendar date, matching how meals were stamped.
func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	totals := nutrition.SumMealsOn(s.ledger.Meals(), now, time.Local)
	goals := s.ledger.Goals()

	s.writeJSON(w, http.StatusOK, progressResponse{
		Date:     now.Format("2006-01-02"),
		Totals:   totals,
		Goals:    goals,
		Progress: nutrition.Progress(totals, goals),
	})
}
