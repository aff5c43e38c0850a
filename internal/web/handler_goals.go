package web

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleGetGoals(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.ledger.Goals())
}

type adjustGoalRequest struct {
	Field string  `json:"field"`
	Delta float64 `json:"delta"`
}

// handleAdjustGoal applies a signed delta to one goal field. Decrements
// clamp at zero; the full updated goals object is returned.
func (s *Server) handleAdjustGoal(w http.ResponseWriter, r *http.Request) {
	var req adjustGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	goals, err := s.ledger.AdjustGoal(r.Context(), req.Field, req.Delta)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.writeJSON(w, http.StatusOK, goals)
}
