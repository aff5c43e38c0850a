package web

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/kingpromise/promeals/internal/domain"
)

const maxUploadSize = 50 * 1024 * 1024 // 50 MB

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleGetSessionImage(w http.ResponseWriter, r *http.Request) {
	data, mimeType, ok := s.session.CurrentImage()
	if !ok {
		http.Error(w, "no image in flight", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", mimeType)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("failed to write preview", "error", err)
	}
}

// handleSelectImage accepts a multipart upload and runs it through analysis.
// Selection auto-advances into analysis; the response is the ready result.
func (s *Server) handleSelectImage(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "failed to parse form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "image file required", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			s.logger.Error("failed to close upload", "error", err)
		}
	}()

	result, err := s.session.SelectFile(r.Context(), header.Filename, file)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleStartCamera(w http.ResponseWriter, r *http.Request) {
	if err := s.session.StartCamera(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleCaptureFrame(w http.ResponseWriter, r *http.Request) {
	result, err := s.session.CaptureFromCamera(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCancelCamera(w http.ResponseWriter, r *http.Request) {
	if err := s.session.CancelCamera(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}

type saveMealRequest struct {
	MealType string `json:"mealType"`
}

func (s *Server) handleSaveMeal(w http.ResponseWriter, r *http.Request) {
	var req saveMealRequest
	// An empty body is fine; the meal type then defaults.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	mealType, err := domain.ParseMealType(req.MealType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	meal, err := s.session.Save(r.Context(), mealType)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, meal)
}

func (s *Server) handleDiscardResult(w http.ResponseWriter, r *http.Request) {
	if err := s.session.Discard(); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.session.Snapshot())
}
