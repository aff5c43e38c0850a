// Package session drives one capture cycle: acquire an image, analyze it,
// and optionally save the result to the ledger. A single session runs at
// most one pipeline at a time.
package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lucsky/cuid"

	"github.com/kingpromise/promeals/internal/analyzer"
	"github.com/kingpromise/promeals/internal/camera"
	"github.com/kingpromise/promeals/internal/capture"
	"github.com/kingpromise/promeals/internal/domain"
	"github.com/kingpromise/promeals/internal/ledger"
	"github.com/kingpromise/promeals/internal/mediastore"
)

// State is the session's position in the capture cycle. ImageSelected and
// Saved are transient in the original flow (selection auto-advances into
// analysis, saving auto-returns to idle), so they never show up in a
// snapshot.
type State string

const (
	StateIdle         State = "idle"
	StateCameraActive State = "camera_active"
	StateAnalyzing    State = "analyzing"
	StateResultReady  State = "result_ready"
)

var (
	// ErrBusy rejects starting a new acquisition while a pipeline is active.
	ErrBusy = errors.New("a capture is already in progress")
	// ErrNoActiveCamera rejects capture/cancel without a live stream.
	ErrNoActiveCamera = errors.New("no active camera stream")
	// ErrNoResult rejects save/discard outside the result-ready state.
	ErrNoResult = errors.New("no analysis result to act on")
	// ErrCancelled reports that the camera was cancelled while its
	// negotiation or capture was still in flight.
	ErrCancelled = errors.New("camera cancelled")
)

type Session struct {
	source   *capture.Source
	analyzer analyzer.Client
	ledger   *ledger.Ledger
	media    mediastore.MediaStore
	logger   *slog.Logger

	// overridable for tests
	now   func() time.Time
	newID func() string

	mu     sync.Mutex
	state  State
	stream *capture.Stream
	img    *capture.Image
	result *domain.NutritionResult
}

func New(source *capture.Source, az analyzer.Client, led *ledger.Ledger, media mediastore.MediaStore, logger *slog.Logger) *Session {
	return &Session{
		source:   source,
		analyzer: az,
		ledger:   led,
		media:    media,
		logger:   logger,
		now:      time.Now,
		newID:    cuid.New,
		state:    StateIdle,
	}
}

// Snapshot is the externally visible session state.
type Snapshot struct {
	State    State                   `json:"state"`
	HasImage bool                    `json:"hasImage"`
	Result   *domain.NutritionResult `json:"result,omitempty"`
}

func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{State: s.state, HasImage: s.img != nil, Result: s.result}
}

// CurrentImage returns the in-flight image for preview rendering.
func (s *Session) CurrentImage() (data []byte, mimeType string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.img == nil {
		return nil, "", false
	}
	return s.img.Data, s.img.MimeType, true
}

// StartCamera transitions Idle -> CameraActive. While device negotiation is
// in flight the session already reads as camera-active so a second
// acquisition cannot start; on failure it falls back to Idle and the
// camera.UnavailableError is surfaced. A cancel landing mid-negotiation
// wins: the stream won afterwards is released, never attached.
func (s *Session) StartCamera(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrBusy
	}
	s.state = StateCameraActive
	s.mu.Unlock()

	stream, err := s.source.StartCamera(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.state == StateCameraActive {
			s.state = StateIdle
		}
		return err
	}
	if s.state != StateCameraActive {
		// Cancelled while negotiating; the device must not outlive the
		// session's camera phase.
		s.source.StopCamera(stream)
		return ErrCancelled
	}
	s.stream = stream
	return nil
}

// CancelCamera transitions CameraActive -> Idle, releasing the stream.
func (s *Session) CancelCamera() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateCameraActive {
		return ErrNoActiveCamera
	}
	s.source.StopCamera(s.stream)
	s.stream = nil
	s.state = StateIdle
	return nil
}

// CaptureFromCamera grabs the current frame and feeds it straight into
// analysis. A not-ready frame (camera.ErrNotReady) leaves the stream warm
// and the session camera-active; any successful capture stops the camera as
// part of the transition.
func (s *Session) CaptureFromCamera(ctx context.Context) (*domain.NutritionResult, error) {
	s.mu.Lock()
	if s.state != StateCameraActive || s.stream == nil {
		s.mu.Unlock()
		return nil, ErrNoActiveCamera
	}
	stream := s.stream
	s.mu.Unlock()

	img, err := s.source.Capture(ctx, stream)
	if err != nil {
		// Session stays camera-active; the user retries or cancels.
		return nil, err
	}

	s.mu.Lock()
	if s.state != StateCameraActive || s.stream != stream {
		// Cancelled while the frame was being read; the cancel already
		// released the stream and the session stays wherever it is.
		s.mu.Unlock()
		s.source.StopCamera(stream)
		return nil, ErrCancelled
	}
	s.source.StopCamera(stream)
	s.stream = nil
	s.img = img
	s.state = StateAnalyzing
	s.mu.Unlock()

	return s.analyze(ctx)
}

// SelectFile feeds an uploaded image straight into analysis. An unusable
// upload leaves the session idle with no transition.
func (s *Session) SelectFile(ctx context.Context, name string, r io.Reader) (*domain.NutritionResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	img, err := s.source.FromFile(name, r)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.img = img
	s.state = StateAnalyzing
	s.mu.Unlock()

	return s.analyze(ctx)
}

// analyze runs the network round-trip without holding the lock; the
// analyzing state blocks any overlapping acquisition meanwhile. Failure is
// terminal for the attempt: the image is discarded and the session returns
// to idle, so the user re-acquires before retrying.
func (s *Session) analyze(ctx context.Context) (*domain.NutritionResult, error) {
	s.mu.Lock()
	img := s.img
	s.mu.Unlock()

	outcome := s.analyzer.Analyze(ctx, img.Data, img.MimeType)

	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome.Status {
	case analyzer.StatusReady:
		s.result = outcome.Result
		s.state = StateResultReady
		s.logger.Info("analysis complete", "items", len(outcome.Result.Food))
		return outcome.Result, nil
	case analyzer.StatusPending:
		s.result = outcome.Result
		s.state = StateResultReady
		s.logger.Info("analyzer acknowledged asynchronously, serving placeholder result")
		return outcome.Result, nil
	default:
		s.img = nil
		s.result = nil
		s.state = StateIdle
		s.logger.Warn("analysis failed", "reason", outcome.Message)
		return nil, &analyzer.FailedError{Message: outcome.Message}
	}
}

// Save persists the current result as a meal tagged with mealType, then
// auto-returns to idle. If storing the image fails the session stays
// result-ready so the user can retry the save.
func (s *Session) Save(ctx context.Context, mealType domain.MealType) (*domain.SavedMeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResultReady {
		return nil, ErrNoResult
	}

	key, err := s.media.Save(ctx, "meal", s.img.MimeType, bytes.NewReader(s.img.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to store meal image: %w", err)
	}

	now := s.now()
	meal := domain.SavedMeal{
		ID:        s.newID(),
		Date:      now,
		Time:      now.Format("15:04"),
		Image:     key,
		Nutrition: *s.result,
		MealType:  mealType,
	}
	s.ledger.Append(ctx, meal)

	s.img = nil
	s.result = nil
	s.state = StateIdle
	s.logger.Info("meal saved", "id", meal.ID, "meal_type", string(mealType), "source", string(meal.Nutrition.Source))
	return &meal, nil
}

// Discard drops the current result and image without persisting anything.
func (s *Session) Discard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateResultReady {
		return ErrNoResult
	}
	s.img = nil
	s.result = nil
	s.state = StateIdle
	return nil
}

// Close releases any camera stream still held, for shutdown paths.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		s.source.StopCamera(s.stream)
		s.stream = nil
	}
	if s.state == StateCameraActive {
		s.state = StateIdle
	}
}

// IsNotReady reports whether err is the warming-up capture failure that
// leaves the camera session usable.
func IsNotReady(err error) bool { return errors.Is(err, camera.ErrNotReady) }
