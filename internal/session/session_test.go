package session

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingpromise/promeals/internal/analyzer"
	"github.com/kingpromise/promeals/internal/camera"
	"github.com/kingpromise/promeals/internal/capture"
	"github.com/kingpromise/promeals/internal/db"
	"github.com/kingpromise/promeals/internal/domain"
	"github.com/kingpromise/promeals/internal/ledger"
	"github.com/kingpromise/promeals/internal/store"
)

// stubAnalyzer returns a scripted outcome.
type stubAnalyzer struct {
	outcome analyzer.Outcome
	calls   int
}

func (a *stubAnalyzer) Analyze(context.Context, []byte, string) analyzer.Outcome {
	a.calls++
	return a.outcome
}

func readyOutcome() analyzer.Outcome {
	return analyzer.Outcome{
		Status: analyzer.StatusReady,
		Result: &domain.NutritionResult{
			Food:   []domain.FoodItem{{Name: "Apple", Calories: 95, Protein: 0.5, Carbs: 25, Fat: 0.3}},
			Total:  domain.NutritionTotals{Calories: 95, Protein: 0.5, Carbs: 25, Fat: 0.3},
			Source: domain.SourceAnalysis,
		},
	}
}

// stubDevice yields the scripted frame sequence.
type stubDevice struct {
	frames []image.Image
	closes int
}

func (d *stubDevice) Frame(context.Context) (image.Image, error) {
	frame := d.frames[0]
	if len(d.frames) > 1 {
		d.frames = d.frames[1:]
	}
	return frame, nil
}

func (d *stubDevice) Facing() camera.Facing { return camera.FacingRear }
func (d *stubDevice) Close() error          { d.closes++; return nil }

type stubProvider struct {
	device  camera.Device
	openErr error
}

func (p *stubProvider) Probe(context.Context) error { return nil }

func (p *stubProvider) Open(context.Context, camera.Constraints) (camera.Device, error) {
	if p.openErr != nil {
		return nil, p.openErr
	}
	return p.device, nil
}

// blockingProvider parks Open until release is closed, holding the session
// in mid-negotiation.
type blockingProvider struct {
	release chan struct{}
	device  *stubDevice
}

func (p *blockingProvider) Probe(context.Context) error { return nil }

func (p *blockingProvider) Open(context.Context, camera.Constraints) (camera.Device, error) {
	<-p.release
	return p.device, nil
}

// blockingFrameDevice signals started on its first Frame call, then parks
// until release is closed.
type blockingFrameDevice struct {
	started chan struct{}
	release chan struct{}
	closes  int
}

func (d *blockingFrameDevice) Frame(context.Context) (image.Image, error) {
	close(d.started)
	<-d.release
	return image.NewRGBA(image.Rect(0, 0, 16, 16)), nil
}

func (d *blockingFrameDevice) Facing() camera.Facing { return camera.FacingRear }
func (d *blockingFrameDevice) Close() error          { d.closes++; return nil }

// memMedia is an in-memory media store.
type memMedia struct {
	saved map[string][]byte
	seq   int
}

func newMemMedia() *memMedia { return &memMedia{saved: make(map[string][]byte)} }

func (m *memMedia) Save(_ context.Context, prefix, _ string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.seq++
	key := prefix + "_" + string(rune('0'+m.seq)) + ".jpg"
	m.saved[key] = data
	return key, nil
}

func (m *memMedia) Get(_ context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := m.saved[key]
	if !ok {
		return nil, "", errors.New("not found")
	}
	return io.NopCloser(bytes.NewReader(data)), "image/jpeg", nil
}

func (m *memMedia) Delete(_ context.Context, key string) error {
	delete(m.saved, key)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	led := ledger.New(store.NewBlobStore(d), testLogger())
	led.Load(context.Background())
	return led
}

func newTestSession(t *testing.T, az analyzer.Client, provider camera.Provider) (*Session, *ledger.Ledger, *memMedia) {
	t.Helper()
	led := newTestLedger(t)
	media := newMemMedia()
	source := capture.NewSource(provider, testLogger())
	sess := New(source, az, led, media, testLogger())
	sess.now = func() time.Time { return time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC) }
	sess.newID = func() string { return "meal-test-id" }
	return sess, led, media
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 8, 8))))
	return buf.Bytes()
}

func TestSelectFile_HappyPathThroughSave(t *testing.T) {
	az := &stubAnalyzer{outcome: readyOutcome()}
	sess, led, media := newTestSession(t, az, &stubProvider{})
	ctx := context.Background()

	result, err := sess.SelectFile(ctx, "meal.png", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.Equal(t, 1, az.calls)
	assert.InDelta(t, 95, result.Total.Calories, 1e-9)
	assert.Equal(t, StateResultReady, sess.Snapshot().State)

	meal, err := sess.Save(ctx, domain.MealDinner)
	require.NoError(t, err)
	assert.Equal(t, "meal-test-id", meal.ID)
	assert.Equal(t, domain.MealDinner, meal.MealType)
	assert.Equal(t, "12:30", meal.Time)
	assert.Equal(t, domain.SourceAnalysis, meal.Nutrition.Source)

	// Saving auto-returns to idle with nothing in flight.
	snap := sess.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.HasImage)
	assert.Nil(t, snap.Result)

	meals := led.Meals()
	require.Len(t, meals, 1)
	assert.Equal(t, meal.ID, meals[0].ID)
	assert.Contains(t, media.saved, meal.Image)
}

func TestSelectFile_InvalidUploadNoTransition(t *testing.T) {
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{})

	_, err := sess.SelectFile(context.Background(), "x.txt", bytes.NewReader([]byte("plain text, not an image at all")))
	assert.ErrorIs(t, err, capture.ErrUnsupportedInput)
	assert.Equal(t, StateIdle, sess.Snapshot().State)
}

func TestAnalyzeFailure_ReturnsToIdleAndClearsImage(t *testing.T) {
	az := &stubAnalyzer{outcome: analyzer.Failedf("network down")}
	sess, led, _ := newTestSession(t, az, &stubProvider{})

	_, err := sess.SelectFile(context.Background(), "meal.png", bytes.NewReader(pngBytes(t)))
	var failed *analyzer.FailedError
	require.True(t, errors.As(err, &failed))

	snap := sess.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.HasImage)
	assert.Nil(t, snap.Result)
	assert.Empty(t, led.Meals())

	// The pipeline is free again for a fresh attempt.
	az.outcome = readyOutcome()
	_, err = sess.SelectFile(context.Background(), "meal.png", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
}

func TestPendingOutcome_SurfacesPlaceholder(t *testing.T) {
	az := &stubAnalyzer{outcome: analyzer.Outcome{Status: analyzer.StatusPending, Result: analyzer.PlaceholderResult()}}
	sess, led, _ := newTestSession(t, az, &stubProvider{})
	ctx := context.Background()

	result, err := sess.SelectFile(ctx, "meal.png", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)
	assert.Equal(t, domain.NutritionTotals{Calories: 343, Protein: 43.3, Carbs: 12.4, Fat: 13.4}, result.Total)

	meal, err := sess.Save(ctx, domain.MealLunch)
	require.NoError(t, err)
	// Provenance survives into the ledger.
	assert.Equal(t, domain.SourcePlaceholder, meal.Nutrition.Source)
	assert.Equal(t, domain.SourcePlaceholder, led.Meals()[0].Nutrition.Source)
}

func TestStartCamera_DeniedStaysIdle(t *testing.T) {
	provider := &stubProvider{openErr: camera.Unavailable(camera.ReasonPermissionDenied, errors.New("denied"))}
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, provider)

	err := sess.StartCamera(context.Background())
	var unavailable *camera.UnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, camera.ReasonPermissionDenied, unavailable.Reason)
	assert.Equal(t, StateIdle, sess.Snapshot().State)
}

func TestCaptureFlow(t *testing.T) {
	dev := &stubDevice{frames: []image.Image{image.NewRGBA(image.Rect(0, 0, 16, 16))}}
	sess, led, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{device: dev})
	ctx := context.Background()

	require.NoError(t, sess.StartCamera(ctx))
	assert.Equal(t, StateCameraActive, sess.Snapshot().State)

	result, err := sess.CaptureFromCamera(ctx)
	require.NoError(t, err)
	assert.NotNil(t, result)
	// Capture released the device as part of the transition.
	assert.Equal(t, 1, dev.closes)
	assert.Equal(t, StateResultReady, sess.Snapshot().State)

	_, err = sess.Save(ctx, domain.MealBreakfast)
	require.NoError(t, err)
	assert.Len(t, led.Meals(), 1)
}

func TestCapture_NotReadyStaysCameraActive(t *testing.T) {
	dev := &stubDevice{frames: []image.Image{
		image.NewRGBA(image.Rectangle{}),
		image.NewRGBA(image.Rect(0, 0, 16, 16)),
	}}
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{device: dev})
	ctx := context.Background()

	require.NoError(t, sess.StartCamera(ctx))

	_, err := sess.CaptureFromCamera(ctx)
	require.True(t, IsNotReady(err))
	assert.Equal(t, StateCameraActive, sess.Snapshot().State)
	assert.Zero(t, dev.closes)

	// Retrying on the warmed-up stream succeeds.
	_, err = sess.CaptureFromCamera(ctx)
	require.NoError(t, err)
}

func TestCancelCamera(t *testing.T) {
	dev := &stubDevice{frames: []image.Image{image.NewRGBA(image.Rect(0, 0, 16, 16))}}
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{device: dev})
	ctx := context.Background()

	require.NoError(t, sess.StartCamera(ctx))
	require.NoError(t, sess.CancelCamera())
	assert.Equal(t, StateIdle, sess.Snapshot().State)
	assert.Equal(t, 1, dev.closes)

	assert.ErrorIs(t, sess.CancelCamera(), ErrNoActiveCamera)
}

func TestReentryGuards(t *testing.T) {
	dev := &stubDevice{frames: []image.Image{image.NewRGBA(image.Rect(0, 0, 16, 16))}}
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{device: dev})
	ctx := context.Background()

	require.NoError(t, sess.StartCamera(ctx))

	// Neither a second camera start nor a file selection may run while the
	// camera holds the pipeline.
	assert.ErrorIs(t, sess.StartCamera(ctx), ErrBusy)
	_, err := sess.SelectFile(ctx, "meal.png", bytes.NewReader(pngBytes(t)))
	assert.ErrorIs(t, err, ErrBusy)

	_, err = sess.CaptureFromCamera(ctx)
	require.NoError(t, err)

	// Result-ready still blocks new acquisition until saved or discarded.
	assert.ErrorIs(t, sess.StartCamera(ctx), ErrBusy)

	require.NoError(t, sess.Discard())
	assert.Equal(t, StateIdle, sess.Snapshot().State)
	require.NoError(t, sess.StartCamera(ctx))
}

func TestCancelDuringNegotiation_ReleasesWonStream(t *testing.T) {
	dev1 := &stubDevice{frames: []image.Image{image.NewRGBA(image.Rect(0, 0, 16, 16))}}
	provider := &blockingProvider{release: make(chan struct{}), device: dev1}
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, provider)
	ctx := context.Background()

	errs := make(chan error, 1)
	go func() { errs <- sess.StartCamera(ctx) }()

	require.Eventually(t, func() bool {
		return sess.Snapshot().State == StateCameraActive
	}, time.Second, time.Millisecond)

	// Cancel wins while the device is still being negotiated.
	require.NoError(t, sess.CancelCamera())
	assert.Equal(t, StateIdle, sess.Snapshot().State)

	close(provider.release)
	assert.ErrorIs(t, <-errs, ErrCancelled)
	// The stream won after the cancel is released, not attached.
	assert.Equal(t, 1, dev1.closes)
	assert.Equal(t, StateIdle, sess.Snapshot().State)

	// The session is reusable and the fresh device is the one that lives.
	dev2 := &stubDevice{frames: []image.Image{image.NewRGBA(image.Rect(0, 0, 16, 16))}}
	provider.device = dev2
	require.NoError(t, sess.StartCamera(ctx))
	_, err := sess.CaptureFromCamera(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, dev1.closes)
	assert.Equal(t, 1, dev2.closes)
}

func TestCancelDuringCapture_DoesNotResurrectSession(t *testing.T) {
	dev := &blockingFrameDevice{started: make(chan struct{}), release: make(chan struct{})}
	sess, led, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{device: dev})
	ctx := context.Background()

	require.NoError(t, sess.StartCamera(ctx))

	type captureResult struct {
		result *domain.NutritionResult
		err    error
	}
	results := make(chan captureResult, 1)
	go func() {
		r, err := sess.CaptureFromCamera(ctx)
		results <- captureResult{r, err}
	}()

	// Cancel only once the frame read is in flight.
	<-dev.started
	require.NoError(t, sess.CancelCamera())
	assert.Equal(t, StateIdle, sess.Snapshot().State)
	assert.Equal(t, 1, dev.closes)

	close(dev.release)
	got := <-results
	assert.ErrorIs(t, got.err, ErrCancelled)
	assert.Nil(t, got.result)

	// The cancelled capture never entered analysis or persisted anything.
	snap := sess.Snapshot()
	assert.Equal(t, StateIdle, snap.State)
	assert.False(t, snap.HasImage)
	assert.Empty(t, led.Meals())
	assert.Equal(t, 1, dev.closes)
}

func TestSaveAndDiscard_RequireResult(t *testing.T) {
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{})

	_, err := sess.Save(context.Background(), domain.MealLunch)
	assert.ErrorIs(t, err, ErrNoResult)
	assert.ErrorIs(t, sess.Discard(), ErrNoResult)
}

func TestDiscard_PersistsNothing(t *testing.T) {
	sess, led, media := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{})
	ctx := context.Background()

	_, err := sess.SelectFile(ctx, "meal.png", bytes.NewReader(pngBytes(t)))
	require.NoError(t, err)

	require.NoError(t, sess.Discard())
	assert.Empty(t, led.Meals())
	assert.Empty(t, media.saved)
}

func TestCurrentImage(t *testing.T) {
	sess, _, _ := newTestSession(t, &stubAnalyzer{outcome: readyOutcome()}, &stubProvider{})
	ctx := context.Background()

	_, _, ok := sess.CurrentImage()
	assert.False(t, ok)

	data := pngBytes(t)
	_, err := sess.SelectFile(ctx, "meal.png", bytes.NewReader(data))
	require.NoError(t, err)

	got, mimeType, ok := sess.CurrentImage()
	require.True(t, ok)
	assert.Equal(t, data, got)
	assert.Equal(t, "image/png", mimeType)
}
