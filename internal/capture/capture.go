// Package capture acquires still images, either from an uploaded file or
// from a camera stream negotiated through the camera provider.
package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"

	"github.com/kingpromise/promeals/internal/camera"
)

// ErrUnsupportedInput means the upload was missing, empty, or not a
// recognizable image.
var ErrUnsupportedInput = errors.New("unsupported input")

// jpegQuality matches the original capture pipeline's encoder setting.
const jpegQuality = 80

// Image is one acquired still: encoded bytes plus enough metadata to serve
// it back as a preview.
type Image struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

type Source struct {
	provider camera.Provider
	logger   *slog.Logger
}

func NewSource(provider camera.Provider, logger *slog.Logger) *Source {
	return &Source{provider: provider, logger: logger}
}

// FromFile reads an uploaded image. Any decodable image payload is accepted;
// there is no size limit here (the transport layer caps the upload).
func (s *Source) FromFile(name string, r io.Reader) (*Image, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: no file provided", ErrUnsupportedInput)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", ErrUnsupportedInput)
	}

	mimeType, ok := sniffImageMIME(data)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not a recognized image format", ErrUnsupportedInput, name)
	}

	img := &Image{Data: data, MimeType: mimeType}
	// Dimensions are best-effort preview metadata; WebP has no stdlib decoder.
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img.Width, img.Height = cfg.Width, cfg.Height
	}
	return img, nil
}

// Stream is one acquired camera stream.
type Stream struct {
	device  camera.Device
	stopped bool
}

func (st *Stream) Facing() camera.Facing { return st.device.Facing() }

// StartCamera negotiates a stream with ordered constraint fallback: rear
// camera at 1280x720, then front, then any camera at that resolution, then
// the most minimal possible request. Only when the minimal request also
// fails does acquisition fail, with that last attempt's classified reason.
func (s *Source) StartCamera(ctx context.Context) (*Stream, error) {
	if err := s.provider.Probe(ctx); err != nil {
		return nil, err
	}

	attempts := []camera.Constraints{
		{Facing: camera.FacingRear, IdealWidth: 1280, IdealHeight: 720},
		{Facing: camera.FacingFront, IdealWidth: 1280, IdealHeight: 720},
		{Facing: camera.FacingAny, IdealWidth: 1280, IdealHeight: 720},
		{},
	}

	var lastErr error
	for _, c := range attempts {
		device, err := s.provider.Open(ctx, c)
		if err == nil {
			s.logger.Info("camera stream acquired", "facing", string(device.Facing()))
			return &Stream{device: device}, nil
		}
		s.logger.Debug("camera open attempt failed", "facing", string(c.Facing), "error", err)
		lastErr = err
	}
	return nil, lastErr
}

// Capture renders the stream's current frame into a JPEG. While the stream
// has only zero-sized frames it returns camera.ErrNotReady and leaves the
// stream open so the caller can try again.
func (s *Source) Capture(ctx context.Context, st *Stream) (*Image, error) {
	if st == nil || st.stopped {
		return nil, errors.New("no active camera stream")
	}

	frame, err := st.device.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame: %w", err)
	}
	bounds := frame.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, camera.ErrNotReady
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	return &Image{
		Data:     buf.Bytes(),
		MimeType: "image/jpeg",
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
	}, nil
}

// StopCamera releases the stream's tracks. It is idempotent, accepts nil,
// and never fails: teardown errors are logged and dropped so every exit path
// can call it unconditionally.
func (s *Source) StopCamera(st *Stream) {
	if st == nil || st.stopped {
		return
	}
	st.stopped = true
	if err := st.device.Close(); err != nil {
		s.logger.Warn("camera teardown failed", "error", err)
	}
}

// sniffImageMIME returns the detected MIME type and true if data is an
// accepted image format. net/http.DetectContentType covers JPEG, PNG, and
// GIF; WebP is detected separately because the WHATWG sniff spec does not
// include a WebP signature.
func sniffImageMIME(data []byte) (string, bool) {
	if isWebP(data) {
		return "image/webp", true
	}
	mime := http.DetectContentType(data)
	switch mime {
	case "image/jpeg", "image/png", "image/gif":
		return mime, true
	}
	return "", false
}

// isWebP reports whether data is a WebP image (RIFF container with "WEBP" at
// offset 8).
func isWebP(data []byte) bool {
	return len(data) >= 12 &&
		string(data[0:4]) == "RIFF" &&
		string(data[8:12]) == "WEBP"
}
