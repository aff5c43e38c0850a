// Package simulated serves camera frames decoded from still images in a
// directory. It stands in for a live capture device on hosts without one
// (and in tests): like a real stream, it produces zero-sized frames for a
// short warmup before the first usable frame arrives.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kingpromise/promeals/internal/camera"
)

type Provider struct {
	dir    string
	warmup int
}

// NewProvider builds a provider reading frames from dir. The first warmup
// Frame calls on every opened device return a zero-sized frame.
func NewProvider(dir string, warmup int) *Provider {
	return &Provider{dir: dir, warmup: warmup}
}

func (p *Provider) Probe(_ context.Context) error {
	info, err := os.Stat(p.dir)
	if err != nil || !info.IsDir() {
		return camera.Unavailable(camera.ReasonNoDevice, fmt.Errorf("frame directory %s unavailable", p.dir))
	}
	return nil
}

func (p *Provider) Open(_ context.Context, c camera.Constraints) (camera.Device, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, camera.Unavailable(camera.ReasonNoDevice, err)
	}

	var frames []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png", ".gif":
			frames = append(frames, filepath.Join(p.dir, e.Name()))
		}
	}
	if len(frames) == 0 {
		return nil, camera.Unavailable(camera.ReasonNoDevice, fmt.Errorf("no frames in %s", p.dir))
	}
	sort.Strings(frames)

	return &device{frames: frames, facing: c.Facing, warmup: p.warmup}, nil
}

type device struct {
	frames []string
	facing camera.Facing
	warmup int
	next   int
	closed bool
}

func (d *device) Frame(_ context.Context) (image.Image, error) {
	if d.closed {
		return nil, errors.New("camera stream closed")
	}
	if d.warmup > 0 {
		d.warmup--
		return image.NewRGBA(image.Rectangle{}), nil
	}

	f, err := os.Open(d.frames[d.next%len(d.frames)])
	if err != nil {
		return nil, fmt.Errorf("failed to open frame: %w", err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close frame file", "error", err)
		}
	}()
	d.next++

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	return img, nil
}

func (d *device) Facing() camera.Facing { return d.facing }

func (d *device) Close() error {
	d.closed = true
	return nil
}
