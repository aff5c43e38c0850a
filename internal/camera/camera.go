// Package camera abstracts the host's media-capture capability behind a
// narrow provider/device interface so acquisition, constraint fallback, and
// teardown can be exercised without real hardware.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// Facing is the preferred camera orientation, in the media-constraint
// vocabulary ("environment" is the rear camera).
type Facing string

const (
	FacingRear  Facing = "environment"
	FacingFront Facing = "user"
	FacingAny   Facing = ""
)

// Constraints narrows device selection for Open. The zero value is the most
// minimal possible request: any device, any resolution.
type Constraints struct {
	Facing      Facing
	IdealWidth  int
	IdealHeight int
}

// Reason distinguishes why no camera stream could be acquired.
type Reason string

const (
	ReasonPermissionDenied       Reason = "permission-denied"
	ReasonNoDevice               Reason = "no-device-found"
	ReasonDeviceBusy             Reason = "device-busy"
	ReasonUnsupportedConstraints Reason = "unsupported-constraints"
	ReasonInsecureContext        Reason = "insecure-context"
	ReasonAborted                Reason = "aborted"
)

// UnavailableError reports a failed acquisition with its classified reason.
type UnavailableError struct {
	Reason Reason
	Cause  error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("camera unavailable (%s): %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("camera unavailable (%s)", e.Reason)
}

func (e *UnavailableError) Unwrap() error { return e.Cause }

// Unavailable builds an UnavailableError.
func Unavailable(reason Reason, cause error) *UnavailableError {
	return &UnavailableError{Reason: reason, Cause: cause}
}

// ErrNotReady means the active stream has not produced a sized frame yet;
// the stream stays usable and the caller simply tries again.
var ErrNotReady = errors.New("camera not ready: no sized frame yet")

// Device is one open camera stream. At most one Device holds the underlying
// hardware at a time.
type Device interface {
	// Frame returns the current video frame. A stream that is still warming
	// up returns a zero-sized image, not an error.
	Frame(ctx context.Context) (image.Image, error)
	Facing() Facing
	// Close releases the underlying tracks. It must be safe to call more
	// than once.
	Close() error
}

// Provider is the capture capability of the host.
type Provider interface {
	// Probe reports whether capture is possible at all (capability present,
	// execution context allowed). A non-nil UnavailableError short-circuits
	// acquisition before any Open attempt.
	Probe(ctx context.Context) error
	// Open acquires a stream matching c. Failures are UnavailableErrors.
	Open(ctx context.Context, c Constraints) (Device, error)
}

// None returns a Provider for deployments without any capture device; every
// probe fails with no-device-found.
func None() Provider { return noneProvider{} }

type noneProvider struct{}

func (noneProvider) Probe(context.Context) error {
	return Unavailable(ReasonNoDevice, errors.New("no capture backend configured"))
}

func (noneProvider) Open(context.Context, Constraints) (Device, error) {
	return nil, Unavailable(ReasonNoDevice, errors.New("no capture backend configured"))
}
