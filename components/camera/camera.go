// Package camera defines an image capturing device: something that produces a color image on demand.
// Device configuration such as exposure and buffering belongs to the implementation.
package camera

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/xmaslights/ledmap/rimage/transform"
)

// ErrClosed is returned when capturing from a closed camera.
var ErrClosed = errors.New("camera is closed")

// Properties is a lookup for a camera's features and settings.
type Properties struct {
	Width  int
	Height int
	// IntrinsicParams is set by cameras that know their own model, such as simulated ones.
	IntrinsicParams *transform.PinholeCameraIntrinsics
}

// A Camera produces images on demand. Implementations are owned by one scan at a time and need not be safe
// for concurrent use.
type Camera interface {
	// Capture returns the next frame.
	Capture(ctx context.Context) (image.Image, error)
	// Properties returns properties that are intrinsic to the particular implementation of a camera.
	Properties(ctx context.Context) (Properties, error)
	Close(ctx context.Context) error
}

// CaptureFunc adapts a plain function to the Camera interface.
type CaptureFunc func(ctx context.Context) (image.Image, error)

type funcCamera struct {
	capture CaptureFunc
	props   Properties
	closed  bool
}

// FromCaptureFunc returns a Camera calling fn on every capture.
func FromCaptureFunc(fn CaptureFunc, props Properties) Camera {
	return &funcCamera{capture: fn, props: props}
}

func (c *funcCamera) Capture(ctx context.Context) (image.Image, error) {
	if c.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.capture(ctx)
}

func (c *funcCamera) Properties(context.Context) (Properties, error) {
	return c.props, nil
}

func (c *funcCamera) Close(context.Context) error {
	c.closed = true
	return nil
}
