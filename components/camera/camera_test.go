package camera

import (
	"context"
	"errors"
	"image"
	"testing"

	"go.viam.com/test"
)

func TestFromCaptureFunc(t *testing.T) {
	calls := 0
	cam := FromCaptureFunc(func(context.Context) (image.Image, error) {
		calls++
		return image.NewGray(image.Rect(0, 0, 4, 2)), nil
	}, Properties{Width: 4, Height: 2})

	img, err := cam.Capture(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds().Dx(), test.ShouldEqual, 4)
	props, err := cam.Properties(context.Background())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props.Height, test.ShouldEqual, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cam.Capture(ctx)
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)

	test.That(t, cam.Close(context.Background()), test.ShouldBeNil)
	_, err = cam.Capture(context.Background())
	test.That(t, errors.Is(err, ErrClosed), test.ShouldBeTrue)
	test.That(t, calls, test.ShouldEqual, 1)
}
