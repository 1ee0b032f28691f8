package lightstrip

import (
	"image/color"
	"testing"

	"go.viam.com/test"
)

func TestColors(t *testing.T) {
	test.That(t, IsOff(Off), test.ShouldBeTrue)
	test.That(t, IsOff(color.Black), test.ShouldBeTrue)
	test.That(t, IsOff(Blue), test.ShouldBeFalse)
	test.That(t, ToNRGBA(color.RGBA{R: 10, A: 255}), test.ShouldResemble, color.NRGBA{R: 10, A: 255})
	test.That(t, ToNRGBA(color.Gray{Y: 7}), test.ShouldResemble, color.NRGBA{R: 7, G: 7, B: 7, A: 255})
}

func TestCheckID(t *testing.T) {
	test.That(t, CheckID(0, 3), test.ShouldBeNil)
	test.That(t, CheckID(2, 3), test.ShouldBeNil)
	test.That(t, CheckID(3, 3), test.ShouldNotBeNil)
	test.That(t, CheckID(-1, 3), test.ShouldNotBeNil)
}
