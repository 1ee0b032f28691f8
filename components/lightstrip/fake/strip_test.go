package fake

import (
	"context"
	"errors"
	"image/color"
	"testing"

	"go.viam.com/test"

	"github.com/xmaslights/ledmap/components/lightstrip"
)

func TestStrip(t *testing.T) {
	ctx := context.Background()
	s := NewStrip(5)
	var _ lightstrip.Driver = s
	test.That(t, s.Len(), test.ShouldEqual, 5)
	test.That(t, s.Lit(), test.ShouldBeNil)

	test.That(t, s.Set(ctx, 2, lightstrip.Blue), test.ShouldBeNil)
	test.That(t, s.Set(ctx, 4, lightstrip.Red), test.ShouldBeNil)
	test.That(t, s.Lit(), test.ShouldResemble, []int{2, 4})
	test.That(t, s.State(2), test.ShouldResemble, lightstrip.Blue)
	test.That(t, s.State(9), test.ShouldResemble, lightstrip.Off)
	test.That(t, s.Set(ctx, 5, lightstrip.Blue), test.ShouldNotBeNil)

	test.That(t, s.Fill(ctx, lightstrip.Red), test.ShouldBeNil)
	test.That(t, len(s.Lit()), test.ShouldEqual, 5)
	test.That(t, s.AllOff(ctx), test.ShouldBeNil)
	test.That(t, s.Lit(), test.ShouldBeNil)

	hist := s.History()
	test.That(t, len(hist), test.ShouldEqual, 4)
	test.That(t, hist[0], test.ShouldResemble, Command{Op: OpSet, ID: 2, Color: lightstrip.Blue})
	test.That(t, hist[3].Op, test.ShouldEqual, OpAllOff)

	test.That(t, s.Close(ctx), test.ShouldBeNil)
	test.That(t, s.Set(ctx, 0, lightstrip.Blue), test.ShouldNotBeNil)
	test.That(t, s.AllOff(ctx), test.ShouldBeNil)
}

func TestStripSetFunc(t *testing.T) {
	boom := errors.New("boom")
	s := NewStrip(2)
	s.SetFunc = func(_ context.Context, id int, _ color.NRGBA) error {
		if id == 1 {
			return boom
		}
		return nil
	}
	test.That(t, s.Set(context.Background(), 0, lightstrip.Blue), test.ShouldBeNil)
	test.That(t, errors.Is(s.Set(context.Background(), 1, lightstrip.Blue), boom), test.ShouldBeTrue)
	test.That(t, s.Lit(), test.ShouldResemble, []int{0})
}
