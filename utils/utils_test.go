package utils

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"go.viam.com/test"
)

func TestAngles(t *testing.T) {
	test.That(t, DegToRad(180), test.ShouldAlmostEqual, math.Pi)
	test.That(t, RadToDeg(math.Pi/2), test.ShouldAlmostEqual, 90.)
	test.That(t, Square(-3), test.ShouldEqual, 9.)
}

func TestClamp(t *testing.T) {
	test.That(t, Clamp(5, 0, 1), test.ShouldEqual, 1.)
	test.That(t, Clamp(-5, 0, 1), test.ShouldEqual, 0.)
	test.That(t, ClampInt(3, 0, 10), test.ShouldEqual, 3)
	test.That(t, ClampInt(11, 0, 10), test.ShouldEqual, 10)
}

func TestAssertType(t *testing.T) {
	v, err := AssertType[int](3)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, v, test.ShouldEqual, 3)

	_, err = AssertType[string](3)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected string but got int")
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "out.txt")
	test.That(t, WriteFileAtomic(path, []byte("one"), 0o644), test.ShouldBeNil)
	test.That(t, WriteFileAtomic(path, []byte("two"), 0o644), test.ShouldBeNil)

	data, err := os.ReadFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "two")

	entries, err := os.ReadDir(filepath.Dir(path))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, len(entries), test.ShouldEqual, 1)
}
