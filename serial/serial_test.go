package serial

import (
	"bytes"
	"io"
	"testing"
	"time"

	"go.viam.com/test"
)

type nopCloser struct {
	bytes.Buffer
}

func (nopCloser) Close() error { return nil }

func TestNormalize(t *testing.T) {
	opts, err := Options{}.Normalize()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts, test.ShouldResemble, DefaultOptions())

	opts, err = Options{BaudRate: 9600, ReadTimeout: 50 * time.Millisecond}.Normalize()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, opts.BaudRate, test.ShouldEqual, 9600)
	test.That(t, opts.ReadTimeout, test.ShouldEqual, 50*time.Millisecond)

	_, err = Options{DataBits: 9}.Normalize()
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Options{StopBits: 7}.Normalize()
	test.That(t, err, test.ShouldNotBeNil)
	_, err = Options{Parity: -1}.Normalize()
	test.That(t, err, test.ShouldNotBeNil)
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open("/dev/ledmap-does-not-exist", DefaultOptions())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "ledmap-does-not-exist")
}

func TestSetOptionsRequiresPort(t *testing.T) {
	var rwc io.ReadWriteCloser = &nopCloser{}
	err := SetOptions(rwc, DefaultOptions())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "Port interface")
}
