package videosource

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"go.viam.com/test"

	"github.com/xmaslights/ledmap/components/camera"
	"github.com/xmaslights/ledmap/logging"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	img.Set(1, 1, color.NRGBA{B: 255, A: 255})
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, img), test.ShouldBeNil)
	return buf.Bytes()
}

func TestSnapshotCamera(t *testing.T) {
	var requests atomic.Int32
	var frame atomic.Value
	frame.Store(encodePNG(t, 8, 6))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(frame.Load().([]byte))
	}))
	defer srv.Close()

	ctx := context.Background()
	cam, err := NewSnapshotCamera(SnapshotConfig{URL: srv.URL + "/snapshot.png"}, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	props, err := cam.Properties(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props.Width, test.ShouldEqual, 0)

	for i := 0; i < 2; i++ {
		img, err := cam.Capture(ctx)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Dx(), test.ShouldEqual, 8)
		_, _, b, _ := img.At(1, 1).RGBA()
		test.That(t, b, test.ShouldEqual, 0xffff)
	}
	test.That(t, requests.Load(), test.ShouldEqual, 2)
	props, err = cam.Properties(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, props, test.ShouldResemble, camera.Properties{Width: 8, Height: 6})

	frame.Store(encodePNG(t, 4, 4))
	_, err = cam.Capture(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "size changed")

	test.That(t, cam.Close(ctx), test.ShouldBeNil)
	_, err = cam.Capture(ctx)
	test.That(t, err, test.ShouldBeError, camera.ErrClosed)
}

func TestSnapshotCameraErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/text" {
			_, _ = w.Write([]byte("hello there"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()
	logger := logging.NewTestLogger(t)
	ctx := context.Background()

	cam, err := NewSnapshotCamera(SnapshotConfig{URL: srv.URL + "/missing"}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = cam.Capture(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "404")

	cam, err = NewSnapshotCamera(SnapshotConfig{URL: srv.URL + "/text"}, logger)
	test.That(t, err, test.ShouldBeNil)
	_, err = cam.Capture(ctx)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "MIME")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = cam.Capture(cancelled)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewSnapshotCamera(SnapshotConfig{}, logger)
	test.That(t, err, test.ShouldNotBeNil)
	_, err = NewSnapshotCamera(SnapshotConfig{URL: "rtsp://cam/stream"}, logger)
	test.That(t, err, test.ShouldNotBeNil)
}
