// Package videosource implements cameras that fetch frames from network video sources.
package videosource

import (
	"context"
	"image"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	viamutils "go.viam.com/utils"

	"github.com/xmaslights/ledmap/components/camera"
	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/rimage"
)

// SnapshotConfig describes a camera that serves one still image per HTTP GET, as most IP cameras,
// ESP32-CAM boards and phone webcam apps do.
type SnapshotConfig struct {
	URL     string        `json:"url" yaml:"url"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Validate ensures the URL is set.
func (cfg *SnapshotConfig) Validate(path string) error {
	if cfg.URL == "" {
		return viamutils.NewConfigValidationFieldRequiredError(path, "url")
	}
	if !strings.HasPrefix(cfg.URL, "http://") && !strings.HasPrefix(cfg.URL, "https://") {
		return viamutils.NewConfigValidationError(path, errors.Errorf("url %q must be http or https", cfg.URL))
	}
	return nil
}

const defaultSnapshotTimeout = 5 * time.Second

type snapshotCamera struct {
	url    string
	client http.Client
	logger logging.Logger

	mu     sync.Mutex
	props  camera.Properties
	closed bool
}

// NewSnapshotCamera returns a camera that fetches a fresh image from cfg.URL on every capture.
func NewSnapshotCamera(cfg SnapshotConfig, logger logging.Logger) (camera.Camera, error) {
	if err := cfg.Validate("camera"); err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultSnapshotTimeout
	}
	return &snapshotCamera{
		url:    cfg.URL,
		client: http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

func (c *snapshotCamera) Capture(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, camera.ErrClosed
	}
	data, err := c.readBytes(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "couldn't read snapshot from %s", c.url)
	}
	if mimeType := http.DetectContentType(data); !strings.HasPrefix(mimeType, "image/") {
		return nil, errors.Errorf("cannot decode image from MIME type '%s'", mimeType)
	}
	img, err := rimage.DecodeImage(data)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	b := img.Bounds()
	if c.props.Width == 0 {
		c.props = camera.Properties{Width: b.Dx(), Height: b.Dy()}
		c.logger.Debugw("first snapshot", "url", c.url, "width", b.Dx(), "height", b.Dy())
	} else if c.props.Width != b.Dx() || c.props.Height != b.Dy() {
		return nil, errors.Errorf("snapshot size changed from %dx%d to %dx%d",
			c.props.Width, c.props.Height, b.Dx(), b.Dy())
	}
	return img, nil
}

func (c *snapshotCamera) readBytes(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		viamutils.UncheckedError(resp.Body.Close())
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// Properties reports the size of the first snapshot; it is zero until a frame was captured.
func (c *snapshotCamera) Properties(context.Context) (camera.Properties, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.props, nil
}

func (c *snapshotCamera) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.client.CloseIdleConnections()
	return nil
}
