// Package replay serves previously recorded scan frames. A Source pairs a light driver that only remembers
// which light is on with a camera that returns the frame recorded for that light, so a recorded scan can be
// localized again offline.
package replay

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/xmaslights/ledmap/components/camera"
	"github.com/xmaslights/ledmap/components/lightstrip"
	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/rimage"
)

// FramePath is where the frame of light id is stored under dir.
func FramePath(dir string, id int) string {
	return filepath.Join(dir, fmt.Sprintf("led_%d.png", id))
}

// SaveFrame stores the frame captured with light id on.
func SaveFrame(dir string, id int, img image.Image) error {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	return rimage.WriteImageToFile(FramePath(dir, id), img)
}

// Source replays the frames under one directory.
type Source struct {
	mu     sync.Mutex
	dir    string
	count  int
	lit    map[int]bool
	bounds image.Rectangle
	logger logging.Logger
}

// NewSource opens a directory of recorded frames for a strip of count lights. At least one frame must exist
// so that dark frames can match the recorded resolution.
func NewSource(dir string, count int, logger logging.Logger) (*Source, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "led_*.png"))
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.Errorf("no recorded frames in %s", dir)
	}
	sort.Strings(matches)
	first, err := rimage.ReadImageFromFile(matches[0])
	if err != nil {
		return nil, err
	}
	logger.Infow("replaying recorded frames", "dir", dir, "frames", len(matches))
	return &Source{dir: dir, count: count, lit: map[int]bool{}, bounds: first.Bounds(), logger: logger}, nil
}

// Driver returns the light strip side of the source.
func (s *Source) Driver() lightstrip.Driver {
	return &driver{s}
}

// Camera returns the camera side of the source.
func (s *Source) Camera() camera.Camera {
	return &replayCamera{s}
}

func (s *Source) frame() (image.Image, error) {
	s.mu.Lock()
	var ids []int
	for id := range s.lit {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	switch len(ids) {
	case 0:
		return s.dark(), nil
	case 1:
		img, err := rimage.ReadImageFromFile(FramePath(s.dir, ids[0]))
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Debugw("no recorded frame, serving a dark one", "light", ids[0])
			return s.dark(), nil
		}
		return img, err
	default:
		sort.Ints(ids)
		return nil, errors.Errorf("recorded frames show one light at a time, lights %v are on", ids)
	}
}

func (s *Source) dark() image.Image {
	img := image.NewNRGBA(s.bounds)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

type driver struct {
	s *Source
}

func (d *driver) Len() int { return d.s.count }

func (d *driver) Set(ctx context.Context, id int, c color.Color) error {
	if err := lightstrip.CheckID(id, d.s.count); err != nil {
		return err
	}
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	if lightstrip.IsOff(c) {
		delete(d.s.lit, id)
	} else {
		d.s.lit[id] = true
	}
	return nil
}

func (d *driver) Fill(ctx context.Context, c color.Color) error {
	d.s.mu.Lock()
	defer d.s.mu.Unlock()
	clear(d.s.lit)
	if !lightstrip.IsOff(c) {
		for id := range d.s.count {
			d.s.lit[id] = true
		}
	}
	return nil
}

func (d *driver) AllOff(ctx context.Context) error {
	return d.Fill(ctx, lightstrip.Off)
}

func (d *driver) Close(ctx context.Context) error {
	return nil
}

type replayCamera struct {
	s *Source
}

func (c *replayCamera) Capture(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.s.frame()
}

func (c *replayCamera) Properties(context.Context) (camera.Properties, error) {
	return camera.Properties{Width: c.s.bounds.Dx(), Height: c.s.bounds.Dy()}, nil
}

func (c *replayCamera) Close(context.Context) error {
	return nil
}
