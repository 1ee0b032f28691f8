package fake

import (
	"context"
	"image"
	"image/color"
	"math/rand/v2"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/xmaslights/ledmap/components/camera"
	"github.com/xmaslights/ledmap/rimage/transform"
)

// LightState reports what each light is currently showing; an off light is black.
type LightState interface {
	State(id int) color.NRGBA
}

// LightConfig describes how lit lights look to a LightCamera.
type LightConfig struct {
	// Radius is the radius in pixels of the bright core of a lit light.
	Radius float64
	// HaloRadius and HaloAlpha describe the dim glow around the core; a zero radius disables it.
	HaloRadius float64
	HaloAlpha  float64
	Background color.NRGBA
	// NoiseStdDev is the per channel standard deviation of sensor noise, 0 for clean frames.
	NoiseStdDev float64
	Seed        uint64
}

// DefaultLightConfig returns lights a little larger than the default minimum blob area.
func DefaultLightConfig() LightConfig {
	return LightConfig{
		Radius:      6,
		HaloRadius:  10,
		HaloAlpha:   0.2,
		Background:  color.NRGBA{R: 8, G: 8, B: 10, A: 255},
		NoiseStdDev: 2,
		Seed:        1,
	}
}

// LightCamera renders the lights of a tree from one viewpoint. Every frame is a function of the light states,
// the capture count and the seed, so two cameras built alike produce identical frames.
type LightCamera struct {
	mu        sync.Mutex
	model     *transform.CameraModel
	pose      *transform.ViewPose
	positions []r3.Vector
	lights    LightState
	cfg       LightConfig

	occluded map[int]bool
	flaky    map[int]int
	seen     map[int]int
	captures uint64
	closed   bool
}

// LightCameraOption configures a LightCamera.
type LightCameraOption func(*LightCamera)

// WithOccluded hides the given lights from this viewpoint, as branches in front of them would.
func WithOccluded(ids ...int) LightCameraOption {
	return func(c *LightCamera) {
		for _, id := range ids {
			c.occluded[id] = true
		}
	}
}

// WithFlaky makes light id invisible for its first misses captures.
func WithFlaky(id, misses int) LightCameraOption {
	return func(c *LightCamera) {
		c.flaky[id] = misses
	}
}

// NewLightCamera returns a camera at pose looking at lights placed at positions.
func NewLightCamera(
	model *transform.CameraModel,
	pose *transform.ViewPose,
	positions []r3.Vector,
	lights LightState,
	cfg LightConfig,
	opts ...LightCameraOption,
) (*LightCamera, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	if pose == nil {
		return nil, errors.New("light camera needs a pose")
	}
	if lights == nil {
		return nil, errors.New("light camera needs a light state source")
	}
	c := &LightCamera{
		model:     model,
		pose:      pose,
		positions: positions,
		lights:    lights,
		cfg:       cfg,
		occluded:  map[int]bool{},
		flaky:     map[int]int{},
		seen:      map[int]int{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Capture renders the lights that are on.
func (c *LightCamera) Capture(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, camera.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.captures++

	img := image.NewRGBA(image.Rect(0, 0, c.model.Width, c.model.Height))
	c.fillBackground(img)
	dc := gg.NewContextForRGBA(img)
	for id, pos := range c.positions {
		state := c.lights.State(id)
		if state.R == 0 && state.G == 0 && state.B == 0 {
			continue
		}
		if c.occluded[id] {
			continue
		}
		c.seen[id]++
		if c.seen[id] <= c.flaky[id] {
			continue
		}
		px, err := c.model.Project(c.pose, pos)
		if err != nil {
			continue
		}
		// pixel centers sit at integer coordinates, gg pixels span [i, i+1)
		x, y := px.X+0.5, px.Y+0.5
		if c.cfg.HaloRadius > 0 {
			dc.SetColor(color.NRGBA{R: state.R, G: state.G, B: state.B, A: uint8(255 * c.cfg.HaloAlpha)})
			dc.DrawCircle(x, y, c.cfg.HaloRadius)
			dc.Fill()
		}
		dc.SetColor(color.NRGBA{R: state.R, G: state.G, B: state.B, A: 255})
		dc.DrawCircle(x, y, c.cfg.Radius)
		dc.Fill()
	}
	return img, nil
}

func (c *LightCamera) fillBackground(img *image.RGBA) {
	bg := c.cfg.Background
	if c.cfg.NoiseStdDev <= 0 {
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = bg.R, bg.G, bg.B, 255
		}
		return
	}
	rng := rand.New(rand.NewPCG(c.cfg.Seed, c.captures))
	noisy := func(v uint8) uint8 {
		f := float64(v) + rng.NormFloat64()*c.cfg.NoiseStdDev
		return uint8(min(max(f, 0), 255))
	}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = noisy(bg.R), noisy(bg.G), noisy(bg.B), 255
	}
}

// Properties reports the resolution and intrinsics the frames are rendered with.
func (c *LightCamera) Properties(context.Context) (camera.Properties, error) {
	return camera.Properties{
		Width:           c.model.Width,
		Height:          c.model.Height,
		IntrinsicParams: c.model.PinholeCameraIntrinsics,
	}, nil
}

// Close stops further captures.
func (c *LightCamera) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}
