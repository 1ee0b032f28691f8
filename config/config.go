// Package config defines the run configuration of a mapping session: the light string, the scan protocol,
// the light signature, the calibration board, the two camera viewpoints and where artifacts go.
package config

import (
	"bytes"
	"image/color"
	"io"
	"path/filepath"
	"time"

	"github.com/a8m/envsubst"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/utils"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/xmaslights/ledmap/components/camera/videosource"
	"github.com/xmaslights/ledmap/components/lightstrip/serialstrip"
	"github.com/xmaslights/ledmap/reconstruct"
	"github.com/xmaslights/ledmap/rimage/calibrate"
	"github.com/xmaslights/ledmap/rimage/detection/lightspot"
	"github.com/xmaslights/ledmap/rimage/transform"
	"github.com/xmaslights/ledmap/scan"
)

// DefaultLightCount is the size of the reference light string.
const DefaultLightCount = 40

// Config describes one mapping session.
type Config struct {
	ConfigFilePath string `yaml:"-" json:"-"`

	Lights      int                         `yaml:"lights" json:"lights"`
	Scan        Scan                        `yaml:"scan" json:"scan"`
	Signature   lightspot.Signature         `yaml:"signature" json:"signature"`
	Calibration Calibration                 `yaml:"calibration" json:"calibration"`
	Views       Views                       `yaml:"views" json:"views"`
	DepthBand   reconstruct.DepthBand       `yaml:"depth_band" json:"depth_band"`
	Output      Output                      `yaml:"output" json:"output"`
	SerialStrip *serialstrip.Config         `yaml:"serial_strip,omitempty" json:"serial_strip,omitempty"`
	Camera      *videosource.SnapshotConfig `yaml:"camera,omitempty" json:"camera,omitempty"`
	Simulation  Simulation                  `yaml:"simulation" json:"simulation"`
}

// RGB is a drive color written as [r, g, b].
type RGB [3]uint8

// NRGBA returns the opaque color.
func (c RGB) NRGBA() color.NRGBA {
	return color.NRGBA{R: c[0], G: c[1], B: c[2], A: 0xff}
}

// Scan holds the acquisition protocol timings.
type Scan struct {
	Color         RGB           `yaml:"color" json:"color"`
	AllOffWait    time.Duration `yaml:"all_off_wait" json:"all_off_wait"`
	SettleTime    time.Duration `yaml:"settle_time" json:"settle_time"`
	Attempts      int           `yaml:"attempts" json:"attempts"`
	SignalColor   RGB           `yaml:"signal_color" json:"signal_color"`
	BlinkInterval time.Duration `yaml:"blink_interval" json:"blink_interval"`
}

// ScanConfig converts to the scanner's configuration.
func (s Scan) ScanConfig() scan.Config {
	return scan.Config{
		Color:         s.Color.NRGBA(),
		AllOffWait:    s.AllOffWait,
		SettleTime:    s.SettleTime,
		Attempts:      s.Attempts,
		SignalColor:   s.SignalColor.NRGBA(),
		BlinkInterval: s.BlinkInterval,
	}
}

// Calibration describes the checkerboard and where calibration images and the artifact live.
type Calibration struct {
	Cols int `yaml:"cols" json:"cols"`
	Rows int `yaml:"rows" json:"rows"`
	// SquareSize is the board square edge in millimetres.
	SquareSize    float64 `yaml:"square_size_mm" json:"square_size_mm"`
	Images        string  `yaml:"images" json:"images"`
	Artifact      string  `yaml:"artifact" json:"artifact"`
	Workers       int     `yaml:"workers" json:"workers"`
	MaxIterations int     `yaml:"max_iterations" json:"max_iterations"`
}

// CalibrateConfig converts to the calibrator's configuration.
func (c Calibration) CalibrateConfig() calibrate.Config {
	cfg := calibrate.NewConfig(c.Cols, c.Rows)
	cfg.SquareSize = c.SquareSize
	cfg.Workers = c.Workers
	if c.MaxIterations > 0 {
		cfg.MaxIterations = c.MaxIterations
	}
	return cfg
}

// Output names the artifacts of a session. Relative paths are resolved against Dir.
type Output struct {
	Dir    string `yaml:"dir" json:"dir"`
	ScanA  string `yaml:"scan_a" json:"scan_a"`
	ScanB  string `yaml:"scan_b" json:"scan_b"`
	Report string `yaml:"report" json:"report"`
	JSON   string `yaml:"json" json:"json"`
	// DebugDir enables mask and contour images when set.
	DebugDir string `yaml:"debug_dir,omitempty" json:"debug_dir,omitempty"`
	// FramesDir records every captured frame for later replay when set.
	FramesDir string `yaml:"frames_dir,omitempty" json:"frames_dir,omitempty"`
}

// Path resolves name against Dir.
func (o Output) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || o.Dir == "" {
		return name
	}
	return filepath.Join(o.Dir, name)
}

// Simulation tunes the synthetic tree used by the simulate command.
type Simulation struct {
	Seed        uint64  `yaml:"seed" json:"seed"`
	NoiseStdDev float64 `yaml:"noise_stddev" json:"noise_stddev"`
	OccludedA   []int   `yaml:"occluded_a,omitempty" json:"occluded_a,omitempty"`
	OccludedB   []int   `yaml:"occluded_b,omitempty" json:"occluded_b,omitempty"`
}

// Default returns the reference deployment.
func Default() Config {
	return Config{
		Lights: DefaultLightCount,
		Scan: Scan{
			Color:         RGB{0, 0, 255},
			AllOffWait:    200 * time.Millisecond,
			SettleTime:    300 * time.Millisecond,
			Attempts:      3,
			SignalColor:   RGB{255, 0, 0},
			BlinkInterval: 250 * time.Millisecond,
		},
		Signature: lightspot.DefaultSignature(),
		Calibration: Calibration{
			Cols:       9,
			Rows:       6,
			SquareSize: 25,
			Images:     "calibration/*.jpg",
			Artifact:   calibrate.DefaultArtifactName,
		},
		Views:     DefaultViews(),
		DepthBand: reconstruct.DefaultDepthBand(),
		Output: Output{
			ScanA:  "scan_a.csv",
			ScanB:  "scan_b.csv",
			Report: "positions.csv",
			JSON:   "positions.json",
		},
		Simulation: Simulation{Seed: 1, NoiseStdDev: 2},
	}
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	if cfg.Lights <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "lights")
	}
	if err := cfg.Scan.ScanConfig().Validate(); err != nil {
		return utils.NewConfigValidationError(path+".scan", err)
	}
	if err := cfg.Signature.Validate(); err != nil {
		return utils.NewConfigValidationError(path+".signature", err)
	}
	if err := cfg.Calibration.Validate(path + ".calibration"); err != nil {
		return err
	}
	if err := cfg.Views.A.Validate(path + ".views.a"); err != nil {
		return err
	}
	if err := cfg.Views.B.Validate(path + ".views.b"); err != nil {
		return err
	}
	if err := cfg.DepthBand.Validate(); err != nil {
		return utils.NewConfigValidationError(path+".depth_band", err)
	}
	if cfg.SerialStrip != nil {
		if cfg.SerialStrip.Count == 0 {
			cfg.SerialStrip.Count = cfg.Lights
		}
		if err := cfg.SerialStrip.Validate(); err != nil {
			return utils.NewConfigValidationError(path+".serial_strip", err)
		}
		if cfg.SerialStrip.Count < cfg.Lights {
			return utils.NewConfigValidationError(path+".serial_strip",
				errors.Errorf("strip has %d lights but %d are mapped", cfg.SerialStrip.Count, cfg.Lights))
		}
	}
	if cfg.Camera != nil {
		if err := cfg.Camera.Validate(path + ".camera"); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the board geometry.
func (c Calibration) Validate(path string) error {
	if c.Cols < 2 || c.Rows < 2 {
		return utils.NewConfigValidationError(path,
			errors.Errorf("board needs at least 2x2 inner corners, got %dx%d", c.Cols, c.Rows))
	}
	if c.SquareSize <= 0 {
		return utils.NewConfigValidationFieldRequiredError(path, "square_size_mm")
	}
	if c.Artifact == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "artifact")
	}
	return nil
}

// Read reads a config from the given file, expanding environment variables first.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader decodes a YAML (or JSON) config on top of the defaults and validates it. originalPath is
// recorded and used in validation errors.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	cfg := Default()
	cfg.Views = Views{}
	cfg.ConfigFilePath = originalPath
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "failed to decode config %s", originalPath)
	}
	cfg.Views.fillDefaults()
	if err := cfg.Validate("config"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Views holds the two camera viewpoints of a run. A is the reference.
type Views struct {
	A View `yaml:"a" json:"a"`
	B View `yaml:"b" json:"b"`
}

// DefaultViews keeps A at the world origin and orbits B 15 degrees about the vertical through a tree
// standing two metres in front of A.
func DefaultViews() Views {
	return Views{
		B: View{
			RotationDeg: &[3]float64{0, 15, 0},
			OrbitCenter: &[3]float64{0, 0, 2000},
		},
	}
}

func (v *Views) fillDefaults() {
	if v.B.isZero() {
		v.B = DefaultViews().B
	}
}

// View is one camera viewpoint. The rotation is given either as Euler angles in degrees (applied X, then Y,
// then Z) or as a row major 3x3 matrix. The translation is either explicit or derived from a point the
// camera orbits, in which case t = C - R*C. An empty view is the identity pose.
type View struct {
	RotationDeg    *[3]float64 `yaml:"rotation_deg,omitempty" json:"rotation_deg,omitempty"`
	RotationMatrix [][]float64 `yaml:"rotation_matrix,omitempty" json:"rotation_matrix,omitempty"`
	Translation    *[3]float64 `yaml:"translation_mm,omitempty" json:"translation_mm,omitempty"`
	OrbitCenter    *[3]float64 `yaml:"orbit_center_mm,omitempty" json:"orbit_center_mm,omitempty"`
}

func (v View) isZero() bool {
	return v.RotationDeg == nil && v.RotationMatrix == nil && v.Translation == nil && v.OrbitCenter == nil
}

// Validate ensures the view names at most one rotation and one translation and that they form a pose.
func (v View) Validate(path string) error {
	if v.RotationDeg != nil && v.RotationMatrix != nil {
		return utils.NewConfigValidationError(path, errors.New("rotation_deg and rotation_matrix are exclusive"))
	}
	if v.Translation != nil && v.OrbitCenter != nil {
		return utils.NewConfigValidationError(path, errors.New("translation_mm and orbit_center_mm are exclusive"))
	}
	if _, err := v.Pose(); err != nil {
		return utils.NewConfigValidationError(path, err)
	}
	return nil
}

// Pose builds the view's pose.
func (v View) Pose() (*transform.ViewPose, error) {
	rot, err := v.rotation()
	if err != nil {
		return nil, err
	}
	if v.OrbitCenter != nil {
		return transform.NewOrbitViewPose(rot, vec(*v.OrbitCenter))
	}
	var t r3.Vector
	if v.Translation != nil {
		t = vec(*v.Translation)
	}
	return transform.NewViewPose(rot, t)
}

func (v View) rotation() (*mat.Dense, error) {
	switch {
	case v.RotationMatrix != nil:
		if len(v.RotationMatrix) != 3 {
			return nil, errors.Errorf("rotation_matrix needs 3 rows, got %d", len(v.RotationMatrix))
		}
		data := make([]float64, 0, 9)
		for i, row := range v.RotationMatrix {
			if len(row) != 3 {
				return nil, errors.Errorf("rotation_matrix row %d needs 3 values, got %d", i, len(row))
			}
			data = append(data, row...)
		}
		return mat.NewDense(3, 3, data), nil
	case v.RotationDeg != nil:
		return transform.RotationFromEuler(v.RotationDeg[0], v.RotationDeg[1], v.RotationDeg[2]), nil
	default:
		return transform.RotationFromEuler(0, 0, 0), nil
	}
}

func vec(v [3]float64) r3.Vector {
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// Poses builds both view poses.
func (cfg *Config) Poses() (*transform.ViewPose, *transform.ViewPose, error) {
	a, err := cfg.Views.A.Pose()
	if err != nil {
		return nil, nil, errors.Wrap(err, "view a")
	}
	b, err := cfg.Views.B.Pose()
	if err != nil {
		return nil, nil, errors.Wrap(err, "view b")
	}
	return a, b, nil
}
