// Package reconstruct turns two view scans into 3D light positions: match lights by id, triangulate each
// matched pair and reject points at implausible depths.
package reconstruct

import (
	"math"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/logging"
	"github.com/xmaslights/ledmap/rimage/transform"
	"github.com/xmaslights/ledmap/scan"
)

// DepthBand is the plausible range of depths in front of the first camera. Both ends are accepted.
type DepthBand struct {
	Min float64 `json:"min_mm" yaml:"min_mm"`
	Max float64 `json:"max_mm" yaml:"max_mm"`
}

// DefaultDepthBand is 10 cm to 10 m.
func DefaultDepthBand() DepthBand {
	return DepthBand{Min: 100, Max: 10000}
}

// Validate ensures the band is non empty and in front of the camera.
func (b DepthBand) Validate() error {
	if b.Min < 0 {
		return errors.Errorf("depth band minimum %v cannot be negative", b.Min)
	}
	if b.Min >= b.Max {
		return errors.Errorf("depth band [%v, %v] is empty", b.Min, b.Max)
	}
	return nil
}

// Contains reports whether Min <= depth <= Max.
func (b DepthBand) Contains(depth float64) bool {
	return depth >= b.Min && depth <= b.Max
}

// Metrics counts reconstruction outcomes.
type Metrics struct {
	Points *prometheus.CounterVec
}

// NewMetrics registers the reconstruction counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Points: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "ledmap_reconstruct_points_total",
			Help: "Total number of lights by reconstruction outcome",
		}, []string{"outcome"}),
	}
}

// Triangulator recovers 3D points from pixel pairs seen from two known poses through one calibrated camera.
// It is read only after construction.
type Triangulator struct {
	model  *transform.CameraModel
	poseA  *transform.ViewPose
	poseB  *transform.ViewPose
	projA  *mat.Dense
	projB  *mat.Dense
	band   DepthBand
	logger logging.Logger

	Metrics *Metrics
}

// NewTriangulator builds the projection matrices K[R|t] of both views.
func NewTriangulator(
	model *transform.CameraModel,
	poseA, poseB *transform.ViewPose,
	band DepthBand,
	logger logging.Logger,
) (*Triangulator, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	if poseA == nil || poseB == nil {
		return nil, errors.New("triangulation needs both view poses")
	}
	if err := band.Validate(); err != nil {
		return nil, err
	}
	projA, err := model.ProjectionMatrix(poseA)
	if err != nil {
		return nil, err
	}
	projB, err := model.ProjectionMatrix(poseB)
	if err != nil {
		return nil, err
	}
	return &Triangulator{
		model: model, poseA: poseA, poseB: poseB,
		projA: projA, projB: projB,
		band: band, logger: logger,
	}, nil
}

// errImplausible marks a pair whose point cannot be a light in front of both cameras.
var errImplausible = errors.New("depth implausible")

// TriangulatePair triangulates one light from its raw pixels in view A and view B. The returned depth is
// along the first camera's axis. Points outside the depth band, at infinity or behind the second camera
// return an error wrapping errImplausible together with whatever point was computed.
func (t *Triangulator) TriangulatePair(pixelA, pixelB r2.Point) (r3.Vector, float64, error) {
	ua, err := t.model.UndistortPixel(pixelA)
	if err != nil {
		return r3.Vector{}, 0, err
	}
	ub, err := t.model.UndistortPixel(pixelB)
	if err != nil {
		return r3.Vector{}, 0, err
	}
	p, err := transform.TriangulateDLT(t.projA, t.projB, ua, ub)
	if err != nil {
		return r3.Vector{}, math.Inf(1), errors.Wrap(errImplausible, err.Error())
	}
	depth := t.poseA.Depth(p)
	if !t.band.Contains(depth) {
		return p, depth, errors.Wrapf(errImplausible, "depth %.1f outside [%v, %v]", depth, t.band.Min, t.band.Max)
	}
	if t.poseB.Depth(p) <= 0 {
		return p, depth, errors.Wrap(errImplausible, "point is behind the second camera")
	}
	return p, depth, nil
}

// Triangulate reconstructs every common id of set. Ids outside the depth band are recorded as missing with
// ReasonDepthImplausible, ids missing from set as ReasonNotDetected.
func (t *Triangulator) Triangulate(set *CorrespondenceSet, a, b *scan.ViewScan) (*Result, error) {
	res := newResult(set.Count)
	for _, id := range set.Missing {
		res.addMissing(id, ReasonNotDetected)
	}
	if len(set.Missing) > 0 {
		t.logger.Warnw("lights not detected in both views", "reason", string(ReasonNotDetected), "ids", set.Missing)
	}

	var implausible []int
	for _, id := range set.Common {
		da, okA := a.Get(id)
		db, okB := b.Get(id)
		if !okA || !okB {
			return nil, errors.Errorf("light %d is matched but missing from a view", id)
		}
		p, depth, err := t.TriangulatePair(da.Pixel, db.Pixel)
		if err != nil {
			if !errors.Is(err, errImplausible) {
				return nil, errors.Wrapf(err, "triangulating light %d", id)
			}
			t.logger.Debugw("rejecting light", "light", id, "depth", depth, "reason", err)
			res.addMissing(id, ReasonDepthImplausible)
			implausible = append(implausible, id)
			continue
		}
		res.Points[id] = Point3D{
			ID: id, X: p.X, Y: p.Y, Z: p.Z,
			ErrorA: t.reprojectionError(t.poseA, p, da.Pixel),
			ErrorB: t.reprojectionError(t.poseB, p, db.Pixel),
		}
	}
	if len(implausible) > 0 {
		t.logger.Warnw("lights at implausible depth", "reason", string(ReasonDepthImplausible), "ids", implausible,
			"min_mm", t.band.Min, "max_mm", t.band.Max)
	}
	if t.Metrics != nil {
		t.Metrics.Points.WithLabelValues("reconstructed").Add(float64(len(res.Points)))
		t.Metrics.Points.WithLabelValues(string(ReasonNotDetected)).Add(float64(len(set.Missing)))
		t.Metrics.Points.WithLabelValues(string(ReasonDepthImplausible)).Add(float64(len(implausible)))
	}
	t.logger.Infow("reconstruction done", "run", res.RunID, "points", len(res.Points), "missing", len(res.MissingIDs))
	return res, nil
}

func (t *Triangulator) reprojectionError(pose *transform.ViewPose, p r3.Vector, observed r2.Point) float64 {
	px, err := t.model.Project(pose, p)
	if err != nil {
		// accepted points are in front of both cameras
		return 0
	}
	return px.Sub(observed).Norm()
}

// Reconstruct matches two scans and triangulates the common lights. It fails with ErrNoCorrespondence, and no
// result, when the scans share no light.
func Reconstruct(t *Triangulator, a, b *scan.ViewScan, count int) (*Result, error) {
	set, err := Match(a, b, count)
	if err != nil {
		t.logger.Errorw("cannot reconstruct", "view_a", a.View, "view_b", b.View,
			"detected_a", a.Len(), "detected_b", b.Len(), "error", err)
		return nil, err
	}
	return t.Triangulate(set, a, b)
}
