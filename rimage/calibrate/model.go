package calibrate

import (
	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	spatial "gonum.org/v1/gonum/spatial/r3"

	"github.com/xmaslights/ledmap/rimage/transform"
)

const (
	numIntrinsicParams = 9 // fx, fy, cx, cy, k1, k2, p1, p2, k3
	numPoseParams      = 6 // axis-angle rotation, translation
)

// observation is one board seen in one image: object points on the z = 0 plane and their pixels.
type observation struct {
	name   string
	object []r3.Vector
	pixels []r2.Point
}

// viewPose is a board pose in camera coordinates.
type viewPose struct {
	rotation    spatial.Vec
	translation spatial.Vec
}

// packParams lays out the optimization vector: intrinsics first, then one pose per view.
func packParams(intr []float64, poses []viewPose) []float64 {
	x := make([]float64, 0, numIntrinsicParams+numPoseParams*len(poses))
	x = append(x, intr...)
	for _, p := range poses {
		x = append(x, p.rotation.X, p.rotation.Y, p.rotation.Z, p.translation.X, p.translation.Y, p.translation.Z)
	}
	return x
}

func unpackPose(x []float64, view int) viewPose {
	o := numIntrinsicParams + numPoseParams*view
	return viewPose{
		rotation:    spatial.Vec{X: x[o], Y: x[o+1], Z: x[o+2]},
		translation: spatial.Vec{X: x[o+3], Y: x[o+4], Z: x[o+5]},
	}
}

// projector projects board points with a fixed set of intrinsics.
type projector struct {
	fx, fy, cx, cy float64
	dist           transform.BrownConrady
}

func newProjector(x []float64) projector {
	return projector{
		fx: x[0], fy: x[1], cx: x[2], cy: x[3],
		dist: transform.BrownConrady{
			RadialK1: x[4], RadialK2: x[5], TangentialP1: x[6], TangentialP2: x[7], RadialK3: x[8],
		},
	}
}

func (p projector) project(rot spatial.Rotation, t spatial.Vec, obj r3.Vector) r2.Point {
	pc := spatial.Add(rot.Rotate(spatial.Vec{X: obj.X, Y: obj.Y, Z: obj.Z}), t)
	xd, yd := p.dist.Distort(pc.X/pc.Z, pc.Y/pc.Z)
	return r2.Point{X: p.fx*xd + p.cx, Y: p.fy*yd + p.cy}
}

// numResiduals is two per observed corner.
func numResiduals(obs []observation) int {
	n := 0
	for _, o := range obs {
		n += 2 * len(o.pixels)
	}
	return n
}

// residualFunc returns f(dst, x) filling dst with projected minus observed pixel coordinates.
func residualFunc(obs []observation) func(dst, x []float64) {
	return func(dst, x []float64) {
		proj := newProjector(x)
		k := 0
		for v, o := range obs {
			pose := unpackPose(x, v)
			rot := rotationFromVector(pose.rotation)
			for i, obj := range o.object {
				p := proj.project(rot, pose.translation, obj)
				dst[k] = p.X - o.pixels[i].X
				dst[k+1] = p.Y - o.pixels[i].Y
				k += 2
			}
		}
	}
}
