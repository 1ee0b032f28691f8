package fake

import (
	"context"
	"image"
	"math"
	"sync"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"github.com/xmaslights/ledmap/components/camera"
	"github.com/xmaslights/ledmap/rimage/transform"
)

const (
	boardDark       = 30
	boardLight      = 230
	boardBackground = 128
)

// Board is a checkerboard with Cols x Rows inner corners. Corner (c, r) sits at (c*SquareSize, r*SquareSize, 0)
// in board coordinates and the board keeps a one square light margin.
type Board struct {
	Cols, Rows int
	SquareSize float64
}

// Corners returns the inner corners in board coordinates, row major.
func (b Board) Corners() []r3.Vector {
	out := make([]r3.Vector, 0, b.Cols*b.Rows)
	for r := range b.Rows {
		for c := range b.Cols {
			out = append(out, r3.Vector{X: float64(c) * b.SquareSize, Y: float64(r) * b.SquareSize})
		}
	}
	return out
}

// shade returns the gray level of board coordinates (u, v).
func (b Board) shade(u, v float64) float64 {
	i, j := math.Floor(u/b.SquareSize)+1, math.Floor(v/b.SquareSize)+1
	switch {
	case i < -1 || j < -1 || i > float64(b.Cols+1) || j > float64(b.Rows+1):
		return boardBackground
	case i < 0 || j < 0 || i > float64(b.Cols) || j > float64(b.Rows):
		return boardLight
	case int(i+j)%2 == 0:
		return boardDark
	default:
		return boardLight
	}
}

// rayMap holds the undistorted normalized ray of each 2x2 subsample of each pixel.
type rayMap struct {
	width, height int
	rays          []r3.Vector
}

var subsampleOffsets = []float64{-0.25, 0.25}

func newRayMap(model *transform.CameraModel) (*rayMap, error) {
	if err := model.CheckValid(); err != nil {
		return nil, err
	}
	m := &rayMap{width: model.Width, height: model.Height, rays: make([]r3.Vector, 0, 4*model.Width*model.Height)}
	for y := range model.Height {
		for x := range model.Width {
			for _, oy := range subsampleOffsets {
				for _, ox := range subsampleOffsets {
					n, err := model.Undistort(r2.Point{X: float64(x) + ox, Y: float64(y) + oy})
					if err != nil {
						return nil, err
					}
					m.rays = append(m.rays, r3.Vector{X: n.X, Y: n.Y, Z: 1})
				}
			}
		}
	}
	return m, nil
}

// RenderCheckerboard renders board seen from pose (board to camera) through model, 2x2 supersampled.
// A nil pose renders an empty scene.
func RenderCheckerboard(model *transform.CameraModel, board Board, pose *transform.ViewPose) (*image.Gray, error) {
	rays, err := newRayMap(model)
	if err != nil {
		return nil, err
	}
	return rays.render(board, pose), nil
}

func (m *rayMap) render(board Board, pose *transform.ViewPose) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.width, m.height))
	if pose == nil {
		for i := range img.Pix {
			img.Pix[i] = boardBackground
		}
		return img
	}

	normal := r3.Vector{X: pose.R.At(0, 2), Y: pose.R.At(1, 2), Z: pose.R.At(2, 2)}
	planeDist := normal.Dot(pose.T)
	var rt mat.Dense
	rt.CloneFrom(pose.R.T())
	for i := range img.Pix {
		sum := 0.
		for _, d := range m.rays[4*i : 4*i+4] {
			denom := normal.Dot(d)
			if denom == 0 || planeDist/denom <= 0 {
				sum += boardBackground
				continue
			}
			rel := d.Mul(planeDist / denom).Sub(pose.T)
			u := rt.At(0, 0)*rel.X + rt.At(0, 1)*rel.Y + rt.At(0, 2)*rel.Z
			v := rt.At(1, 0)*rel.X + rt.At(1, 1)*rel.Y + rt.At(1, 2)*rel.Z
			sum += board.shade(u, v)
		}
		img.Pix[i] = uint8(math.Round(sum / 4))
	}
	return img
}

// BoardCamera cycles through a list of board poses, one per capture. Nil poses produce frames without a board.
type BoardCamera struct {
	mu     sync.Mutex
	model  *transform.CameraModel
	rays   *rayMap
	board  Board
	poses  []*transform.ViewPose
	next   int
	closed bool
}

// NewBoardCamera returns a camera showing board at each of poses in turn.
func NewBoardCamera(model *transform.CameraModel, board Board, poses []*transform.ViewPose) (*BoardCamera, error) {
	if len(poses) == 0 {
		return nil, errors.New("board camera needs at least one pose")
	}
	if board.Cols < 2 || board.Rows < 2 || board.SquareSize <= 0 {
		return nil, errors.Errorf("invalid board %+v", board)
	}
	rays, err := newRayMap(model)
	if err != nil {
		return nil, err
	}
	return &BoardCamera{model: model, rays: rays, board: board, poses: poses}, nil
}

// Capture renders the next pose.
func (c *BoardCamera) Capture(ctx context.Context) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, camera.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pose := c.poses[c.next%len(c.poses)]
	c.next++
	return c.rays.render(c.board, pose), nil
}

// Properties reports the rendering resolution and intrinsics.
func (c *BoardCamera) Properties(context.Context) (camera.Properties, error) {
	return camera.Properties{
		Width:           c.model.Width,
		Height:          c.model.Height,
		IntrinsicParams: c.model.PinholeCameraIntrinsics,
	}, nil
}

// Close stops further captures.
func (c *BoardCamera) Close(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// CalibrationPoses returns count board poses spread over tilts and distances that keep a board of the given
// size inside a typical field of view. The board's center faces the camera at 600 to 900 units.
func CalibrationPoses(board Board, count int) []*transform.ViewPose {
	cx := float64(board.Cols-1) * board.SquareSize / 2
	cy := float64(board.Rows-1) * board.SquareSize / 2
	tilts := [][2]float64{
		{0, 0}, {20, 0}, {-20, 0}, {0, 25}, {0, -25},
		{15, 20}, {-15, -20}, {20, -15}, {-25, 15}, {10, 10},
	}
	out := make([]*transform.ViewPose, 0, count)
	for i := range count {
		tilt := tilts[i%len(tilts)]
		rot := transform.RotationFromEuler(tilt[0], tilt[1], float64(i%3-1)*8)
		dist := 600 + 300*float64(i%4)/3
		// translate so the board center lands on the optical axis, shifted a little per pose
		center := r3.Vector{X: cx, Y: cy}
		var rc mat.VecDense
		rc.MulVec(rot, mat.NewVecDense(3, []float64{center.X, center.Y, center.Z}))
		shift := r3.Vector{X: float64(i%3-1) * 40, Y: float64(i%2)*40 - 20, Z: dist}
		t := shift.Sub(r3.Vector{X: rc.AtVec(0), Y: rc.AtVec(1), Z: rc.AtVec(2)})
		out = append(out, &transform.ViewPose{R: rot, T: t})
	}
	return out
}
