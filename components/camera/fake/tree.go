// Package fake implements simulated cameras: a scene of lights on a tree seen through a calibrated lens and
// a checkerboard posed in front of the same lens.
package fake

import (
	"math"

	"github.com/golang/geo/r3"
)

// TreeConfig shapes a conical tree of lights.
type TreeConfig struct {
	// Center is the middle of the tree's axis in world millimetres; the axis runs along Y, top at negative Y.
	Center     r3.Vector
	Height     float64
	BaseRadius float64
	// FirstLevel lights hang on the top level, and every level below carries LevelStep more.
	FirstLevel int
	LevelStep  int
}

// DefaultTreeConfig is a 1 m tree two metres in front of the world origin.
func DefaultTreeConfig() TreeConfig {
	return TreeConfig{
		Center:     r3.Vector{Z: 2000},
		Height:     1000,
		BaseRadius: 450,
		FirstLevel: 4,
		LevelStep:  2,
	}
}

// TreeLayout places n lights on a cone, top level first. With the defaults 40 lights fill levels of
// 4, 6, 8, 10 and 12; other counts fill levels the same way and leave the last one partial.
func TreeLayout(n int, cfg TreeConfig) []r3.Vector {
	if n <= 0 {
		return nil
	}
	if cfg.FirstLevel <= 0 {
		cfg.FirstLevel = 1
	}
	var levels []int
	for left, size := n, cfg.FirstLevel; left > 0; size += cfg.LevelStep {
		if size <= 0 {
			size = 1
		}
		levels = append(levels, min(size, left))
		left -= size
	}

	out := make([]r3.Vector, 0, n)
	for l, count := range levels {
		frac := float64(l+1) / float64(len(levels))
		radius := cfg.BaseRadius * frac
		y := cfg.Center.Y - cfg.Height/2 + cfg.Height*(float64(l)+0.5)/float64(len(levels))
		// stagger alternate levels so lights do not line up vertically
		offset := math.Pi / float64(count) * float64(l%2)
		for i := range count {
			theta := 2*math.Pi*float64(i)/float64(count) + offset
			out = append(out, r3.Vector{
				X: cfg.Center.X + radius*math.Cos(theta),
				Y: y,
				Z: cfg.Center.Z + radius*math.Sin(theta),
			})
		}
	}
	return out
}
