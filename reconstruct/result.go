package reconstruct

import (
	"slices"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MissingReason says why a light has no 3D position.
type MissingReason string

// The reasons a light can be missing.
const (
	// ReasonNotDetected means the light was not found in at least one of the two views.
	ReasonNotDetected MissingReason = "never-detected"
	// ReasonDepthImplausible means triangulation put the light outside the plausible depth band.
	ReasonDepthImplausible MissingReason = "depth-implausible"
)

// Point3D is a reconstructed light in world millimetres, with its reprojection error in each view in pixels.
type Point3D struct {
	ID     int     `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	ErrorA float64 `json:"reprojection_error_a_px,omitempty"`
	ErrorB float64 `json:"reprojection_error_b_px,omitempty"`
}

// Result is the final id to position mapping. MissingIDs merges both missing reasons; Missing keeps them apart.
type Result struct {
	RunID      uuid.UUID             `json:"run_id"`
	Count      int                   `json:"count"`
	Points     map[int]Point3D       `json:"points"`
	MissingIDs []int                 `json:"missing_ids"`
	Missing    map[int]MissingReason `json:"missing"`
}

func newResult(count int) *Result {
	return &Result{
		RunID:      uuid.New(),
		Count:      count,
		Points:     map[int]Point3D{},
		MissingIDs: []int{},
		Missing:    map[int]MissingReason{},
	}
}

func (r *Result) addMissing(id int, reason MissingReason) {
	r.Missing[id] = reason
	r.MissingIDs = append(r.MissingIDs, id)
	slices.Sort(r.MissingIDs)
}

// IDs returns the reconstructed ids in ascending order.
func (r *Result) IDs() []int {
	ids := lo.Keys(r.Points)
	slices.Sort(ids)
	return ids
}

// MissingBecause returns the ids missing for reason, ascending.
func (r *Result) MissingBecause(reason MissingReason) []int {
	return lo.Filter(r.MissingIDs, func(id, _ int) bool { return r.Missing[id] == reason })
}
