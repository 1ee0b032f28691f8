package reconstruct

import (
	"slices"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/xmaslights/ledmap/scan"
)

// ErrNoCorrespondence is returned when no light was detected in both views, so nothing can be triangulated.
var ErrNoCorrespondence = errors.New("no light was detected in both views")

// CorrespondenceSet splits the configured ids [0, Count) into those seen in both views and the rest.
// Both lists are ascending and together cover every id exactly once.
type CorrespondenceSet struct {
	Count   int
	Common  []int
	Missing []int
}

// Match intersects the lights found in two views. count is the configured number of lights; when it is not
// positive the larger of the two scans' counts is used.
func Match(a, b *scan.ViewScan, count int) (*CorrespondenceSet, error) {
	if count <= 0 {
		count = max(a.Count, b.Count)
	}
	inRange := func(id int, _ int) bool { return id >= 0 && id < count }
	common := lo.Filter(lo.Intersect(lo.Keys(a.Detections), lo.Keys(b.Detections)), inRange)
	slices.Sort(common)
	missing := lo.Without(lo.Range(count), common...)
	set := &CorrespondenceSet{Count: count, Common: common, Missing: missing}
	if len(common) == 0 {
		return set, ErrNoCorrespondence
	}
	return set, nil
}
