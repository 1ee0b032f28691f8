package scan

import (
	"slices"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/xmaslights/ledmap/rimage/detection/lightspot"
)

// ViewScan holds where each light was seen from one camera pose. Lights that were never found are absent.
// A ViewScan is read only once its scan returns.
type ViewScan struct {
	View string
	// Count is the number of configured lights, ids [0, Count).
	Count      int
	Detections map[int]lightspot.Detection
	Started    time.Time
	Finished   time.Time
	// Complete is false when the scan was interrupted before every light was tried.
	Complete bool
}

// NewViewScan returns an empty scan of count lights.
func NewViewScan(view string, count int) *ViewScan {
	return &ViewScan{View: view, Count: count, Detections: map[int]lightspot.Detection{}}
}

// Add records a detection. Ids must be configured and unique.
func (vs *ViewScan) Add(d lightspot.Detection) error {
	if d.LightID < 0 || d.LightID >= vs.Count {
		return errors.Errorf("light %d out of range [0, %d)", d.LightID, vs.Count)
	}
	if _, ok := vs.Detections[d.LightID]; ok {
		return errors.Errorf("light %d already detected in view %s", d.LightID, vs.View)
	}
	vs.Detections[d.LightID] = d
	return nil
}

// Get returns the detection of light id.
func (vs *ViewScan) Get(id int) (lightspot.Detection, bool) {
	d, ok := vs.Detections[id]
	return d, ok
}

// Len is the number of detected lights.
func (vs *ViewScan) Len() int {
	return len(vs.Detections)
}

// IDs returns the detected ids in ascending order.
func (vs *ViewScan) IDs() []int {
	ids := lo.Keys(vs.Detections)
	slices.Sort(ids)
	return ids
}

// Missing returns the configured ids that were not detected, ascending.
func (vs *ViewScan) Missing() []int {
	return lo.Filter(lo.Range(vs.Count), func(id, _ int) bool {
		_, ok := vs.Detections[id]
		return !ok
	})
}

// Duration is how long the scan took.
func (vs *ViewScan) Duration() time.Duration {
	return vs.Finished.Sub(vs.Started)
}
