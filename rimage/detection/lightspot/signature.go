package lightspot

import (
	"github.com/pkg/errors"
)

// Signature describes what a lit light looks like in HSV space.
type Signature struct {
	// UseColor selects the hue band test; otherwise only ValueMin is applied.
	UseColor bool `json:"use_color" yaml:"use_color"`
	// HueMin and HueMax bound the hue in degrees. HueMin > HueMax selects the band wrapping through 0, as red needs.
	HueMin        float64 `json:"hue_min" yaml:"hue_min"`
	HueMax        float64 `json:"hue_max" yaml:"hue_max"`
	SaturationMin float64 `json:"saturation_min" yaml:"saturation_min"`
	ValueMin      float64 `json:"value_min" yaml:"value_min"`
	// MinArea is the smallest blob, in pixels, accepted as a light.
	MinArea int `json:"min_area" yaml:"min_area"`
	// MorphSize is the side of the square used to open and close the mask; 1 disables denoising.
	MorphSize int `json:"morph_size" yaml:"morph_size"`
	// Refine re-centers the blob centroid on the value plane, weighting the blob's pixels by brightness.
	Refine bool `json:"refine" yaml:"refine"`
}

// DefaultSignature matches blue lights: hue 200-260 degrees, saturation above 150/255 and value above 100/255.
func DefaultSignature() Signature {
	return Signature{
		UseColor:      true,
		HueMin:        200,
		HueMax:        260,
		SaturationMin: 150. / 255,
		ValueMin:      100. / 255,
		MinArea:       50,
		MorphSize:     3,
		Refine:        true,
	}
}

// Validate ensures all parts of the signature are valid.
func (s Signature) Validate() error {
	if s.UseColor {
		if s.HueMin < 0 || s.HueMin > 360 || s.HueMax < 0 || s.HueMax > 360 {
			return errors.Errorf("hue band [%v, %v] must lie within [0, 360]", s.HueMin, s.HueMax)
		}
		if s.HueMin == s.HueMax {
			return errors.Errorf("hue band [%v, %v] is empty", s.HueMin, s.HueMax)
		}
		if s.SaturationMin < 0 || s.SaturationMin > 1 {
			return errors.Errorf("saturation_min %v must lie within [0, 1]", s.SaturationMin)
		}
	}
	if s.ValueMin < 0 || s.ValueMin > 1 {
		return errors.Errorf("value_min %v must lie within [0, 1]", s.ValueMin)
	}
	if s.MinArea < 0 {
		return errors.Errorf("min_area %d cannot be negative", s.MinArea)
	}
	if s.MorphSize < 0 || (s.MorphSize > 0 && s.MorphSize%2 == 0) {
		return errors.Errorf("morph_size %d must be odd", s.MorphSize)
	}
	return nil
}

// Matches reports whether one HSV pixel (hue in degrees, saturation and value in [0, 1]) looks lit.
func (s Signature) Matches(h, sat, v float64) bool {
	if v < s.ValueMin {
		return false
	}
	if !s.UseColor {
		return true
	}
	if sat < s.SaturationMin {
		return false
	}
	if s.HueMin <= s.HueMax {
		return h >= s.HueMin && h <= s.HueMax
	}
	return h >= s.HueMin || h <= s.HueMax
}
