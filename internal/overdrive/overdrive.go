// Package overdrive implements the PxTone group overdrive effect: a pure
// in-place per-sample clamp-then-amplify on one group (spec.md §4.4).
// modplayer has no distortion stage to ground this on, so it is written
// fresh, following the teacher's one-effect-per-package convention set
// by internal/comb.
package overdrive

// Overdrive clamps a group's sample to a percentage of full scale, then
// multiplies it by an amplification factor.
type Overdrive struct {
	Group      int
	On         bool
	CutPercent float32 // valid range [50, 99.9]
	AmpMul     float32 // valid range [0.1, 8.0]
}

// New validates cutPercent/ampMul against spec.md §4.4's ranges. A value
// outside range is a codec error, not something the effect itself
// silently clamps.
func New(group int, cutPercent, ampMul float32) (*Overdrive, bool) {
	if cutPercent < 50 || cutPercent > 99.9 {
		return nil, false
	}
	if ampMul < 0.1 || ampMul > 8.0 {
		return nil, false
	}
	return &Overdrive{Group: group, On: true, CutPercent: cutPercent, AmpMul: ampMul}, true
}

// cutTop is the i16 clamp ceiling implied by CutPercent: 32767*(100-cut)/100.
func (o *Overdrive) cutTop() int32 {
	return int32(32767.0 * (100.0 - o.CutPercent) / 100.0)
}

// Process clamps group to +-cutTop then scales by AmpMul.
func (o *Overdrive) Process(group int32) int32 {
	if !o.On {
		return group
	}
	top := o.cutTop()
	if group > top {
		group = top
	} else if group < -top {
		group = -top
	}
	return int32(float32(group) * o.AmpMul)
}
