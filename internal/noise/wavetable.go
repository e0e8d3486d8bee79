// Package noise builds the fifteen reference oscillator wavetables used
// by the noise-design voice engine, and compiles a NoiseData description
// into a PCM sample buffer. It has no teacher equivalent in modplayer
// (MOD/S3M instruments are always sampled, never synthesized), so the
// wavetable math here is written fresh from spec.md §4.2, in the
// teacher's general style of small pure functions over []int16 buffers.
package noise

import "math"

// SampleNum is the length of the 14 non-Random reference wavetables.
const SampleNum = 44100 / 100 // 441

// RandomSampleNum is the length of the Random wavetable, which samples a
// full second at the native 44.1kHz.
const RandomSampleNum = 44100

// SamplingTop is the peak amplitude unit for wavetable samples, matching
// the reference engine's full-scale int16 sample range (spec.md §4.4's
// cut_16bit_top and §8 property 3's "never exceeds 32767").
const SamplingTop = 32767

// Shape identifies one of the fifteen reference wavetables.
type Shape int

const (
	Sine Shape = iota
	Saw2
	Rect2
	Saw
	Rect
	Tri
	Random
	Rect3
	Rect4
	Rect8
	Rect16
	Saw3
	Saw4
	Saw6
	Saw8
	numShapes
)

// Tables holds all fifteen generated wavetables, indexed by Shape.
type Tables [numShapes][]int16

// Generate is a pure function: given the same inputs (none; the tables
// are fixed) it always returns byte-identical tables, including the
// Random table, which uses the fixed seed spec.md §4.2 mandates.
func Generate() Tables {
	var t Tables
	t[Sine] = genOvertoneSum(sineHarmonics)
	t[Saw2] = genOvertoneSum(saw2Harmonics)
	t[Rect2] = genOvertoneSum(rect2Harmonics)
	t[Saw] = genRamp()
	t[Rect] = genRect()
	t[Tri] = genCoord([]point{{0, 0}, {110, 128}, {330, -128}, {441, 0}})
	t[Random] = genRandom()
	t[Rect3] = genSteppedRect(3)
	t[Rect4] = genSteppedRect(4)
	t[Rect8] = genSteppedRect(8)
	t[Rect16] = genSteppedRect(16)
	t[Saw3] = genSteppedSaw(3)
	t[Saw4] = genSteppedSaw(4)
	t[Saw6] = genSteppedSaw(6)
	t[Saw8] = genSteppedSaw(8)
	return t
}

// Harmonic amplitude sets for the overtone-summed waves. Index i is the
// (i+1)-th harmonic's amplitude as a fraction of SamplingTop.
var (
	sineHarmonics  = []float64{1.0}
	saw2Harmonics  = []float64{1.0, 0.5, 1.0 / 3, 0.25, 0.2, 1.0 / 6}
	rect2Harmonics = []float64{1.0, 0, 1.0 / 3, 0, 0.2, 0, 1.0 / 7}
)

func genOvertoneSum(harmonics []float64) []int16 {
	out := make([]int16, SampleNum)
	for i := range out {
		phase := 2 * math.Pi * float64(i) / float64(SampleNum)
		var sum float64
		for h, amp := range harmonics {
			if amp == 0 {
				continue
			}
			sum += amp * math.Sin(phase*float64(h+1))
		}
		out[i] = clampI16(sum * SamplingTop)
	}
	return out
}

func genRamp() []int16 {
	out := make([]int16, SampleNum)
	for i := range out {
		v := SamplingTop - (2*SamplingTop*float64(i))/float64(SampleNum-1)
		out[i] = clampI16(v)
	}
	return out
}

func genRect() []int16 {
	out := make([]int16, SampleNum)
	for i := range out {
		if i < SampleNum/2 {
			out[i] = SamplingTop
		} else {
			out[i] = -SamplingTop
		}
	}
	return out
}

type point struct {
	x int
	y int
}

// genCoord linearly interpolates between successive (x, y) points to
// produce a SampleNum-length table, the same polyline shape used for
// coord-wave voices and noise-design envelopes (spec.md §3, §4.2). Point
// y values are shape units in [-128, 128], matching the reference
// engine's OsciPt convention (pulse_oscillator.rs's coord()); the result
// is scaled to SamplingTop, not left at the raw shape's own range.
func genCoord(points []point) []int16 {
	out := make([]int16, SampleNum)
	if len(points) == 0 {
		return out
	}
	pi := 0
	for i := range out {
		for pi < len(points)-2 && i >= points[pi+1].x {
			pi++
		}
		p0, p1 := points[pi], points[pi+1%len(points)]
		var y float64
		switch {
		case pi == len(points)-1:
			y = float64(p0.y)
		case p1.x == p0.x:
			y = float64(p0.y)
		default:
			t := float64(i-p0.x) / float64(p1.x-p0.x)
			y = float64(p0.y) + t*float64(p1.y-p0.y)
		}
		out[i] = clampI16(y / 128 * SamplingTop)
	}
	return out
}

// genRandom fills RandomSampleNum samples using the deterministic
// byte-swapping RNG seeded [0x4444, 0x8888] (spec.md §4.2): each step
// sums the two u32 state words, then swaps the low two bytes into the
// next state.
func genRandom() []int16 {
	out := make([]int16, RandomSampleNum)
	var s0, s1 uint32 = 0x4444, 0x8888
	for i := range out {
		sum := s0 + s1
		// Swap the low two bytes of sum into the next state word.
		swapped := (sum&0xFF)<<8 | (sum>>8)&0xFF | sum&0xFFFF0000
		s0 = s1
		s1 = swapped
		out[i] = int16(int32(sum&0xFFFF) - 0x8000)
	}
	return out
}

// genSteppedRect produces an n-duty-cycle rectangle wave: the first
// SampleNum/n samples at +SamplingTop, the remaining (n-1)/n samples at
// -SamplingTop. A 2-level pulse, not an n-level staircase - matching
// fill_rect3_onward's split_first_chunk_mut(SampleNum/n)/fill(TOP) then
// fill(-TOP) over the rest.
func genSteppedRect(n int) []int16 {
	out := make([]int16, SampleNum)
	first := SampleNum / n
	for i := range out {
		if i < first {
			out[i] = SamplingTop
		} else {
			out[i] = -SamplingTop
		}
	}
	return out
}

// genSteppedSaw produces an n-step staircase approximation of a sawtooth:
// n equal chunks, each a constant level descending linearly from
// +SamplingTop to -SamplingTop.
func genSteppedSaw(n int) []int16 {
	out := make([]int16, SampleNum)
	chunk := SampleNum / n
	if chunk == 0 {
		chunk = 1
	}
	for i := range out {
		step := i / chunk
		if step >= n {
			step = n - 1
		}
		denom := n - 1
		if denom == 0 {
			denom = 1
		}
		amp := SamplingTop - (2*SamplingTop*step)/denom
		out[i] = clampI16(float64(amp))
	}
	return out
}

func clampI16(v float64) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
