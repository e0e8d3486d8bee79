package pxtone

import "sync"

// PulseFreqLen is the size of the precomputed pitch table: 16 octaves of
// 12 keys of 16 sub-steps each (spec.md §4.3).
const PulseFreqLen = 16 * 12 * 16 // 3072

// pulseCenter is the table index that corresponds to a zero key offset
// (key 0 after the +0x6000 bias used by Get/Get2), i.e. the octave
// straight down the middle of the 16-octave span.
const pulseCenter = PulseFreqLen / 2 // 1536

const pulseKeyBias int32 = 0x6000

var (
	pulseOnce  sync.Once
	pulseTable [PulseFreqLen]float32
)

// bisectRoot finds x > 0 such that x^n == target, to float32 precision,
// via bisection (the reference engine's own phrase is "Newton-style
// bisection" - plain interval bisection on a monotonic function, not
// Newton's method proper, which needs a derivative this has no closed
// form reason to compute here).
func bisectRoot(target float64, n int) float64 {
	lo, hi := 1.0, target
	if hi < lo {
		hi = lo + 1
	}
	for i := 0; i < 64; i++ {
		mid := (lo + hi) / 2
		p := 1.0
		for j := 0; j < n; j++ {
			p *= mid
		}
		if p < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// buildPulseTable constructs the 3072-entry table. Step 1 bisects the
// 24th root of 2 (a quarter-tone-ish unit in 24-EDO terms); step 2
// bisects the 8th root of that value to reach the table's native
// resolution of 1/192 octave (= 1/16 semitone, matching 12*16 entries
// per octave), since 192 = 24*8.
func buildPulseTable() {
	root24 := bisectRoot(2.0, 24)
	stepRatio := bisectRoot(root24, 8) // == 2^(1/192)

	pulseTable[pulseCenter] = 1.0
	v := 1.0
	for i := pulseCenter + 1; i < PulseFreqLen; i++ {
		v *= stepRatio
		pulseTable[i] = float32(v)
	}
	v = 1.0
	for i := pulseCenter - 1; i >= 0; i-- {
		v /= stepRatio
		pulseTable[i] = float32(v)
	}
}

func ensurePulseTable() {
	pulseOnce.Do(buildPulseTable)
}

func clampPulseIdx(idx int32) int32 {
	if idx < 0 {
		return 0
	}
	if idx >= PulseFreqLen {
		return PulseFreqLen - 1
	}
	return idx
}

// pulseGet accepts a key value in 1/256-semitone units, adds the +0x6000
// bias, scales it down to the table's 1/16-semitone native
// resolution via /16 (equivalent to the reference's *16/256), and
// returns the clamped table lookup.
func pulseGet(keyIndex int32) float32 {
	ensurePulseTable()
	idx := (keyIndex + pulseKeyBias) / 16
	return pulseTable[clampPulseIdx(idx)]
}

// pulseGet2 accepts a key value in 1/256-semitone units (the wire Key
// unit), scales it down to the table's 1/16-semitone native resolution
// via >>4 (256/16 == 16 == 1<<4), and returns the clamped table lookup.
func pulseGet2(keyIndex int32) float32 {
	ensurePulseTable()
	idx := (keyIndex + pulseKeyBias) >> 4
	return pulseTable[clampPulseIdx(idx)]
}
