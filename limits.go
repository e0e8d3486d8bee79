package pxtone

// Resource limits from spec.md §4.5. A container whose unit, voice,
// noise-unit, noise-envelope-point or noise-sample count exceeds its cap
// is rejected with FmtUnknown when read; names are fixed 16-byte fields
// (truncated on write); the envelope table and delay buffer lengths are
// clamped to their caps when voices and effects are built.
const (
	MaxUnits               = 50
	MaxVoices               = 100
	MaxNameBytes            = 16
	MaxNoiseUnitsPerVoice   = 4
	MaxEnvelopePoints       = 3
	MaxDelayBufferSamples   = 1 << 24
	MaxEnvelopeTableSamples = 1 << 20
	MaxNoiseSampleCount     = 480000

	nativeSampleRate = 44100
)

// GroupIdx identifies one of the seven mix buses.
type GroupIdx uint8

const NumGroups = 7

const (
	MaxDelayEffects     = 4
	MaxOverdriveEffects = 2
)
