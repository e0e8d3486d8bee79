package pxtone

// Voice design flag bits (spec.md §3).
const (
	FlagWaveLoop uint32 = 1 << iota
	FlagSmooth
	FlagBeatFit
)

// WaveKind discriminates a Slot's waveform source.
type WaveKind int

const (
	WavePCM WaveKind = iota
	WaveOscillator
	WaveNoiseDesign
	WaveOggVorbis
)

// OscShape distinguishes a coord-polyline oscillator wave from an
// overtone (harmonic-series) one.
type OscShape int

const (
	OscCoord OscShape = iota
	OscOvertone
)

// Point is a single (x, y) sample of a coord polyline or overtone series.
// On the wire x is 0..65535 and y is an 8-bit signed value; in memory y
// widens to 16-bit signed (spec.md §4.5).
type Point struct {
	X int32
	Y int16
}

// PCMWave is a raw sample buffer voice source.
type PCMWave struct {
	Channels   uint8
	Bps        uint16
	SampleRate uint16
	Data       []byte // raw sample bytes, Channels*Bps/8 bytes per frame
}

// OscillatorWave is a Wave-type voice source: either a coord polyline or
// an overtone harmonic series.
type OscillatorWave struct {
	Shape  OscShape
	Points []Point
}

// NoiseOsc is one of a noise-design unit's three oscillators (main, freq
// or volu in spec.md §4.2 terms).
type NoiseOsc struct {
	Shape     int // index into the 15 reference wavetables
	Frequency float32
	Volume    float32
	Pan       int32 // -100..100
	Offset    int32 // phase offset into the wavetable
}

// NoiseUnit is one of a noise-design voice's 1..4 oscillator triplets.
type NoiseUnit struct {
	Enabled bool
	Main    NoiseOsc
	Freq    NoiseOsc
	Volu    NoiseOsc
	Pan     int32

	// Envelope is a piecewise-linear amplitude curve given as up to
	// MaxEnvelopePoints (x_ms, y) points; y is the wire's signed 8-bit
	// value, scaled to [-1,+1] (y/128) when the voice is compiled.
	Envelope []Point
}

// NoiseDesignWave is a noise-design voice source: 1..4 oscillator-triplet
// units compiled to PCM at prepare time (internal/noise does the actual
// synthesis).
type NoiseDesignWave struct {
	Units    []NoiseUnit
	SampleNum int // target PCM length; bounded by MaxNoiseSampleCount
}

// OggVorbisWave stores the raw Ogg container bytes plus the redundant
// channel/rate/length metadata the format carries alongside it. The
// actual decode to interleaved i16 samples happens lazily (ogg.go).
type OggVorbisWave struct {
	Channels   uint8
	SampleRate uint16
	SampleNum  uint32
	RawOgg     []byte
}

// Slot is one of a Voice's 1-2 per-channel sub-entries.
type Slot struct {
	BasicKey int32
	Volume   int32
	Pan      int32
	Tuning   float32
	Flags    uint32

	Kind    WaveKind
	PCM     *PCMWave
	Osc     *OscillatorWave
	Noise   *NoiseDesignWave
	Ogg     *OggVorbisWave

	Envelope         []Point
	SecondsPerPoint  float32

	// runtime, populated by rebuild_tones/prepare: computed stereo i16
	// sample buffer at native 44.1kHz, a dense envelope table, and the
	// envelope-release sample count.
	prepared preparedSlot
}

// preparedSlot is the runtime instance each Slot exclusively owns.
type preparedSlot struct {
	SampleW     []int16 // interleaved stereo, native 44.1kHz
	NumSamples  int     // frames (not interleaved samples)
	EnvTable    []int16 // dense envelope table of interpolated y values, 128 = full scale
	EnvRelease  int     // release length in native samples
	ready       bool
}

// Voice is an instrument: 1 or 2 slots (one per playback channel).
type Voice struct {
	Name string
	Slot1 *Slot
	Slot2 *Slot // nil if this voice has a single slot
}

func (v *Voice) numSlots() int {
	if v.Slot2 != nil {
		return 2
	}
	return 1
}

func (v *Voice) slot(i int) *Slot {
	if i == 0 {
		return v.Slot1
	}
	return v.Slot2
}
