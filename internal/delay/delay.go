// Package delay implements the PxTone group delay effect: a per-channel
// circular buffer that feeds a scaled, delayed copy of a group's samples
// back into it. It is adapted directly from modplayer's
// internal/comb.Comb/CombAdd circular-buffer-with-decay design, swapping
// the fixed playback-time decay construction for PxTone's explicit
// rate/offset-advancing read-then-write step.
package delay

// Unit is the time base a Delay's length is expressed in.
type Unit int

const (
	Beat Unit = iota
	Meas
	Second
)

// MaxBufferSamples is the hard cap on a delay buffer's length
// (spec.md §4.5).
const MaxBufferSamples = 1 << 24

// Delay is a stereo circular-buffer delay effect targeting one group.
// A Delay built with Freq==0 is non-fatal but silent (Ok()==false): the
// caller still gets a usable, inert effect rather than an error.
type Delay struct {
	Group  int
	Rate   float32 // 0..100, percent of the delayed sample fed back
	length int
	off    int
	buf    [2][]int32
	ok     bool
}

// New builds a Delay for the given group, time unit and frequency,
// against the song's tempo/meter and the output sample rate. freq==0
// yields a silent (Ok()==false) delay rather than an error, matching
// spec.md §4.4's "freq==0 is a non-fatal build failure".
func New(group int, unit Unit, freq, rate float32, bpm float32, beatsPerMeas int, outSampleRate int) *Delay {
	d := &Delay{Group: group, Rate: rate}
	if freq == 0 {
		return d
	}

	var length float64
	switch unit {
	case Beat:
		length = float64(outSampleRate) * 60.0 / (float64(bpm) * float64(freq))
	case Meas:
		length = float64(outSampleRate) * 60.0 / (float64(bpm) * float64(freq)) * float64(beatsPerMeas)
	case Second:
		length = float64(outSampleRate) / float64(freq)
	}

	l := int(length)
	if l <= 0 {
		return d
	}
	if l > MaxBufferSamples {
		l = MaxBufferSamples
	}

	d.length = l
	d.buf[0] = make([]int32, l)
	d.buf[1] = make([]int32, l)
	d.ok = true
	return d
}

// Ok reports whether the delay has a usable (non-silent) buffer.
func (d *Delay) Ok() bool { return d.ok }

// Len returns the delay buffer's length in samples, for tests.
func (d *Delay) Len() int { return d.length }

// Process applies one sample's worth of delay to the group accumulator
// for channel ch: group += buf[off]*rate/100; buf[off] = group. It does
// not move the offset (Advance does), but snaps an out-of-range offset
// left by a live reconfiguration back to 0 first (spec.md §4.4).
func (d *Delay) Process(ch int, group int32) int32 {
	if !d.ok {
		return group
	}
	if d.off >= d.length {
		d.off = 0
	}

	group += int32(float32(d.buf[ch][d.off]) * d.Rate / 100.0)
	d.buf[ch][d.off] = group
	return group
}

// Advance moves the circular offset forward by one sample, wrapping at
// the buffer length. Call once per sample after Process has been called
// for both channels.
func (d *Delay) Advance() {
	if !d.ok {
		return
	}
	d.off++
	if d.off >= d.length {
		d.off = 0
	}
}
