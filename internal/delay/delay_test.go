package delay

import "testing"

// TestDelayImpulseResponse mirrors spec's delay scenario: a unit=Beat,
// freq=2.0, rate=50 delay's buffer length is round(out_sr*60/bpm/freq),
// and a frame-0 impulse reappears attenuated by 50% at frame L and 25%
// at frame 2L.
func TestDelayImpulseResponse(t *testing.T) {
	const bpm = 120.0
	const outSampleRate = 44100
	d := New(0, Beat, 2.0, 50, bpm, 4, outSampleRate)
	if !d.Ok() {
		t.Fatal("delay not built (Ok()==false)")
	}

	wantLen := int(float64(outSampleRate) * 60 / (bpm * 2.0))
	if d.Len() != wantLen {
		t.Fatalf("Len() = %d, want %d", d.Len(), wantLen)
	}
	L := d.Len()

	var atL, at2L int32
	const impulse = 1000
	for i := 0; i <= 2*L; i++ {
		in := int32(0)
		if i == 0 {
			in = impulse
		}
		out := d.Process(0, in)
		d.Advance()
		if i == L {
			atL = out
		}
		if i == 2*L {
			at2L = out
		}
	}

	if atL != impulse/2 {
		t.Errorf("output at frame L = %d, want %d (50%% of impulse)", atL, impulse/2)
	}
	if at2L != impulse/4 {
		t.Errorf("output at frame 2L = %d, want %d (25%% of impulse)", at2L, impulse/4)
	}
}

// TestDelayZeroFreqIsSilentNotError checks spec's "freq==0 is a
// non-fatal build failure" rule: the delay is built but inert.
func TestDelayZeroFreqIsSilentNotError(t *testing.T) {
	d := New(0, Second, 0, 50, 120, 4, 44100)
	if d.Ok() {
		t.Fatal("Ok() = true, want false for freq==0")
	}
	out := d.Process(0, 1234)
	if out != 1234 {
		t.Errorf("Process on an inert delay mutated the sample: got %d, want 1234", out)
	}
}

// TestDelayBufferCap checks that an absurdly long delay is capped at
// MaxBufferSamples rather than allocating unboundedly.
func TestDelayBufferCap(t *testing.T) {
	d := New(0, Second, 0.00001, 50, 120, 4, 44100)
	if d.Len() > MaxBufferSamples {
		t.Errorf("Len() = %d, exceeds MaxBufferSamples = %d", d.Len(), MaxBufferSamples)
	}
}
