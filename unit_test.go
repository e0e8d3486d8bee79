package pxtone

import "testing"

// TestToneEnvelopeGatesOnLifeCount checks that a dead tone (life_count<=0)
// never touches env_volume.
func TestToneEnvelopeGatesOnLifeCount(t *testing.T) {
	slot := &Slot{prepared: preparedSlot{EnvTable: []int16{128, 64, 0}}}
	tone := voiceTone{lifeCount: 0, envVolume: 42}
	tone.toneEnvelope(slot)
	if tone.envVolume != 42 {
		t.Errorf("envVolume = %d, want unchanged 42 (dead tone)", tone.envVolume)
	}
}

// TestToneEnvelopeOnPhaseAdvances checks that the on-phase walks the
// envelope table forward by one entry per call and clamps at the table's
// last entry.
func TestToneEnvelopeOnPhaseAdvances(t *testing.T) {
	slot := &Slot{prepared: preparedSlot{EnvTable: []int16{10, 20, 30}}}
	tone := voiceTone{lifeCount: 5, onCount: 5}
	tone.toneEnvelope(slot)
	if tone.envVolume != 10 || tone.envPos != 1 {
		t.Fatalf("after 1st call: envVolume=%d envPos=%d, want 10,1", tone.envVolume, tone.envPos)
	}
	tone.toneEnvelope(slot)
	tone.toneEnvelope(slot)
	if tone.envVolume != 30 || tone.envPos != 3 {
		t.Fatalf("after 3rd call: envVolume=%d envPos=%d, want 30,3", tone.envVolume, tone.envPos)
	}
	tone.toneEnvelope(slot) // past the table end, stays clamped
	if tone.envVolume != 30 {
		t.Errorf("envVolume = %d after running past table end, want clamped 30", tone.envVolume)
	}
}

// TestToneEnvelopeReleasePhaseRampsToZero checks the linear release ramp
// once on_count has reached zero.
func TestToneEnvelopeReleasePhaseRampsToZero(t *testing.T) {
	slot := &Slot{prepared: preparedSlot{EnvTable: []int16{128}}}
	tone := voiceTone{lifeCount: 100, onCount: 0, envStart: 100, envRelease: 4, envPos: 0}
	tone.toneEnvelope(slot)
	if tone.envVolume != 100 {
		t.Errorf("envVolume at release start = %d, want 100 (env_start, unattenuated)", tone.envVolume)
	}
	tone.toneEnvelope(slot)
	tone.toneEnvelope(slot)
	tone.toneEnvelope(slot)
	tone.toneEnvelope(slot)
	if tone.envVolume != 0 {
		t.Errorf("envVolume after env_release steps = %d, want 0", tone.envVolume)
	}
}

// TestToneSampleScaling checks the velocity/volume/pan scaling chain on a
// live tone with no envelope.
func TestToneSampleScaling(t *testing.T) {
	slot := &Slot{prepared: preparedSlot{SampleW: []int16{1000, 1000}}}
	u := &Unit{Velocity: 128, Volume: 128, PanVols: [2]int32{64, 64}}
	u.tones[0] = voiceTone{lifeCount: 1, smpPos: 0}
	if got := u.toneSample(0, 0, slot, 0); got != 1000 {
		t.Errorf("toneSample = %d, want 1000 (unity scaling)", got)
	}
}

// TestToneSampleDeadTone checks that a dead tone contributes silence
// regardless of its sample buffer contents.
func TestToneSampleDeadTone(t *testing.T) {
	slot := &Slot{prepared: preparedSlot{SampleW: []int16{1000, 1000}}}
	u := &Unit{Velocity: 128, Volume: 128, PanVols: [2]int32{64, 64}}
	u.tones[0] = voiceTone{lifeCount: 0}
	if got := u.toneSample(0, 0, slot, 0); got != 0 {
		t.Errorf("toneSample on dead tone = %d, want 0", got)
	}
}

// TestToneIncrementKeyLinearRamp checks portamento's linear interpolation
// and its clamp to the destination once porta_pos catches up.
func TestToneIncrementKeyLinearRamp(t *testing.T) {
	u := &Unit{KeyStart: 1000, KeyMargin: 1000, PortaDestination: 10}
	for i := 0; i < 5; i++ {
		u.toneIncrementKey()
	}
	if u.KeyNow != 1500 {
		t.Errorf("KeyNow after 5/10 steps = %d, want 1500 (halfway)", u.KeyNow)
	}
	for i := 0; i < 10; i++ {
		u.toneIncrementKey()
	}
	if u.KeyNow != 2000 {
		t.Errorf("KeyNow past destination = %d, want 2000 (clamped)", u.KeyNow)
	}
}

// TestToneIncrementSampleWrapsOnLoop checks that a looping slot wraps its
// sample position instead of killing the tone at the buffer end.
func TestToneIncrementSampleWrapsOnLoop(t *testing.T) {
	slot := &Slot{Flags: FlagWaveLoop, prepared: preparedSlot{NumSamples: 10}}
	u := &Unit{Tuning: 1.0}
	u.tones[0] = voiceTone{lifeCount: 5, smpPos: 9.5, offsetFreq: 1.0}
	u.toneIncrementSample(0, slot, 1.0)
	if u.tones[0].smpPos < 0 || u.tones[0].smpPos >= 10 {
		t.Errorf("smpPos = %v, want wrapped into [0,10)", u.tones[0].smpPos)
	}
	if u.tones[0].lifeCount != 4 {
		t.Errorf("lifeCount = %d, want 4 (decremented once)", u.tones[0].lifeCount)
	}
}

// TestToneIncrementSampleKillsWithoutLoop checks that a non-looping slot
// zeroes life_count once playback runs past the sample buffer.
func TestToneIncrementSampleKillsWithoutLoop(t *testing.T) {
	slot := &Slot{prepared: preparedSlot{NumSamples: 10}}
	u := &Unit{Tuning: 1.0}
	u.tones[0] = voiceTone{lifeCount: 5, smpPos: 9.5, offsetFreq: 1.0}
	u.toneIncrementSample(0, slot, 1.0)
	if u.tones[0].lifeCount > 0 {
		t.Errorf("lifeCount = %d, want <=0 (non-looping tone ran past its buffer, now dead)", u.tones[0].lifeCount)
	}
}
