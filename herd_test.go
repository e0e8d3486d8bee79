package pxtone

import (
	"math"
	"testing"
)

// baseMaster returns a 120bpm, 4/4, one-measure Master with the measure
// boundaries pinned directly (bypassing deriveMeasures, which needs a
// real event list) so the scenario tests below can reason about exact
// sample counts.
func baseMaster() Master {
	return Master{
		TicksPerBeat: 480,
		BeatsPerMeas: 4,
		BPM:          120,
		MeasNum:      1,
		LastMeas:     1,
	}
}

// TestHerdEmptySong mirrors spec's empty-song scenario (S1): a song with
// no voices and no events renders exactly one measure's worth of silent
// frames, then Moo reports the stream exhausted.
func TestHerdEmptySong(t *testing.T) {
	song := &Song{Master: baseMaster()}
	herd := NewHerd(1)
	herd.Units[0] = defaultUnit()

	if err := RebuildTones(song, herd, 44100); err != nil {
		t.Fatalf("RebuildTones: %v", err)
	}
	MooPrepare(song, herd, 44100, MooPlan{Start: MooStart{Kind: StartMeas, Meas: 0}})

	const wantFrames = 2 * 44100 // one measure at 120bpm 4/4 == 2 seconds
	buf := make([]int16, wantFrames*2)
	// The measure boundary falls exactly on the buffer's last frame, so
	// Moo reports the stream exhausted (false) on this very call - the
	// last frame's silence is still written before that check fires.
	if herd.Moo(buf, song, true) {
		t.Fatal("Moo returned true, want false: the measure should be exhausted by the last frame")
	}
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d = %d, want 0 (empty song)", i, v)
		}
	}
}

// newSingleToneSong builds the one-voice fixture for TestHerdSingleTone:
// a single PCM slot with a one-point (zero-release) envelope, so the
// tone's life_count tracks on_count exactly with no release tail.
func newSingleToneSong() *Song {
	// 8-bit mono, unsigned, centered on 128; a 10-sample-period sine so a
	// playback-rate bug (e.g. a wrong pulseGet scale) shows up as a
	// distorted/aliased waveform instead of being masked by a constant
	// byte value that decodes identically regardless of position or speed.
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(128 + int(64*math.Sin(2*math.Pi*float64(i)/10)))
	}
	slot := &Slot{
		BasicKey: 17664,
		Tuning:   1.0,
		Flags:    FlagWaveLoop,
		Kind:     WavePCM,
		PCM:      &PCMWave{Channels: 1, Bps: 8, SampleRate: 44100, Data: data},
		Envelope: []Point{{X: 0, Y: 128}},
	}
	voice := &Voice{Name: "test voice", Slot1: slot}

	song := &Song{Master: baseMaster(), Voices: []*Voice{voice}}
	song.Events = EveList{Events: []Event{
		{Tick: 0, UnitIndex: 0, Kind: EventOn, Value: 480},
	}}
	return song
}

// TestHerdSingleTone mirrors spec's single-tone scenario (S2): the first
// sample is silent (the envelope hasn't been evaluated for the
// just-triggered tone yet), the tone plays at constant amplitude once
// the envelope catches up, life_count reaches zero by sample
// round(480*samples_per_tick) and every subsequent sample is silent
// again, and no sample ever exceeds the int16 range.
func TestHerdSingleTone(t *testing.T) {
	song := newSingleToneSong()
	herd := NewHerd(1)
	herd.Units[0] = defaultUnit()

	if err := RebuildTones(song, herd, 44100); err != nil {
		t.Fatalf("RebuildTones: %v", err)
	}
	MooPrepare(song, herd, 44100, MooPlan{Start: MooStart{Kind: StartMeas, Meas: 0}})

	const onSamples = 22050 // round(480 * 45.9375)
	const renderFrames = onSamples + 100
	buf := make([]int16, renderFrames*2)
	if !herd.Moo(buf, song, true) {
		t.Fatal("Moo returned false before the measure was exhausted")
	}

	if buf[0] != 0 || buf[1] != 0 {
		t.Errorf("first frame = (%d,%d), want (0,0)", buf[0], buf[1])
	}

	var peak int32
	for i := 0; i < onSamples; i++ {
		for ch := 0; ch < 2; ch++ {
			v := int32(buf[i*2+ch])
			if v < 0 {
				v = -v
			}
			if v > peak {
				peak = v
			}
		}
	}
	if peak == 0 {
		t.Error("tone never produced a non-zero sample during its on-phase")
	}
	if peak > 32767 {
		t.Errorf("peak sample %d exceeds int16 range", peak)
	}

	for i := onSamples; i < renderFrames; i++ {
		if buf[i*2] != 0 || buf[i*2+1] != 0 {
			t.Fatalf("frame %d = (%d,%d), want (0,0): life_count should have reached 0 by sample %d", i, buf[i*2], buf[i*2+1], onSamples)
		}
	}
}

// TestHerdNullEventFreezesEventCursor checks that a Null event only
// freezes evt_idx - it never forces smp_count to smp_end. The already
// On-triggered tone keeps decaying naturally, and every event after the
// Null never dispatches because the cursor can't advance past it.
func TestHerdNullEventFreezesEventCursor(t *testing.T) {
	song := newSingleToneSong()
	song.Events.Events = append(song.Events.Events,
		Event{Tick: 10, UnitIndex: 0, Kind: EventNull},
		Event{Tick: 20, UnitIndex: 0, Kind: EventVolume, Value: 0},
	)

	herd := NewHerd(1)
	herd.Units[0] = defaultUnit()
	if err := RebuildTones(song, herd, 44100); err != nil {
		t.Fatalf("RebuildTones: %v", err)
	}
	MooPrepare(song, herd, 44100, MooPlan{Start: MooStart{Kind: StartMeas, Meas: 0}})

	const renderFrames = 1000 // comfortably past tick 20's due sample (~919)
	buf := make([]int16, renderFrames*2)
	if !herd.Moo(buf, song, true) {
		t.Fatal("Moo returned false before the measure was exhausted")
	}

	if herd.evtIdx != 1 {
		t.Errorf("evtIdx = %d, want 1 (frozen at the Null event, index 1)", herd.evtIdx)
	}
	if herd.Units[0].Volume != 104 {
		t.Errorf("Volume = %d, want 104 (unchanged): the Volume event past the Null must never dispatch", herd.Units[0].Volume)
	}

	var nonZero bool
	for i := 0; i < renderFrames; i++ {
		if buf[i*2] != 0 || buf[i*2+1] != 0 {
			nonZero = true
			break
		}
	}
	if !nonZero {
		t.Error("every frame is silent: the Null event incorrectly cut off the already-triggered tone")
	}
}

// TestHerdPortamento mirrors spec's portamento scenario (S3): an
// intervening Portament{duration=240} plus Key(+2304) between two On
// events 240 ticks apart leaves key_now at the linear midpoint between
// key_start and key_start+key_margin by sample 120*samples_per_tick.
func TestHerdPortamento(t *testing.T) {
	song := &Song{Master: baseMaster()}
	song.Events = EveList{Events: []Event{
		{Tick: 0, UnitIndex: 0, Kind: EventOn, Value: 240},
		{Tick: 0, UnitIndex: 0, Kind: EventKey, Value: 2304},
		{Tick: 0, UnitIndex: 0, Kind: EventPortament, Value: 240},
		{Tick: 240, UnitIndex: 0, Kind: EventOn, Value: 240},
	}}

	herd := NewHerd(1)
	herd.Units[0] = defaultUnit()
	if err := RebuildTones(song, herd, 44100); err != nil {
		t.Fatalf("RebuildTones: %v", err)
	}
	MooPrepare(song, herd, 44100, MooPlan{Start: MooStart{Kind: StartMeas, Meas: 0}})

	const midSample = 5512 // round(120 * 45.9375)
	buf := make([]int16, midSample*2)
	if !herd.Moo(buf, song, true) {
		t.Fatal("Moo returned false before reaching the midpoint sample")
	}

	u := &herd.Units[0]
	wantMidpoint := u.KeyStart + u.KeyMargin/2
	diff := u.KeyNow - wantMidpoint
	if diff < 0 {
		diff = -diff
	}
	if diff > 3 {
		t.Errorf("KeyNow = %d, want ~%d (key_start + key_margin*0.5)", u.KeyNow, wantMidpoint)
	}
}
