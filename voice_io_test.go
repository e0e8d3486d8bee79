package pxtone

import "testing"

func TestPCMVoiceRoundTrip(t *testing.T) {
	want := &Slot{
		BasicKey: 17664,
		Tuning:   1.0,
		Flags:    FlagWaveLoop,
		Kind:     WavePCM,
		PCM: &PCMWave{
			Channels:   2,
			Bps:        16,
			SampleRate: 44100,
			Data:       []byte{1, 2, 3, 4, 5, 6, 7, 8},
		},
	}
	payload := serializePCMVoice(0, want)
	got, err := parsePCMVoice(payload)
	if err != nil {
		t.Fatalf("parsePCMVoice: %v", err)
	}
	if got.BasicKey != want.BasicKey || got.Tuning != want.Tuning || got.Flags != want.Flags {
		t.Errorf("header mismatch: got %+v", got)
	}
	if got.PCM.Channels != want.PCM.Channels || got.PCM.Bps != want.PCM.Bps || got.PCM.SampleRate != want.PCM.SampleRate {
		t.Errorf("PCM header mismatch: got %+v", got.PCM)
	}
	if string(got.PCM.Data) != string(want.PCM.Data) {
		t.Errorf("PCM data mismatch: got %v, want %v", got.PCM.Data, want.PCM.Data)
	}
}

func TestPTNVoiceRoundTrip(t *testing.T) {
	want := &Slot{
		BasicKey: 20000,
		Tuning:   1.25,
		Flags:    0,
		Kind:     WaveNoiseDesign,
		Noise: &NoiseDesignWave{
			SampleNum: 4410,
			Units: []NoiseUnit{
				{
					Enabled:  true,
					Main:     NoiseOsc{Shape: 0, Frequency: 440, Volume: 1.0, Pan: 0, Offset: 0},
					Freq:     NoiseOsc{Shape: 6, Frequency: 0, Volume: 0, Pan: 0, Offset: 0},
					Volu:     NoiseOsc{Shape: 6, Frequency: 0, Volume: 0, Pan: 0, Offset: 0},
					Pan:      0,
					Envelope: []Point{{X: 0, Y: 127}, {X: 500, Y: 0}},
				},
			},
		},
	}
	payload := serializePTNVoice(0, want)
	got, err := parsePTNVoice(payload)
	if err != nil {
		t.Fatalf("parsePTNVoice: %v", err)
	}
	if got.BasicKey != want.BasicKey || got.Tuning != want.Tuning {
		t.Errorf("header mismatch: got %+v", got)
	}
	if got.Noise.SampleNum != want.Noise.SampleNum {
		t.Errorf("SampleNum = %d, want %d", got.Noise.SampleNum, want.Noise.SampleNum)
	}
	if len(got.Noise.Units) != 1 {
		t.Fatalf("got %d units, want 1", len(got.Noise.Units))
	}
	u := got.Noise.Units[0]
	wantU := want.Noise.Units[0]
	if u.Enabled != wantU.Enabled || u.Main.Frequency != wantU.Main.Frequency {
		t.Errorf("unit mismatch: got %+v", u)
	}
	if len(u.Envelope) != len(wantU.Envelope) {
		t.Fatalf("envelope length = %d, want %d", len(u.Envelope), len(wantU.Envelope))
	}
	for i := range u.Envelope {
		if u.Envelope[i] != wantU.Envelope[i] {
			t.Errorf("envelope point %d = %+v, want %+v", i, u.Envelope[i], wantU.Envelope[i])
		}
	}
}

func TestPTVVoiceRoundTrip(t *testing.T) {
	want := &Slot{
		BasicKey:        18000,
		Volume:          104,
		Pan:             64,
		Tuning:          1.0,
		Flags:           FlagSmooth,
		Kind:            WaveOscillator,
		Osc:             &OscillatorWave{Shape: OscCoord, Points: []Point{{X: 0, Y: -100}, {X: 1000, Y: 100}}},
		Envelope:        []Point{{X: 0, Y: 127}},
		SecondsPerPoint: 0.01,
	}
	payload := serializePTVVoice(0, want)
	got, err := parsePTVVoice(payload)
	if err != nil {
		t.Fatalf("parsePTVVoice: %v", err)
	}
	if got.BasicKey != want.BasicKey || got.Volume != want.Volume || got.Pan != want.Pan || got.Flags != want.Flags {
		t.Errorf("header mismatch: got %+v", got)
	}
	if got.Osc.Shape != want.Osc.Shape || len(got.Osc.Points) != len(want.Osc.Points) {
		t.Fatalf("osc mismatch: got %+v", got.Osc)
	}
	for i := range want.Osc.Points {
		if got.Osc.Points[i] != want.Osc.Points[i] {
			t.Errorf("point %d = %+v, want %+v", i, got.Osc.Points[i], want.Osc.Points[i])
		}
	}
	if got.SecondsPerPoint != want.SecondsPerPoint {
		t.Errorf("SecondsPerPoint = %v, want %v", got.SecondsPerPoint, want.SecondsPerPoint)
	}
}

func TestCoordPointInRange(t *testing.T) {
	cases := []struct {
		p    Point
		want bool
	}{
		{Point{X: 0, Y: 0}, true},
		{Point{X: 65535, Y: 127}, true},
		{Point{X: 65535, Y: -128}, true},
		{Point{X: 65536, Y: 0}, false},
		{Point{X: -1, Y: 0}, false},
		{Point{X: 0, Y: 128}, false},
		{Point{X: 0, Y: -129}, false},
	}
	for _, c := range cases {
		if got := coordPointInRange(c.p); got != c.want {
			t.Errorf("coordPointInRange(%+v) = %v, want %v", c.p, got, c.want)
		}
	}
}
