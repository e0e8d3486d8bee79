package noise

// EnvPoint is one point of a noise-design unit's envelope polyline: X is
// in milliseconds, Y is the amplitude in [-1, +1] (spec.md §4.2).
type EnvPoint struct {
	MS float32
	Y  float32
}

// Osc is one of a noise-design unit's three oscillators (main, freq or
// volu in spec.md §4.2 terms).
type Osc struct {
	Shape     Shape
	Frequency float32 // cycles/second against the reference wavetable
	Volume    float32
	Pan       int32 // -100..100
	Offset    float32 // initial phase, 0..1 fraction of the table
}

// Unit is one of a noise-design voice's 1..4 oscillator triplets.
type Unit struct {
	Enabled  bool
	Main     Osc
	Freq     Osc
	Volu     Osc
	Pan      int32
	Envelope []EnvPoint
}

// FreqLookup converts a table-domain modulation value into a pitch-ratio
// multiplier. The noise package has no access to the root package's
// PULSE_FREQ table (that would be an import cycle, since the root
// package compiles noise-design voices by calling into this package), so
// the caller injects the lookup instead.
type FreqLookup func(idx int32) float32

type oscState struct {
	phase float64 // 0..1 fraction of the wavetable
}

func panFactors(pan int32) (left, right float32) {
	if pan < 0 {
		return 1.0, float32(100+pan) / 100.0
	}
	if pan > 0 {
		return float32(100-pan) / 100.0, 1.0
	}
	return 1.0, 1.0
}

func envelopeAt(env []EnvPoint, ms float32) float32 {
	if len(env) == 0 {
		return 1.0
	}
	if ms <= env[0].MS {
		return env[0].Y
	}
	last := env[len(env)-1]
	if ms >= last.MS {
		return last.Y
	}
	for i := 0; i+1 < len(env); i++ {
		p0, p1 := env[i], env[i+1]
		if ms >= p0.MS && ms <= p1.MS {
			if p1.MS == p0.MS {
				return p1.Y
			}
			t := (ms - p0.MS) / (p1.MS - p0.MS)
			return p0.Y + t*(p1.Y-p0.Y)
		}
	}
	return last.Y
}

func sampleTable(t []int16, phase float64) float32 {
	if len(t) == 0 {
		return 0
	}
	idx := int(phase*float64(len(t))) % len(t)
	if idx < 0 {
		idx += len(t)
	}
	return float32(t[idx]) / SamplingTop
}

// Compile synthesizes a noise-design voice's stereo PCM buffer at
// sampleRate, for sampleNum frames. Per-sample output for each enabled
// unit is main*(1+volu/2)*pan*envelope; the freq oscillator frequency-
// modulates the main oscillator's phase increment via freqLookup,
// per spec.md §4.2.
func Compile(tables Tables, units []Unit, sampleNum, sampleRate int, freqLookup FreqLookup) []int16 {
	out := make([]int16, sampleNum*2)
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	states := make([]struct{ main, freq, volu oscState }, len(units))
	for i, u := range units {
		states[i].main.phase = float64(u.Main.Offset)
		states[i].freq.phase = float64(u.Freq.Offset)
		states[i].volu.phase = float64(u.Volu.Offset)
	}

	for n := 0; n < sampleNum; n++ {
		var accL, accR float32
		ms := float32(n) * 1000.0 / float32(sampleRate)

		for ui, u := range units {
			if !u.Enabled {
				continue
			}
			st := &states[ui]

			mainTable := tables[u.Main.Shape]
			freqTable := tables[u.Freq.Shape]
			voluTable := tables[u.Volu.Shape]

			mainVal := sampleTable(mainTable, st.main.phase) * u.Main.Volume
			freqVal := sampleTable(freqTable, st.freq.phase)
			voluVal := sampleTable(voluTable, st.volu.phase) * u.Volu.Volume

			envVal := envelopeAt(u.Envelope, ms)

			left, right := panFactors(u.Pan)
			voluFactor := 1.0 + voluVal/2.0
			sample := mainVal * voluFactor * envVal

			accL += sample * left
			accR += sample * right

			// Advance phases: freq modulates main's increment via the
			// injected pitch-ratio lookup.
			mainIncr := float64(u.Main.Frequency) / float64(sampleRate)
			if freqLookup != nil {
				mod := freqLookup(int32(freqVal * SamplingTop))
				mainIncr *= float64(mod)
			}
			st.main.phase += mainIncr
			st.freq.phase += float64(u.Freq.Frequency) / float64(sampleRate)
			st.volu.phase += float64(u.Volu.Frequency) / float64(sampleRate)

			for st.main.phase >= 1 {
				st.main.phase -= 1
			}
			for st.freq.phase >= 1 {
				st.freq.phase -= 1
			}
			for st.volu.phase >= 1 {
				st.volu.phase -= 1
			}
		}

		out[n*2+0] = clampI16(float64(accL) * SamplingTop)
		out[n*2+1] = clampI16(float64(accR) * SamplingTop)
	}

	return out
}
