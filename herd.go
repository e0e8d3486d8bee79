package pxtone

import (
	"math"

	"github.com/pxcorego/pxtone/internal/delay"
	"github.com/pxcorego/pxtone/internal/fxconfig"
	"github.com/pxcorego/pxtone/internal/noise"
	"github.com/pxcorego/pxtone/internal/overdrive"
)

func fxconfigBuildDelay(unit, group int, rate, freq, bpm float32, beatsPerMeas, outSampleRate int) *delay.Delay {
	return fxconfig.BuildDelay(unit, group, rate, freq, bpm, beatsPerMeas, outSampleRate)
}

func fxconfigBuildOverdrive(group int, cut, amp float32) (*overdrive.Overdrive, bool) {
	return fxconfig.BuildOverdrive(group, cut, amp)
}

// MooStartKind discriminates a MooPlan's start position representation.
type MooStartKind int

const (
	StartMeas MooStartKind = iota
	StartSample
	StartFraction
)

// MooStart is the render start position, expressed in one of three units
// (spec.md §6's `MooPlan{start_pos: Meas|Sample|Fraction, ...}`).
type MooStart struct {
	Kind     MooStartKind
	Meas     int
	Sample   int64
	Fraction float64 // 0..1 fraction of the song
}

// MooPlan configures one moo_prepare call: where to start, where the
// loop region's end/repeat measures are (defaulting to the song's own
// master values when nil), and whether playback loops at all.
type MooPlan struct {
	Start      MooStart
	MeasEnd    *int
	MeasRepeat *int
	Loop       bool
}

// Herd is the render context: up to MaxUnits live units, up to
// MaxDelayEffects delays and MaxOverdriveEffects overdrives, the global
// sample cursor and its boundaries, and the rotating pan-time index.
// Created by the codec, reconfigured by MooPrepare, mutated only by Moo
// and event dispatch - spec.md §3's "Herd (dynamic)".
type Herd struct {
	Units      []Unit
	Delays     []*delay.Delay
	Overdrives []*overdrive.Overdrive

	smpCount     int64
	smpEnd       int64
	smpRepeat    int64
	smpStride    float64
	smpSmooth    int
	timePanIndex int
	evtIdx       int
	loop_        bool

	outSampleRate  int
	samplesPerTick float32

	events []Event // non-debug, tick-sorted; shared, read-only during render

	groups [NumGroups][2]int32
}

// RebuildTones prepares every voice slot's runtime sample buffer and
// envelope table against outSampleRate, and (re)constructs herd's
// delay/overdrive effects from the song's stored records. Must be
// called before MooPrepare whenever the song's voices or effect records
// change (spec.md §6's `rebuild_tones(ins, out_sr, delays, overdrives,
// master)`).
func RebuildTones(song *Song, herd *Herd, outSampleRate int) error {
	tables := noise.Generate()
	freqLookup := func(idx int32) float32 { return pulseGet(idx) }

	for _, v := range song.Voices {
		for i := 0; i < v.numSlots(); i++ {
			if err := prepareSlot(v.slot(i), tables, freqLookup, outSampleRate); err != nil {
				return err
			}
		}
	}

	herd.outSampleRate = outSampleRate
	herd.Delays = herd.Delays[:0]
	for _, d := range song.Delays {
		if len(herd.Delays) >= MaxDelayEffects {
			break
		}
		built := fxconfigBuildDelay(d.Unit, d.Group, d.Rate, d.Freq, song.Master.BPM, song.Master.BeatsPerMeas, outSampleRate)
		herd.Delays = append(herd.Delays, built)
	}

	herd.Overdrives = herd.Overdrives[:0]
	for _, o := range song.Overdrives {
		if len(herd.Overdrives) >= MaxOverdriveEffects {
			break
		}
		if built, ok := fxconfigBuildOverdrive(o.Group, o.Cut, o.Amp); ok {
			herd.Overdrives = append(herd.Overdrives, built)
		}
	}

	return nil
}

// prepareSlot computes a Slot's prepared runtime instance: the stereo
// i16 sample buffer at native 44.1kHz (decoding PCM/Ogg or compiling
// Wave/Noise sources), and a dense envelope table built from the point
// polyline at SecondsPerPoint resolution.
func prepareSlot(s *Slot, tables noise.Tables, freqLookup noise.FreqLookup, outSampleRate int) error {
	switch s.Kind {
	case WavePCM:
		s.prepared.SampleW = pcmToStereo16(s.PCM)
		s.prepared.NumSamples = len(s.prepared.SampleW) / 2

	case WaveOscillator:
		s.prepared.SampleW = compileOscillator(s.Osc)
		s.prepared.NumSamples = len(s.prepared.SampleW) / 2

	case WaveNoiseDesign:
		units := make([]noise.Unit, len(s.Noise.Units))
		for i, u := range s.Noise.Units {
			units[i] = noiseUnitToCompileUnit(u)
		}
		sampleNum := s.Noise.SampleNum
		if sampleNum > MaxNoiseSampleCount {
			sampleNum = MaxNoiseSampleCount
		}
		s.prepared.SampleW = noise.Compile(tables, units, sampleNum, nativeSampleRate, freqLookup)
		s.prepared.NumSamples = sampleNum

	case WaveOggVorbis:
		samples, channels, _, err := decodeOggVorbis(s.Ogg.RawOgg)
		if err != nil {
			return err
		}
		s.prepared.SampleW = monoOrStereoToStereo(samples, channels)
		s.prepared.NumSamples = len(s.prepared.SampleW) / 2
	}

	envTable, release := buildEnvelopeTable(s.Envelope, s.SecondsPerPoint)
	s.prepared.EnvTable = envTable
	s.prepared.EnvRelease = release
	s.prepared.ready = true
	return nil
}

func noiseUnitToCompileUnit(u NoiseUnit) noise.Unit {
	toOsc := func(o NoiseOsc) noise.Osc {
		return noise.Osc{
			Shape:     noise.Shape(o.Shape),
			Frequency: o.Frequency,
			Volume:    o.Volume,
			Pan:       o.Pan,
			Offset:    float32(o.Offset) / 128,
		}
	}
	env := make([]noise.EnvPoint, len(u.Envelope))
	for i, p := range u.Envelope {
		env[i] = noise.EnvPoint{MS: float32(p.X), Y: float32(p.Y) / 128}
	}
	return noise.Unit{
		Enabled:  u.Enabled,
		Main:     toOsc(u.Main),
		Freq:     toOsc(u.Freq),
		Volu:     toOsc(u.Volu),
		Pan:      u.Pan,
		Envelope: env,
	}
}

// buildEnvelopeTable expands a point polyline (x in SecondsPerPoint
// units, y in [-128,127]) into a dense per-sample table of the linearly
// interpolated y values (not clamped; 128 is full scale), plus the release
// length in native samples: the span from the last point to the point
// before it (from sample 0 when there is only one point), or 0 with no
// points.
func buildEnvelopeTable(points []Point, secondsPerPoint float32) ([]int16, int) {
	if len(points) == 0 {
		return nil, 0
	}

	last := points[len(points)-1]
	lastSample := int(float32(last.X) * secondsPerPoint * nativeSampleRate)
	if lastSample > MaxEnvelopeTableSamples {
		lastSample = MaxEnvelopeTableSamples
	}
	if lastSample <= 0 {
		return []int16{int16(last.Y)}, 0
	}

	table := make([]int16, lastSample+1)
	for i := range table {
		x := float32(i) / (secondsPerPoint * nativeSampleRate)
		table[i] = int16(envelopeValueAt(points, x))
	}

	release := lastSample
	if len(points) >= 2 {
		prev := points[len(points)-2]
		prevSample := int(float32(prev.X) * secondsPerPoint * nativeSampleRate)
		release = lastSample - prevSample
		if release < 0 {
			release = 0
		}
	}
	return table, release
}

func envelopeValueAt(points []Point, x float32) int32 {
	if x <= float32(points[0].X) {
		return int32(points[0].Y)
	}
	last := points[len(points)-1]
	if x >= float32(last.X) {
		return int32(last.Y)
	}
	for i := 0; i+1 < len(points); i++ {
		p0, p1 := points[i], points[i+1]
		if x >= float32(p0.X) && x <= float32(p1.X) {
			if p1.X == p0.X {
				return int32(p1.Y)
			}
			t := (x - float32(p0.X)) / float32(p1.X-p0.X)
			return int32(float32(p0.Y) + t*float32(p1.Y-p0.Y))
		}
	}
	return int32(last.Y)
}

func pcmToStereo16(p *PCMWave) []int16 {
	bytesPerSample := int(p.Bps) / 8
	if bytesPerSample <= 0 {
		bytesPerSample = 2
	}
	frameBytes := bytesPerSample * int(p.Channels)
	if frameBytes <= 0 {
		return nil
	}
	numFrames := len(p.Data) / frameBytes
	out := make([]int16, numFrames*2)

	for f := 0; f < numFrames; f++ {
		base := f * frameBytes
		left := readPCMSample(p.Data[base:], bytesPerSample)
		right := left
		if p.Channels > 1 {
			right = readPCMSample(p.Data[base+bytesPerSample:], bytesPerSample)
		}
		out[f*2] = left
		out[f*2+1] = right
	}
	return out
}

func readPCMSample(b []byte, width int) int16 {
	switch width {
	case 1:
		if len(b) < 1 {
			return 0
		}
		return (int16(b[0]) - 128) * 256 // 8-bit PCM is unsigned, center at 0
	default:
		if len(b) < 2 {
			return 0
		}
		return int16(uint16(b[0]) | uint16(b[1])<<8)
	}
}

func monoOrStereoToStereo(samples []int16, channels int) []int16 {
	if channels >= 2 {
		return samples
	}
	out := make([]int16, len(samples)*2)
	for i, s := range samples {
		out[i*2] = s
		out[i*2+1] = s
	}
	return out
}

func compileOscillator(w *OscillatorWave) []int16 {
	const sampleNum = noiseSampleNumAlias
	table := make([]int16, sampleNum)
	switch w.Shape {
	case OscCoord:
		for i := range table {
			table[i] = int16(envelopeValueAt(w.Points, float32(i)) * 256)
		}
	case OscOvertone:
		for _, p := range w.Points {
			amp := float64(p.Y)
			harmonic := int(p.X)
			if harmonic <= 0 {
				continue
			}
			for i := range table {
				phase := float64(i) / float64(len(table))
				table[i] += int16(amp * sinLUT(phase*float64(harmonic)))
			}
		}
	}

	out := make([]int16, len(table)*2)
	for i, v := range table {
		out[i*2] = v
		out[i*2+1] = v
	}
	return out
}

// noiseSampleNumAlias mirrors noise.SampleNum (441) for the oscillator
// table's length: both are driven by the same 44100/100 reference rate.
const noiseSampleNumAlias = 441

func sinLUT(cycles float64) float64 {
	return math.Sin(cycles * 2 * math.Pi)
}

// basicKeyNative is the reference pitch (in 1/256-semitone Key units)
// against which a slot's own basic_key is compared to derive its
// intrinsic playback-rate ratio (spec.md §4.3's "PULSE_FREQ[basic_key_native
// - slot.basic_key]"). It coincides with the DEFAULT_KEY used by the
// reference engine's own test fixtures.
const basicKeyNative int32 = 24576

// NewHerd allocates a Herd with numUnits live units (capped at MaxUnits),
// ready for MooPrepare.
func NewHerd(numUnits int) *Herd {
	if numUnits > MaxUnits {
		numUnits = MaxUnits
	}
	return &Herd{Units: make([]Unit, numUnits)}
}

// MooPrepare computes samples_per_tick, derives smp_end/smp_repeat/
// smp_start from measure positions in f64, resets the event cursor and
// pan-time rotation, and re-tunes every unit (spec.md §4.3
// "Preparation (moo_prepare)").
func MooPrepare(song *Song, herd *Herd, outSampleRate int, plan MooPlan) {
	bpm := float64(song.Master.BPM)
	tpb := float64(song.Master.TicksPerBeat)
	samplesPerTick := 60.0 * float64(outSampleRate) / (bpm * tpb)
	herd.samplesPerTick = float32(samplesPerTick)
	herd.smpStride = float64(nativeSampleRate) / float64(outSampleRate)
	herd.smpSmooth = outSampleRate / 250
	herd.outSampleRate = outSampleRate
	herd.loop_ = plan.Loop

	ticksPerMeas := float64(song.Master.TicksPerMeas())
	measToSample := func(meas int) int64 {
		tick := float64(meas) * ticksPerMeas
		return int64(tick * samplesPerTick)
	}

	measEnd := song.Master.LastMeas
	if plan.MeasEnd != nil {
		measEnd = *plan.MeasEnd
	}
	measRepeat := song.Master.RepeatMeas
	if plan.MeasRepeat != nil {
		measRepeat = *plan.MeasRepeat
	}
	herd.smpEnd = measToSample(measEnd)
	herd.smpRepeat = measToSample(measRepeat)

	switch plan.Start.Kind {
	case StartSample:
		herd.smpCount = plan.Start.Sample
	case StartFraction:
		total := measToSample(song.Master.MeasNum)
		herd.smpCount = int64(plan.Start.Fraction * float64(total))
	default:
		herd.smpCount = measToSample(plan.Start.Meas)
	}

	herd.evtIdx = 0
	herd.timePanIndex = 0

	herd.events = herd.events[:0]
	for _, ev := range song.Events.Events {
		if ev.Kind == PtcowDebugKind {
			continue
		}
		herd.events = append(herd.events, ev)
	}

	retuneAllUnits(herd, song)
}

// retuneAllUnits rebinds every unit's two tones to its assigned voice
// and recomputes offset_freq, as moo_prepare and the loop-rewind branch
// of next_sample's step 11 both require.
func retuneAllUnits(herd *Herd, song *Song) {
	for i := range herd.Units {
		u := &herd.Units[i]
		u.resetTones()
		voice := voiceAt(song, u.VoiceIdx)
		if voice == nil {
			continue
		}
		for slotIdx := 0; slotIdx < voice.numSlots(); slotIdx++ {
			slot := voice.slot(slotIdx)
			if slot == nil {
				continue
			}
			u.tones[slotIdx].offsetFreq = slotOffsetFreq(slot, song.Master.BPM)
		}
	}
}

func slotOffsetFreq(slot *Slot, bpm float32) float64 {
	if slot.Flags&FlagBeatFit != 0 {
		if slot.Tuning == 0 {
			return 0
		}
		return float64(slot.prepared.NumSamples) * float64(bpm) / (float64(nativeSampleRate) * 60.0 * float64(slot.Tuning))
	}
	ratio := pulseGet(basicKeyNative - slot.BasicKey)
	return float64(ratio) * float64(slot.Tuning)
}

// Moo renders len(buf)/2 stereo frames into buf, the reference engine's
// own "moo" vocabulary for "produce the next block of PCM samples"
// (spec.md §6's `herd.moo(ins, song, &mut i16_buf, advance) -> bool`).
// Returns false at the frame on which the stream reaches its end (that
// frame is still written); frames of buf after it are left untouched.
func (h *Herd) Moo(buf []int16, song *Song, advance bool) bool {
	numFrames := len(buf) / 2
	for f := 0; f < numFrames; f++ {
		if !h.nextSample(song, buf[f*2:f*2+2], advance) {
			return false
		}
	}
	return true
}

// nextSample implements the exact per-sample pipeline of spec.md §4.3
// "Per-sample loop (next_sample)", steps 1-11 in order.
func (h *Herd) nextSample(song *Song, frame []int16, advance bool) bool {
	// Step 1: advance every tone's envelope.
	for i := range h.Units {
		u := &h.Units[i]
		voice := voiceAt(song, u.VoiceIdx)
		for slotIdx := range u.tones {
			var slot *Slot
			if voice != nil {
				slot = voice.slot(slotIdx)
			}
			if slot != nil {
				u.tones[slotIdx].toneEnvelope(slot)
			}
		}
	}

	// Step 2: drain due events.
	if advance {
		h.drainEvents(song)
	}

	// Step 3: tone_sample into the pan-time ring buffers.
	for i := range h.Units {
		u := &h.Units[i]
		voice := voiceAt(song, u.VoiceIdx)
		for ch := 0; ch < 2; ch++ {
			var sum int32
			for slotIdx := 0; slotIdx < 2; slotIdx++ {
				var slot *Slot
				if voice != nil {
					slot = voice.slot(slotIdx)
				}
				if slot == nil {
					continue
				}
				sum += u.toneSample(slotIdx, ch, slot, h.smpSmooth)
			}
			u.panTimeBufs[ch][h.timePanIndex] = sum
		}
	}

	// Reset the group accumulators for this sample.
	for g := 0; g < NumGroups; g++ {
		h.groups[g][0] = 0
		h.groups[g][1] = 0
	}

	// Step 4: mix each unit's pan-time-delayed sample into its group.
	for i := range h.Units {
		u := &h.Units[i]
		if u.Mute {
			continue
		}
		for ch := 0; ch < 2; ch++ {
			idx := (h.timePanIndex - u.PanTimeOffs[ch] + panTimeBufLen*4) % panTimeBufLen
			h.groups[u.GroupIdx][ch] += u.panTimeBufs[ch][idx]
		}
	}

	// Step 5: overdrive, in place on its target group.
	for _, od := range h.Overdrives {
		g := od.Group
		h.groups[g][0] = od.Process(h.groups[g][0])
		h.groups[g][1] = od.Process(h.groups[g][1])
	}

	// Step 6: delay read-add-writeback (offset not yet advanced).
	for _, d := range h.Delays {
		g := d.Group
		h.groups[g][0] = d.Process(0, h.groups[g][0])
		h.groups[g][1] = d.Process(1, h.groups[g][1])
	}

	// Step 7: sum groups, clamp, emit.
	var outL, outR int32
	for g := 0; g < NumGroups; g++ {
		outL += h.groups[g][0]
		outR += h.groups[g][1]
	}
	frame[0] = clampSampleI16(outL)
	frame[1] = clampSampleI16(outR)

	// Step 8: advance the sample clock and pan-time rotation.
	if advance {
		h.smpCount++
		h.timePanIndex = (h.timePanIndex + 1) % panTimeBufLen
	}

	// Step 9: portamento and sample-position advance.
	for i := range h.Units {
		u := &h.Units[i]
		u.toneIncrementKey()
		voice := voiceAt(song, u.VoiceIdx)
		for slotIdx := 0; slotIdx < 2; slotIdx++ {
			var slot *Slot
			if voice != nil {
				slot = voice.slot(slotIdx)
			}
			if slot != nil {
				u.toneIncrementSample(slotIdx, slot, h.smpStride)
			}
		}
	}

	// Step 10: advance delay offsets.
	for _, d := range h.Delays {
		d.Advance()
	}

	// Step 11: loop or end. A Null event (or one targeting an
	// out-of-range unit) never forces this - it only freezes evt_idx, so
	// already-triggered tones, envelopes and delay tails keep decaying
	// naturally until smp_count independently reaches smp_end.
	if h.smpCount >= h.smpEnd {
		if h.loop_ {
			h.smpCount = h.smpRepeat
			h.evtIdx = 0
			retuneAllUnits(h, song)
		} else {
			return false
		}
	}

	return true
}

// drainEvents dispatches every event whose tick has come due at the
// current sample position, per spec.md §4.3 step 2. A Null event, or one
// targeting an out-of-range unit, stops dispatch for this sample without
// advancing evt_idx: it re-triggers and re-stops every subsequent
// sample, permanently freezing the event cursor. Termination is driven
// solely by smp_count independently reaching smp_end (step 11), not by
// this freeze.
func (h *Herd) drainEvents(song *Song) {
	for h.evtIdx < len(h.events) {
		ev := h.events[h.evtIdx]
		dueSample := float64(ev.Tick) * float64(h.samplesPerTick)
		if dueSample > float64(h.smpCount) {
			break
		}
		if ev.Kind == EventNull || int(ev.UnitIndex) >= len(h.Units) {
			break
		}
		h.evtIdx++
		h.doEvent(song, ev, h.samplesPerTick)
	}
}

func clampSampleI16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
