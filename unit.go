package pxtone

// panTimeBufLen is the fixed ring-buffer length backing the pan-time
// (stereo widening) effect: up to 63 native samples of inter-channel
// delay, plus one slot of headroom (spec.md §3, §4.3 step 4).
const panTimeBufLen = 64

// voiceTone is the per-channel playback state for one of a unit's 1-2
// voice slots. It is adapted from modplayer's channel struct in
// player.go (samplePosition/period/effect bookkeeping), generalized to
// PxTone's envelope-table-driven tone model.
type voiceTone struct {
	lifeCount  int
	onCount    int
	smpPos     float64
	offsetFreq float64
	envPos     int
	envVolume  int32
	envStart   int32
	envRelease int
}

// Unit is the polyphonic voice instance ("cow" in the reference engine's
// own vocabulary) driven by the event stream. Adapted from modplayer's
// channel struct, generalized from a single Amiga-period channel to a
// two-tone, portamento-capable unit with pan-time ring buffers.
type Unit struct {
	KeyNow    int32
	KeyStart  int32
	KeyMargin int32

	PortaPos         int64
	PortaDestination int64

	PanVols      [2]int32
	PanTimeOffs  [2]int
	panTimeBufs  [2][panTimeBufLen]int32

	Volume   int32
	Velocity int32
	GroupIdx int
	Tuning   float32
	VoiceIdx int
	Mute     bool

	tones [2]voiceTone
}

// resetTones rebinds this unit's two tones to its currently assigned
// voice, as moo_prepare and the SetVoice event handler both do
// (spec.md §4.3).
func (u *Unit) resetTones() {
	u.tones[0] = voiceTone{}
	u.tones[1] = voiceTone{}
}

// toneEnvelope advances env_volume for a single tone: from the envelope
// table while on_count>0, otherwise linearly toward zero over env_release
// samples (spec.md §4.3 step 1).
func (t *voiceTone) toneEnvelope(slot *Slot) {
	if t.lifeCount <= 0 {
		return
	}
	if len(slot.prepared.EnvTable) == 0 {
		return
	}

	if t.onCount > 0 {
		idx := t.envPos
		if idx >= len(slot.prepared.EnvTable) {
			idx = len(slot.prepared.EnvTable) - 1
		}
		t.envVolume = int32(slot.prepared.EnvTable[idx])
		t.envPos++
	} else {
		if t.envRelease <= 0 {
			t.envVolume = 0
			return
		}
		// Linear ramp from env_start toward zero over env_release samples.
		elapsed := t.envPos
		if elapsed > t.envRelease {
			elapsed = t.envRelease
		}
		remain := t.envRelease - elapsed
		t.envVolume = int32(int64(t.envStart) * int64(remain) / int64(t.envRelease))
		t.envPos++
	}
}

// toneSample computes one tone's contribution to channel ch, per the
// scaling rule of spec.md §4.3 step 3: velocity/128 * volume/128 *
// pan_vol[ch]/64, further scaled by env_volume/128 when the slot has an
// envelope, and by life_count/smp_smooth during the SMOOTH tail.
func (u *Unit) toneSample(slotIdx, ch int, slot *Slot, smpSmooth int) int32 {
	t := &u.tones[slotIdx]
	if t.lifeCount <= 0 {
		return 0
	}

	sw := slot.prepared.SampleW
	pos := int(t.smpPos)
	idx := pos*2 + ch
	if idx < 0 || idx >= len(sw) {
		return 0
	}
	samp := int32(sw[idx])

	out := samp * u.Velocity / 128 * u.Volume / 128 * u.PanVols[ch] / 64

	if len(slot.prepared.EnvTable) > 0 {
		out = out * t.envVolume / 128
	}

	if slot.Flags&FlagSmooth != 0 && smpSmooth > 0 && t.lifeCount < smpSmooth {
		out = out * int32(t.lifeCount) / int32(smpSmooth)
	}

	return out
}

// toneIncrementKey applies portamento: linearly interpolate key_now from
// key_start toward key_start+key_margin as porta_pos advances toward
// porta_destination (spec.md §4.3 step 9).
func (u *Unit) toneIncrementKey() {
	if u.PortaPos < u.PortaDestination {
		u.PortaPos++
		if u.PortaDestination > 0 {
			frac := float64(u.PortaPos) / float64(u.PortaDestination)
			if frac > 1 {
				frac = 1
			}
			u.KeyNow = u.KeyStart + int32(float64(u.KeyMargin)*frac)
		}
	} else {
		u.KeyNow = u.KeyStart + u.KeyMargin
	}
}

// toneIncrementSample advances a tone's sample position by
// offset_freq*tuning*PULSE_FREQ.get2(key_now)*smp_stride, wrapping or
// killing the tone on overflow, and advances the envelope
// attack-to-release transition at the exact on_count->0 edge
// (spec.md §4.3 step 9).
func (u *Unit) toneIncrementSample(slotIdx int, slot *Slot, smpStride float64) {
	t := &u.tones[slotIdx]
	if t.lifeCount <= 0 {
		return
	}

	ratio := float64(pulseGet2(u.KeyNow))
	t.smpPos += t.offsetFreq * float64(u.Tuning) * ratio * smpStride

	numSamples := slot.prepared.NumSamples
	if numSamples > 0 && t.smpPos >= float64(numSamples) {
		if slot.Flags&FlagWaveLoop != 0 {
			t.smpPos -= float64(numSamples)
			if t.smpPos < 0 || t.smpPos >= float64(numSamples) {
				t.smpPos = 0
			}
		} else {
			t.lifeCount = 0
		}
	}

	t.lifeCount--
	if t.onCount > 0 {
		t.onCount--
		if t.onCount == 0 {
			t.envStart = t.envVolume
			t.envPos = 0
		}
	}
}
