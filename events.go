package pxtone

import "math"

// parseEvents decodes an Event V5 payload: u32 ser_size, u32 event_count,
// then event_count records of {varint delta_tick, u8 unit_no, u8 kind,
// varint value} (spec.md §4.1). Absolute ticks are a running sum of the
// deltas.
func parseEvents(payload []byte) (EveList, error) {
	if len(payload) < 8 {
		return EveList{}, newReadErr(ErrData)
	}
	serSize := le32(payload[0:4])
	count := le32(payload[4:8])
	pos := 8

	events := make([]Event, 0, count)
	var tick uint32
	for i := uint32(0); i < count; i++ {
		delta, n, err := decodeVarint(payload[pos:])
		if err != nil {
			return EveList{}, err
		}
		pos += n
		tick += delta

		if pos >= len(payload) {
			return EveList{}, newReadErr(ErrData)
		}
		unitNo := payload[pos]
		pos++
		if pos >= len(payload) {
			return EveList{}, newReadErr(ErrData)
		}
		kind := payload[pos]
		pos++
		if kind > 15 {
			return EveList{}, newReadErr(ErrInvalidData)
		}

		value, n, err := decodeVarint(payload[pos:])
		if err != nil {
			return EveList{}, err
		}
		pos += n

		events = append(events, Event{
			Tick:      tick,
			UnitIndex: unitNo,
			Kind:      EventKind(kind),
			Value:     value,
		})
	}

	return EveList{Events: events, SerSize: serSize}, nil
}

// serializeEvents reverses parseEvents: reconstructs delta ticks, skips
// the synthetic PtcowDebug marker, and recomputes event_count from what
// actually gets written (never trusting a stale stored count). ser_size
// is echoed back verbatim - it is opaque (spec.md §9(c)).
func serializeEvents(e *EveList) []byte {
	body := make([]byte, 0, len(e.Events)*4)
	var lastTick uint32
	var count uint32

	for _, ev := range e.Events {
		if ev.Kind == PtcowDebugKind {
			continue
		}
		delta := ev.Tick - lastTick
		lastTick = ev.Tick

		body = encodeVarint(body, delta)
		body = append(body, ev.UnitIndex, byte(ev.Kind))
		body = encodeVarint(body, ev.Value)
		count++
	}

	out := make([]byte, 8, 8+len(body))
	putLE32(out[0:4], e.SerSize)
	putLE32(out[4:8], count)
	return append(out, body...)
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

// doEvent dispatches one event against the Herd's live unit state, per
// spec.md §4.3's "Event dispatch" rules. samplesPerTick is the current
// moo_prepare-computed conversion factor; smpEnd bounds a life_count
// computation that has no following On event to bound it against.
// Callers (drainEvents) never pass a Null event or one targeting an
// out-of-range unit - both stop dispatch before reaching here.
func (h *Herd) doEvent(song *Song, ev Event, samplesPerTick float32) {
	u := &h.Units[ev.UnitIndex]

	switch ev.Kind {
	case EventNull:
		// unreachable, see doc comment

	case EventOn:
		h.doOnEvent(song, u, ev, samplesPerTick)

	case EventKey:
		k := int32(ev.Value)
		u.KeyStart = u.KeyNow
		u.KeyMargin = k - u.KeyStart
		u.PortaPos = 0

	case EventPanVol:
		v := int32(ev.Value)
		if v >= 64 {
			u.PanVols[0] = 128 - v
			u.PanVols[1] = 64
		} else {
			u.PanVols[0] = 64
			u.PanVols[1] = v
		}

	case EventVelocity:
		u.Velocity = int32(int16(ev.Value))

	case EventVolume:
		u.Volume = int32(int16(ev.Value))

	case EventPortament:
		u.PortaDestination = int64(float32(ev.Value) * samplesPerTick)

	case EventSetVoice:
		u.VoiceIdx = int(ev.Value)
		u.resetTones()
		if voice := voiceAt(song, u.VoiceIdx); voice != nil {
			for slotIdx := 0; slotIdx < voice.numSlots(); slotIdx++ {
				if slot := voice.slot(slotIdx); slot != nil {
					u.tones[slotIdx].offsetFreq = slotOffsetFreq(slot, song.Master.BPM)
				}
			}
		}

	case EventSetGroup:
		u.GroupIdx = int(ev.Value)

	case EventTuning:
		u.Tuning = math.Float32frombits(ev.Value)

	case EventPanTime:
		p := int(ev.Value)
		off := absInt(p-64) * nativeSampleRate / h.outSampleRate
		if off > panTimeBufLen-1 {
			off = panTimeBufLen - 1
		}
		if p >= 64 {
			u.PanTimeOffs[0] = off
			u.PanTimeOffs[1] = 0
		} else {
			u.PanTimeOffs[0] = 0
			u.PanTimeOffs[1] = off
		}

	case EventBeatClock, EventBeatTempo, EventBeatNum, EventRepeat, EventLast, PtcowDebugKind:
		// legacy/no-op, per spec.md §4.3

	default:
		defaultLogger.Printf("pxtone: unit %d unknown event kind %d, ignored", ev.UnitIndex, ev.Kind)
	}
}

// doOnEvent implements the On{duration} handler. duration<=0 silences
// every tone on the unit; otherwise it latches the pending portamento
// margin and (re)starts each tone slot's life.
func (h *Herd) doOnEvent(song *Song, u *Unit, ev Event, samplesPerTick float32) {
	onCount := int(float32(int32(ev.Value)) * samplesPerTick)
	if onCount <= 0 {
		for i := range u.tones {
			u.tones[i].lifeCount = 0
		}
		return
	}

	u.KeyStart += u.KeyMargin
	u.KeyMargin = 0

	voice := voiceAt(song, u.VoiceIdx)
	boundSamples := h.nextOnBound(ev.UnitIndex, ev.Tick, samplesPerTick)

	for i := 0; i < 2; i++ {
		t := &u.tones[i]
		var slot *Slot
		if voice != nil {
			slot = voice.slot(i)
		}

		envRelease := 0
		hasEnv := false
		if slot != nil {
			envRelease = slot.prepared.EnvRelease
			hasEnv = len(slot.prepared.EnvTable) > 0
		}

		life := onCount + envRelease
		if boundSamples >= 0 && boundSamples < life {
			life = boundSamples
		}

		t.lifeCount = life
		t.onCount = onCount
		t.smpPos = 0
		t.envPos = 0
		t.envRelease = envRelease
		if hasEnv {
			t.envVolume = 0
		} else {
			t.envVolume = 128
		}
	}
}

// nextOnBound returns the sample distance from tick to the next On
// event on the same unit, or the distance to smp_end if there isn't
// one, per spec.md §4.3's life_count rule (b). The result is never
// negative: past smp_end it is 0.
func (h *Herd) nextOnBound(unitIndex uint8, tick uint32, samplesPerTick float32) int {
	for i := h.evtIdx; i < len(h.events); i++ {
		e := h.events[i]
		if e.UnitIndex == unitIndex && e.Kind == EventOn {
			return int(float32(e.Tick-tick) * samplesPerTick)
		}
	}
	remain := h.smpEnd - h.smpCount
	if remain < 0 {
		remain = 0
	}
	return int(remain)
}

func voiceAt(song *Song, idx int) *Voice {
	if idx < 0 || idx >= len(song.Voices) {
		return nil
	}
	return song.Voices[idx]
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
