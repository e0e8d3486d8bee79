package pxtone

import (
	"bytes"
	"encoding/binary"
)

// magicTable maps the nine byte-exact 16-byte container magics to their
// decoded Format (spec.md §6).
var magicTable = map[string]Format{
	"PTCOLLAGE-050227": {Version: FormatV1, Kind: KindCollage},
	"PTCOLLAGE-050608": {Version: FormatV2, Kind: KindCollage},
	"PTTUNE--20050608": {Version: FormatV2, Kind: KindTune},
	"PTCOLLAGE-060115": {Version: FormatV3, Kind: KindCollage},
	"PTTUNE--20060115": {Version: FormatV3, Kind: KindTune},
	"PTCOLLAGE-060930": {Version: FormatV4, Kind: KindCollage},
	"PTTUNE--20060930": {Version: FormatV4, Kind: KindTune},
	"PTCOLLAGE-071119": {Version: FormatV5, Kind: KindCollage},
	"PTTUNE--20071119": {Version: FormatV5, Kind: KindTune},
}

var magicByFormat = func() map[Format]string {
	m := make(map[Format]string, len(magicTable))
	for s, f := range magicTable {
		m[f] = s
	}
	return m
}()

// oldEventTags are V1/V3/V4-era event tags whose representation presumes
// a linked-list structure incompatible with this engine's contiguous,
// tick-sorted event list (spec.md §9 open question (b)).
var oldEventTags = map[string]bool{
	"PROJECT=": true,
	"UNIT====": true,
	"EVENT===": true,
	"matePCM=": true,
	"pxtnUNIT": true,
	"evenMAST": true,
	"evenUNIT": true,
}

const (
	tagMasterV5 = "MasterV5"
	tagEventV5  = "Event V5"
	tagTextName = "textNAME"
	tagTextComm = "textCOMM"
	tagNumUnit  = "num UNIT"
	tagAssiUnit = "assiUNIT"
	tagAssiWoic = "assiWOIC"
	tagMatePCM  = "matePCM "
	tagMatePTV  = "matePTV "
	tagMatePTN  = "matePTN "
	tagMateOGGV = "mateOGGV"
	tagEffeDela = "effeDELA"
	tagEffeOver = "effeOVER"
	tagEnd      = "pxtoneND"
	tagEndOld   = "END====="
	tagAntiOper = "antiOPER"
)

// ReadSong parses a complete PxTone container and returns the static
// Song plus a fresh Herd sized to the song's unit count, its voice
// slots already prepared against outSampleRate (spec.md §6's
// `read_song(bytes, out_sr) -> (Song, Herd, MooInstructions) | ReadError`).
// The caller still must call MooPrepare with its own MooPlan before the
// first Moo call.
func ReadSong(data []byte, outSampleRate int) (*Song, *Herd, error) {
	r := bytes.NewReader(data)

	magic := make([]byte, 16)
	if _, err := r.Read(magic); err != nil {
		return nil, nil, wrapReadErr(ErrData, err)
	}
	format, ok := magicTable[string(magic)]
	if !ok {
		return nil, nil, newReadErr(ErrFmtUnknown)
	}

	var exeVer, dummy uint16
	if err := readFixed(r, &exeVer); err != nil {
		return nil, nil, err
	}
	if err := readFixed(r, &dummy); err != nil {
		return nil, nil, err
	}

	song := &Song{
		Format: Format{Version: format.Version, Kind: format.Kind, ExeVer: exeVer, Dummy: dummy},
		Master: DefaultMaster(),
	}
	var numUnits int

	for {
		tagBytes := make([]byte, 8)
		n, err := r.Read(tagBytes)
		if err != nil || n < 8 {
			return nil, nil, newReadErr(ErrData)
		}
		tag := string(tagBytes)

		switch {
		case tag == tagEnd || tag == tagEndOld:
			goto done
		case tag == tagAntiOper:
			return nil, nil, newReadErr(ErrAntiOperation)
		case oldEventTags[tag]:
			return nil, nil, newReadErr(ErrOldUnsupported)
		}

		var size uint32
		if err := readFixed(r, &size); err != nil {
			return nil, nil, err
		}
		if int(size) > r.Len() {
			return nil, nil, newReadErr(ErrData)
		}
		payload := make([]byte, size)
		if size > 0 {
			if _, err := r.Read(payload); err != nil {
				return nil, nil, wrapReadErr(ErrData, err)
			}
		}

		if err := dispatchTag(song, tag, payload, &numUnits); err != nil {
			return nil, nil, err
		}
	}

done:
	if numUnits == 0 {
		numUnits = 1
	}
	for len(song.Units) < numUnits {
		song.Units = append(song.Units, UnitMeta{})
	}
	song.Master.deriveMeasures(song.Events.lastTick())

	herd := NewHerd(numUnits)
	for i := range herd.Units {
		herd.Units[i] = defaultUnit()
	}
	if err := RebuildTones(song, herd, outSampleRate); err != nil {
		return nil, nil, err
	}

	return song, herd, nil
}

func defaultUnit() Unit {
	return Unit{
		Volume:   104,
		Velocity: 104,
		PanVols:  [2]int32{64, 64},
		Tuning:   1.0,
		GroupIdx: 0,
		VoiceIdx: 0,
	}
}

func dispatchTag(song *Song, tag string, payload []byte, numUnits *int) error {
	switch tag {
	case tagMasterV5:
		m, err := parseMasterV5(payload)
		if err != nil {
			return err
		}
		song.Master = m

	case tagEventV5:
		ev, err := parseEvents(payload)
		if err != nil {
			return err
		}
		song.Events = ev

	case tagTextName:
		song.Name = decodeShiftJIS(payload)

	case tagTextComm:
		song.Comment = decodeShiftJIS(payload)

	case tagNumUnit:
		var nu numUnit
		if err := readFixed(bytes.NewReader(payload), &nu); err != nil {
			return err
		}
		if nu.Num > MaxUnits {
			return newReadErr(ErrFmtUnknown)
		}
		*numUnits = int(nu.Num)
		for len(song.Units) < int(nu.Num) {
			song.Units = append(song.Units, UnitMeta{})
		}

	case tagAssiUnit:
		var iu ioUnit
		if err := readFixed(bytes.NewReader(payload), &iu); err != nil {
			return err
		}
		idx := int(iu.UnitIndex)
		if idx >= MaxUnits {
			return newReadErr(ErrFmtUnknown)
		}
		for len(song.Units) <= idx {
			song.Units = append(song.Units, UnitMeta{})
		}
		song.Units[idx].Name = decodeShiftJIS(trimNulPad(iu.Name[:]))

	case tagAssiWoic:
		var av assistVoice
		if err := readFixed(bytes.NewReader(payload), &av); err != nil {
			return err
		}
		idx := int(av.VoiceIdx)
		if idx >= MaxVoices {
			return newReadErr(ErrFmtUnknown)
		}
		ensureVoice(song, idx)
		name := decodeShiftJIS(trimNulPad(av.Name[:]))
		if name != noNameSentinel {
			song.Voices[idx].Name = name
		}

	case tagMatePCM:
		slot, err := parsePCMVoice(payload)
		if err != nil {
			return err
		}
		return attachVoiceSlot(song, payload, slot)

	case tagMatePTN:
		slot, err := parsePTNVoice(payload)
		if err != nil {
			return err
		}
		return attachVoiceSlot(song, payload, slot)

	case tagMatePTV:
		slot, err := parsePTVVoice(payload)
		if err != nil {
			return err
		}
		return attachVoiceSlot(song, payload, slot)

	case tagMateOGGV:
		slot, err := parseOGGVVoice(payload)
		if err != nil {
			return err
		}
		return attachVoiceSlot(song, payload, slot)

	case tagEffeDela:
		var d ioDelay
		if err := readFixed(bytes.NewReader(payload), &d); err != nil {
			return err
		}
		if len(song.Delays) >= MaxDelayEffects {
			return newReadErr(ErrFmtUnknown)
		}
		song.Delays = append(song.Delays, DelayConfig{Unit: int(d.Unit), Group: int(d.Group), Rate: d.Rate, Freq: d.Freq})

	case tagEffeOver:
		var o ioOverDrv
		if err := readFixed(bytes.NewReader(payload), &o); err != nil {
			return err
		}
		if len(song.Overdrives) >= MaxOverdriveEffects {
			return newReadErr(ErrFmtUnknown)
		}
		if _, ok := fxconfigBuildOverdrive(int(o.Group), o.Cut, o.Amp); !ok {
			return newReadErr(ErrInvalidData)
		}
		song.Overdrives = append(song.Overdrives, OverdriveConfig{Group: int(o.Group), Cut: o.Cut, Amp: o.Amp})

	default:
		return newReadErr(ErrFmtUnknown)
	}
	return nil
}

// attachVoiceSlot reads the wire-level x3x_unit_no field (the first u16
// of every per-voice payload) to locate the destination voice/slot:
// voice index is unit_no/2, slot index is unit_no%2.
func attachVoiceSlot(song *Song, payload []byte, slot *Slot) error {
	if len(payload) < 2 {
		return newReadErr(ErrData)
	}
	x3x := binary.LittleEndian.Uint16(payload[:2])
	voiceIdx := int(x3x) / 2
	slotIdx := int(x3x) % 2
	if voiceIdx >= MaxVoices {
		return newReadErr(ErrFmtUnknown)
	}

	ensureVoice(song, voiceIdx)
	if slotIdx == 0 {
		song.Voices[voiceIdx].Slot1 = slot
	} else {
		song.Voices[voiceIdx].Slot2 = slot
	}
	return nil
}

func ensureVoice(song *Song, idx int) {
	for len(song.Voices) <= idx {
		song.Voices = append(song.Voices, &Voice{Name: noNameSentinel})
	}
	if song.Voices[idx] == nil {
		song.Voices[idx] = &Voice{Name: noNameSentinel}
	}
}

// parseMasterV5 decodes a MasterV5 payload: fixed 15 bytes, u16
// ticks_per_beat, u8 beats_per_meas, f32 bpm, u32 repeat_tick,
// u32 last_tick.
func parseMasterV5(payload []byte) (Master, error) {
	if len(payload) != 15 {
		return Master{}, newReadErr(ErrFmtUnknown)
	}
	r := bytes.NewReader(payload)
	var tpb uint16
	var bpmeas uint8
	var bpm float32
	var repeatTick, lastTick uint32

	if err := readFixed(r, &tpb); err != nil {
		return Master{}, err
	}
	if err := readFixed(r, &bpmeas); err != nil {
		return Master{}, err
	}
	if err := readFixed(r, &bpm); err != nil {
		return Master{}, err
	}
	if err := readFixed(r, &repeatTick); err != nil {
		return Master{}, err
	}
	if err := readFixed(r, &lastTick); err != nil {
		return Master{}, err
	}

	return Master{
		TicksPerBeat:   int(tpb),
		BeatsPerMeas:   int(bpmeas),
		BPM:            bpm,
		RepeatTick:     repeatTick,
		LastTick:       lastTick,
		HasExplicitEnd: lastTick != 0,
	}, nil
}

// serializeMasterV5 encodes a Master back to its 15-byte MasterV5
// payload.
func serializeMasterV5(m *Master) []byte {
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, uint16(m.TicksPerBeat))
	_ = binary.Write(buf, binary.LittleEndian, uint8(m.BeatsPerMeas))
	_ = binary.Write(buf, binary.LittleEndian, m.BPM)
	_ = binary.Write(buf, binary.LittleEndian, m.RepeatTick)
	lastTick := m.LastTick
	if !m.HasExplicitEnd {
		lastTick = 0
	}
	_ = binary.Write(buf, binary.LittleEndian, lastTick)
	return buf.Bytes()
}

// SerializeProject re-encodes a Song back into container bytes
// (spec.md §6's `serialize_project(Song, Herd, MooInstructions) -> bytes
// | WriteError`). herd is accepted for interface symmetry with
// read_song/rebuild_tones but the wire format only needs the song's
// static records and stored effect configs.
func SerializeProject(song *Song, herd *Herd) ([]byte, error) {
	if song.Format.Version == FormatV1 && song.Format.Kind == KindTune {
		return nil, newWriteErr(ErrUnsupportedFmt)
	}
	magicStr, ok := magicByFormat[song.Format]
	if !ok {
		return nil, newWriteErr(ErrUnsupportedFmt)
	}

	buf := new(bytes.Buffer)
	buf.WriteString(magicStr)
	_ = binary.Write(buf, binary.LittleEndian, song.Format.ExeVer)
	_ = binary.Write(buf, binary.LittleEndian, song.Format.Dummy)

	writeTag(buf, tagMasterV5, serializeMasterV5(&song.Master))
	writeTag(buf, tagEventV5, serializeEvents(&song.Events))

	if song.Name != "" {
		writeTag(buf, tagTextName, encodeShiftJIS(song.Name))
	}
	if song.Comment != "" {
		writeTag(buf, tagTextComm, encodeShiftJIS(song.Comment))
	}

	if len(song.Units) > 0 {
		numBuf := new(bytes.Buffer)
		_ = binary.Write(numBuf, binary.LittleEndian, numUnit{Num: uint16(len(song.Units))})
		writeTag(buf, tagNumUnit, numBuf.Bytes())

		for i, u := range song.Units {
			uBuf := new(bytes.Buffer)
			rec := ioUnit{UnitIndex: uint16(i)}
			copy(rec.Name[:], padNameBytes(u.Name, MaxNameBytes))
			_ = binary.Write(uBuf, binary.LittleEndian, rec)
			writeTag(buf, tagAssiUnit, uBuf.Bytes())
		}
	}

	for i, v := range song.Voices {
		if v == nil {
			continue
		}
		if v.Name != noNameSentinel && v.Name != "" {
			avBuf := new(bytes.Buffer)
			rec := assistVoice{VoiceIdx: uint16(i)}
			copy(rec.Name[:], padNameBytes(v.Name, MaxNameBytes))
			_ = binary.Write(avBuf, binary.LittleEndian, rec)
			writeTag(buf, tagAssiWoic, avBuf.Bytes())
		}

		for slotIdx := 0; slotIdx < v.numSlots(); slotIdx++ {
			slot := v.slot(slotIdx)
			if slot == nil {
				continue
			}
			unitNo := uint16(i*2 + slotIdx)
			switch slot.Kind {
			case WavePCM:
				writeTag(buf, tagMatePCM, serializePCMVoice(unitNo, slot))
			case WaveOscillator:
				if err := validateCoordPoints(slot); err != nil {
					return nil, err
				}
				writeTag(buf, tagMatePTV, serializePTVVoice(unitNo, slot))
			case WaveNoiseDesign:
				writeTag(buf, tagMatePTN, serializePTNVoice(unitNo, slot))
			case WaveOggVorbis:
				writeTag(buf, tagMateOGGV, serializeOGGVVoice(unitNo, slot))
			}
		}
	}

	for _, d := range song.Delays {
		dBuf := new(bytes.Buffer)
		_ = binary.Write(dBuf, binary.LittleEndian, ioDelay{Unit: uint16(d.Unit), Group: uint16(d.Group), Rate: d.Rate, Freq: d.Freq})
		writeTag(buf, tagEffeDela, dBuf.Bytes())
	}
	for _, o := range song.Overdrives {
		oBuf := new(bytes.Buffer)
		_ = binary.Write(oBuf, binary.LittleEndian, ioOverDrv{Group: uint16(o.Group), Cut: o.Cut, Amp: o.Amp})
		writeTag(buf, tagEffeOver, oBuf.Bytes())
	}

	buf.WriteString(tagEnd)
	return buf.Bytes(), nil
}

func writeTag(buf *bytes.Buffer, tag string, payload []byte) {
	buf.WriteString(tag)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(payload)))
	buf.Write(payload)
}

func validateCoordPoints(slot *Slot) error {
	for _, p := range slot.Osc.Points {
		if !coordPointInRange(p) {
			return newWriteErr(ErrCoordWavePointOutOfRange)
		}
	}
	for _, p := range slot.Envelope {
		if !coordPointInRange(p) {
			return newWriteErr(ErrCoordWavePointOutOfRange)
		}
	}
	return nil
}
