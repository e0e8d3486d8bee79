package pxtone

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Wire-level per-voice record layouts (spec.md §6). These mirror the
// reference engine's packed C structs; modplayer's bytes.Reader +
// encoding/binary.Read-with-anonymous-struct idiom (see mod.go/s3m.go in
// the teacher) is reused directly here, just against PxTone's field
// layouts instead of a tracker module header.

// ioPcm is the matePCM header. Raw sample data (DataSize bytes) follows
// immediately in the tag payload.
type ioPcm struct {
	UnitNo     uint16
	BasicKey   uint16
	VoiceFlags uint32
	Ch         uint8
	Bps        uint16
	Sps        uint16
	Tuning     float32
	DataSize   uint32
}

// ioPtn is the matePTN header. An embedded PTNOISE- blob (with its own
// self-size u32, patched retroactively on write) follows.
type ioPtn struct {
	UnitNo     uint16
	BasicKey   uint16
	VoiceFlags uint32
	Tuning     float32
	Rrr        int32 // 0 or 1
}

// ioOggv is the mateOGGV header. ch/sps2/smp_num/size redundancy plus the
// raw Ogg container bytes follow.
type ioOggv struct {
	Xxx        uint16
	BasicKey   uint16
	VoiceFlags uint32
	Tuning     float32
}

// ioPtv is the matePTV header. An embedded PTVOICE- blob follows, whose
// length is patched in both Size here and the outer tag size on write.
type ioPtv struct {
	UnitNo  uint16
	Rrr     uint16
	Tuning  float32
	Size    int32
}

// ioDelay is the effeDELA payload, preceded by a u32 size that must be 12.
type ioDelay struct {
	Unit  uint16
	Group uint16
	Rate  float32
	Freq  float32
}

// ioOverDrv is the effeOVER payload.
type ioOverDrv struct {
	Xxx   uint16 // must be 0
	Group uint16
	Cut   float32
	Amp   float32
	Yyy   float32 // opaque, preserved
}

// ioUnit is one assiUNIT record.
type ioUnit struct {
	UnitIndex uint16
	Rrr       uint16
	Name      [MaxNameBytes]byte
}

// numUnit is the num UNIT payload.
type numUnit struct {
	Num uint16
	Rrr uint16
}

// assistVoice is one assiWOIC record.
type assistVoice struct {
	VoiceIdx uint16
	Rrr      uint16
	Name     [MaxNameBytes]byte
}

// noNameSentinel is the literal string that suppresses a companion name
// record on write (spec.md §4.1, §9 note on <no name>).
const noNameSentinel = "<no name>"

func readFixed(r *bytes.Reader, v any) error {
	if err := binary.Read(r, binary.LittleEndian, v); err != nil {
		return wrapReadErr(ErrData, err)
	}
	return nil
}

// parsePCMVoice decodes a matePCM payload into a Slot.
func parsePCMVoice(payload []byte) (*Slot, error) {
	r := bytes.NewReader(payload)
	var h ioPcm
	if err := readFixed(r, &h); err != nil {
		return nil, err
	}
	if int(h.DataSize) > r.Len() {
		return nil, newReadErr(ErrData)
	}
	data := make([]byte, h.DataSize)
	if _, err := r.Read(data); err != nil {
		return nil, wrapReadErr(ErrData, err)
	}

	return &Slot{
		BasicKey: int32(h.BasicKey),
		Tuning:   h.Tuning,
		Flags:    h.VoiceFlags,
		Kind:     WavePCM,
		PCM: &PCMWave{
			Channels:   h.Ch,
			Bps:        h.Bps,
			SampleRate: h.Sps,
			Data:       data,
		},
	}, nil
}

// parsePTNVoice decodes a matePTN payload (header + embedded PTNOISE-
// blob) into a Slot.
func parsePTNVoice(payload []byte) (*Slot, error) {
	r := bytes.NewReader(payload)
	var h ioPtn
	if err := readFixed(r, &h); err != nil {
		return nil, err
	}

	magic := make([]byte, 8)
	if _, err := r.Read(magic); err != nil || string(magic) != "PTNOISE-" {
		return nil, newReadErr(ErrInvalidTag)
	}
	var version, selfSize uint32
	if err := readFixed(r, &version); err != nil {
		return nil, err
	}
	if version > 20120418 {
		return nil, newReadErr(ErrFmtNewer)
	}
	if err := readFixed(r, &selfSize); err != nil {
		return nil, err
	}

	var numUnits uint8
	if err := readFixed(r, &numUnits); err != nil {
		return nil, err
	}
	if numUnits > MaxNoiseUnitsPerVoice {
		return nil, newReadErr(ErrFmtUnknown)
	}

	units := make([]NoiseUnit, 0, numUnits)
	for i := uint8(0); i < numUnits; i++ {
		u, err := parseNoiseUnit(r)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}

	var sampleNum uint32
	if err := readFixed(r, &sampleNum); err != nil {
		return nil, err
	}
	if sampleNum > MaxNoiseSampleCount {
		return nil, newReadErr(ErrFmtUnknown)
	}

	return &Slot{
		BasicKey: int32(h.BasicKey),
		Tuning:   h.Tuning,
		Flags:    h.VoiceFlags,
		Kind:     WaveNoiseDesign,
		Noise: &NoiseDesignWave{
			Units:     units,
			SampleNum: int(sampleNum),
		},
	}, nil
}

func parseNoiseUnit(r *bytes.Reader) (NoiseUnit, error) {
	var enabled uint8
	if err := readFixed(r, &enabled); err != nil {
		return NoiseUnit{}, err
	}
	main, err := parseNoiseOsc(r)
	if err != nil {
		return NoiseUnit{}, err
	}
	freq, err := parseNoiseOsc(r)
	if err != nil {
		return NoiseUnit{}, err
	}
	volu, err := parseNoiseOsc(r)
	if err != nil {
		return NoiseUnit{}, err
	}
	var pan int32
	if err := readFixed(r, &pan); err != nil {
		return NoiseUnit{}, err
	}
	var numEnv uint8
	if err := readFixed(r, &numEnv); err != nil {
		return NoiseUnit{}, err
	}
	if numEnv > MaxEnvelopePoints {
		return NoiseUnit{}, newReadErr(ErrFmtUnknown)
	}
	env := make([]Point, numEnv)
	for i := range env {
		var x int32
		var y int8
		if err := readFixed(r, &x); err != nil {
			return NoiseUnit{}, err
		}
		if err := readFixed(r, &y); err != nil {
			return NoiseUnit{}, err
		}
		env[i] = Point{X: x, Y: int16(y)}
	}

	return NoiseUnit{
		Enabled:  enabled != 0,
		Main:     main,
		Freq:     freq,
		Volu:     volu,
		Pan:      pan,
		Envelope: env,
	}, nil
}

func parseNoiseOsc(r *bytes.Reader) (NoiseOsc, error) {
	var shape int32
	var freq, volu float32
	var pan, offset int32
	if err := readFixed(r, &shape); err != nil {
		return NoiseOsc{}, err
	}
	if err := readFixed(r, &freq); err != nil {
		return NoiseOsc{}, err
	}
	if err := readFixed(r, &volu); err != nil {
		return NoiseOsc{}, err
	}
	if err := readFixed(r, &pan); err != nil {
		return NoiseOsc{}, err
	}
	if err := readFixed(r, &offset); err != nil {
		return NoiseOsc{}, err
	}
	return NoiseOsc{Shape: int(shape), Frequency: freq, Volume: volu, Pan: pan, Offset: offset}, nil
}

// parsePTVVoice decodes a matePTV payload (header + embedded PTVOICE-
// blob: wave-table/overtone points plus an envelope polyline) into a Slot.
func parsePTVVoice(payload []byte) (*Slot, error) {
	r := bytes.NewReader(payload)
	var h ioPtv
	if err := readFixed(r, &h); err != nil {
		return nil, err
	}

	magic := make([]byte, 8)
	if _, err := r.Read(magic); err != nil || string(magic) != "PTVOICE-" {
		return nil, newReadErr(ErrInvalidTag)
	}
	var version uint32
	if err := readFixed(r, &version); err != nil {
		return nil, err
	}
	if version > 20060111 {
		return nil, newReadErr(ErrFmtNewer)
	}

	var basicKey int32
	var volume, pan int32
	var flags uint32
	if err := readFixed(r, &basicKey); err != nil {
		return nil, err
	}
	if err := readFixed(r, &volume); err != nil {
		return nil, err
	}
	if err := readFixed(r, &pan); err != nil {
		return nil, err
	}
	if err := readFixed(r, &flags); err != nil {
		return nil, err
	}

	var oscShape int32
	if err := readFixed(r, &oscShape); err != nil {
		return nil, err
	}
	var numPoints uint32
	if err := readFixed(r, &numPoints); err != nil {
		return nil, err
	}
	points := make([]Point, numPoints)
	for i := range points {
		var x int32
		var y int8
		if err := readFixed(r, &x); err != nil {
			return nil, err
		}
		if err := readFixed(r, &y); err != nil {
			return nil, err
		}
		points[i] = Point{X: x, Y: int16(y)}
	}

	var numEnv uint32
	if err := readFixed(r, &numEnv); err != nil {
		return nil, err
	}
	var secondsPerPoint float32
	if err := readFixed(r, &secondsPerPoint); err != nil {
		return nil, err
	}
	env := make([]Point, numEnv)
	for i := range env {
		var x int32
		var y int8
		if err := readFixed(r, &x); err != nil {
			return nil, err
		}
		if err := readFixed(r, &y); err != nil {
			return nil, err
		}
		env[i] = Point{X: x, Y: int16(y)}
	}

	return &Slot{
		BasicKey:        basicKey,
		Volume:          volume,
		Pan:             pan,
		Tuning:          h.Tuning,
		Flags:           flags,
		Kind:            WaveOscillator,
		Osc:             &OscillatorWave{Shape: OscShape(oscShape), Points: points},
		Envelope:        env,
		SecondsPerPoint: secondsPerPoint,
	}, nil
}

// parseOGGVVoice decodes a mateOGGV payload into a Slot. The raw
// container bytes are kept as-is; decoding to PCM is deferred to the
// slot's prepare step (ogg.go).
func parseOGGVVoice(payload []byte) (*Slot, error) {
	r := bytes.NewReader(payload)
	var h ioOggv
	if err := readFixed(r, &h); err != nil {
		return nil, err
	}

	var ch uint8
	var sps2 uint32
	var sampleNum, size uint32
	if err := readFixed(r, &ch); err != nil {
		return nil, err
	}
	if err := readFixed(r, &sps2); err != nil {
		return nil, err
	}
	if err := readFixed(r, &sampleNum); err != nil {
		return nil, err
	}
	if err := readFixed(r, &size); err != nil {
		return nil, err
	}
	if int(size) > r.Len() {
		return nil, newReadErr(ErrData)
	}
	raw := make([]byte, size)
	if _, err := r.Read(raw); err != nil {
		return nil, wrapReadErr(ErrData, err)
	}

	return &Slot{
		BasicKey: int32(h.BasicKey),
		Tuning:   h.Tuning,
		Flags:    h.VoiceFlags,
		Kind:     WaveOggVorbis,
		Ogg: &OggVorbisWave{
			Channels:   ch,
			SampleRate: uint16(sps2),
			SampleNum:  sampleNum,
			RawOgg:     raw,
		},
	}, nil
}

// serializePCMVoice encodes a PCM Slot back to a matePCM payload.
func serializePCMVoice(unitNo uint16, s *Slot) []byte {
	h := ioPcm{
		UnitNo:     unitNo,
		BasicKey:   uint16(s.BasicKey),
		VoiceFlags: s.Flags,
		Ch:         s.PCM.Channels,
		Bps:        s.PCM.Bps,
		Sps:        s.PCM.SampleRate,
		Tuning:     s.Tuning,
		DataSize:   uint32(len(s.PCM.Data)),
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, h)
	buf.Write(s.PCM.Data)
	return buf.Bytes()
}

// serializePTNVoice encodes a noise-design Slot back to a matePTN
// payload. The PTNOISE- blob's embedded self-size is patched after the
// blob body is written, matching spec.md §4.1's "must be patched
// retroactively" note.
func serializePTNVoice(unitNo uint16, s *Slot) []byte {
	h := ioPtn{
		UnitNo:     unitNo,
		BasicKey:   uint16(s.BasicKey),
		VoiceFlags: s.Flags,
		Tuning:     s.Tuning,
		Rrr:        0,
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, h)
	buf.WriteString("PTNOISE-")
	_ = binary.Write(buf, binary.LittleEndian, uint32(20120418))

	sizeOffset := buf.Len()
	_ = binary.Write(buf, binary.LittleEndian, uint32(0)) // placeholder, patched below
	blobStart := buf.Len()

	_ = binary.Write(buf, binary.LittleEndian, uint8(len(s.Noise.Units)))
	for _, u := range s.Noise.Units {
		serializeNoiseUnit(buf, u)
	}
	_ = binary.Write(buf, binary.LittleEndian, uint32(s.Noise.SampleNum))

	out := buf.Bytes()
	selfSize := uint32(len(out) - blobStart)
	binary.LittleEndian.PutUint32(out[sizeOffset:sizeOffset+4], selfSize)
	return out
}

func serializeNoiseUnit(buf *bytes.Buffer, u NoiseUnit) {
	enabled := uint8(0)
	if u.Enabled {
		enabled = 1
	}
	_ = binary.Write(buf, binary.LittleEndian, enabled)
	serializeNoiseOsc(buf, u.Main)
	serializeNoiseOsc(buf, u.Freq)
	serializeNoiseOsc(buf, u.Volu)
	_ = binary.Write(buf, binary.LittleEndian, u.Pan)
	_ = binary.Write(buf, binary.LittleEndian, uint8(len(u.Envelope)))
	for _, p := range u.Envelope {
		_ = binary.Write(buf, binary.LittleEndian, p.X)
		_ = binary.Write(buf, binary.LittleEndian, int8(p.Y))
	}
}

func serializeNoiseOsc(buf *bytes.Buffer, o NoiseOsc) {
	_ = binary.Write(buf, binary.LittleEndian, int32(o.Shape))
	_ = binary.Write(buf, binary.LittleEndian, o.Frequency)
	_ = binary.Write(buf, binary.LittleEndian, o.Volume)
	_ = binary.Write(buf, binary.LittleEndian, o.Pan)
	_ = binary.Write(buf, binary.LittleEndian, o.Offset)
}

// serializePTVVoice encodes an oscillator Slot back to a matePTV
// payload. The PTVOICE- blob length is patched into both the outer
// ioPtv.Size field here and (by the caller) the enclosing tag's size
// field, matching spec.md §4.1's "appears twice" note.
func serializePTVVoice(unitNo uint16, s *Slot) []byte {
	inner := new(bytes.Buffer)
	inner.WriteString("PTVOICE-")
	_ = binary.Write(inner, binary.LittleEndian, uint32(20060111))
	_ = binary.Write(inner, binary.LittleEndian, s.BasicKey)
	_ = binary.Write(inner, binary.LittleEndian, s.Volume)
	_ = binary.Write(inner, binary.LittleEndian, s.Pan)
	_ = binary.Write(inner, binary.LittleEndian, s.Flags)
	_ = binary.Write(inner, binary.LittleEndian, int32(s.Osc.Shape))
	_ = binary.Write(inner, binary.LittleEndian, uint32(len(s.Osc.Points)))
	for _, p := range s.Osc.Points {
		_ = binary.Write(inner, binary.LittleEndian, p.X)
		_ = binary.Write(inner, binary.LittleEndian, int8(p.Y))
	}
	_ = binary.Write(inner, binary.LittleEndian, uint32(len(s.Envelope)))
	_ = binary.Write(inner, binary.LittleEndian, s.SecondsPerPoint)
	for _, p := range s.Envelope {
		_ = binary.Write(inner, binary.LittleEndian, p.X)
		_ = binary.Write(inner, binary.LittleEndian, int8(p.Y))
	}

	h := ioPtv{
		UnitNo: unitNo,
		Rrr:    0,
		Tuning: s.Tuning,
		Size:   int32(inner.Len()),
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, h)
	buf.Write(inner.Bytes())
	return buf.Bytes()
}

// serializeOGGVVoice encodes an Ogg/Vorbis Slot back to a mateOGGV
// payload.
func serializeOGGVVoice(unitNo uint16, s *Slot) []byte {
	h := ioOggv{
		Xxx:        unitNo,
		BasicKey:   uint16(s.BasicKey),
		VoiceFlags: s.Flags,
		Tuning:     s.Tuning,
	}
	buf := new(bytes.Buffer)
	_ = binary.Write(buf, binary.LittleEndian, h)
	_ = binary.Write(buf, binary.LittleEndian, s.Ogg.Channels)
	_ = binary.Write(buf, binary.LittleEndian, uint32(s.Ogg.SampleRate))
	_ = binary.Write(buf, binary.LittleEndian, s.Ogg.SampleNum)
	_ = binary.Write(buf, binary.LittleEndian, uint32(len(s.Ogg.RawOgg)))
	buf.Write(s.Ogg.RawOgg)
	return buf.Bytes()
}

// coordPointInRange reports whether a coord/overtone point is within the
// wire's encodable range (x 0..65535, y signed 8-bit), per spec.md §4.5.
func coordPointInRange(p Point) bool {
	return p.X >= 0 && p.X <= math.MaxUint16 && p.Y >= math.MinInt8 && p.Y <= math.MaxInt8
}
