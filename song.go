package pxtone

// FormatVersion is the container version, 1..5, decoded from the 16-byte
// magic (spec.md §6).
type FormatVersion int

const (
	FormatV1 FormatVersion = iota + 1
	FormatV2
	FormatV3
	FormatV4
	FormatV5
)

// SongKind distinguishes the two container flavors encoded in the magic.
type SongKind int

const (
	KindCollage SongKind = iota
	KindTune
)

// Format is the format descriptor preserved verbatim across round-trips.
type Format struct {
	Version FormatVersion
	Kind    SongKind
	ExeVer  uint16 // opaque, preserved
	Dummy   uint16 // opaque, preserved
}

// Master carries the song's global timing and loop points (spec.md §3).
type Master struct {
	TicksPerBeat int     // u16, default 480
	BeatsPerMeas int     // u8, default 4
	BPM          float32 // default 120

	// RepeatTick/LastTick are the wire-native tick values; LastTick==0
	// on the wire means "no explicit last" (play to the last event).
	RepeatTick    uint32
	LastTick      uint32
	HasExplicitEnd bool

	// RepeatMeas/LastMeas/MeasNum are derived by ceiling-division from
	// ticks to measures using the current timing, and cached. Invariant:
	// MeasNum >= lastEventTick/(TicksPerBeat*BeatsPerMeas) and
	// RepeatMeas < MeasNum.
	RepeatMeas int
	LastMeas   int
	MeasNum    int
}

// DefaultMaster returns the spec-mandated defaults.
func DefaultMaster() Master {
	return Master{
		TicksPerBeat: 480,
		BeatsPerMeas: 4,
		BPM:          120,
		MeasNum:      1,
	}
}

// TicksPerMeas is TicksPerBeat*BeatsPerMeas, the unit conversion from
// ticks to measures.
func (m *Master) TicksPerMeas() int {
	return m.TicksPerBeat * m.BeatsPerMeas
}

// deriveMeasures recomputes RepeatMeas/LastMeas/MeasNum by ceiling-division
// from the stored tick values and the last event tick, per spec.md §3/§4.1.
func (m *Master) deriveMeasures(lastEventTick uint32) {
	tpm := m.TicksPerMeas()
	if tpm <= 0 {
		tpm = 1
	}
	ceilDiv := func(tick uint32) int {
		if tick == 0 {
			return 0
		}
		return int((tick + uint32(tpm) - 1) / uint32(tpm))
	}

	m.RepeatMeas = ceilDiv(m.RepeatTick)
	if m.HasExplicitEnd {
		m.LastMeas = ceilDiv(m.LastTick)
	} else {
		m.LastMeas = ceilDiv(lastEventTick)
	}

	m.MeasNum = ceilDiv(lastEventTick)
	if m.HasExplicitEnd && m.LastMeas > m.MeasNum {
		m.MeasNum = m.LastMeas
	}
	if m.MeasNum == 0 {
		m.MeasNum = 1
	}
	if m.RepeatMeas >= m.MeasNum {
		m.RepeatMeas = m.MeasNum - 1
		if m.RepeatMeas < 0 {
			m.RepeatMeas = 0
		}
	}
}

// EventKind is the 16-way discriminant of an event's payload, stable ABI
// per spec.md §3 (wire values 0..15).
type EventKind uint8

const (
	EventNull EventKind = iota
	EventOn
	EventKey
	EventPanVol
	EventVelocity
	EventVolume
	EventPortament
	EventBeatClock   // legacy, ignored
	EventBeatTempo   // legacy, ignored
	EventBeatNum     // legacy, ignored
	EventRepeat      // legacy, ignored
	EventLast        // legacy, ignored
	EventSetVoice
	EventSetGroup
	EventTuning
	EventPanTime
)

// PtcowDebugKind is a synthetic, consumer-only event kind. It never
// appears on the wire (decoder never produces it; encoder must skip it).
const PtcowDebugKind EventKind = 255

// Event is one entry of the song's time-ordered event list.
type Event struct {
	Tick      uint32
	UnitIndex uint8
	Kind      EventKind

	// Value holds the payload, interpreted per Kind:
	//   On:         Value = duration in ticks
	//   Key:        Value reinterpreted as int32
	//   PanVol:     Value is 0..255 (u8)
	//   Velocity:   Value reinterpreted as int16
	//   Volume:     Value reinterpreted as int16
	//   Portament:  Value = duration in ticks
	//   SetVoice:   Value = voice index
	//   SetGroup:   Value = group index
	//   Tuning:     Value reinterpreted as IEEE-754 f32
	//   PanTime:    Value is 0..255 (u8)
	//   PtcowDebug: Value reinterpreted as int32, consumer-only
	Value uint32
}

// EveList is the song's event list. Invariant: ticks are non-decreasing
// (Sort enforces this with a stable sort so same-tick events keep their
// relative order, matching the original linked-list-free contiguous
// representation spec.md §9(b) requires).
type EveList struct {
	Events []Event

	// SerSize is the opaque, preserved event-block size field
	// (spec.md §9(c)): echoed back verbatim on serialize, never recomputed.
	SerSize uint32
}

// Sort puts the event list into non-decreasing tick order.
func (e *EveList) Sort() {
	stableSortEvents(e.Events)
}

func stableSortEvents(events []Event) {
	// Simple insertion sort: event lists are small (a few thousand at
	// most) and this keeps relative order of equal-tick events, which a
	// library sort.Slice without SliceStable semantics would not
	// guarantee without extra bookkeeping.
	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j].Tick < events[j-1].Tick; j-- {
			events[j], events[j-1] = events[j-1], events[j]
		}
	}
}

// nonDebugCount returns the number of events excluding the synthetic
// PtcowDebug marker, i.e. the event_count that serializeEvents writes.
func (e *EveList) nonDebugCount() int {
	n := 0
	for _, ev := range e.Events {
		if ev.Kind != PtcowDebugKind {
			n++
		}
	}
	return n
}

func (e *EveList) lastTick() uint32 {
	var last uint32
	for _, ev := range e.Events {
		if ev.Tick > last {
			last = ev.Tick
		}
	}
	return last
}

// Song is the static, load-time representation of a PxTone project.
type Song struct {
	Format  Format
	Name    string // decoded from legacy Shift-JIS bytes
	Comment string

	Master Master
	Events EveList

	Voices []*Voice
	Units  []UnitMeta // per-unit metadata (name), not runtime state

	Delays     []DelayConfig
	Overdrives []OverdriveConfig
}

// DelayConfig is a song's stored effeDELA record: the build parameters
// for one delay effect, not yet constructed into a runtime delay.Delay
// (that happens in rebuild_tones against the live output sample rate).
type DelayConfig struct {
	Unit  int // 0=Beat, 1=Meas, 2=Second
	Group int
	Rate  float32
	Freq  float32
}

// OverdriveConfig is a song's stored effeOVER record.
type OverdriveConfig struct {
	Group int
	Cut   float32
	Amp   float32
}

// UnitMeta is the static, load-time metadata for a unit slot (its name).
// Runtime unit state lives in Unit (unit.go), owned by the Herd.
type UnitMeta struct {
	Name string
}
