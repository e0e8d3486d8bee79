package pxtone

import (
	"bytes"
	"math"

	"github.com/jfreymuth/oggvorbis"
)

// decodeOggVorbis is the narrow "bytes -> interleaved i16 samples"
// contract spec.md §1 calls out as an external collaborator. It is
// invoked from a Slot's prepare step, on every RebuildTones call (which
// ReadSong runs before returning), never while the container's tags are
// parsed and never from the render loop.
func decodeOggVorbis(raw []byte) (samples []int16, channels int, sampleRate int, err error) {
	floats, format, err := oggvorbis.ReadAll(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, 0, wrapReadErr(ErrOggvReadError, err)
	}

	samples = make([]int16, len(floats))
	for i, f := range floats {
		samples[i] = floatToI16(f)
	}
	return samples, format.Channels, format.SampleRate, nil
}

func floatToI16(f float32) int16 {
	v := float64(f) * 32767.0
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
