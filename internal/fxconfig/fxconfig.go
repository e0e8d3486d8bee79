// Package fxconfig turns a song's stored effect records (the wire-level
// IoDelay/IoOverDrv structs) into constructed, ready-to-run delay and
// overdrive effect values. It is adapted directly from modplayer's
// cmd/internal/config.ReverbFromFlag, which turns a "-reverb" flag value
// into a constructed comb.Reverber; here the "flag" is a loaded record
// and the construction happens at rebuild_tones time instead of at CLI
// startup.
package fxconfig

import (
	"github.com/pxcorego/pxtone/internal/delay"
	"github.com/pxcorego/pxtone/internal/overdrive"
)

// BuildDelay constructs a delay effect from a song's stored IoDelay
// record. unit is 0=Beat, 1=Meas, 2=Second, matching the wire encoding.
func BuildDelay(unit int, group int, rate, freq float32, bpm float32, beatsPerMeas int, outSampleRate int) *delay.Delay {
	var u delay.Unit
	switch unit {
	case 0:
		u = delay.Beat
	case 1:
		u = delay.Meas
	default:
		u = delay.Second
	}
	return delay.New(group, u, freq, rate, bpm, beatsPerMeas, outSampleRate)
}

// BuildOverdrive constructs an overdrive effect from a song's stored
// IoOverDrv record. ok is false if cut/amp fall outside the valid ranges
// (a codec error upstream, per spec.md §4.4).
func BuildOverdrive(group int, cut, amp float32) (*overdrive.Overdrive, bool) {
	return overdrive.New(group, cut, amp)
}
