package overdrive

import "testing"

// TestOverdriveBounds mirrors spec's overdrive-bounds scenario exactly:
// cut_percent=50, amp_mul=2.0 clamps +20000 to 16383 then to 32766, and
// -40000 to -16383 then to -32766.
func TestOverdriveBounds(t *testing.T) {
	od, ok := New(0, 50, 2.0)
	if !ok {
		t.Fatal("New(0, 50, 2.0) rejected, want accepted")
	}

	if got := od.Process(20000); got != 32766 {
		t.Errorf("Process(20000) = %d, want 32766", got)
	}
	if got := od.Process(-40000); got != -32766 {
		t.Errorf("Process(-40000) = %d, want -32766", got)
	}
}

// TestOverdriveRangeValidation checks that cut_percent/amp_mul outside
// spec's valid ranges are rejected at construction, not silently
// clamped.
func TestOverdriveRangeValidation(t *testing.T) {
	cases := []struct {
		cut, amp float32
		ok       bool
	}{
		{50, 2.0, true},
		{99.9, 8.0, true},
		{49.9, 2.0, false},
		{100, 2.0, false},
		{50, 0.05, false},
		{50, 8.1, false},
	}
	for _, c := range cases {
		_, ok := New(0, c.cut, c.amp)
		if ok != c.ok {
			t.Errorf("New(0, %v, %v) ok=%v, want %v", c.cut, c.amp, ok, c.ok)
		}
	}
}

// TestOverdrivePassesMidRangeUnclamped checks a sample already inside
// the cut window is only amplified, not clamped.
func TestOverdrivePassesMidRangeUnclamped(t *testing.T) {
	od, _ := New(0, 90, 1.0)
	if got := od.Process(100); got != 100 {
		t.Errorf("Process(100) = %d, want 100 unchanged", got)
	}
}
