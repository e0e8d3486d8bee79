package pxtone

import "testing"

// TestShiftJISRoundTrip checks that an ASCII-range name round-trips
// through the Shift-JIS codec untouched, and that a wide (non-ASCII)
// character round-trips as well.
func TestShiftJISRoundTrip(t *testing.T) {
	cases := []string{"", "song name", "delay test", "テスト"}
	for _, s := range cases {
		enc := encodeShiftJIS(s)
		got := decodeShiftJIS(enc)
		if got != s {
			t.Errorf("round trip %q: got %q", s, got)
		}
	}
}

func TestTrimNulPad(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte("abc\x00\x00\x00"), "abc"},
		{[]byte("abc"), "abc"},
		{[]byte("\x00\x00"), ""},
		{[]byte{}, ""},
	}
	for _, c := range cases {
		got := string(trimNulPad(c.in))
		if got != c.want {
			t.Errorf("trimNulPad(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPadNameBytes(t *testing.T) {
	buf := padNameBytes("abc", MaxNameBytes)
	if len(buf) != MaxNameBytes {
		t.Fatalf("len = %d, want %d", len(buf), MaxNameBytes)
	}
	if string(trimNulPad(buf)) != "abc" {
		t.Errorf("padNameBytes round trip via trimNulPad = %q, want %q", trimNulPad(buf), "abc")
	}
	for i := 3; i < MaxNameBytes; i++ {
		if buf[i] != 0 {
			t.Errorf("byte %d = %d, want 0 (NUL pad)", i, buf[i])
		}
	}
}

// TestPadNameBytesTruncates checks that a name longer than the field
// width is truncated rather than overflowing the fixed buffer.
func TestPadNameBytesTruncates(t *testing.T) {
	long := make([]byte, MaxNameBytes*2)
	for i := range long {
		long[i] = 'a'
	}
	buf := padNameBytes(string(long), MaxNameBytes)
	if len(buf) != MaxNameBytes {
		t.Fatalf("len = %d, want %d", len(buf), MaxNameBytes)
	}
}
