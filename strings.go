package pxtone

import (
	"bytes"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// decodeShiftJIS turns the legacy multi-byte bytes stored in a PxTone
// name/comment field into a Go string. Invalid byte sequences decode on a
// best-effort basis (transform.NewReader/Bytes never panics); a truly
// malformed string is a song-authoring mistake, not something the codec
// should hard-fail on, matching spec's "logged and treated as silence"
// posture for non-critical data.
func decodeShiftJIS(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

// encodeShiftJIS turns a Go string back into legacy multi-byte bytes for
// serialization. Characters with no Shift-JIS representation are best
// effort (transform.Bytes rather than a hard failure, matching decode).
func encodeShiftJIS(s string) []byte {
	if s == "" {
		return nil
	}
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		return []byte(s)
	}
	return out
}

// trimNulPad returns the prefix of b up to (not including) the first NUL
// byte, mirroring the teacher's strings.TrimRight(string(data.Name[:]),
// "\x00") idiom used for fixed-width name fields.
func trimNulPad(b []byte) []byte {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		return b[:i]
	}
	return b
}

// padNameBytes encodes s to Shift-JIS and fits it into a fixed-size,
// NUL-padded buffer of length n, truncating if necessary.
func padNameBytes(s string, n int) []byte {
	enc := encodeShiftJIS(s)
	buf := make([]byte, n)
	c := copy(buf, enc)
	_ = c
	return buf
}
