package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"time"
)

const version byte = 1

const hdrLen = 4 + 1 + 8

// maxDeadline is the last instant representable in unix nanoseconds.
var maxDeadline = time.Unix(0, math.MaxInt64)

var (
	ErrCorrupt = errors.New("storeclient: corrupt entry")
	magic4     = [...]byte{'S', 'T', 'C', 'L'}
)

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Entry: magic(4) | ver(1) | deadline(unix nanos, i64 be) | value(rest)
// Deadlines past maxDeadline are clamped to it.
func Encode(deadline time.Time, value string) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(value))

	buf.Write(magic4[:])
	buf.WriteByte(version)

	var u8 [8]byte
	ns := int64(math.MaxInt64)
	if deadline.Before(maxDeadline) {
		ns = deadline.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(ns))
	buf.Write(u8[:])

	buf.WriteString(value)
	return buf.Bytes()
}

// Decode returns the deadline and the value bytes exactly as passed to Encode.
func Decode(b []byte) (deadline time.Time, value string, err error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return time.Time{}, "", ErrCorrupt
	}
	ns := int64(binary.BigEndian.Uint64(b[5:13]))
	return time.Unix(0, ns), string(b[hdrLen:]), nil
}

// Live decodes b and reports whether it is still valid at now.
// Corrupt entries are reported as not live together with ErrCorrupt.
func Live(b []byte, now time.Time) (string, bool, error) {
	deadline, v, err := Decode(b)
	if err != nil {
		return "", false, err
	}
	if !now.Before(deadline) {
		return "", false, nil
	}
	return v, true, nil
}
