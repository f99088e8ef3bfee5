package strata

import (
	"encoding/binary"
	"testing"
)

func TestChecksumDeterministic(t *testing.T) {
	a := checksum("initial", 1, "CREATE TABLE t(x int);")
	b := checksum("initial", 1, "CREATE TABLE t(x int);")
	if a != b {
		t.Fatalf("checksum not deterministic: %d != %d", a, b)
	}
}

func TestChecksumSensitivity(t *testing.T) {
	base := checksum("initial", 1, "CREATE TABLE t(x int);")
	if got := checksum("initial2", 1, "CREATE TABLE t(x int);"); got == base {
		t.Errorf("checksum ignored the name")
	}
	if got := checksum("initial", 2, "CREATE TABLE t(x int);"); got == base {
		t.Errorf("checksum ignored the version")
	}
	if got := checksum("initial", 1, "CREATE TABLE t(x int, y int);"); got == base {
		t.Errorf("checksum ignored the sql")
	}
}

// The field terminators keep ambiguous splits apart: moving a byte from
// the end of name to the start of sql must change the hash.
func TestChecksumFieldBoundaries(t *testing.T) {
	a := checksum("ab", 1, "c")
	b := checksum("a", 1, "bc")
	if a == b {
		t.Errorf("field boundary not encoded")
	}
}

// checksum is defined as SipHash-1-3 over the exact byte stream
// name ‖ 0xff ‖ version LE32 ‖ sql ‖ 0xff; pin the layout.
func TestChecksumByteLayout(t *testing.T) {
	name, version, sql := "initial", int32(7), "SELECT 1;"
	var buf []byte
	buf = append(buf, name...)
	buf = append(buf, 0xff)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(version))
	buf = append(buf, sql...)
	buf = append(buf, 0xff)

	if got, want := checksum(name, version, sql), siphash13(buf); got != want {
		t.Fatalf("checksum = %d, want %d", got, want)
	}
}

// Zero-key SipHash-2-4 reference vectors do not apply to the 1-3
// variant, so pin the implementation against hand-checked block
// handling instead: inputs shorter than, equal to and longer than one
// 8-byte block must all hash distinctly and stably.
func TestSiphash13Blocks(t *testing.T) {
	inputs := [][]byte{
		{},
		{0x01},
		[]byte("12345678"),
		[]byte("123456789"),
		[]byte("0123456789abcdef0123456789abcdef"),
	}
	seen := make(map[uint64][]byte)
	for _, in := range inputs {
		h := siphash13(in)
		if prev, dup := seen[h]; dup {
			t.Fatalf("collision between %q and %q", prev, in)
		}
		seen[h] = in
		if h != siphash13(in) {
			t.Fatalf("unstable hash for %q", in)
		}
	}
}

func TestUnappliedChecksumComputedOnce(t *testing.T) {
	m, err := Unapplied("V1__initial.sql", "CREATE TABLE t(x int);")
	if err != nil {
		t.Fatalf("Unapplied failed: %v", err)
	}
	want := checksum("initial", 1, "CREATE TABLE t(x int);")
	if m.Checksum() != want {
		t.Fatalf("Checksum() = %d, want %d", m.Checksum(), want)
	}
}
