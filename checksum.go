package strata

import (
	"encoding/binary"
	"math/bits"
)

// The checksum is SipHash-1-3 with a zero key over the byte stream
//
//	name ‖ 0xff ‖ version as 4 little-endian bytes ‖ sql ‖ 0xff
//
// matching the wire format of the history tables written by existing
// deployments. The 0xff bytes terminate the two variable-length string
// fields. No mainstream Go library implements the 1-3 round variant, so
// the compression core is written out below; changing it would diverge
// every stored checksum.
func checksum(name string, version int32, sql string) uint64 {
	buf := make([]byte, 0, len(name)+len(sql)+6)
	buf = append(buf, name...)
	buf = append(buf, 0xff)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(version))
	buf = append(buf, sql...)
	buf = append(buf, 0xff)
	return siphash13(buf)
}

func sipRound(v0, v1, v2, v3 uint64) (uint64, uint64, uint64, uint64) {
	v0 += v1
	v1 = bits.RotateLeft64(v1, 13)
	v1 ^= v0
	v0 = bits.RotateLeft64(v0, 32)
	v2 += v3
	v3 = bits.RotateLeft64(v3, 16)
	v3 ^= v2
	v0 += v3
	v3 = bits.RotateLeft64(v3, 21)
	v3 ^= v0
	v2 += v1
	v1 = bits.RotateLeft64(v1, 17)
	v1 ^= v2
	v2 = bits.RotateLeft64(v2, 32)
	return v0, v1, v2, v3
}

// siphash13 computes SipHash-1-3 (one compression round, three
// finalization rounds) of data with k0 = k1 = 0.
func siphash13(data []byte) uint64 {
	v0 := uint64(0x736f6d6570736575)
	v1 := uint64(0x646f72616e646f6d)
	v2 := uint64(0x6c7967656e657261)
	v3 := uint64(0x7465646279746573)

	n := len(data)
	end := n - n%8
	for i := 0; i < end; i += 8 {
		m := binary.LittleEndian.Uint64(data[i:])
		v3 ^= m
		v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
		v0 ^= m
	}

	var last uint64
	for i := end; i < n; i++ {
		last |= uint64(data[i]) << (8 * uint(i-end))
	}
	last |= uint64(n) << 56

	v3 ^= last
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0 ^= last

	v2 ^= 0xff
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)
	v0, v1, v2, v3 = sipRound(v0, v1, v2, v3)

	return v0 ^ v1 ^ v2 ^ v3
}
