package core

import (
	"crypto/sha256"
	"encoding/binary"
	"io"
)

// SeedHash computes the candidate address for a program-derived record.
//
// Formula: SHA256(program || tag || len(seed0) || seed0 || ... || bump)
//
// Seeds are length-prefixed (u32 LE) so ("ab","c") and ("a","bc") never
// collide.
func SeedHash(program [32]byte, tag string, seeds [][]byte, bump uint8) [32]byte {
	h := sha256.New()
	h.Write(program[:])
	writeSeed(h, []byte(tag))
	for _, s := range seeds {
		writeSeed(h, s)
	}
	h.Write([]byte{bump})
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func writeSeed(w io.Writer, seed []byte) {
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(seed)))
	w.Write(n[:])
	w.Write(seed)
}

// FindSeedHash searches bumps from 255 down and returns the first candidate
// accepted by valid. It reports false if every bump is rejected.
func FindSeedHash(program [32]byte, tag string, seeds [][]byte, valid func([32]byte) bool) ([32]byte, uint8, bool) {
	for bump := 255; bump >= 0; bump-- {
		candidate := SeedHash(program, tag, seeds, uint8(bump))
		if valid == nil || valid(candidate) {
			return candidate, uint8(bump), true
		}
	}
	return [32]byte{}, 0, false
}
