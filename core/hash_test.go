package core

import (
	"testing"

	"github.com/peterldowns/testy/check"
)

func TestSeedHash(t *testing.T) {
	program := recipient(9)
	a := SeedHash(program, "auction", [][]byte{[]byte("ab"), []byte("c")}, 255)

	// Same inputs produce the same hash
	check.Equal(t, a, SeedHash(program, "auction", [][]byte{[]byte("ab"), []byte("c")}, 255))

	// Seed boundaries matter
	check.NotEqual(t, a, SeedHash(program, "auction", [][]byte{[]byte("a"), []byte("bc")}, 255))

	// Tag, bump and program all feed the hash
	check.NotEqual(t, a, SeedHash(program, "vault", [][]byte{[]byte("ab"), []byte("c")}, 255))
	check.NotEqual(t, a, SeedHash(program, "auction", [][]byte{[]byte("ab"), []byte("c")}, 254))
	check.NotEqual(t, a, SeedHash(recipient(8), "auction", [][]byte{[]byte("ab"), []byte("c")}, 255))
}

func TestFindSeedHash(t *testing.T) {
	program := recipient(3)
	seeds := [][]byte{[]byte("x")}

	addr, bump, ok := FindSeedHash(program, "deposit", seeds, nil)
	check.True(t, ok)
	check.Equal(t, uint8(255), bump)
	check.Equal(t, SeedHash(program, "deposit", seeds, 255), addr)

	// Rejecting the first two candidates walks the bump down
	rejected := 0
	addr, bump, ok = FindSeedHash(program, "deposit", seeds, func([32]byte) bool {
		rejected++
		return rejected > 2
	})
	check.True(t, ok)
	check.Equal(t, uint8(253), bump)
	check.Equal(t, SeedHash(program, "deposit", seeds, 253), addr)

	_, _, ok = FindSeedHash(program, "deposit", seeds, func([32]byte) bool { return false })
	check.False(t, ok)
}
