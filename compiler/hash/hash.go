package hash

import (
	"crypto/sha256"

	"github.com/chazu/angstrom/compiler"
)

// HashProgram computes the SHA-256 content hash of a compilation unit.
//
// The hash is computed over a deterministic serialization of the program
// with de Bruijn indices for locals. Two programs that differ only in the
// names of their locals and parameters produce the same hash; globals,
// fields and types are hashed by name.
func HashProgram(prog *compiler.Program) [32]byte {
	return sha256.Sum256(Serialize(prog))
}
