package hash

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/chazu/angstrom/compiler"
)

func hashOf(t *testing.T, src string) [32]byte {
	t.Helper()
	prog, err := compiler.Parse(src, "test")
	if err != nil {
		t.Fatalf("Parse(%q): %v", src, err)
	}
	return HashProgram(prog)
}

func TestTagsUnique(t *testing.T) {
	seen := make(map[byte]bool)
	for _, tag := range allTags {
		if seen[tag] {
			t.Errorf("duplicate tag 0x%02x", tag)
		}
		seen[tag] = true
	}
}

func TestHashLocalRenaming(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"lambda param", "fn(x: Num) => x + 1", "fn(y: Num) => y + 1"},
		{"block local", "{ var a = 1\n a * 2 }", "{ var b = 1\n b * 2 }"},
		{"destructure", "{ var (a, _, c) = (1, 2, 3)\n a + c }", "{ var (p, _, q) = (1, 2, 3)\n p + q }"},
		{"capture", "fn(a: Num) => fn(b: Num) => a - b", "fn(m: Num) => fn(n: Num) => m - n"},
		{"formatting", "var  x=1+2", "var x = 1 + 2 // sum"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hashOf(t, tt.a) != hashOf(t, tt.b) {
				t.Errorf("hashes differ for %q and %q", tt.a, tt.b)
			}
		})
	}
}

func TestHashDistinguishes(t *testing.T) {
	tests := []struct {
		name string
		a, b string
	}{
		{"global name", "var x = 1", "var y = 1"},
		{"literal", "1 + 2", "1 + 3"},
		{"operator", "1 + 2", "1 - 2"},
		{"field name", "(x: 1)", "(y: 1)"},
		{"swapped params", "fn(a: Num, b: Num) => a - b", "fn(a: Num, b: Num) => b - a"},
		{"param type", "fn(x: Num) => x", "fn(x: Bool) => x"},
		{"array vs tuple", "[1, 2]", "(1, 2)"},
		{"shadowing", "fn(a: Num) => fn(a: Num) => a", "fn(a: Num) => fn(b: Num) => a"},
		{"type decl", "type T :: Num", "type T :: Bool"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if hashOf(t, tt.a) == hashOf(t, tt.b) {
				t.Errorf("hashes equal for %q and %q", tt.a, tt.b)
			}
		})
	}
}

func TestSerializeLocalRef(t *testing.T) {
	prog, err := compiler.Parse("fn(x: Num) => x", "test")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	data := Serialize(prog)
	if data[0] != HashVersion {
		t.Errorf("first byte = 0x%02x, want version 0x%02x", data[0], HashVersion)
	}
	// The body is a reference to slot 0 of the innermost scope.
	want := []byte{TagLocalVarRef, 0, 0, 0, 0}
	if !bytes.HasSuffix(data, want) {
		t.Errorf("serialization %s does not end with %s", hex.EncodeToString(data), hex.EncodeToString(want))
	}
}

func TestSerializeDeterministic(t *testing.T) {
	src := "type P :: (x: Num, y: Num)\nvar p :: P = (x: 1, y: 2)\nmatch p | (x: Num, y: Num) -> x | _ -> 0"
	if hashOf(t, src) != hashOf(t, src) {
		t.Errorf("hash is not deterministic")
	}
}
