package asm

import (
	"testing"
)

func TestAssembleSourceMap(t *testing.T) {
	code := `# Line 1: Comment
nop +0

acc +1
   # Line 5: indented comment
jmp -2
`
	// Expected sourceMap:
	// 0 -> 2
	// 1 -> 4
	// 2 -> 6

	prog, sourceMap, err := Assemble(code)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if len(prog) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(prog))
	}

	expected := map[int]int{0: 2, 1: 4, 2: 6}
	if len(sourceMap) != len(expected) {
		t.Errorf("Expected sourceMap length %d, got %d", len(expected), len(sourceMap))
	}
	for idx, line := range expected {
		if got, ok := sourceMap[idx]; !ok || got != line {
			t.Errorf("sourceMap[%d] = %d (present %v); want %d", idx, got, ok, line)
		}
	}
}
