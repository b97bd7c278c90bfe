package asm

import (
	"fmt"
	"strings"
	"testing"
)

// generateListing builds an n line program cycling through all three ops.
func generateListing(n int) string {
	var sb strings.Builder
	ops := []string{"nop", "acc", "jmp"}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "%s %+d\n", ops[i%3], i%7-3)
	}
	return sb.String()
}

func BenchmarkAssemble_1000(b *testing.B) {
	src := generateListing(1000)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, _, err := Assemble(src); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := Decode("jmp -427"); err != nil {
			b.Fatal(err)
		}
	}
}
