package repair

import (
	"context"
	"testing"

	"bootcode/pkg/cpu"
)

// worstCase builds a loop whose only fix is the final jump, so every
// candidate before it is simulated.
func worstCase(n int) cpu.Program {
	p := make(cpu.Program, n)
	for i := 0; i < n-1; i++ {
		if i%2 == 0 {
			p[i] = cpu.Instruction{Op: cpu.OpNOP, Arg: 1}
		} else {
			p[i] = cpu.Instruction{Op: cpu.OpACC, Arg: 1}
		}
	}
	p[n-1] = cpu.Instruction{Op: cpu.OpJMP, Arg: -(n - 1)}
	return p
}

func BenchmarkRepair_Sequential(b *testing.B) {
	p := worstCase(600)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Repair(p)
	}
}

func BenchmarkRepair_Parallel(b *testing.B) {
	p := worstCase(600)
	s := NewSearcher(WithWorkers(8))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := s.Repair(context.Background(), p); err != nil {
			b.Fatal(err)
		}
	}
}
