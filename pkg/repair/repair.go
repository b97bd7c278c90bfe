// Package repair searches for the single nop/jmp instruction whose flip
// makes a looping program halt.
package repair

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"bootcode/pkg/cpu"
	"bootcode/pkg/metrics"
)

// Outcome is the result of a search. The zero value is Unfixable.
type Outcome struct {
	Fixed bool
	// Index of the flipped instruction; only meaningful when Fixed.
	Index int
	// Acc is the accumulator of the halting run; only meaningful when Fixed.
	Acc int
	// Tried counts simulated candidates.
	Tried int
}

// Unfixable is returned when no single flip halts the program.
var Unfixable = Outcome{}

func (o Outcome) String() string {
	if !o.Fixed {
		return "unfixable"
	}
	return fmt.Sprintf("fixed index=%d acc=%d", o.Index, o.Acc)
}

// IsCandidate reports whether flipping in can be the fix. acc is never
// flipped, and nop +0 would become jmp +0 which always loops.
func IsCandidate(in cpu.Instruction) bool {
	switch in.Op {
	case cpu.OpJMP:
		return true
	case cpu.OpNOP:
		return in.Arg != 0
	case cpu.OpACC:
		return false
	}
	return false
}

// Candidates returns the indices of p that may be flipped, ascending.
func Candidates(p cpu.Program) []int {
	var out []int
	for i, in := range p {
		if IsCandidate(in) {
			out = append(out, i)
		}
	}
	return out
}

// Flip returns a copy of p with the instruction at i switched between nop
// and jmp. p itself is never modified.
func Flip(p cpu.Program, i int) cpu.Program {
	out := p.Clone()
	switch out[i].Op {
	case cpu.OpNOP:
		out[i].Op = cpu.OpJMP
	case cpu.OpJMP:
		out[i].Op = cpu.OpNOP
	case cpu.OpACC:
	}
	return out
}

// Repair tries candidates in ascending order and returns the first whose
// flipped program halts. The caller is expected to pass a program that loops.
func Repair(p cpu.Program) Outcome {
	out, _ := NewSearcher().Repair(context.Background(), p)
	return out
}

type Searcher struct {
	workers int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Searcher)

// WithWorkers sets how many candidates are simulated concurrently.
// Values below 2 select the sequential search.
func WithWorkers(n int) Option {
	return func(s *Searcher) {
		s.workers = n
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Searcher) {
		s.metrics = m
	}
}

func NewSearcher(opts ...Option) *Searcher {
	s := &Searcher{
		workers: 1,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Repair runs the search. The parallel path simulates every candidate and
// keeps the lowest halting index, so both paths return the same Outcome
// apart from Tried. The only error is ctx.Err().
func (s *Searcher) Repair(ctx context.Context, p cpu.Program) (Outcome, error) {
	cands := Candidates(p)
	s.logger.Debug("repair search started",
		"instructions", len(p),
		"candidates", len(cands),
		"workers", s.workers)

	var (
		out Outcome
		err error
	)
	if s.workers > 1 {
		out, err = s.parallel(ctx, p, cands)
	} else {
		out, err = s.sequential(ctx, p, cands)
	}
	if err != nil {
		return Unfixable, err
	}

	s.metrics.RecordSearch(out.Fixed, out.Tried)
	if out.Fixed {
		s.logger.Info("repair found", "index", out.Index, "instruction", p[out.Index].String(), "acc", out.Acc, "tried", out.Tried)
	} else {
		s.logger.Info("repair search exhausted", "tried", out.Tried)
	}
	return out, nil
}

func (s *Searcher) try(p cpu.Program, i int) cpu.Result {
	res := cpu.Execute(Flip(p, i))
	s.metrics.RecordCandidate(res)
	s.logger.Debug("candidate simulated", "index", i, "outcome", res.Outcome.String(), "acc", res.Acc, "steps", res.Steps)
	return res
}

func (s *Searcher) sequential(ctx context.Context, p cpu.Program, cands []int) (Outcome, error) {
	tried := 0
	for _, i := range cands {
		if err := ctx.Err(); err != nil {
			return Unfixable, err
		}
		res := s.try(p, i)
		tried++
		if res.Outcome == cpu.Halted {
			return Outcome{Fixed: true, Index: i, Acc: res.Acc, Tried: tried}, nil
		}
	}
	return Outcome{Tried: tried}, nil
}

func (s *Searcher) parallel(ctx context.Context, p cpu.Program, cands []int) (Outcome, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	var (
		mu   sync.Mutex
		best = Outcome{Tried: len(cands)}
	)
	for _, i := range cands {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := s.try(p, i)
			if res.Outcome != cpu.Halted {
				return nil
			}
			mu.Lock()
			if !best.Fixed || i < best.Index {
				best.Fixed = true
				best.Index = i
				best.Acc = res.Acc
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Unfixable, err
	}
	return best, nil
}
