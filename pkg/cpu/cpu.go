package cpu

import (
	"errors"
	"fmt"
	"math"
)

// Op is the operation field of an instruction. The set is closed: every
// switch over Op in this module handles all three values.
type Op uint8

const (
	OpNOP Op = iota
	OpACC
	OpJMP
)

func (op Op) String() string {
	switch op {
	case OpNOP:
		return "nop"
	case OpACC:
		return "acc"
	case OpJMP:
		return "jmp"
	}
	return fmt.Sprintf("op(%d)", uint8(op))
}

// Arguments are limited to the int32 range. With a 64-bit int no run can
// then overflow Acc or PC: a run makes at most len(program) transitions.
const (
	MinArg = math.MinInt32
	MaxArg = math.MaxInt32
)

type Instruction struct {
	Op  Op
	Arg int
}

// ArgInRange reports whether the argument lies in [MinArg, MaxArg].
func (in Instruction) ArgInRange() bool {
	return in.Arg >= MinArg && in.Arg <= MaxArg
}

func (in Instruction) String() string {
	return fmt.Sprintf("%s %+d", in.Op, in.Arg)
}

// Program is an ordered boot code listing. A running CPU never modifies it.
type Program []Instruction

// Clone returns an independent copy of p.
func (p Program) Clone() Program {
	out := make(Program, len(p))
	copy(out, p)
	return out
}

// Outcome is the terminal state of one run.
type Outcome uint8

const (
	// Running is only reported by a CPU that has not reached a terminal state.
	Running Outcome = iota
	// Halted: the pointer landed exactly one past the last instruction.
	Halted
	// Looped: the pointer reached an instruction that already executed.
	Looped
	// Crashed: the pointer left [0, len(program)].
	Crashed
)

func (o Outcome) String() string {
	switch o {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Looped:
		return "looped"
	case Crashed:
		return "crashed"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// Result describes how a run ended. Acc is the accumulator when the
// terminal condition was detected; for Looped that is before the repeated
// instruction executes a second time. PC is the pointer that triggered the
// terminal condition.
type Result struct {
	Outcome Outcome
	Acc     int
	PC      int
	Steps   int
}

func (r Result) String() string {
	switch r.Outcome {
	case Halted:
		return fmt.Sprintf("halted acc=%d", r.Acc)
	case Looped:
		return fmt.Sprintf("looped acc=%d pc=%d", r.Acc, r.PC)
	case Crashed:
		return fmt.Sprintf("crashed pc=%d", r.PC)
	}
	return fmt.Sprintf("running acc=%d pc=%d", r.Acc, r.PC)
}

// ErrStepBudget is the panic value raised when a run exceeds len(program)+1
// transitions. A run visits each index at most once, so seeing it means the
// loop detection is broken.
var ErrStepBudget = errors.New("cpu: step budget exceeded")

type CPU struct {
	Program Program

	PC  int
	Acc int

	Steps int

	startPC  int
	startAcc int

	visited []bool

	tracing bool
	trace   []int

	result Result
}

type Option func(*CPU)

// WithStart sets the initial pointer and accumulator.
func WithStart(pc, acc int) Option {
	return func(c *CPU) {
		c.startPC = pc
		c.startAcc = acc
	}
}

// WithTrace records every executed pointer in order.
func WithTrace() Option {
	return func(c *CPU) {
		c.tracing = true
	}
}

// NewCPU prepares a run of p. The program is not copied; callers must not
// modify it while the CPU is in use.
func NewCPU(p Program, opts ...Option) *CPU {
	c := &CPU{Program: p}
	for _, opt := range opts {
		opt(c)
	}
	c.Reset()
	return c
}

// Reset rewinds the CPU to its start state with a fresh visited set.
func (c *CPU) Reset() {
	c.PC = c.startPC
	c.Acc = c.startAcc
	c.Steps = 0
	c.visited = make([]bool, len(c.Program))
	c.result = Result{Outcome: Running, Acc: c.Acc, PC: c.PC}
	if c.tracing {
		c.trace = c.trace[:0]
	} else {
		c.trace = nil
	}
}

// Done reports whether the run reached a terminal state.
func (c *CPU) Done() bool {
	return c.result.Outcome != Running
}

// Result returns the terminal result, or a Running result while in progress.
func (c *CPU) Result() Result {
	if c.Done() {
		return c.result
	}
	return Result{Outcome: Running, Acc: c.Acc, PC: c.PC, Steps: c.Steps}
}

// Trace returns the executed pointers in order. It is nil unless the CPU
// was created WithTrace.
func (c *CPU) Trace() []int {
	if !c.tracing {
		return nil
	}
	out := make([]int, len(c.trace))
	copy(out, c.trace)
	return out
}

// Visited reports whether the instruction at idx executed during this run.
func (c *CPU) Visited(idx int) bool {
	return idx >= 0 && idx < len(c.visited) && c.visited[idx]
}

func (c *CPU) finish(o Outcome) {
	c.result = Result{Outcome: o, Acc: c.Acc, PC: c.PC, Steps: c.Steps}
}

// Step either detects a terminal state or executes one instruction.
// It returns false once the run is done.
func (c *CPU) Step() bool {
	if c.Done() {
		return false
	}

	n := len(c.Program)
	switch {
	case c.PC == n:
		c.finish(Halted)
		return false
	case c.PC < 0 || c.PC > n:
		c.finish(Crashed)
		return false
	case c.visited[c.PC]:
		c.finish(Looped)
		return false
	}

	if c.Steps > n {
		panic(ErrStepBudget)
	}

	c.visited[c.PC] = true
	if c.tracing {
		c.trace = append(c.trace, c.PC)
	}

	instr := c.Program[c.PC]
	switch instr.Op {
	case OpNOP:
		c.PC++
	case OpACC:
		c.Acc += instr.Arg
		c.PC++
	case OpJMP:
		c.PC += instr.Arg
	default:
		panic(fmt.Sprintf("cpu: unknown op %v at %d", instr.Op, c.PC))
	}
	c.Steps++
	return true
}

// Run steps until a terminal state and returns it.
func (c *CPU) Run() Result {
	for c.Step() {
	}
	return c.result
}

// Execute runs p from pointer 0 with a zero accumulator.
func Execute(p Program) Result {
	return ExecuteFrom(p, 0, 0)
}

// ExecuteFrom runs p from the given start state. Each call owns its own
// visited set, so concurrent calls on the same program are safe.
func ExecuteFrom(p Program, pc, acc int) Result {
	return NewCPU(p, WithStart(pc, acc)).Run()
}
