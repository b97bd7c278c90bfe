package cpu

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrBadSnapshot wraps any structural problem found while waking a snapshot.
var ErrBadSnapshot = errors.New("cpu: invalid snapshot")

// MarshalText implements encoding.TextMarshaler.
func (op Op) MarshalText() ([]byte, error) {
	switch op {
	case OpNOP, OpACC, OpJMP:
		return []byte(op.String()), nil
	}
	return nil, fmt.Errorf("cpu: cannot marshal %v", op)
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *Op) UnmarshalText(b []byte) error {
	switch string(b) {
	case "nop":
		*op = OpNOP
	case "acc":
		*op = OpACC
	case "jmp":
		*op = OpJMP
	default:
		return fmt.Errorf("cpu: unknown op %q", b)
	}
	return nil
}

// snapshotInstruction is the JSON form of one instruction.
type snapshotInstruction struct {
	Op  Op  `json:"op"`
	Arg int `json:"arg"`
}

// humanReadableState is the JSON-serializable snapshot of a paused run.
type humanReadableState struct {
	Program  []snapshotInstruction `json:"program"`
	PC       int                   `json:"pc"`
	Acc      int                   `json:"acc"`
	Steps    int                   `json:"steps"`
	StartPC  int                   `json:"start_pc"`
	StartAcc int                   `json:"start_acc"`
	Visited  []int                 `json:"visited"`
	Tracing  bool                  `json:"tracing"`
	Trace    []int                 `json:"trace,omitempty"`
	Outcome  string                `json:"outcome"`
}

// check enforces what a live CPU guarantees: every step marks exactly one
// new instruction, so Steps equals the number of visited indices and never
// exceeds the program length. A traced run records one entry per step.
func (st *humanReadableState) check() error {
	n := len(st.Program)
	for i, in := range st.Program {
		if !(Instruction{Op: in.Op, Arg: in.Arg}).ArgInRange() {
			return fmt.Errorf("instruction %d: argument %d out of range", i, in.Arg)
		}
	}
	if st.Steps < 0 || st.Steps > n {
		return fmt.Errorf("steps %d outside [0, %d]", st.Steps, n)
	}
	if st.Steps != len(st.Visited) {
		return fmt.Errorf("steps %d but %d visited instructions", st.Steps, len(st.Visited))
	}
	for i, idx := range st.Visited {
		if idx < 0 || idx >= n {
			return fmt.Errorf("visited index %d out of range", idx)
		}
		if i > 0 && idx <= st.Visited[i-1] {
			return fmt.Errorf("visited indices not strictly ascending at %d", idx)
		}
	}
	if len(st.Trace) > st.Steps {
		return fmt.Errorf("trace has %d entries for %d steps", len(st.Trace), st.Steps)
	}
	if !st.Tracing {
		return nil
	}
	if len(st.Trace) != st.Steps {
		return fmt.Errorf("trace has %d entries for %d steps", len(st.Trace), st.Steps)
	}
	visited := make(map[int]bool, len(st.Visited))
	for _, idx := range st.Visited {
		visited[idx] = true
	}
	for _, idx := range st.Trace {
		if !visited[idx] {
			return fmt.Errorf("trace entry %d is not a visited instruction", idx)
		}
		delete(visited, idx)
	}
	return nil
}

// HibernateToBytes serialises the run state into an in-memory ZIP archive
// and returns the raw bytes. The archive holds cpu_state.json and a
// program.txt listing for humans; only the JSON is read back.
func (c *CPU) HibernateToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	state := humanReadableState{
		Program:  make([]snapshotInstruction, len(c.Program)),
		PC:       c.PC,
		Acc:      c.Acc,
		Steps:    c.Steps,
		StartPC:  c.startPC,
		StartAcc: c.startAcc,
		Visited:  []int{},
		Tracing:  c.tracing,
		Trace:    c.Trace(),
		Outcome:  c.result.Outcome.String(),
	}
	for i, in := range c.Program {
		state.Program[i] = snapshotInstruction{Op: in.Op, Arg: in.Arg}
	}
	for i, v := range c.visited {
		if v {
			state.Visited = append(state.Visited, i)
		}
	}

	stateJSON, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("hibernate: marshal state: %w", err)
	}
	if err := writeZipEntry(zw, "cpu_state.json", stateJSON); err != nil {
		return nil, err
	}

	var listing strings.Builder
	for _, in := range c.Program {
		listing.WriteString(in.String())
		listing.WriteByte('\n')
	}
	if err := writeZipEntry(zw, "program.txt", []byte(listing.String())); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("hibernate: close zip: %w", err)
	}
	return buf.Bytes(), nil
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("hibernate: create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("hibernate: write %s: %w", name, err)
	}
	return nil
}

// HibernateToFile writes the snapshot archive to path.
func (c *CPU) HibernateToFile(path string) error {
	data, err := c.HibernateToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// WakeFromBytes rebuilds a CPU from a HibernateToBytes archive. The restored
// CPU continues exactly where the hibernated one stopped.
func WakeFromBytes(data []byte) (*CPU, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	var raw []byte
	for _, f := range zr.File {
		if f.Name != "cpu_state.json" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
		raw, err = io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
		}
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: missing cpu_state.json", ErrBadSnapshot)
	}

	var state humanReadableState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	if err := state.check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSnapshot, err)
	}

	prog := make(Program, len(state.Program))
	for i, in := range state.Program {
		prog[i] = Instruction{Op: in.Op, Arg: in.Arg}
	}

	opts := []Option{WithStart(state.StartPC, state.StartAcc)}
	if state.Tracing {
		opts = append(opts, WithTrace())
	}
	c := NewCPU(prog, opts...)
	c.PC = state.PC
	c.Acc = state.Acc
	c.Steps = state.Steps
	for _, idx := range state.Visited {
		c.visited[idx] = true
	}
	if state.Tracing {
		c.trace = append(c.trace, state.Trace...)
	}
	c.result = Result{Outcome: Running, Acc: c.Acc, PC: c.PC, Steps: c.Steps}

	// A snapshot taken after termination is re-detected on the next Step.
	return c, nil
}

// WakeFromFile reads and restores a snapshot archive from path.
func WakeFromFile(path string) (*CPU, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return WakeFromBytes(data)
}
