package main

import (
	"fmt"

	"bootcode/pkg/cpu"
	"bootcode/pkg/repair"
)

// debugger is the window-independent state behind the desktop view.
type debugger struct {
	original cpu.Program
	vm       *cpu.CPU

	running bool
	// ticksPerStep slows auto-run down to a watchable pace.
	ticksPerStep int
	ticks        int

	fix *repair.Outcome
}

// listingLine is one rendered instruction cell.
type listingLine struct {
	Text    string
	Current bool
	Visited bool
	Patched bool
}

func newDebugger(p cpu.Program) *debugger {
	return &debugger{
		original:     p,
		vm:           cpu.NewCPU(p, cpu.WithTrace()),
		ticksPerStep: 6,
	}
}

func (d *debugger) toggleRun() {
	d.running = !d.running
}

func (d *debugger) step() bool {
	return d.vm.Step()
}

func (d *debugger) reset() {
	d.running = false
	d.ticks = 0
	d.vm.Reset()
}

// applyRepair searches for a fix of the original listing and, if found,
// restarts on the patched copy.
func (d *debugger) applyRepair() repair.Outcome {
	out := repair.Repair(d.original)
	d.fix = &out
	if out.Fixed {
		d.vm = cpu.NewCPU(repair.Flip(d.original, out.Index), cpu.WithTrace())
	} else {
		d.vm = cpu.NewCPU(d.original, cpu.WithTrace())
	}
	d.running = false
	d.ticks = 0
	return out
}

// tick is called once per frame.
func (d *debugger) tick() {
	if !d.running {
		return
	}
	d.ticks++
	if d.ticks < d.ticksPerStep {
		return
	}
	d.ticks = 0
	if !d.step() {
		d.running = false
	}
}

func (d *debugger) lines() []listingLine {
	out := make([]listingLine, len(d.vm.Program))
	for i, in := range d.vm.Program {
		out[i] = listingLine{
			Text:    fmt.Sprintf("%3d %s", i, in),
			Current: i == d.vm.PC && !d.vm.Done(),
			Visited: d.vm.Visited(i),
			Patched: d.fix != nil && d.fix.Fixed && d.fix.Index == i,
		}
	}
	return out
}

func (d *debugger) status() string {
	res := d.vm.Result()
	s := fmt.Sprintf("%v  steps=%d", res, res.Steps)
	if d.fix != nil {
		s += "  repair: " + d.fix.String()
	}
	if d.running {
		s += "  [running]"
	}
	return s
}
