package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"bootcode/pkg/cpu"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		startPC  int
		startAcc int
		trace    bool
	)
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a listing and report whether it halts, loops or crashes",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVar(&startPC, "start-pc", 0, "initial instruction pointer; overrides config")
	cmd.Flags().IntVar(&startAcc, "start-acc", 0, "initial accumulator; overrides config")
	cmd.Flags().BoolVar(&trace, "trace", false, "print the executed instruction pointers")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		prog, err := a.loadProgram(args[0])
		if err != nil {
			return err
		}

		run := a.cfg.Run
		if cmd.Flags().Changed("start-pc") {
			run.StartPC = startPC
		}
		if cmd.Flags().Changed("start-acc") {
			run.StartAcc = startAcc
		}
		if cmd.Flags().Changed("trace") {
			run.Trace = trace
		}

		opts := []cpu.Option{cpu.WithStart(run.StartPC, run.StartAcc)}
		if run.Trace {
			opts = append(opts, cpu.WithTrace())
		}
		c := cpu.NewCPU(prog, opts...)
		res := c.Run()
		a.metrics.RecordRun(res)
		a.logger.Info("run finished", "outcome", res.Outcome.String(), "acc", res.Acc, "pc", res.PC, "steps", res.Steps)

		fmt.Fprintln(a.out, res)
		if run.Trace {
			fmt.Fprintln(a.out, "trace:", formatTrace(c.Trace()))
		}
		return nil
	})
	return cmd
}

func formatTrace(pcs []int) string {
	parts := make([]string, len(pcs))
	for i, pc := range pcs {
		parts[i] = fmt.Sprint(pc)
	}
	return strings.Join(parts, " ")
}
