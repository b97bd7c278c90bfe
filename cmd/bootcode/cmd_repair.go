package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bootcode/pkg/asm"
	"bootcode/pkg/cpu"
	"bootcode/pkg/repair"
)

func newRepairCmd(a *app) *cobra.Command {
	var (
		workers int
		write   string
	)
	cmd := &cobra.Command{
		Use:   "repair FILE",
		Short: "Find the single nop/jmp swap that makes a looping listing halt",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "candidates simulated concurrently; overrides config")
	cmd.Flags().StringVar(&write, "write", "", "save the repaired listing to this file")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		prog, err := a.loadProgram(args[0])
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("workers") {
			a.cfg.Repair.Workers = workers
		}

		out, err := a.repair(cmd, prog)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, out)
		if !out.Fixed {
			return errUnfixable
		}

		if write != "" {
			fixed := repair.Flip(prog, out.Index)
			if err := os.WriteFile(write, []byte(asm.Disassemble(fixed)), 0o644); err != nil {
				return err
			}
			a.logger.Info("repaired listing written", "path", write)
		}
		return nil
	})
	return cmd
}

// repair checks the precondition that prog loops, then searches.
func (a *app) repair(cmd *cobra.Command, prog cpu.Program) (repair.Outcome, error) {
	res := cpu.Execute(prog)
	a.metrics.RecordRun(res)
	if res.Outcome != cpu.Looped {
		a.logger.Warn("repair skipped", "outcome", res.Outcome.String())
		return repair.Unfixable, fmt.Errorf("%w (%v)", errNotLooping, res)
	}

	s := repair.NewSearcher(
		repair.WithWorkers(a.cfg.Repair.Workers),
		repair.WithLogger(a.logger),
		repair.WithMetrics(a.metrics),
	)
	return s.Repair(cmd.Context(), prog)
}
