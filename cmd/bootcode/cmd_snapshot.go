package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bootcode/pkg/cpu"
)

func newSnapshotCmd(a *app) *cobra.Command {
	var (
		steps int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "snapshot FILE",
		Short: "Run a listing for a number of steps and save the paused state",
		Args:  cobra.ExactArgs(1),
	}
	cmd.Flags().IntVar(&steps, "steps", 1, "transitions to execute before pausing")
	cmd.Flags().StringVar(&out, "out", "bootcode.snap", "snapshot archive to write")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		prog, err := a.loadProgram(args[0])
		if err != nil {
			return err
		}
		opts := []cpu.Option{cpu.WithStart(a.cfg.Run.StartPC, a.cfg.Run.StartAcc)}
		if a.cfg.Run.Trace {
			opts = append(opts, cpu.WithTrace())
		}
		c := cpu.NewCPU(prog, opts...)
		for i := 0; i < steps && c.Step(); i++ {
		}
		if err := c.HibernateToFile(out); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "paused %v -> %s\n", c.Result(), out)
		return nil
	})
	return cmd
}

func newResumeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "resume SNAPSHOT",
		Short: "Resume a paused run from a snapshot archive",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			c, err := cpu.WakeFromFile(args[0])
			if err != nil {
				return err
			}
			res := c.Run()
			a.metrics.RecordRun(res)
			fmt.Fprintln(a.out, res)
			if trace := c.Trace(); trace != nil {
				fmt.Fprintln(a.out, "trace:", formatTrace(trace))
			}
			return nil
		}),
	}
}
