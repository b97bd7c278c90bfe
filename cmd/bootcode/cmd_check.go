package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bootcode/pkg/asm"
)

func newCheckCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "check FILE",
		Short: "Decode a listing without running it",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			prog, err := a.loadProgram(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "ok: %d instructions\n", len(prog))
			return nil
		}),
	}
}

func newDisasmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disasm FILE",
		Short: "Print a listing in normalized form",
		Args:  cobra.ExactArgs(1),
		RunE: a.runE(func(cmd *cobra.Command, args []string) error {
			prog, err := a.loadProgram(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.out, asm.Disassemble(prog))
			return nil
		}),
	}
}
