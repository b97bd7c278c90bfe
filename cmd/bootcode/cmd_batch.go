package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"bootcode/pkg/repair"
	"bootcode/pkg/store"
)

func newBatchCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "batch DIR",
		Short: "Repair every listing in a directory",
		Long: `batch loads every listing in DIR, repairs each one that loops and writes
the repaired listing into --out. The repair of a.txt is named a-txt.fix.
Listings that fail to decode, do not loop or cannot be fixed are reported
and skipped.`,
		Args: cobra.ExactArgs(1),
	}
	cmd.Flags().StringVar(&outDir, "out", "", "directory for repaired listings (default DIR)")

	cmd.RunE = a.runE(func(cmd *cobra.Command, args []string) error {
		dir := args[0]
		if outDir == "" {
			outDir = dir
		}

		in := store.New()
		rejected, err := in.LoadDir(dir)
		if err != nil {
			return err
		}
		fixes := store.New()

		names := in.Names()
		for name := range rejected {
			names = append(names, name)
		}
		sort.Strings(names)

		var total, failed int
		for _, name := range names {
			if strings.HasSuffix(name, ".fix") {
				continue
			}
			total++
			if err, ok := rejected[name]; ok {
				failed++
				fmt.Fprintf(a.out, "%s: %v\n", name, err)
				continue
			}
			prog, err := in.Program(name)
			if err != nil {
				return err
			}

			out, err := a.repair(cmd, prog)
			switch {
			case errors.Is(err, errNotLooping):
				failed++
				fmt.Fprintf(a.out, "%s: %v\n", name, err)
				continue
			case err != nil:
				return err
			}

			fmt.Fprintf(a.out, "%s: %v\n", name, out)
			if !out.Fixed {
				failed++
				continue
			}

			target := fixName(name)
			if fixes.Has(target) {
				failed++
				fmt.Fprintf(a.out, "%s: %s already holds another repair\n", name, target)
				continue
			}
			if err := fixes.PutProgram(target, repair.Flip(prog, out.Index)); err != nil {
				failed++
				fmt.Fprintf(a.out, "%s: %s: %v\n", name, target, err)
				continue
			}
			line, _ := in.Line(name, out.Index)
			a.logger.Info("listing repaired", "listing", name, "index", out.Index, "line", line, "fix", target)
		}

		if err := fixes.Flush(outDir); err != nil {
			return err
		}
		a.logger.Info("batch finished", "listings", total, "fixed", len(fixes.Names()), "failed", failed)
		if failed > 0 {
			return fmt.Errorf("%d of %d listings not repaired", failed, total)
		}
		return nil
	})
	return cmd
}

// fixName names the repair of a listing. The extension is folded into the
// base so a.txt and a.in get distinct names.
func fixName(name string) string {
	base, ext, found := strings.Cut(name, ".")
	if !found {
		return name + ".fix"
	}
	return base + "-" + ext + ".fix"
}
