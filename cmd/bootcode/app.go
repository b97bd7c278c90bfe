package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"bootcode/pkg/asm"
	"bootcode/pkg/config"
	"bootcode/pkg/cpu"
	"bootcode/pkg/metrics"
	"bootcode/pkg/utils"
)

var (
	errUnfixable  = errors.New("no single nop/jmp flip makes the program halt")
	errNotLooping = errors.New("program does not loop; nothing to repair")
)

// app carries what every subcommand needs once the persistent flags have
// been applied.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath      string
	logLevel        string
	metricsTextfile string

	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "bootcode",
		Short: "Run and repair handheld console boot code",
		Long: `bootcode interprets listings of nop/acc/jmp instructions, reports whether
they halt, loop or crash, and searches for the single nop/jmp swap that makes
a looping listing halt.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.SetOut(out)
	root.SetErr(errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", os.Getenv(config.EnvConfigPath), "YAML config file")
	pf.StringVar(&a.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides config")
	pf.StringVar(&a.metricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this file on exit; overrides config")

	root.AddCommand(
		newRunCmd(a),
		newRepairCmd(a),
		newCheckCmd(a),
		newDisasmCmd(a),
		newBatchCmd(a),
		newSnapshotCmd(a),
		newResumeCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.metricsTextfile != "" {
		cfg.Metrics.Textfile = a.metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(a.errOut)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.logger = logger
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)
	return nil
}

// runE adapts fn into a cobra RunE that always flushes metrics, including
// when fn fails.
func (a *app) runE(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		return errors.Join(err, a.flushMetrics())
	}
}

func (a *app) flushMetrics() error {
	if a.cfg.Metrics.Textfile == "" || a.registry == nil {
		return nil
	}
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile, a.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	a.logger.Debug("metrics written", "path", a.cfg.Metrics.Textfile)
	return nil
}

// loadProgram reads and decodes a listing. Any decode error aborts before
// anything runs.
func (a *app) loadProgram(path string) (cpu.Program, error) {
	fullPath, _, err := utils.GetPathInfo(path)
	if err != nil {
		return nil, err
	}
	lines, err := utils.ReadLines(fullPath)
	if err != nil {
		return nil, err
	}
	prog, err := asm.AssembleLines(lines)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.logger.Debug("program loaded", "path", fullPath, "instructions", len(prog))
	return prog, nil
}
