package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	kitlog "github.com/go-kit/log"
	"github.com/javahedi/qtransport"
	"github.com/javahedi/qtransport/dataio"
	"github.com/spf13/cobra"
)

// This program reads a TOML scenario and runs the requested computations,
// writing CSV tables and a YAML summary to the output directory.

var (
	scenarioPath string
	outDir       string
	workers      int
	verbose      bool
	logger       kitlog.Logger = kitlog.NewNopLogger()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "qtransport",
		Short:        "Band structures, densities of states and transport of lattice models",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logger = kitlog.NewLogfmtLogger(kitlog.NewSyncWriter(os.Stderr))
				logger = kitlog.With(logger, "ts", kitlog.DefaultTimestampUTC)
			}
		},
	}
	flags := root.PersistentFlags()
	flags.StringVarP(&scenarioPath, "scenario", "s", "", "scenario TOML file")
	flags.StringVarP(&outDir, "out", "o", "", "output directory (overrides output.dir)")
	flags.IntVarP(&workers, "workers", "w", 0, "number of workers (overrides workers, GOMAXPROCS if 0)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every computation to stderr")

	for _, sub := range []struct {
		use, short string
		steps      []step
	}{
		{"bands", "Diagonalize the model on the scenario mesh", []step{(*runner).bands}},
		{"dos", "Density of states", []step{(*runner).bands, (*runner).dos}},
		{"transport", "Boltzmann and Kubo conductivities", []step{(*runner).bands, (*runner).boltzmann, (*runner).kubo}},
		{"chern", "Chern number of the occupied bands", []step{(*runner).chern}},
		{"run", "Everything the scenario configures", []step{(*runner).bands, (*runner).dos, (*runner).boltzmann, (*runner).kubo, (*runner).chern}},
	} {
		steps := sub.steps
		root.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				r, err := newRunner(cmd)
				if err != nil {
					return err
				}
				return r.run(cmd.Context(), steps...)
			},
		})
	}
	root.AddCommand(&cobra.Command{
		Use:   "models",
		Short: "List the available models",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println(strings.Join(qtransport.ModelNames(), "\n"))
		},
	})
	return root
}

type step func(*runner, context.Context) error

// runner holds the state shared by the steps of one invocation.
type runner struct {
	cmd     *cobra.Command
	sc      *scenario
	bs      *qtransport.BandStructure
	summary *dataio.Summary
}

func newRunner(cmd *cobra.Command) (*runner, error) {
	if scenarioPath == "" {
		return nil, fmt.Errorf("no scenario provided, use --scenario")
	}
	sc, err := loadScenario(scenarioPath)
	if err != nil {
		return nil, err
	}
	if outDir != "" {
		sc.Export.Dir = outDir
	}
	if cmd.Flags().Changed("workers") {
		sc.Workers = workers
	}
	return &runner{cmd: cmd, sc: sc}, nil
}

func (r *runner) run(ctx context.Context, steps ...step) error {
	start := time.Now()
	for _, s := range steps {
		if err := s(r, ctx); err != nil {
			return err
		}
	}
	return r.writeSummary(time.Since(start))
}
