package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "phylodag",
		Short: "Build probabilistic graphical models from YAML and sample them with MCMC",
		Long: `phylodag builds a DAG of constant, deterministic and stochastic nodes
from a YAML model file and runs Metropolis-Hastings chains over copies of it.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			slog.SetDefault(newLogger(g.logLevel, g.logFormat, stderr))
		},
	}
	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "configs/model.yaml", "Path to the model YAML file")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&g.logFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(newRunCmd(g), newInspectCmd(g), newServeCmd(g))
	return root
}

func main() {
	if err := newRootCmd(os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
