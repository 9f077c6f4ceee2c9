package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gyaneshwarpardhi/phylodag/internal/config"
	"github.com/gyaneshwarpardhi/phylodag/internal/dist"
	"github.com/gyaneshwarpardhi/phylodag/internal/engine"
	"github.com/gyaneshwarpardhi/phylodag/internal/model"
)

func newInspectCmd(g *globalFlags) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Build the model and print its vertex table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(g.configPath)
			if err != nil {
				return err
			}
			tpl, err := engine.TemplateFromConfig(cfg, dist.DefaultRegistry())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return tpl.Inspect(func(m *model.Model) error {
				switch format {
				case "text":
					return m.WriteSummary(out)
				case "json":
					enc := json.NewEncoder(out)
					enc.SetIndent("", "  ")
					return enc.Encode(m.Summary())
				case "dot":
					dot, err := m.DOT()
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(out, dot)
					return err
				}
				return fmt.Errorf("unknown format %q (want text, json or dot)", format)
			})
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text, json or dot")
	return cmd
}
