package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxfer/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Display effective configuration after all overrides",
		Args:  cobra.NoArgs,
		RunE:  runConfigShow,
	})

	return cmd
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	if cc.Flags.JSON {
		return writeJSON(cmd.OutOrStdout(), cc.Cfg.Config)
	}

	return config.RenderEffective(cc.Cfg, cmd.OutOrStdout())
}
