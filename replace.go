package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxfer/internal/transfer"
)

func newReplaceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replace [flags] <src> <dest>",
		Short: "Replace a file with another, keeping its metadata",
		Long: `Replace dest with src. The replaced file's permissions, ownership and
extended attributes are carried onto the replacement, and src is consumed.
With --backup, the replaced file is kept at the given path.`,
		Args: cobra.ExactArgs(2),
		RunE: runReplace,
	}

	cmd.Flags().String("backup", "", "keep the replaced file at this path")
	cmd.Flags().Bool("ignore-metadata-errors", false, "continue when metadata cannot be carried over")
	cmd.Flags().Bool("cross-volume", false, "fall back to copy and delete across volumes")

	return cmd
}

func runReplace(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())

	opts := transfer.Options{
		Mode:  transfer.Replace,
		Flags: transferFlags(&cc.Cfg.Transfers),
	}

	opts.BackupPath, _ = cmd.Flags().GetString("backup")

	if ignore, _ := cmd.Flags().GetBool("ignore-metadata-errors"); ignore {
		opts.Flags |= transfer.IgnoreMetadataErrors
	}

	if cross, _ := cmd.Flags().GetBool("cross-volume"); cross {
		opts.Flags |= transfer.AllowCrossVolume
	}

	return runSingleTransfer(cmd, cc, args[0], args[1], opts)
}
