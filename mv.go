package main

import (
	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxfer/internal/transfer"
)

func newMvCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mv [flags] <src> <dest>",
		Short: "Move or rename a file",
		Long: `Move a file. Within one volume this is an atomic rename. Across volumes it
fails unless --cross-volume is given, in which case the file is copied, the
copy committed, and only then the source deleted.`,
		Args: cobra.ExactArgs(2),
		RunE: runMv,
	}

	cmd.Flags().Bool("overwrite", false, "replace an existing destination")
	cmd.Flags().Bool("cross-volume", false, "fall back to copy and delete across volumes")

	return cmd
}

func runMv(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	opts := transfer.Options{
		Mode:  transfer.Move,
		Flags: transferFlags(&cc.Cfg.Transfers),
	}

	if overwrite, _ := cmd.Flags().GetBool("overwrite"); overwrite {
		opts.Overwrite = transfer.Overwrite
	}

	if cross, _ := cmd.Flags().GetBool("cross-volume"); cross {
		opts.Flags |= transfer.AllowCrossVolume
	}

	return runSingleTransfer(cmd, cc, args[0], destInto(args[0], args[1]), opts)
}

// runSingleTransfer runs one transfer in one transaction and reports it.
func runSingleTransfer(cmd *cobra.Command, cc *CLIContext, src, dest string, opts transfer.Options) error {
	ctx := cmd.Context()

	sess, err := NewSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	progress := newProgressPrinter(cc)

	var result transferJSONOutput

	err = sess.InTx(ctx, func(tx transfer.Tx) error {
		opts.Tx = tx

		var err error

		result, err = transferOne(ctx, cc, sess, progress, src, dest, opts)

		return err
	})

	if reportErr := reportTransfers(cmd.OutOrStdout(), cc, []transferJSONOutput{result}); reportErr != nil && err == nil {
		return reportErr
	}

	return err
}
