package main

import (
	"errors"
	"fmt"
	"os"
	gosync "sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/fxfer/internal/transfer"
)

func newCpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cp [flags] <src>... <dest>",
		Short: "Copy files",
		Long: `Copy one or more files. Content is written to a hidden partial file next
to the destination and renamed into place once complete, so the destination
is never observed half-written.

With several sources, dest must be an existing directory. Each file is
copied in its own journal transaction, so one failure does not undo the
others.`,
		Args: cobra.MinimumNArgs(2),
		RunE: runCp,
	}

	cmd.Flags().Bool("overwrite", false, "replace an existing destination")
	cmd.Flags().Bool("preserve-timestamps", false, "copy access and modification times")
	cmd.Flags().Bool("no-buffering", false, "bypass the page cache where the platform allows")
	cmd.Flags().Int("parallel", 0, "concurrent copies (default from config)")

	return cmd
}

func runCp(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)

	sources, dest := args[:len(args)-1], args[len(args)-1]

	if len(sources) > 1 {
		info, err := os.Stat(dest)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("target %q is not a directory", dest)
		}
	}

	opts := transfer.Options{
		Mode:  transfer.Copy,
		Flags: transferFlags(&cc.Cfg.Transfers),
	}

	if overwrite, _ := cmd.Flags().GetBool("overwrite"); overwrite {
		opts.Overwrite = transfer.Overwrite
	}

	if preserve, _ := cmd.Flags().GetBool("preserve-timestamps"); preserve {
		opts.Flags |= transfer.PreserveTimestamps
	}

	if noBuf, _ := cmd.Flags().GetBool("no-buffering"); noBuf {
		opts.Flags |= transfer.NoBuffering
	}

	parallel, _ := cmd.Flags().GetInt("parallel")
	if parallel <= 0 {
		parallel = cc.Cfg.Transfers.Parallel
	}

	sess, err := NewSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	progress := newProgressPrinter(cc)

	results := make([]transferJSONOutput, len(sources))

	var (
		g    errgroup.Group
		mu   gosync.Mutex
		errs []error
	)

	g.SetLimit(parallel)

	for i, src := range sources {
		g.Go(func() error {
			target := destInto(src, dest)

			err := sess.InTx(ctx, func(tx transfer.Tx) error {
				o := opts
				o.Tx = tx

				var err error

				results[i], err = transferOne(ctx, cc, sess, progress, src, target, o)

				return err
			})
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}

			// Failures are per file; the remaining copies go on.
			return nil
		})
	}

	_ = g.Wait()

	if err := reportTransfers(cmd.OutOrStdout(), cc, results); err != nil {
		return err
	}

	return cpError(errs)
}

// cpError collapses per-file failures. Cancellation wins so main exits 130.
func cpError(errs []error) error {
	for _, err := range errs {
		if errors.Is(err, errCancelled) {
			return errCancelled
		}
	}

	return errors.Join(errs...)
}
