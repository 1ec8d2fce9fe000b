package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxfer/internal/entry"
	"github.com/tonimelisma/fxfer/internal/fserr"
	"github.com/tonimelisma/fxfer/internal/watch"
)

func newStatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stat [flags] <path>",
		Short: "Show file metadata",
		Long: `Show the metadata of a file. With --watch, keep running and print it again
each time the file changes, until interrupted.`,
		Args: cobra.ExactArgs(1),
		RunE: runStat,
	}

	cmd.Flags().Bool("watch", false, "print again whenever the file changes")

	return cmd
}

func runStat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cc := mustCLIContext(ctx)
	w := cmd.OutOrStdout()

	sess, err := NewSession(ctx, cc.Cfg, cc.Logger)
	if err != nil {
		return err
	}
	defer sess.Close()

	h, err := sess.Open(args[0])
	if err != nil {
		return err
	}

	if watchMode, _ := cmd.Flags().GetBool("watch"); watchMode {
		return watchStat(ctx, cc, sess, h, w)
	}

	snap, err := sess.Cache.Snapshot(h)
	if err != nil {
		return fmt.Errorf("stat %s: %w", args[0], err)
	}

	return printStat(w, cc, h, snap)
}

// watchStat prints the snapshot, then reprints it after every change the
// invalidator reports. A missing file is reported and watched for.
func watchStat(ctx context.Context, cc *CLIContext, sess *Session, h *entry.Handle, w io.Writer) error {
	inv, err := watch.New(sess.Cache, cc.Logger)
	if err != nil {
		return err
	}
	defer inv.Close()

	if err := inv.Watch(h.Path()); err != nil {
		return err
	}

	done := make(chan error, 1)

	go func() {
		done <- inv.Run(ctx)
	}()

	if err := printCurrent(w, cc, sess, h); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return <-done
		case <-inv.Changes():
			if err := printCurrent(w, cc, sess, h); err != nil {
				return err
			}
		}
	}
}

func printCurrent(w io.Writer, cc *CLIContext, sess *Session, h *entry.Handle) error {
	snap, err := sess.Cache.Snapshot(h)
	if errors.Is(err, fserr.ErrNotFound) {
		fmt.Fprintf(w, "%s: absent\n", h.Path())
		return nil
	}

	if err != nil {
		return err
	}

	return printStat(w, cc, h, snap)
}

// statJSONOutput is the JSON output schema for the stat command.
type statJSONOutput struct {
	Path       string `json:"path"`
	Extended   string `json:"extended_path,omitempty"`
	Size       int64  `json:"size"`
	Attributes string `json:"attributes"`
	CreatedAt  string `json:"created_at,omitempty"`
	ModifiedAt string `json:"modified_at"`
	AccessedAt string `json:"accessed_at"`
}

func printStat(w io.Writer, cc *CLIContext, h *entry.Handle, snap entry.Snapshot) error {
	c := h.Canonical()

	if cc.Flags.JSON {
		out := statJSONOutput{
			Path:       c.Path,
			Size:       snap.Size,
			Attributes: snap.Attributes.String(),
			CreatedAt:  formatStamp(snap.CreatedAt),
			ModifiedAt: formatStamp(snap.ModifiedAt),
			AccessedAt: formatStamp(snap.AccessedAt),
		}

		if c.Escaped() {
			out.Extended = c.Extended
		}

		return writeJSON(w, out)
	}

	fmt.Fprintf(w, "Path:       %s\n", c.Path)

	if c.Escaped() {
		fmt.Fprintf(w, "Extended:   %s\n", c.Extended)
	}

	fmt.Fprintf(w, "Size:       %s (%d bytes)\n", formatSize(snap.Size), snap.Size)
	fmt.Fprintf(w, "Attributes: %s\n", snap.Attributes)
	fmt.Fprintf(w, "Created:    %s\n", formatTime(snap.CreatedAt))
	fmt.Fprintf(w, "Modified:   %s\n", formatTime(snap.ModifiedAt))
	fmt.Fprintf(w, "Accessed:   %s\n", formatTime(snap.AccessedAt))

	return nil
}
