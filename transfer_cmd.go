package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/tonimelisma/fxfer/internal/pathres"
	"github.com/tonimelisma/fxfer/internal/transfer"
)

// transferJSONOutput is the JSON output schema for one cp, mv or replace.
type transferJSONOutput struct {
	Mode    string `json:"mode"`
	Source  string `json:"source"`
	Dest    string `json:"dest"`
	Outcome string `json:"outcome"`
	Bytes   int64  `json:"bytes"`
	Error   string `json:"error,omitempty"`
}

// transferOne runs a single transfer of src onto dest and reports it. The
// returned error is errCancelled for a cancelled transfer.
func transferOne(
	ctx context.Context, cc *CLIContext, sess *Session, progress *progressPrinter,
	src, dest string, opts transfer.Options,
) (transferJSONOutput, error) {
	out := transferJSONOutput{Mode: opts.Mode.String(), Source: src, Dest: dest}

	h, err := sess.Open(src)
	if err != nil {
		out.Outcome = transfer.Failed.String()
		out.Error = err.Error()

		return out, err
	}
	defer sess.Cache.Release(h)

	opts.Progress = progress.callback(ctx, src)

	res, err := sess.Engine.Transfer(ctx, h, dest, pathres.Relative, opts)

	out.Outcome = res.Outcome.String()
	out.Bytes = res.Bytes

	if err != nil {
		out.Error = err.Error()
		return out, fmt.Errorf("%s %s: %w", opts.Mode, src, err)
	}

	if res.Dest != nil {
		out.Dest = res.Dest.Path()
		sess.Cache.Release(res.Dest)
	}

	cc.Logger.Debug("transfer finished",
		slog.String("mode", opts.Mode.String()),
		slog.String("src", src),
		slog.String("dest", out.Dest),
		slog.String("outcome", out.Outcome),
		slog.Int64("bytes", res.Bytes),
	)

	return out, outcomeError(res)
}

// reportTransfers prints results as JSON, or one status line each.
func reportTransfers(w io.Writer, cc *CLIContext, results []transferJSONOutput) error {
	if cc.Flags.JSON {
		return writeJSON(w, results)
	}

	for _, r := range results {
		if r.Outcome != transfer.Completed.String() {
			continue
		}

		verb := map[string]string{"copy": "Copied", "move": "Moved", "replace": "Replaced"}[r.Mode]

		if r.Bytes > 0 {
			cc.Statusf("%s %s -> %s (%s)\n", verb, r.Source, r.Dest, formatSize(r.Bytes))
		} else {
			cc.Statusf("%s %s -> %s\n", verb, r.Source, r.Dest)
		}
	}

	return nil
}
