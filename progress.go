package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/tonimelisma/fxfer/internal/transfer"
)

// redrawInterval throttles terminal progress redraws.
const redrawInterval = 100 * time.Millisecond

// progressPrinter renders one status line per transfer on a terminal. It is
// shared by concurrent transfers, so drawing is serialized.
type progressPrinter struct {
	w       io.Writer
	enabled bool
	nowFunc func() time.Time

	mu       sync.Mutex
	lastDraw time.Time
}

// newProgressPrinter draws only when stderr is a terminal and output is not
// quiet or JSON.
func newProgressPrinter(cc *CLIContext) *progressPrinter {
	fd := os.Stderr.Fd()
	tty := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)

	return &progressPrinter{
		w:       os.Stderr,
		enabled: tty && !cc.Flags.Quiet && !cc.Flags.JSON,
		nowFunc: time.Now,
	}
}

// callback returns the progress function for one transfer. It answers
// Cancel once ctx is done. Drawing is skipped rather than silenced with
// Quiet, since a silenced transfer could no longer be cancelled.
func (p *progressPrinter) callback(ctx context.Context, name string) transfer.ProgressFunc {
	started := p.nowFunc()
	label := filepath.Base(name)

	return func(r transfer.ProgressReport) transfer.ProgressAction {
		if ctx.Err() != nil {
			return transfer.Cancel
		}

		if p.enabled {
			p.draw(label, started, r)
		}

		return transfer.Continue
	}
}

func (p *progressPrinter) draw(label string, started time.Time, r transfer.ProgressReport) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.nowFunc()
	done := r.BytesTransferred == r.TotalBytes

	if !done && now.Sub(p.lastDraw) < redrawInterval {
		return
	}

	p.lastDraw = now

	fmt.Fprintf(p.w, "\r\033[K%s", progressLine(label, r, now.Sub(started)))

	if done {
		fmt.Fprintln(p.w)
	}
}

// progressLine formats "name  42%  12 MiB / 28 MiB  5.1 MB/s".
func progressLine(label string, r transfer.ProgressReport, elapsed time.Duration) string {
	pct := 100
	if r.TotalBytes > 0 {
		pct = int(r.BytesTransferred * 100 / r.TotalBytes)
	}

	line := fmt.Sprintf("%s  %3d%%  %s / %s", label, pct, formatSize(r.BytesTransferred), formatSize(r.TotalBytes))

	if secs := elapsed.Seconds(); secs > 0 && r.BytesTransferred > 0 {
		line += "  " + humanize.Bytes(uint64(float64(r.BytesTransferred)/secs)) + "/s"
	}

	return line
}
