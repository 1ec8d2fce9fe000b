package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved configuration as an annotated TOML-ish
// summary to w. This powers "fxfer config show".
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.Path)

	renderPathsSection(ew, &r.Paths)
	renderTransfersSection(ew, &r.Transfers)
	renderJournalSection(ew, &r.Journal)

	ew.printf("[logging]\n")
	ew.printf("  log_level = %q\n", r.Logging.LogLevel)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func renderPathsSection(ew *errWriter, p *PathsConfig) {
	ew.printf("[paths]\n")
	ew.printf("  strict_names        = %t\n", p.StrictNames)
	ew.printf("  trim_trailing_space = %t\n", p.TrimTrailingSpace)
	ew.printf("  normalize_unicode   = %t\n", p.NormalizeUnicode)
	ew.printf("  escape_long_paths   = %t\n", p.EscapeLongPaths)

	if p.MaxPath > 0 {
		ew.printf("  max_path            = %d\n", p.MaxPath)
	} else {
		ew.printf("  max_path            = 0 # platform limit\n")
	}

	ew.printf("\n")
}

func renderTransfersSection(ew *errWriter, t *TransfersConfig) {
	ew.printf("[transfers]\n")
	ew.printf("  chunk_size          = %q\n", t.ChunkSize)
	ew.printf("  bandwidth_limit     = %q\n", t.BandwidthLimit)
	ew.printf("  parallel            = %d\n", t.Parallel)
	ew.printf("  preserve_timestamps = %t\n", t.PreserveTimestamps)
	ew.printf("  no_buffering        = %t\n", t.NoBuffering)
	ew.printf("  allow_cross_volume  = %t\n", t.AllowCrossVolume)
	ew.printf("  min_free_space      = %q\n", t.MinFreeSpace)
	ew.printf("\n")
}

func renderJournalSection(ew *errWriter, j *JournalConfig) {
	ew.printf("[journal]\n")
	ew.printf("  enabled        = %t\n", j.Enabled)
	ew.printf("  dir            = %q\n", j.Dir)
	ew.printf("  retention_days = %d\n", j.RetentionDays)
	ew.printf("\n")
}
