package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tonimelisma/fxfer/internal/transfer"
)

func report(done, total int64) transfer.ProgressReport {
	return transfer.ProgressReport{BytesTransferred: done, TotalBytes: total, StreamIndex: transfer.StreamPrimary}
}

func TestProgressLine(t *testing.T) {
	line := progressLine("f.bin", report(512*1024, 1024*1024), time.Second)
	assert.Contains(t, line, "f.bin")
	assert.Contains(t, line, " 50%")
	assert.Contains(t, line, "512 KiB / 1.0 MiB")
	assert.Contains(t, line, "524 kB/s")
}

func TestProgressLine_EmptyFile(t *testing.T) {
	line := progressLine("empty", report(0, 0), 0)
	assert.Contains(t, line, "100%")
	assert.NotContains(t, line, "/s")
}

func TestProgressPrinter_DisabledDrawsNothing(t *testing.T) {
	var buf bytes.Buffer

	p := &progressPrinter{w: &buf, nowFunc: time.Now}
	fn := p.callback(context.Background(), "/tmp/f")

	assert.Equal(t, transfer.Continue, fn(report(1, 2)))
	assert.Equal(t, transfer.Continue, fn(report(2, 2)))
	assert.Empty(t, buf.String())
}

func TestProgressPrinter_ThrottlesRedraws(t *testing.T) {
	var buf bytes.Buffer

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &progressPrinter{w: &buf, enabled: true, nowFunc: func() time.Time { return now }}
	fn := p.callback(context.Background(), "/tmp/f")

	fn(report(1, 10))
	fn(report(2, 10)) // same instant: throttled

	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\r")))

	now = now.Add(redrawInterval)
	fn(report(3, 10))
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\r")))

	// Completion always draws and ends the line.
	fn(report(10, 10))
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\n")))
}

func TestProgressPrinter_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	p := &progressPrinter{nowFunc: time.Now}
	fn := p.callback(ctx, "f")

	cancel()
	assert.Equal(t, transfer.Cancel, fn(report(1, 2)))
}
