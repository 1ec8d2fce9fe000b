package transfer

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/tonimelisma/fxfer/internal/config"
)

// BandwidthLimiter is a token bucket shared by every transfer of an Engine,
// so concurrent copies stay within the limit together. A nil limiter means
// unlimited; all methods accept it.
type BandwidthLimiter struct {
	limiter *rate.Limiter
}

// NewBandwidthLimiter parses a "5MB/s" style limit. "0" or empty returns a
// nil limiter.
func NewBandwidthLimiter(limit string, logger *slog.Logger) (*BandwidthLimiter, error) {
	perSec, err := config.ParseRate(limit)
	if err != nil {
		return nil, fmt.Errorf("transfer: bandwidth limit: %w", err)
	}

	if perSec == 0 {
		return nil, nil //nolint:nilnil // nil limiter = unlimited
	}

	// One second worth of tokens; a chunk larger than that is paid for in
	// installments by Wait.
	burst := int(min(perSec, int64(^uint32(0)>>1)))

	logger.Debug("bandwidth limit set",
		slog.Int64("bytes_per_sec", perSec),
		slog.Int("burst", burst),
	)

	return &BandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(perSec), burst)}, nil
}

// Limit returns the configured rate in bytes per second, 0 when unlimited.
func (bl *BandwidthLimiter) Limit() int64 {
	if bl == nil {
		return 0
	}

	return int64(bl.limiter.Limit())
}

// Wait blocks until n more bytes may be written.
func (bl *BandwidthLimiter) Wait(ctx context.Context, n int) error {
	if bl == nil {
		return nil
	}

	for burst := bl.limiter.Burst(); n > 0; n -= burst {
		if err := bl.limiter.WaitN(ctx, min(n, burst)); err != nil {
			return fmt.Errorf("transfer: bandwidth wait: %w", err)
		}
	}

	return nil
}
