package config

// Default values for configuration options. These are "layer 0" of the
// override chain.
const (
	defaultChunkSize      = "64KiB"
	defaultBandwidthLimit = "0"
	defaultMinFreeSpace   = "0"
	defaultParallel       = 4
	defaultRetentionDays  = 30
	defaultLogLevel       = "warn"
	journalSubdir         = "journal"
)

// DefaultConfig returns a Config populated with all default values. It is
// both the starting point for TOML decoding and the fallback when no config
// file exists.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			TrimTrailingSpace: true,
			NormalizeUnicode:  true,
			EscapeLongPaths:   true,
		},
		Transfers: TransfersConfig{
			ChunkSize:      defaultChunkSize,
			BandwidthLimit: defaultBandwidthLimit,
			Parallel:       defaultParallel,
			MinFreeSpace:   defaultMinFreeSpace,
		},
		Journal: JournalConfig{
			Enabled:       true,
			RetentionDays: defaultRetentionDays,
		},
		Logging: LoggingConfig{
			LogLevel: defaultLogLevel,
		},
	}
}
