// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for fxfer. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Paths     PathsConfig     `toml:"paths"`
	Transfers TransfersConfig `toml:"transfers"`
	Journal   JournalConfig   `toml:"journal"`
	Logging   LoggingConfig   `toml:"logging"`
}

// PathsConfig controls how raw path input is canonicalized.
type PathsConfig struct {
	StrictNames       bool `toml:"strict_names"`
	TrimTrailingSpace bool `toml:"trim_trailing_space"`
	NormalizeUnicode  bool `toml:"normalize_unicode"`
	EscapeLongPaths   bool `toml:"escape_long_paths"`
	MaxPath           int  `toml:"max_path" validate:"gte=0,lte=1048576"` // 0 = platform limit
}

// TransfersConfig holds defaults for transfer options. Size and rate strings
// are checked by hand since they need ParseSize.
type TransfersConfig struct {
	ChunkSize          string `toml:"chunk_size" validate:"required"`
	BandwidthLimit     string `toml:"bandwidth_limit"`
	Parallel           int    `toml:"parallel" validate:"gte=1,lte=64"`
	PreserveTimestamps bool   `toml:"preserve_timestamps"`
	NoBuffering        bool   `toml:"no_buffering"`
	AllowCrossVolume   bool   `toml:"allow_cross_volume"`
	MinFreeSpace       string `toml:"min_free_space"`
}

// JournalConfig controls the undo journal.
type JournalConfig struct {
	Enabled       bool   `toml:"enabled"`
	Dir           string `toml:"dir"` // empty = DefaultDataDir()/journal
	RetentionDays int    `toml:"retention_days" validate:"gte=0,lte=3650"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	LogLevel string `toml:"log_level" validate:"required,oneof=debug info warn error"`
}
