package config

import "os"

// Environment variables consulted between the config file and CLI flags.
const (
	EnvConfig         = "FXFER_CONFIG"
	EnvJournal        = "FXFER_JOURNAL"
	EnvLogLevel       = "FXFER_LOG_LEVEL"
	EnvBandwidthLimit = "FXFER_BANDWIDTH_LIMIT"
)

// EnvOverrides holds the environment layer. Empty fields are unset.
type EnvOverrides struct {
	ConfigPath     string
	JournalDir     string
	LogLevel       string
	BandwidthLimit string
}

// ReadEnvOverrides reads the process environment.
func ReadEnvOverrides() EnvOverrides {
	return envOverridesFrom(os.Getenv)
}

func envOverridesFrom(getenv func(string) string) EnvOverrides {
	return EnvOverrides{
		ConfigPath:     getenv(EnvConfig),
		JournalDir:     getenv(EnvJournal),
		LogLevel:       getenv(EnvLogLevel),
		BandwidthLimit: getenv(EnvBandwidthLimit),
	}
}

// apply writes the set fields onto cfg. ConfigPath is consumed earlier, when
// picking the file.
func (e EnvOverrides) apply(cfg *Config) {
	if e.JournalDir != "" {
		cfg.Journal.Dir = e.JournalDir
	}

	if e.LogLevel != "" {
		cfg.Logging.LogLevel = e.LogLevel
	}

	if e.BandwidthLimit != "" {
		cfg.Transfers.BandwidthLimit = e.BandwidthLimit
	}
}
