package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
)

// Validation range constants.
const (
	minChunkBytes = 4 * humanize.KiByte
	maxChunkBytes = 64 * humanize.MiByte
)

// validate is the singleton validator instance; it caches struct metadata.
var validate = validator.New()

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateTags(cfg)...)
	errs = append(errs, validateTransfers(&cfg.Transfers)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints that only make sense after the env
// and CLI layers have been applied.
func ValidateResolved(cfg *Config) error {
	var errs []error

	if err := Validate(cfg); err != nil {
		errs = append(errs, err)
	}

	if cfg.Journal.Enabled && !filepath.IsAbs(cfg.Journal.Dir) {
		errs = append(errs, fmt.Errorf("journal.dir: must be absolute after expansion, got %q", cfg.Journal.Dir))
	}

	return errors.Join(errs...)
}

// validateTags runs the declarative struct tag checks and converts each
// failure into a message naming the TOML key.
func validateTags(cfg *Config) []error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []error{err}
	}

	errs := make([]error, 0, len(verrs))

	for _, fe := range verrs {
		errs = append(errs, fmt.Errorf("%s: %s", tomlKey(fe.StructNamespace()), describe(fe)))
	}

	return errs
}

// describe turns a validator failure into a user-facing sentence.
func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "must not be empty"
	case "oneof":
		return fmt.Sprintf("must be one of %s, got %q", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check, got %v", fe.Tag(), fe.Value())
	}
}

// tomlKeys maps struct namespaces to the key a user writes in the file.
var tomlKeys = map[string]string{
	"Config.Paths.MaxPath":            "paths.max_path",
	"Config.Transfers.ChunkSize":      "transfers.chunk_size",
	"Config.Transfers.Parallel":       "transfers.parallel",
	"Config.Journal.RetentionDays":    "journal.retention_days",
	"Config.Logging.LogLevel":         "logging.log_level",
	"Config.Transfers.BandwidthLimit": "transfers.bandwidth_limit",
}

func tomlKey(namespace string) string {
	if k, ok := tomlKeys[namespace]; ok {
		return k
	}

	return namespace
}

func validateTransfers(t *TransfersConfig) []error {
	var errs []error

	if t.ChunkSize != "" {
		n, err := ParseSize(t.ChunkSize)

		switch {
		case err != nil:
			errs = append(errs, fmt.Errorf("transfers.chunk_size: %w", err))
		case n < minChunkBytes || n > maxChunkBytes:
			errs = append(errs, fmt.Errorf("transfers.chunk_size: must be between 4KiB and 64MiB, got %s", t.ChunkSize))
		}
	}

	if _, err := ParseSize(t.MinFreeSpace); err != nil {
		errs = append(errs, fmt.Errorf("transfers.min_free_space: %w", err))
	}

	if _, err := ParseRate(t.BandwidthLimit); err != nil {
		errs = append(errs, fmt.Errorf("transfers.bandwidth_limit: %w", err))
	}

	return errs
}

// MinFreeBytes returns min_free_space in bytes. Only valid after Validate.
func (t *TransfersConfig) MinFreeBytes() int64 {
	n, err := ParseSize(t.MinFreeSpace)
	if err != nil {
		return 0
	}

	return n
}

// ChunkBytes returns the chunk size in bytes. Only valid after Validate.
func (t *TransfersConfig) ChunkBytes() int {
	n, err := ParseSize(t.ChunkSize)
	if err != nil {
		return defaultChunkBytes
	}

	return int(n)
}

const defaultChunkBytes = 64 * humanize.KiByte
