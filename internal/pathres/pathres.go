// Package pathres canonicalizes raw path input into the absolute,
// separator-normalized form every other component works with.
//
// A Canonical carries two spellings of the same path: Path, the bare absolute
// path, and Extended, which additionally carries the long-path escape marker
// when Path exceeds the configured length threshold. On Linux and macOS the
// marker is representational only; Native() always yields the bare path that
// is handed to syscalls.
package pathres

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/tonimelisma/fxfer/internal/fserr"
)

// LongPathPrefix marks a path that exceeded the legacy length threshold and
// must reach native calls without further rewriting.
const LongPathPrefix = `\\?\`

// Format declares how raw input should be interpreted.
type Format int

// Input formats.
const (
	Relative Format = iota
	AbsoluteShort
	AlreadyCanonical
)

func (f Format) String() string {
	switch f {
	case Relative:
		return "relative"
	case AbsoluteShort:
		return "absolute"
	case AlreadyCanonical:
		return "canonical"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat maps the CLI spelling of a format to its value.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "relative":
		return Relative, nil
	case "absolute", "absolute-short", "short":
		return AbsoluteShort, nil
	case "canonical":
		return AlreadyCanonical, nil
	default:
		return 0, fmt.Errorf("pathres: unknown format %q: %w", s, fserr.ErrInvalidArgument)
	}
}

// Canonical is a resolved path. The zero value is not a valid path.
type Canonical struct {
	Path     string
	Extended string
}

// Native returns the spelling handed to syscalls.
func (c Canonical) Native() string {
	return c.Path
}

// Escaped reports whether Extended carries the long-path marker.
func (c Canonical) Escaped() bool {
	return strings.HasPrefix(c.Extended, LongPathPrefix)
}

// IsZero reports whether c was never resolved.
func (c Canonical) IsZero() bool {
	return c.Path == ""
}

// Dir returns the parent directory of the entry.
func (c Canonical) Dir() string {
	return filepath.Dir(c.Path)
}

func (c Canonical) String() string {
	return c.Extended
}

// Options control the canonicalization policy.
type Options struct {
	BaseDir           string // relative input is joined to this; empty = working directory
	Strict            bool   // reject portable-invalid characters and reserved device names
	TrimTrailingSpace bool
	NormalizeUnicode  bool // NFC, matching what macOS and most sync peers store
	EscapeLongPaths   bool
	MaxPath           int // 0 = platform default
}

// DefaultOptions returns the policy used when no configuration overrides it.
func DefaultOptions() Options {
	return Options{
		TrimTrailingSpace: true,
		NormalizeUnicode:  true,
		EscapeLongPaths:   true,
		MaxPath:           defaultMaxPath,
	}
}

// Resolver canonicalizes paths under a fixed policy. It performs no I/O
// beyond reading the working directory when no base directory is set.
type Resolver struct {
	opts  Options
	getwd func() (string, error)
}

// New creates a Resolver. A zero MaxPath selects the platform default.
func New(opts Options) *Resolver {
	if opts.MaxPath <= 0 {
		opts.MaxPath = defaultMaxPath
	}

	return &Resolver{opts: opts, getwd: os.Getwd}
}

// Options returns the policy the resolver was built with.
func (r *Resolver) Options() Options {
	return r.opts
}

// Resolve canonicalizes raw according to format. Resolving the Path or
// Extended spelling of a previous result returns that result unchanged.
func (r *Resolver) Resolve(raw string, format Format) (Canonical, error) {
	if strings.TrimSpace(raw) == "" {
		return Canonical{}, fmt.Errorf("pathres: empty path: %w", fserr.ErrInvalidArgument)
	}

	p := strings.TrimPrefix(raw, LongPathPrefix)

	if r.opts.TrimTrailingSpace {
		p = strings.TrimRightFunc(p, unicode.IsSpace)
		if p == "" {
			return Canonical{}, fmt.Errorf("pathres: empty path: %w", fserr.ErrInvalidArgument)
		}
	}

	if err := validate(p, r.opts.Strict); err != nil {
		return Canonical{}, err
	}

	p = stripTrailingSeparator(p)

	abs, err := r.absolute(p, format)
	if err != nil {
		return Canonical{}, err
	}

	abs = filepath.Clean(abs)

	// Stripping the separator or cleaning can expose more trailing space
	// ("/x/y /"), so trim until the path stops changing.
	for r.opts.TrimTrailingSpace {
		trimmed := strings.TrimRightFunc(abs, unicode.IsSpace)
		if trimmed == abs {
			break
		}

		abs = filepath.Clean(trimmed)
	}

	if r.opts.NormalizeUnicode {
		abs = norm.NFC.String(abs)
	}

	if abs == string(filepath.Separator) {
		return Canonical{}, fmt.Errorf("pathres: %q resolves to the filesystem root: %w", raw, fserr.ErrInvalidArgument)
	}

	c := Canonical{Path: abs, Extended: abs}
	if r.opts.EscapeLongPaths && len(abs) > r.opts.MaxPath {
		c.Extended = LongPathPrefix + abs
	}

	return c, nil
}

// absolute applies the format's rules for anchoring p.
func (r *Resolver) absolute(p string, format Format) (string, error) {
	switch format {
	case Relative:
		if filepath.IsAbs(p) {
			return p, nil
		}

		base, err := r.base()
		if err != nil {
			return "", err
		}

		return filepath.Join(base, p), nil

	case AbsoluteShort, AlreadyCanonical:
		if !filepath.IsAbs(p) {
			return "", fmt.Errorf("pathres: %s path %q is not absolute: %w", format, p, fserr.ErrInvalidArgument)
		}

		return p, nil

	default:
		return "", fmt.Errorf("pathres: unknown format %d: %w", int(format), fserr.ErrInvalidArgument)
	}
}

func (r *Resolver) base() (string, error) {
	if r.opts.BaseDir != "" {
		if !filepath.IsAbs(r.opts.BaseDir) {
			return "", fmt.Errorf("pathres: base directory %q is not absolute: %w",
				r.opts.BaseDir, fserr.ErrInvalidArgument)
		}

		return r.opts.BaseDir, nil
	}

	wd, err := r.getwd()
	if err != nil {
		return "", fmt.Errorf("pathres: reading working directory: %w", err)
	}

	return wd, nil
}

// stripTrailingSeparator removes exactly one trailing separator. The root
// itself is left alone and rejected later.
func stripTrailingSeparator(p string) string {
	if len(p) > 1 && os.IsPathSeparator(p[len(p)-1]) {
		return p[:len(p)-1]
	}

	return p
}
