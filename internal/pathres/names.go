package pathres

import (
	"fmt"
	"strings"

	"github.com/tonimelisma/fxfer/internal/fserr"
)

// Constants for component validation.
const (
	maxComponentLength     = 255
	deviceNameWithDigitLen = 4 // COM0-COM9, LPT0-LPT9 have exactly 4 characters
)

// validate rejects characters the kernel can never accept and, in strict
// mode, names that are not portable to other filesystems.
func validate(p string, strict bool) error {
	if strings.IndexByte(p, 0) >= 0 {
		return fmt.Errorf("pathres: path contains NUL byte: %w", fserr.ErrInvalidArgument)
	}

	if !strict {
		return nil
	}

	for _, name := range strings.Split(p, "/") {
		if name == "" || name == "." || name == ".." {
			continue
		}

		if err := validateComponent(name); err != nil {
			return err
		}
	}

	return nil
}

func validateComponent(name string) error {
	if len(name) > maxComponentLength {
		return fmt.Errorf("pathres: component %q exceeds %d bytes: %w",
			name, maxComponentLength, fserr.ErrInvalidArgument)
	}

	if containsInvalidChars(name) {
		return fmt.Errorf("pathres: component %q contains an invalid character: %w", name, fserr.ErrInvalidArgument)
	}

	if last := name[len(name)-1]; last == '.' || last == ' ' {
		return fmt.Errorf("pathres: component %q ends in dot or space: %w", name, fserr.ErrInvalidArgument)
	}

	stem := strings.ToLower(name)
	if i := strings.IndexByte(stem, '.'); i >= 0 {
		stem = stem[:i]
	}

	if isReservedDeviceName(stem) {
		return fmt.Errorf("pathres: component %q is a reserved device name: %w", name, fserr.ErrInvalidArgument)
	}

	return nil
}

// isReservedDeviceName returns true for reserved device names
// (case-insensitive): CON, PRN, AUX, NUL, COM0-COM9, LPT0-LPT9.
func isReservedDeviceName(lower string) bool {
	switch lower {
	case "con", "prn", "aux", "nul":
		return true
	}

	if len(lower) == deviceNameWithDigitLen &&
		(strings.HasPrefix(lower, "com") || strings.HasPrefix(lower, "lpt")) {
		digit := lower[3]
		return digit >= '0' && digit <= '9'
	}

	return false
}

// containsInvalidChars returns true if the name contains characters that
// are not portable: " * : < > ? \ | and ASCII control characters.
func containsInvalidChars(name string) bool {
	for _, c := range name {
		if c < 0x20 {
			return true
		}

		switch c {
		case '"', '*', ':', '<', '>', '?', '\\', '|':
			return true
		}
	}

	return false
}
