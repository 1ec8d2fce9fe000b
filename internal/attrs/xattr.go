package attrs

import (
	"bytes"
	"errors"

	"golang.org/x/sys/unix"
)

// listXattrs returns the extended attributes on path that a replace carries
// over. A nil map means the entry has none.
func listXattrs(path string) (map[string][]byte, error) {
	size, err := unix.Listxattr(path, nil)
	if err != nil {
		return nil, err
	}

	if size == 0 {
		return nil, nil //nolint:nilnil // no attributes is not an error
	}

	buf := make([]byte, size)

	size, err = unix.Listxattr(path, buf)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]byte)

	for _, name := range bytes.Split(buf[:size], []byte{0}) {
		if len(name) == 0 || !carriedXattr(string(name)) {
			continue
		}

		value, err := getXattr(path, string(name))
		if err != nil {
			// Removed between list and get.
			if errors.Is(err, errNoAttr) {
				continue
			}

			return nil, err
		}

		out[string(name)] = value
	}

	return out, nil
}

func getXattr(path, name string) ([]byte, error) {
	size, err := unix.Getxattr(path, name, nil)
	if err != nil {
		return nil, err
	}

	value := make([]byte, size)
	if size == 0 {
		return value, nil
	}

	size, err = unix.Getxattr(path, name, value)
	if err != nil {
		return nil, err
	}

	return value[:size], nil
}
