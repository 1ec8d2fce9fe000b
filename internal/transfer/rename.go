package transfer

import (
	"fmt"
	"os"
)

// linkAndRemove emulates an exclusive rename where the kernel offers none.
// link(2) fails with EEXIST when newpath exists.
func linkAndRemove(oldpath, newpath string) error {
	if err := os.Link(oldpath, newpath); err != nil {
		return err
	}

	if err := os.Remove(oldpath); err != nil {
		// Both names now exist; drop the new one so the rename is not half done.
		if rmErr := os.Remove(newpath); rmErr != nil {
			return fmt.Errorf("removing %s after failed rename: %w (cleanup: %v)", oldpath, err, rmErr)
		}

		return err
	}

	return nil
}

// nativeRename is the engine's default rename. exclusive selects the
// no-replace variant.
func nativeRename(oldpath, newpath string, exclusive bool) error {
	if exclusive {
		return renameExclusive(oldpath, newpath)
	}

	return os.Rename(oldpath, newpath)
}
