package fserr

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestTranslate_Errno(t *testing.T) {
	tests := []struct {
		name  string
		errno syscall.Errno
		want  error
	}{
		{"enoent", unix.ENOENT, ErrNotFound},
		{"enotdir", unix.ENOTDIR, ErrNotFound},
		{"eacces", unix.EACCES, ErrAccessDenied},
		{"eperm", unix.EPERM, ErrAccessDenied},
		{"erofs", unix.EROFS, ErrAccessDenied},
		{"eexist", unix.EEXIST, ErrAlreadyExists},
		{"eisdir", unix.EISDIR, ErrNotAFile},
		{"exdev", unix.EXDEV, ErrUnsupported},
		{"ebusy", unix.EBUSY, ErrFailed},
		{"eio", unix.EIO, ErrFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cause := &os.PathError{Op: "open", Path: "/x", Err: tt.errno}
			err := Translate("open", "/x", cause)

			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
			assert.ErrorIs(t, err, cause)

			code, ok := Code(err)
			require.True(t, ok)
			assert.Equal(t, tt.errno, code)
		})
	}
}

func TestTranslate_Nil(t *testing.T) {
	assert.NoError(t, Translate("open", "/x", nil))
}

func TestTranslate_AlreadyTranslated(t *testing.T) {
	first := Translate("open", "/x", &os.PathError{Op: "open", Path: "/x", Err: unix.ENOENT})
	second := Translate("copy", "/y", fmt.Errorf("wrapped: %w", first))

	var ne *NativeError
	require.ErrorAs(t, second, &ne)
	assert.Equal(t, "open", ne.Op)
	assert.ErrorIs(t, second, ErrNotFound)
}

func TestTranslate_PlainErrors(t *testing.T) {
	assert.ErrorIs(t, Translate("stat", "/x", fs.ErrNotExist), ErrNotFound)
	assert.ErrorIs(t, Translate("stat", "/x", fs.ErrPermission), ErrAccessDenied)
	assert.ErrorIs(t, Translate("stat", "/x", fs.ErrExist), ErrAlreadyExists)
	assert.ErrorIs(t, Translate("stat", "/x", errors.New("boom")), ErrFailed)
}

func TestTranslate_RealFilesystem(t *testing.T) {
	_, err := os.Open(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)

	translated := Translate("open", "missing", err)
	assert.ErrorIs(t, translated, ErrNotFound)
	assert.ErrorIs(t, translated, os.ErrNotExist)
	assert.Contains(t, translated.Error(), "errno 2")
}

func TestRetryable(t *testing.T) {
	busy := Translate("rename", "/x", &os.LinkError{Op: "rename", Old: "/x", New: "/y", Err: unix.EBUSY})
	assert.True(t, Retryable(busy))

	missing := Translate("rename", "/x", &os.LinkError{Op: "rename", Old: "/x", New: "/y", Err: unix.ENOENT})
	assert.False(t, Retryable(missing))

	assert.False(t, Retryable(errors.New("no errno")))
}

func TestIsCrossDevice(t *testing.T) {
	assert.True(t, IsCrossDevice(&os.LinkError{Op: "rename", Old: "a", New: "b", Err: unix.EXDEV}))
	assert.False(t, IsCrossDevice(&os.LinkError{Op: "rename", Old: "a", New: "b", Err: unix.EACCES}))
	assert.False(t, IsCrossDevice(nil))
}
