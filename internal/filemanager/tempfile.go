package filemanager

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/NikitaDmitryuk/telegram-media-fetcher/internal/logutils"
	"github.com/google/uuid"
)

var removeFile = os.RemoveAll

// TempFile is a request-scoped file or directory that is removed from disk at most once.
type TempFile struct {
	path string
	once sync.Once
	err  error
}

func NewTempFile(path string) *TempFile {
	return &TempFile{path: path}
}

func (f *TempFile) Path() string {
	return f.path
}

// Remove deletes the path, with its contents when it is a directory, on the first
// call and returns that result on every call. A path that is already gone counts as removed.
func (f *TempFile) Remove() error {
	f.once.Do(func() {
		if f.path == "" {
			return
		}
		err := removeFile(f.path)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			logutils.Log.WithError(err).WithField("path", f.path).Warn("Failed to remove temporary file")
			f.err = err
			return
		}
		logutils.Log.WithField("path", f.path).Debug("Temporary file removed")
	})
	return f.err
}

// UniqueName builds <dir>/<prefix>_<uuid>_media.<ext>.
func UniqueName(dir, prefix, ext string) string {
	if prefix == "" {
		prefix = "temp"
	}
	ext = strings.TrimPrefix(ext, ".")
	name := prefix + "_" + uuid.NewString() + "_media"
	if ext != "" {
		name += "." + ext
	}
	return filepath.Join(dir, name)
}

// RequestDir returns a fresh directory path under base for one request's downloads.
// The directory itself is not created.
func RequestDir(base string) string {
	return filepath.Join(base, uuid.NewString())
}
