// Package cachefs provides file access rooted at the cliphist cache
// directory, where the operation log lives.
package cachefs

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// AppDir is the directory name under the user cache directory.
	AppDir = "cliphist"
)

// Dir is a directory on disk that the store reads and writes through.
type Dir struct {
	root string
}

// New creates a Dir rooted at the default cache location
// (os.UserCacheDir()/cliphist).
func New() (*Dir, error) {
	return NewWithPath("")
}

// NewWithPath creates a Dir with a custom location.
// If path is empty, uses the default cache location.
// If path is absolute, uses it directly.
// If path is relative, treats it as a subdirectory of the default location.
func NewWithPath(path string) (*Dir, error) {
	var root string
	if filepath.IsAbs(path) {
		root = path
	} else {
		cacheDir, err := os.UserCacheDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user cache directory: %w", err)
		}
		root = filepath.Join(cacheDir, AppDir, path)
	}
	return &Dir{root: root}, nil
}

// NewWithRoot creates a Dir with a custom root (for testing)
func NewWithRoot(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the root directory path
func (d *Dir) Root() string {
	return d.root
}

// Path returns the absolute path of name. Absolute names are returned as is.
func (d *Dir) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(d.root, name)
}

// MkdirAll creates the root directory.
func (d *Dir) MkdirAll() error {
	if err := os.MkdirAll(d.root, 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

// Open opens name for reading.
func (d *Dir) Open(name string) (*os.File, error) {
	if err := validate("open", name); err != nil {
		return nil, err
	}
	return os.Open(d.Path(name))
}

// OpenAppend opens name for appending, creating it if needed.
func (d *Dir) OpenAppend(name string) (*os.File, error) {
	if err := validate("openappend", name); err != nil {
		return nil, err
	}
	return os.OpenFile(d.Path(name), os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
}

// ReadFile reads the whole of name.
func (d *Dir) ReadFile(name string) ([]byte, error) {
	if err := validate("readfile", name); err != nil {
		return nil, err
	}
	return os.ReadFile(d.Path(name))
}

// Exists reports whether name exists.
func (d *Dir) Exists(name string) (bool, error) {
	if err := validate("stat", name); err != nil {
		return false, err
	}
	_, err := os.Stat(d.Path(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// Size returns the size of name in bytes.
func (d *Dir) Size(name string) (int64, error) {
	if err := validate("stat", name); err != nil {
		return 0, err
	}
	info, err := os.Stat(d.Path(name))
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Remove removes name.
func (d *Dir) Remove(name string) error {
	if err := validate("remove", name); err != nil {
		return err
	}
	return os.Remove(d.Path(name))
}

// Replace atomically replaces name with the bytes produced by write. The
// content goes to a uniquely named temporary file in the same directory,
// which is synced and renamed over name. On failure name is left untouched.
func (d *Dir) Replace(name string, write func(io.Writer) error) error {
	if err := validate("replace", name); err != nil {
		return err
	}

	target := d.Path(name)
	tmp := filepath.Join(filepath.Dir(target), fmt.Sprintf(".%s.%s.tmp", filepath.Base(target), uuid.NewString()))

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	if err := write(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("failed to sync temporary file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close temporary file: %w", err)
	}

	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", name, err)
	}
	return nil
}

// Quarantine moves name aside to name.corrupt-<unix nanos> and returns the
// new name.
func (d *Dir) Quarantine(name string) (string, error) {
	if err := validate("quarantine", name); err != nil {
		return "", err
	}

	aside := fmt.Sprintf("%s.corrupt-%d", name, time.Now().UnixNano())
	if err := os.Rename(d.Path(name), d.Path(aside)); err != nil {
		return "", fmt.Errorf("failed to quarantine %s: %w", name, err)
	}
	return aside, nil
}

// validate rejects names that escape the root. Absolute paths are allowed so
// that configured files outside the cache directory can be addressed.
func validate(op, name string) error {
	if filepath.IsAbs(name) || fs.ValidPath(filepath.ToSlash(name)) {
		return nil
	}
	return &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
}
