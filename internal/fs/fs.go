package fs

import (
	"io"
	"os"
)

// File is the handle used to stream a snapshot in or out.
type File interface {
	io.ReadWriteCloser
	Name() string
	Chmod(mode os.FileMode) error
	Sync() error
	Stat() (os.FileInfo, error)
}

// FileSystem is the set of calls an atomic snapshot save and a snapshot load
// make: create a sibling temp file, rename it into place, sync the directory.
type FileSystem interface {
	Open(name string) (File, error)
	CreateTemp(dir, pattern string) (File, error)
	Remove(name string) error
	Rename(oldpath, newpath string) error
	SyncDir(dir string) error
}

// LocalFS is FileSystem on top of package os.
type LocalFS struct{}

func (LocalFS) Open(name string) (File, error) { return os.Open(name) }

func (LocalFS) CreateTemp(dir, pattern string) (File, error) { return os.CreateTemp(dir, pattern) }

func (LocalFS) Remove(name string) error { return os.Remove(name) }

func (LocalFS) Rename(oldpath, newpath string) error { return os.Rename(oldpath, newpath) }

// SyncDir makes a preceding rename durable. Errors are ignored on
// platforms where directories cannot be opened or synced.
func (LocalFS) SyncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return nil
	}
	_ = d.Sync()
	return d.Close()
}

// Default is used when no FileSystem is supplied.
var Default FileSystem = LocalFS{}
