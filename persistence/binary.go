package persistence

import (
	"bufio"
	"io"
	"path/filepath"

	"github.com/hupe1980/vecflat/internal/fs"
)

// bufferSize batches small writes and reads against the file.
const bufferSize = 256 * 1024

// SaveToFile writes a file atomically. writeFunc writes into a temporary file
// in the same directory, which is synced and then renamed over filename. On
// any failure the temporary file is removed and filename is left untouched.
func SaveToFile(fsys fs.FileSystem, filename string, writeFunc func(io.Writer) error) error {
	if fsys == nil {
		fsys = fs.Default
	}

	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	tmp, err := fsys.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if !closed {
			_ = tmp.Close()
		}
		if tmpName != "" {
			_ = fsys.Remove(tmpName)
		}
	}()

	_ = tmp.Chmod(0o644)

	buf := bufio.NewWriterSize(tmp, bufferSize)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := fsys.Rename(tmpName, filename); err != nil {
		return err
	}
	_ = fsys.SyncDir(dir)

	// Success: keep the renamed file.
	tmpName = ""
	return nil
}

// LoadFromFile opens filename and hands a buffered reader plus the file size
// to readFunc.
func LoadFromFile(fsys fs.FileSystem, filename string, readFunc func(r io.Reader, size int64) error) error {
	if fsys == nil {
		fsys = fs.Default
	}

	f, err := fsys.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	return readFunc(bufio.NewReaderSize(f, bufferSize), info.Size())
}
