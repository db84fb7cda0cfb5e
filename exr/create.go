package exr

import (
	"os"
	"path/filepath"
)

// Create writes a new file at path through fn. The data goes to a temporary
// file in the same directory, which replaces path only when fn and every
// write succeed. On failure the temporary file is removed and whatever was
// at path is left as it was. A replaced file keeps its permission bits and
// a new one gets the umask default.
func Create(path string, fn func(Storage) error) (err error) {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".tmp*")
	if err != nil {
		return ioError("create", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	s, err := NewStreamStorage(f)
	if err != nil {
		return err
	}
	if err := fn(s); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return ioError("sync", err)
	}
	if err := f.Close(); err != nil {
		return ioError("close", err)
	}
	if err := os.Chmod(tmp, targetMode(path)); err != nil {
		return ioError("chmod", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return ioError("rename", err)
	}
	return nil
}

// targetMode is the permission the file at path should end up with.
// CreateTemp makes the temporary file private to its owner.
func targetMode(path string) os.FileMode {
	if fi, err := os.Stat(path); err == nil {
		return fi.Mode().Perm()
	}
	return newFileMode()
}
