//go:build unix

package exr

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// mmapFile maps the whole of f read-only.
func mmapFile(f *os.File) ([]byte, error) {
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return nil, errors.New("exr: cannot map an empty file")
	}
	if int64(int(size)) != size {
		return nil, errors.New("exr: file too large to map")
	}
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
}

func munmapFile(data []byte) error { return unix.Munmap(data) }
