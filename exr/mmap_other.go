//go:build !unix

package exr

import (
	"errors"
	"os"
)

func mmapFile(*os.File) ([]byte, error) {
	return nil, errors.New("exr: memory mapping not supported")
}

func munmapFile([]byte) error { return nil }
