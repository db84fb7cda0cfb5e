//go:build !unix

package exr

import "os"

func newFileMode() os.FileMode { return 0o666 }
