//go:build unix

package exr

import (
	"os"

	"golang.org/x/sys/unix"
)

// newFileMode is the mode os.Create would give a new file under the
// process umask.
func newFileMode() os.FileMode {
	mask := unix.Umask(0)
	unix.Umask(mask)
	return 0o666 &^ os.FileMode(mask)
}
