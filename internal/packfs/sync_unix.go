//go:build !windows

package packfs

import (
	"golang.org/x/sys/unix"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// syncDir fsyncs the directory at path so a preceding rename into it is
// durable across a crash, not just atomic from a concurrent reader's
// point of view.
func syncDir(path string) error {
	fd, err := unix.Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return errs.Wrap(errs.KindTransient, "cannot open directory for fsync", err)
	}
	defer unix.Close(fd)
	if err := unix.Fsync(fd); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot fsync directory", err)
	}
	return nil
}
