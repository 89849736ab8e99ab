// Package packfs lays out installed packs on disk and performs the atomic
// switch between them. A pack root holds sibling
// "staging_<UTC ISO>" directories; a single ACTIVE pointer file names the
// one currently live, with ACTIVE.prev preserved across every switch so a
// crash recovery path can always find its way back.
package packfs

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/fsutil"
)

const (
	activeFile     = "ACTIVE"
	activePrevFile = "ACTIVE.prev"
	stagingPrefix  = "staging_"
)

// Checkpoint names the points in ApplySnapshot/ApplyDelta that a
// FaultInjector is consulted at. These only ever fire from test code.
type Checkpoint string

const (
	CheckpointAfterStagingCreated Checkpoint = "staging_created"
	CheckpointMidCopy             Checkpoint = "mid_copy"
	CheckpointBeforeSwitch        Checkpoint = "before_switch"
)

// FaultInjector lets tests simulate a crash at a specific checkpoint during
// an apply. Production code never implements this interface; the apply
// functions only ever consult it through an explicit, optional parameter.
type FaultInjector interface {
	Inject(cp Checkpoint) error
}

// StagingDirName returns the unique, timestamp-prefixed name for a new
// staging directory ("staging_<UTC ISO>").
func StagingDirName(now time.Time) string {
	return stagingPrefix + now.UTC().Format("20060102T150405.000000000Z")
}

// NewStagingDir creates and returns the path of a fresh staging directory
// under packsDir.
func NewStagingDir(packsDir string, now time.Time) (string, error) {
	dir := filepath.Join(packsDir, StagingDirName(now))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errs.Wrap(errs.KindTransient, "cannot create staging directory", err)
	}
	return dir, nil
}

// ReadActive returns the name of the currently active pack directory, or
// ("", errs.KindNotFound) if no pack has ever been installed.
func ReadActive(packsDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(packsDir, activeFile))
	if os.IsNotExist(err) {
		return "", errs.New(errs.KindNotFound, "no active pack; install a snapshot first")
	}
	if err != nil {
		return "", errs.Wrap(errs.KindTransient, "cannot read ACTIVE", err)
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", errs.New(errs.KindIntegrity, "ACTIVE is empty")
	}
	return name, nil
}

// ActiveDir resolves ACTIVE to its absolute staging directory path,
// verifying it exists. Callers must resolve ACTIVE on every access, never
// cache it across update cycles.
func ActiveDir(packsDir string) (string, error) {
	name, err := ReadActive(packsDir)
	if err != nil {
		return "", err
	}
	dir := filepath.Join(packsDir, name)
	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		return "", errs.Newf(errs.KindIntegrity, "ACTIVE points to missing pack directory: %s", name)
	}
	return dir, nil
}

// SetActiveAtomic preserves the current ACTIVE contents to ACTIVE.prev,
// then atomically switches ACTIVE to newName via a tmp-file rename. This
// rename is the commit point: nothing before it is ever user-visible,
// nothing after it is necessary for the switch to have taken effect.
func SetActiveAtomic(packsDir, newName string) error {
	activePath := filepath.Join(packsDir, activeFile)
	prevPath := filepath.Join(packsDir, activePrevFile)
	if cur, err := os.ReadFile(activePath); err == nil {
		if err := atomicWriteText(prevPath, string(cur)); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return errs.Wrap(errs.KindTransient, "cannot read current ACTIVE", err)
	}
	if err := atomicWriteText(activePath, newName+"\n"); err != nil {
		return err
	}
	logf("packfs: ACTIVE switched to %s", newName)
	return nil
}

func atomicWriteText(path, text string) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(text), 0o644); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot write temp pointer file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot rename pointer file into place", err)
	}
	return syncDir(filepath.Dir(path))
}

// CopyTree copies every regular file and directory from src into dst,
// preserving relative paths. The updater uses it to copy a downloaded
// artifact directory from the remote into packs/cache.
func CopyTree(src, dst string) error {
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if info.IsDir() {
			_, err := fsutil.Create(&fsutil.CreateOptions{
				Root: dst,
				Path: rel,
				Mode: fs.ModeDir | 0o755,
			})
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		return copyFile(path, filepath.Join(dst, rel))
	})
}

// copyFile streams src into dst via fsutil.Create, which creates missing
// parent directories and hashes the content as it writes.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = fsutil.Create(&fsutil.CreateOptions{
		Root:        filepath.Dir(dst),
		Path:        filepath.Base(dst),
		Mode:        0o644,
		Data:        in,
		MakeParents: true,
	})
	return err
}

// RemoveQuiet removes path (file, symlink or directory tree), silently
// ignoring an already-absent target. Used for delta delete ops and
// best-effort crash-recovery cleanup.
func RemoveQuiet(path string) error {
	err := os.RemoveAll(path)
	if err != nil {
		return errs.Wrap(errs.KindTransient, "cannot remove path", err)
	}
	return nil
}

func checkpoint(inj FaultInjector, cp Checkpoint) error {
	if inj == nil {
		return nil
	}
	return inj.Inject(cp)
}
