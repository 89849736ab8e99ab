package packfs_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/manifest"
	"github.com/lexintellectus/knowledgepack/internal/packfs"
	"github.com/lexintellectus/knowledgepack/internal/sign"
)

func Test(t *testing.T) { TestingT(t) }

type packfsSuite struct{}

var _ = Suite(&packfsSuite{})

func writeFiles(c *C, dir string, files map[string]string) {
	for rel, data := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		c.Assert(os.MkdirAll(filepath.Dir(p), 0o755), IsNil)
		c.Assert(os.WriteFile(p, []byte(data), 0o644), IsNil)
	}
}

func buildSnapshotDir(c *C, priv sign.PrivateKey, packID, ver string, builtAt time.Time, files map[string]string) (string, manifest.Snapshot) {
	root := c.MkDir()
	payload := filepath.Join(root, "payload")
	writeFiles(c, payload, files)
	snap, err := manifest.BuildSnapshot(payload, packID, "stable", ver, builtAt)
	c.Assert(err, IsNil)
	c.Assert(manifest.WriteSnapshot(root, snap, priv), IsNil)
	return root, snap
}

func (s *packfsSuite) TestApplySnapshotCreatesStagingAndFlipsActive(c *C) {
	priv, _, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)
	packsDir := c.MkDir()
	snapDir, snap := buildSnapshotDir(c, priv, "pack-1", "1.0.0", time.Unix(0, 0), map[string]string{
		"docs/a.txt": "alpha",
		"docs/b.txt": "bravo",
	})

	staging, err := packfs.ApplySnapshot(packsDir, snapDir, snap, time.Unix(100, 0), nil)
	c.Assert(err, IsNil)

	active, err := packfs.ActiveDir(packsDir)
	c.Assert(err, IsNil)
	c.Assert(active, Equals, staging)

	data, err := os.ReadFile(filepath.Join(active, "docs", "a.txt"))
	c.Assert(err, IsNil)
	c.Assert(string(data), Equals, "alpha")

	_, err = os.Stat(filepath.Join(active, "manifest.json"))
	c.Assert(err, IsNil)
}

func (s *packfsSuite) TestApplySnapshotPreservesActivePrevOnSecondSwitch(c *C) {
	priv, _, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)
	packsDir := c.MkDir()

	snapDir1, snap1 := buildSnapshotDir(c, priv, "pack-1", "1.0.0", time.Unix(0, 0), map[string]string{"a.txt": "v1"})
	first, err := packfs.ApplySnapshot(packsDir, snapDir1, snap1, time.Unix(100, 0), nil)
	c.Assert(err, IsNil)

	snapDir2, snap2 := buildSnapshotDir(c, priv, "pack-1", "2.0.0", time.Unix(1, 0), map[string]string{"a.txt": "v2"})
	second, err := packfs.ApplySnapshot(packsDir, snapDir2, snap2, time.Unix(200, 0), nil)
	c.Assert(err, IsNil)
	c.Assert(second, Not(Equals), first)

	prev, err := os.ReadFile(filepath.Join(packsDir, "ACTIVE.prev"))
	c.Assert(err, IsNil)
	c.Assert(string(prev), Equals, filepath.Base(first)+"\n")

	active, err := os.ReadFile(filepath.Join(packsDir, "ACTIVE"))
	c.Assert(err, IsNil)
	c.Assert(string(active), Equals, filepath.Base(second)+"\n")
}

type crashInjector struct {
	failAt packfs.Checkpoint
}

func (f crashInjector) Inject(cp packfs.Checkpoint) error {
	if cp == f.failAt {
		return errs.New(errs.KindTransient, "simulated crash")
	}
	return nil
}

func (s *packfsSuite) TestApplySnapshotCrashBeforeSwitchLeavesActiveUntouched(c *C) {
	priv, _, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)
	packsDir := c.MkDir()

	snapDir1, snap1 := buildSnapshotDir(c, priv, "pack-1", "1.0.0", time.Unix(0, 0), map[string]string{"a.txt": "v1"})
	first, err := packfs.ApplySnapshot(packsDir, snapDir1, snap1, time.Unix(100, 0), nil)
	c.Assert(err, IsNil)

	snapDir2, snap2 := buildSnapshotDir(c, priv, "pack-1", "2.0.0", time.Unix(1, 0), map[string]string{"a.txt": "v2"})
	_, err = packfs.ApplySnapshot(packsDir, snapDir2, snap2, time.Unix(200, 0), crashInjector{failAt: packfs.CheckpointBeforeSwitch})
	c.Assert(err, ErrorMatches, ".*simulated crash.*")

	active, err := packfs.ActiveDir(packsDir)
	c.Assert(err, IsNil)
	c.Assert(active, Equals, first)
}

func (s *packfsSuite) TestApplyDeltaRejectsMismatchedFromSha(c *C) {
	priv, _, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)
	packsDir := c.MkDir()

	snapDir1, snap1 := buildSnapshotDir(c, priv, "pack-1", "1.0.0", time.Unix(0, 0), map[string]string{"a.txt": "v1"})
	_, err = packfs.ApplySnapshot(packsDir, snapDir1, snap1, time.Unix(100, 0), nil)
	c.Assert(err, IsNil)

	_, snap2 := buildSnapshotDir(c, priv, "pack-1", "2.0.0", time.Unix(1, 0), map[string]string{"a.txt": "v2"})
	_, snap3 := buildSnapshotDir(c, priv, "pack-1", "3.0.0", time.Unix(2, 0), map[string]string{"a.txt": "v3"})
	badDelta, err := manifest.BuildDelta(snap2, snap3, time.Unix(3, 0))
	c.Assert(err, IsNil)

	deltaDir := c.MkDir()
	_, err = packfs.ApplyDelta(packsDir, deltaDir, badDelta, "", nil, time.Unix(400, 0), nil, nil)
	c.Assert(err, ErrorMatches, ".*IntegrityError.*")
}

func (s *packfsSuite) TestApplyDeltaAppliesAddDeleteAndVerifiesAgainstTarget(c *C) {
	priv, pub, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)
	packsDir := c.MkDir()

	snapDir1, snap1 := buildSnapshotDir(c, priv, "pack-1", "1.0.0", time.Unix(0, 0), map[string]string{
		"keep.txt":   "keep",
		"remove.txt": "gone-soon",
	})
	_, err = packfs.ApplySnapshot(packsDir, snapDir1, snap1, time.Unix(100, 0), nil)
	c.Assert(err, IsNil)

	toDir, toSnap := buildSnapshotDir(c, priv, "pack-1", "2.0.0", time.Unix(1, 0), map[string]string{
		"keep.txt": "keep",
		"new.txt":  "fresh",
	})

	delta, err := manifest.BuildDelta(snap1, toSnap, time.Unix(2, 0))
	c.Assert(err, IsNil)

	deltaDir := c.MkDir()
	for _, f := range delta.Ops.AddOrReplace {
		rel := f.Path[len("payload/"):]
		data, err := os.ReadFile(filepath.Join(toDir, "payload", rel))
		c.Assert(err, IsNil)
		dst := filepath.Join(deltaDir, filepath.FromSlash(f.Path))
		c.Assert(os.MkdirAll(filepath.Dir(dst), 0o755), IsNil)
		c.Assert(os.WriteFile(dst, data, 0o644), IsNil)
	}
	c.Assert(manifest.WriteDelta(deltaDir, delta, priv), IsNil)

	staging, err := packfs.ApplyDelta(packsDir, deltaDir, delta, toDir, &toSnap, time.Unix(300, 0), pub, nil)
	c.Assert(err, IsNil)

	active, err := packfs.ActiveDir(packsDir)
	c.Assert(err, IsNil)
	c.Assert(active, Equals, staging)

	_, err = os.Stat(filepath.Join(active, "remove.txt"))
	c.Assert(os.IsNotExist(err), Equals, true)

	data, err := os.ReadFile(filepath.Join(active, "new.txt"))
	c.Assert(err, IsNil)
	c.Assert(string(data), Equals, "fresh")

	data, err = os.ReadFile(filepath.Join(active, "keep.txt"))
	c.Assert(err, IsNil)
	c.Assert(string(data), Equals, "keep")
}

func (s *packfsSuite) TestReadActiveBeforeAnyInstallReturnsNotFound(c *C) {
	packsDir := c.MkDir()
	_, err := packfs.ReadActive(packsDir)
	kind, ok := errs.KindOf(err)
	c.Assert(ok, Equals, true)
	c.Assert(kind, Equals, errs.KindNotFound)
}
