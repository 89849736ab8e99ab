package manifest_test

import (
	"os"
	"path/filepath"
	"time"

	. "gopkg.in/check.v1"

	"github.com/lexintellectus/knowledgepack/internal/manifest"
	"github.com/lexintellectus/knowledgepack/internal/sign"
)

func (s *manifestSuite) TestWriteThenVerifySnapshotDir(c *C) {
	priv, pub, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)

	snapDir := c.MkDir()
	payloadDir := filepath.Join(snapDir, "payload")
	writePayload(c, payloadDir, map[string]string{"doc.txt": "hello"})
	snap, err := manifest.BuildSnapshot(payloadDir, "pack-1", "stable", "1.0.0", time.Unix(0, 0))
	c.Assert(err, IsNil)

	c.Assert(manifest.WriteSnapshot(snapDir, snap, priv), IsNil)

	_, err = os.Stat(filepath.Join(snapDir, "manifest.json"))
	c.Assert(err, IsNil)
	_, err = os.Stat(filepath.Join(snapDir, "manifest.sig"))
	c.Assert(err, IsNil)

	got, err := manifest.VerifySnapshotDir(snapDir, pub)
	c.Assert(err, IsNil)
	c.Assert(got.PackID, Equals, "pack-1")
}

func (s *manifestSuite) TestVerifySnapshotDirDetectsTamperedFile(c *C) {
	priv, pub, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)

	snapDir := c.MkDir()
	payloadDir := filepath.Join(snapDir, "payload")
	writePayload(c, payloadDir, map[string]string{"doc.txt": "hello"})
	snap, err := manifest.BuildSnapshot(payloadDir, "pack-1", "stable", "1.0.0", time.Unix(0, 0))
	c.Assert(err, IsNil)
	c.Assert(manifest.WriteSnapshot(snapDir, snap, priv), IsNil)

	c.Assert(os.WriteFile(filepath.Join(payloadDir, "doc.txt"), []byte("tampered"), 0o644), IsNil)

	_, err = manifest.VerifySnapshotDir(snapDir, pub)
	c.Assert(err, ErrorMatches, ".*IntegrityError.*")
}

func (s *manifestSuite) TestVerifySnapshotDirDetectsWrongSignature(c *C) {
	_, pub, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)
	otherPriv, _, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)

	snapDir := c.MkDir()
	payloadDir := filepath.Join(snapDir, "payload")
	writePayload(c, payloadDir, map[string]string{"doc.txt": "hello"})
	snap, err := manifest.BuildSnapshot(payloadDir, "pack-1", "stable", "1.0.0", time.Unix(0, 0))
	c.Assert(err, IsNil)
	c.Assert(manifest.WriteSnapshot(snapDir, snap, otherPriv), IsNil)

	_, err = manifest.VerifySnapshotDir(snapDir, pub)
	c.Assert(err, ErrorMatches, ".*SignatureError.*")
}

func (s *manifestSuite) TestWriteThenVerifyDeltaDir(c *C) {
	priv, pub, err := sign.GenerateKeypair()
	c.Assert(err, IsNil)

	fromPayload := filepath.Join(c.MkDir(), "payload")
	writePayload(c, fromPayload, map[string]string{"a.txt": "1"})
	from, err := manifest.BuildSnapshot(fromPayload, "pack-1", "stable", "1.0.0", time.Unix(0, 0))
	c.Assert(err, IsNil)

	toPayload := filepath.Join(c.MkDir(), "payload")
	writePayload(c, toPayload, map[string]string{"a.txt": "2"})
	to, err := manifest.BuildSnapshot(toPayload, "pack-1", "stable", "1.1.0", time.Unix(1, 0))
	c.Assert(err, IsNil)

	delta, err := manifest.BuildDelta(from, to, time.Unix(2, 0))
	c.Assert(err, IsNil)

	deltaDir := c.MkDir()
	for _, f := range delta.Ops.AddOrReplace {
		srcRel := f.Path[len("payload/"):]
		data, err := os.ReadFile(filepath.Join(toPayload, srcRel))
		c.Assert(err, IsNil)
		dst := filepath.Join(deltaDir, filepath.FromSlash(f.Path))
		c.Assert(os.MkdirAll(filepath.Dir(dst), 0o755), IsNil)
		c.Assert(os.WriteFile(dst, data, 0o644), IsNil)
	}
	c.Assert(manifest.WriteDelta(deltaDir, delta, priv), IsNil)

	got, err := manifest.VerifyDeltaDir(deltaDir, pub)
	c.Assert(err, IsNil)
	c.Assert(got.ToVer, Equals, "1.1.0")
}
