package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/manifest"
	"github.com/lexintellectus/knowledgepack/internal/packfs"
)

var shortInstallHelp = "Verify and install a snapshot or delta directory into a data directory"
var longInstallHelp = `
The install command verifies a snapshot or delta directory's signature
and content against a public key, then materializes it into
<data-dir>/packs and flips ACTIVE atomically. Use --delta with
--to-snapshot pointing at the target snapshot directory when installing
a delta.
`

type cmdInstall struct {
	DataDir    string `long:"data-dir" required:"yes" value-name:"<dir>" description:"Root data directory (contains packs/)"`
	PubKey     string `long:"pub" required:"yes" value-name:"<file>" description:"Ed25519 public key file (base64)"`
	Delta      bool   `long:"delta" description:"Install dir as a delta instead of a full snapshot"`
	ToSnapshot string `long:"to-snapshot" value-name:"<dir>" description:"Target snapshot directory (required with --delta)"`

	Positional struct {
		Dir string `positional-arg-name:"<dir>" required:"yes"`
	} `positional-args:"yes"`
}

func init() {
	addCommand("install", shortInstallHelp, longInstallHelp, func() flags.Commander { return &cmdInstall{} })
}

func (cmd *cmdInstall) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	pub, err := readPublicKey(cmd.PubKey)
	if err != nil {
		return err
	}
	packsDir := filepath.Join(cmd.DataDir, "packs")
	now := time.Now()

	if cmd.Delta {
		if cmd.ToSnapshot == "" {
			return fmt.Errorf("--to-snapshot is required with --delta")
		}
		delta, err := manifest.VerifyDeltaDir(cmd.Positional.Dir, pub)
		if err != nil {
			return err
		}
		toSnap, err := manifest.ReadSnapshotManifestOnly(cmd.ToSnapshot)
		if err != nil {
			return err
		}
		stagingDir, err := packfs.ApplyDelta(packsDir, cmd.Positional.Dir, delta, cmd.ToSnapshot, &toSnap, now, pub, nil)
		if err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "installed delta into %s\n", stagingDir)
		return nil
	}

	snap, err := manifest.VerifySnapshotDir(cmd.Positional.Dir, pub)
	if err != nil {
		return err
	}
	stagingDir, err := packfs.ApplySnapshot(packsDir, cmd.Positional.Dir, snap, now, nil)
	if err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "installed snapshot into %s\n", stagingDir)
	return nil
}
