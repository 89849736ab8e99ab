package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/manifest"
)

var shortVerifyHelp = "Verify a snapshot or delta directory's signature and file integrity"
var longVerifyHelp = `
The verify command checks a snapshot or delta directory's manifest
signature against the given public key and every listed file's size and
SHA-256 against what's actually on disk. Exits non-zero on any integrity
or signature failure.
`

type cmdVerify struct {
	PubKey string `long:"pub" required:"yes" value-name:"<file>" description:"Ed25519 public key file (base64)"`
	Delta  bool   `long:"delta" description:"Verify dir as a delta manifest instead of a snapshot"`

	Positional struct {
		Dir string `positional-arg-name:"<dir>" required:"yes"`
	} `positional-args:"yes"`
}

func init() {
	addCommand("verify", shortVerifyHelp, longVerifyHelp, func() flags.Commander { return &cmdVerify{} })
}

func (cmd *cmdVerify) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	pub, err := readPublicKey(cmd.PubKey)
	if err != nil {
		return err
	}

	if cmd.Delta {
		delta, err := manifest.VerifyDeltaDir(cmd.Positional.Dir, pub)
		if err != nil {
			return err
		}
		fmt.Fprintf(Stdout, "delta ok: %s -> %s (sha256=%s)\n", delta.FromVer, delta.ToVer, delta.ToSHA256)
		return nil
	}

	snap, err := manifest.VerifySnapshotDir(cmd.Positional.Dir, pub)
	if err != nil {
		return err
	}
	sha, err := snap.SHA256()
	if err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "snapshot ok: %s %s (%d files, sha256=%s)\n", snap.PackID, snap.PackVer, len(snap.Files), sha)
	return nil
}
