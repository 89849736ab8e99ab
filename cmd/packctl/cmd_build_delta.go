package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/manifest"
)

var shortBuildDeltaHelp = "Diff two snapshot directories into a signed delta manifest"
var longBuildDeltaHelp = `
The build-delta command reads the manifest.json of two already-built
snapshot directories, computes the add/replace/delete operations needed
to move from one to the other, copies every added/replaced file verbatim
from the target snapshot, and writes the signed delta manifest
(manifest.json and manifest.sig) into out-dir.
`

type cmdBuildDelta struct {
	From    string `long:"from" required:"yes" value-name:"<dir>" description:"Source snapshot directory"`
	To      string `long:"to" required:"yes" value-name:"<dir>" description:"Target snapshot directory"`
	Out     string `long:"out" required:"yes" value-name:"<dir>" description:"Directory to write the delta manifest and payload into"`
	PrivKey string `long:"priv" required:"yes" value-name:"<file>" description:"Ed25519 private key file (base64)"`
}

func init() {
	addCommand("build-delta", shortBuildDeltaHelp, longBuildDeltaHelp, func() flags.Commander { return &cmdBuildDelta{} })
}

func (cmd *cmdBuildDelta) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	priv, err := readPrivateKey(cmd.PrivKey)
	if err != nil {
		return err
	}

	fromSnap, err := manifest.ReadSnapshotManifestOnly(cmd.From)
	if err != nil {
		return err
	}
	toSnap, err := manifest.ReadSnapshotManifestOnly(cmd.To)
	if err != nil {
		return err
	}

	delta, err := manifest.BuildDelta(fromSnap, toSnap, time.Now())
	if err != nil {
		return err
	}

	for _, f := range delta.Ops.AddOrReplace {
		src := filepath.Join(cmd.To, filepath.FromSlash(f.Path))
		dst := filepath.Join(cmd.Out, filepath.FromSlash(f.Path))
		if err := copyFileInto(src, dst); err != nil {
			return err
		}
	}

	if err := manifest.WriteDelta(cmd.Out, delta, priv); err != nil {
		return err
	}

	fmt.Fprintf(Stdout, "delta built: %s (%d add/replace, %d delete)\n", cmd.Out, len(delta.Ops.AddOrReplace), len(delta.Ops.Delete))
	return nil
}

func copyFileInto(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}
