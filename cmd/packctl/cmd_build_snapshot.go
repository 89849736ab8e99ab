package main

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/manifest"
)

var shortBuildSnapshotHelp = "Build and sign a snapshot manifest from a payload directory"
var longBuildSnapshotHelp = `
The build-snapshot command walks a payload directory, computes a
SnapshotManifest (every file's path, size, SHA-256), signs it with the
given private key, and writes manifest.json/manifest.sig into out-dir.
`

type cmdBuildSnapshot struct {
	PackID  string `long:"pack-id" required:"yes" value-name:"<id>" description:"Pack identifier"`
	Channel string `long:"channel" required:"yes" value-name:"<name>" description:"Update channel this snapshot belongs to"`
	Version string `long:"version" required:"yes" value-name:"<ver>" description:"Pack version string"`
	Payload string `long:"payload" required:"yes" value-name:"<dir>" description:"Payload directory to snapshot"`
	Out     string `long:"out" required:"yes" value-name:"<dir>" description:"Directory to write manifest.json/manifest.sig into"`
	PrivKey string `long:"priv" required:"yes" value-name:"<file>" description:"Ed25519 private key file (base64)"`
}

func init() {
	addCommand("build-snapshot", shortBuildSnapshotHelp, longBuildSnapshotHelp, func() flags.Commander { return &cmdBuildSnapshot{} })
}

func (cmd *cmdBuildSnapshot) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	priv, err := readPrivateKey(cmd.PrivKey)
	if err != nil {
		return err
	}

	snap, err := manifest.BuildSnapshot(cmd.Payload, cmd.PackID, cmd.Channel, cmd.Version, time.Now())
	if err != nil {
		return err
	}
	if err := manifest.WriteSnapshot(cmd.Out, snap, priv); err != nil {
		return err
	}

	sha, err := snap.SHA256()
	if err != nil {
		return err
	}
	fmt.Fprintf(Stdout, "snapshot built: %s (%d files, sha256=%s)\n", cmd.Out, len(snap.Files), sha)
	return nil
}
