package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/cache"
	"github.com/lexintellectus/knowledgepack/internal/update"
)

var shortShowCachedManifestHelp = "Print a manifest.json archived by a prior download, by its SHA-256 digest"
var longShowCachedManifestHelp = `
Every manifest.json downloaded during an update cycle is archived under
the update's target manifest SHA-256 (for a delta, the snapshot it leads
to) in <data-dir>/manifest-cache, independent of the staging
directories under packs/cache that cleanup removes. show-cached-manifest
lets an operator recover the manifest of a version that has since been
pruned from packs/, identifying it by the digest recorded in a prior
state.json or log line.
`

type cmdShowCachedManifest struct {
	DataDir   string `long:"data-dir" required:"yes" value-name:"<dir>" description:"Root data directory (contains packs/ and manifest-cache/)"`
	RemoteDir string `long:"remote" required:"yes" value-name:"<dir>" description:"Remote channel tree root (unused here, required to construct the updater)"`
	PubKey    string `long:"pub" required:"yes" value-name:"<file>" description:"Ed25519 public key file (base64)"`
	Digest    string `long:"digest" required:"yes" value-name:"<sha256>" description:"SHA-256 digest of the archived manifest.json"`
}

func init() {
	addCommand("show-cached-manifest", shortShowCachedManifestHelp, longShowCachedManifestHelp, func() flags.Commander { return &cmdShowCachedManifest{} })
}

func (cmd *cmdShowCachedManifest) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	pub, err := readPublicKey(cmd.PubKey)
	if err != nil {
		return err
	}
	u, err := update.NewUpdater(cmd.DataDir, cmd.RemoteDir, pub)
	if err != nil {
		return err
	}

	data, err := u.ReadCachedManifest(cmd.Digest)
	if err != nil {
		if err == cache.MissErr {
			return fmt.Errorf("no manifest archived under digest %s", cmd.Digest)
		}
		return err
	}
	_, err = Stdout.Write(data)
	return err
}
