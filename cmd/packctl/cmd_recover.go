package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/update"
)

var shortRecoverHelp = "Restore ACTIVE and clean up after an interrupted update cycle"
var longRecoverHelp = `
The recover command runs the update engine's startup recovery
unconditionally: if state.json shows a cycle was interrupted mid-flight,
ACTIVE is restored to active_before and any recorded staging/cache
directories are removed. Safe to run even when nothing was interrupted.
`

type cmdRecover struct {
	DataDir   string `long:"data-dir" required:"yes" value-name:"<dir>" description:"Root data directory (contains packs/)"`
	RemoteDir string `long:"remote" required:"yes" value-name:"<dir>" description:"Remote channel tree root (unused by recovery itself, required to construct the updater)"`
	PubKey    string `long:"pub" required:"yes" value-name:"<file>" description:"Ed25519 public key file (base64)"`
}

func init() {
	addCommand("recover", shortRecoverHelp, longRecoverHelp, func() flags.Commander { return &cmdRecover{} })
}

func (cmd *cmdRecover) Execute(args []string) error {
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

	if err := u.RecoverOnStartup(); err != nil {
		return err
	}
	fmt.Fprintln(Stdout, "recovery complete")
	return nil
}
