package main

import (
	"fmt"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/update"
)

var shortCheckUpdateHelp = "Check a channel for an available update without applying it"
var longCheckUpdateHelp = `
The check-update command reads <remote>/<channel>/latest.json, compares
it against the active pack's manifest SHA-256, and reports whether an
update is available and whether it would apply as a delta or a full
snapshot. Apart from creating packs/cache if it is missing, it changes
no on-disk state.
`

type cmdCheckUpdate struct {
	DataDir   string `long:"data-dir" required:"yes" value-name:"<dir>" description:"Root data directory (contains packs/)"`
	RemoteDir string `long:"remote" required:"yes" value-name:"<dir>" description:"Remote channel tree root"`
	Channel   string `long:"channel" required:"yes" value-name:"<name>" description:"Channel name to check"`
	PubKey    string `long:"pub" required:"yes" value-name:"<file>" description:"Ed25519 public key file (base64)"`
}

func init() {
	addCommand("check-update", shortCheckUpdateHelp, longCheckUpdateHelp, func() flags.Commander { return &cmdCheckUpdate{} })
}

func (cmd *cmdCheckUpdate) Execute(args []string) error {
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

	plan, err := u.CheckUpdates(cmd.Channel)
	if err != nil {
		return err
	}
	if plan == nil {
		fmt.Fprintln(Stdout, "up to date")
		return nil
	}
	fmt.Fprintf(Stdout, "update available: %s %s -> %s (%s)\n", plan.PackID, plan.FromVersion, plan.ToVersion, plan.Type)
	return nil
}
