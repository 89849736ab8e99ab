package main

import (
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/update"
)

var shortRunOnceHelp = "Run one full check -> download -> stage -> verify -> apply -> cleanup cycle"
var longRunOnceHelp = `
The run-once command takes the cross-process update lock, recovers any
interrupted prior cycle, checks the given channel, and if an update is
available downloads, stages, verifies, applies and cleans it up. It
reports "up to date" and exits 0 if nothing needs to change.
`

type cmdRunOnce struct {
	DataDir   string `long:"data-dir" required:"yes" value-name:"<dir>" description:"Root data directory (contains packs/)"`
	RemoteDir string `long:"remote" required:"yes" value-name:"<dir>" description:"Remote channel tree root"`
	Channel   string `long:"channel" required:"yes" value-name:"<name>" description:"Channel name to update from"`
	PubKey    string `long:"pub" required:"yes" value-name:"<file>" description:"Ed25519 public key file (base64)"`
	Trigger   string `long:"trigger" default:"manual" value-name:"<str>" description:"Trigger label recorded in state.json"`
}

func init() {
	addCommand("run-once", shortRunOnceHelp, longRunOnceHelp, func() flags.Commander { return &cmdRunOnce{} })
}

func (cmd *cmdRunOnce) Execute(args []string) error {
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

	if err := u.RunOnce(cmd.Channel, cmd.Trigger, time.Now()); err != nil {
		return err
	}
	fmt.Fprintln(Stdout, "run-once complete")
	return nil
}
