package main

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jessevdk/go-flags"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/sign"
)

var shortSignHelp = "Re-sign a manifest.json already present in a directory"
var longSignHelp = `
The sign command reads dir/manifest.json, signs its canonical bytes with
the given private key, and (re)writes dir/manifest.sig. Useful for
rotating a signature without rebuilding the manifest itself.
`

type cmdSign struct {
	PrivKey string `long:"priv" required:"yes" value-name:"<file>" description:"Ed25519 private key file (base64)"`

	Positional struct {
		Dir string `positional-arg-name:"<dir>" required:"yes"`
	} `positional-args:"yes"`
}

func init() {
	addCommand("sign", shortSignHelp, longSignHelp, func() flags.Commander { return &cmdSign{} })
}

func (cmd *cmdSign) Execute(args []string) error {
	if len(args) > 0 {
		return ErrExtraArgs
	}

	priv, err := readPrivateKey(cmd.PrivKey)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(filepath.Join(cmd.Positional.Dir, "manifest.json"))
	if err != nil {
		return err
	}
	v, err := canon.DecodeJSON(data)
	if err != nil {
		return err
	}
	sig, err := sign.Sign(priv, v)
	if err != nil {
		return err
	}
	sigText := base64.StdEncoding.EncodeToString(sig) + "\n"
	if err := os.WriteFile(filepath.Join(cmd.Positional.Dir, "manifest.sig"), []byte(sigText), 0o644); err != nil {
		return err
	}

	fmt.Fprintf(Stdout, "signed: %s/manifest.sig\n", cmd.Positional.Dir)
	return nil
}
