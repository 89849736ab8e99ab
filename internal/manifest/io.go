package manifest

import (
	"encoding/base64"
	"os"
	"path/filepath"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/sign"
)

const (
	manifestFile = "manifest.json"
	sigFile      = "manifest.sig"
)

// WriteSnapshot writes manifest.json (canonical bytes) and manifest.sig
// (base64 Ed25519 signature over those bytes) into dir.
func WriteSnapshot(dir string, snap Snapshot, priv sign.PrivateKey) error {
	return writeManifest(dir, snap.ToCanonical(), priv)
}

// WriteDelta writes the same manifest.json/manifest.sig pair as
// WriteSnapshot, since a delta directory and a snapshot directory are
// never mixed at the same path.
func WriteDelta(dir string, delta Delta, priv sign.PrivateKey) error {
	return writeManifest(dir, delta.ToCanonical(), priv)
}

func writeManifest(dir string, v canon.Value, priv sign.PrivateKey) error {
	b, err := canon.Marshal(v)
	if err != nil {
		return err
	}
	sig, err := sign.Sign(priv, v)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot create manifest directory", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestFile), b, 0o644); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot write manifest.json", err)
	}
	sigB64 := []byte(base64.StdEncoding.EncodeToString(sig) + "\n")
	if err := os.WriteFile(filepath.Join(dir, sigFile), sigB64, 0o644); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot write manifest.sig", err)
	}
	return nil
}
