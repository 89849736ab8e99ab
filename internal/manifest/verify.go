package manifest

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/hashing"
	"github.com/lexintellectus/knowledgepack/internal/sign"
)

func readManifestValue(dir string) (canon.Value, []byte, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindTransient, "cannot read manifest.json", err)
	}
	sigText, err := os.ReadFile(filepath.Join(dir, sigFile))
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindTransient, "cannot read manifest.sig", err)
	}
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(sigText)))
	if err != nil {
		return nil, nil, errs.Wrap(errs.KindEncoding, "invalid base64 manifest.sig", err)
	}
	v, err := canon.DecodeJSON(data)
	if err != nil {
		return nil, nil, err
	}
	return v, sig, nil
}

// VerifySnapshotDir loads manifest.json/manifest.sig from dir, verifies the
// Ed25519 signature, and checks every FileEntry against the files on disk
// under dir (existence, regularity, size, SHA-256). It returns the parsed
// Snapshot on success.
func VerifySnapshotDir(dir string, pub sign.PublicKey) (Snapshot, error) {
	v, sig, err := readManifestValue(dir)
	if err != nil {
		return Snapshot{}, err
	}
	if err := sign.VerifyOrError(pub, v, sig); err != nil {
		return Snapshot{}, err
	}
	snap, err := ParseSnapshot(v)
	if err != nil {
		return Snapshot{}, err
	}
	for _, f := range snap.Files {
		if err := verifyFileEntryOnDisk(dir, f); err != nil {
			return Snapshot{}, err
		}
	}
	return snap, nil
}

// ReadSnapshotManifestOnly parses dir's manifest.json into a Snapshot
// without checking the signature or the files on disk. Callers use it
// where the signature is checked separately or not needed, such as
// reading an installed pack's manifest to compare its SHA256 against a
// delta's FromSHA256.
func ReadSnapshotManifestOnly(dir string) (Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return Snapshot{}, errs.Wrap(errs.KindTransient, "cannot read manifest.json", err)
	}
	v, err := canon.DecodeJSON(data)
	if err != nil {
		return Snapshot{}, err
	}
	return ParseSnapshot(v)
}

// VerifyDeltaDir loads the manifest.json/manifest.sig pair from dir,
// verifies the signature, and checks that every add_or_replace entry
// exists in dir with matching size and SHA-256.
func VerifyDeltaDir(dir string, pub sign.PublicKey) (Delta, error) {
	v, sig, err := readManifestValue(dir)
	if err != nil {
		return Delta{}, err
	}
	if err := sign.VerifyOrError(pub, v, sig); err != nil {
		return Delta{}, err
	}
	delta, err := ParseDelta(v)
	if err != nil {
		return Delta{}, err
	}
	for _, f := range delta.Ops.AddOrReplace {
		if err := verifyFileEntryOnDisk(dir, f); err != nil {
			return Delta{}, err
		}
	}
	return delta, nil
}

func verifyFileEntryOnDisk(dir string, f FileEntry) error {
	abs := filepath.Join(dir, filepath.FromSlash(f.Path))
	st, err := os.Stat(abs)
	if err != nil {
		return errs.Newf(errs.KindIntegrity, "missing file: %s", f.Path)
	}
	if !st.Mode().IsRegular() {
		return errs.Newf(errs.KindIntegrity, "not a regular file: %s", f.Path)
	}
	if st.Size() != f.Size {
		return errs.Newf(errs.KindIntegrity, "size mismatch for %s: expected=%d, got=%d", f.Path, f.Size, st.Size())
	}
	got, err := hashing.FileSHA256(abs)
	if err != nil {
		return err
	}
	if got != f.SHA256 {
		return errs.Newf(errs.KindIntegrity, "sha256 mismatch for %s: expected=%s, got=%s", f.Path, f.SHA256, got)
	}
	return nil
}
