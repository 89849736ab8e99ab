package packfs

import (
	"os"
	"path/filepath"
	"time"

	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/hashing"
	"github.com/lexintellectus/knowledgepack/internal/manifest"
	"github.com/lexintellectus/knowledgepack/internal/sign"
)

const manifestPayloadPrefix = "payload"

// ApplySnapshot materializes snap's payload into a fresh staging
// directory, copies manifest.json/manifest.sig alongside it, and flips
// ACTIVE to point at it. snapshotDir is the directory snap was built from
// (containing manifest.json/sig and a payload/ subdirectory).
func ApplySnapshot(packsDir, snapshotDir string, snap manifest.Snapshot, now time.Time, inj FaultInjector) (string, error) {
	stagingDir, err := NewStagingDir(packsDir, now)
	if err != nil {
		return "", err
	}
	if err := checkpoint(inj, CheckpointAfterStagingCreated); err != nil {
		return stagingDir, err
	}

	payloadSrc := filepath.Join(snapshotDir, manifestPayloadPrefix)
	for i, f := range snap.Files {
		rel := stripPayloadPrefix(f.Path)
		src := filepath.Join(payloadSrc, filepath.FromSlash(rel))
		dst := filepath.Join(stagingDir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			return stagingDir, errs.Wrap(errs.KindTransient, "cannot copy payload file during snapshot apply", err)
		}
		if i == len(snap.Files)/2 {
			if err := checkpoint(inj, CheckpointMidCopy); err != nil {
				return stagingDir, err
			}
		}
	}

	if err := copyFile(filepath.Join(snapshotDir, "manifest.json"), filepath.Join(stagingDir, "manifest.json")); err != nil {
		return stagingDir, errs.Wrap(errs.KindTransient, "cannot copy manifest.json into staging", err)
	}
	if err := copyFile(filepath.Join(snapshotDir, "manifest.sig"), filepath.Join(stagingDir, "manifest.sig")); err != nil {
		return stagingDir, errs.Wrap(errs.KindTransient, "cannot copy manifest.sig into staging", err)
	}

	if err := checkpoint(inj, CheckpointBeforeSwitch); err != nil {
		return stagingDir, err
	}
	name := filepath.Base(stagingDir)
	if err := SetActiveAtomic(packsDir, name); err != nil {
		return stagingDir, err
	}
	return stagingDir, nil
}

// ApplyDelta seeds a fresh staging directory with the currently active
// pack's contents, applies delta's delete then add_or_replace ops (reading
// add_or_replace payloads from deltaDir), optionally verifies the result
// against a target snapshot, and flips ACTIVE.
//
// If toSnapshotDir/toSnap are non-nil, a full post-condition check runs:
// file-set equality against toSnap, then size+SHA-256 per file, then the
// target manifest is copied into staging so future deltas chain correctly.
func ApplyDelta(packsDir, deltaDir string, delta manifest.Delta, toSnapshotDir string, toSnap *manifest.Snapshot, now time.Time, pub sign.PublicKey, inj FaultInjector) (string, error) {
	activeDir, err := ActiveDir(packsDir)
	if err != nil {
		return "", err
	}
	activeSha, err := activeManifestSHA(activeDir)
	if err != nil {
		return "", err
	}
	if activeSha != delta.FromSHA256 {
		return "", errs.New(errs.KindIntegrity, "active pack does not match delta 'from' manifest")
	}

	stagingDir, err := NewStagingDir(packsDir, now)
	if err != nil {
		return "", err
	}
	if err := checkpoint(inj, CheckpointAfterStagingCreated); err != nil {
		return stagingDir, err
	}

	if err := copyActiveTreeWithInjection(activeDir, stagingDir, inj); err != nil {
		return stagingDir, err
	}

	for _, d := range delta.Ops.Delete {
		rel := stripPayloadPrefix(d.Path)
		if err := RemoveQuiet(filepath.Join(stagingDir, filepath.FromSlash(rel))); err != nil {
			return stagingDir, err
		}
	}
	for _, f := range delta.Ops.AddOrReplace {
		src := filepath.Join(deltaDir, filepath.FromSlash(f.Path))
		rel := stripPayloadPrefix(f.Path)
		dst := filepath.Join(stagingDir, filepath.FromSlash(rel))
		if err := copyFile(src, dst); err != nil {
			return stagingDir, errs.Wrap(errs.KindTransient, "cannot copy add_or_replace payload", err)
		}
	}

	if toSnap != nil {
		if _, err := manifest.VerifySnapshotDir(toSnapshotDir, pub); err != nil {
			return stagingDir, err
		}
		if err := verifyStagingMatchesSnapshot(stagingDir, *toSnap); err != nil {
			return stagingDir, err
		}
		if err := copyFile(filepath.Join(toSnapshotDir, "manifest.json"), filepath.Join(stagingDir, "manifest.json")); err != nil {
			return stagingDir, errs.Wrap(errs.KindTransient, "cannot copy target manifest.json into staging", err)
		}
		if err := copyFile(filepath.Join(toSnapshotDir, "manifest.sig"), filepath.Join(stagingDir, "manifest.sig")); err != nil {
			return stagingDir, errs.Wrap(errs.KindTransient, "cannot copy target manifest.sig into staging", err)
		}
	}

	if err := checkpoint(inj, CheckpointBeforeSwitch); err != nil {
		return stagingDir, err
	}
	name := filepath.Base(stagingDir)
	if err := SetActiveAtomic(packsDir, name); err != nil {
		return stagingDir, err
	}
	return stagingDir, nil
}

func copyActiveTreeWithInjection(activeDir, stagingDir string, inj FaultInjector) error {
	var files []string
	err := filepath.Walk(activeDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindTransient, "cannot list active pack contents", err)
	}
	for i, src := range files {
		rel, err := filepath.Rel(activeDir, src)
		if err != nil {
			return errs.Wrap(errs.KindTransient, "cannot relativize active pack path", err)
		}
		if err := copyFile(src, filepath.Join(stagingDir, rel)); err != nil {
			return errs.Wrap(errs.KindTransient, "cannot copy active pack file during delta apply", err)
		}
		if i == len(files)/2 {
			if err := checkpoint(inj, CheckpointMidCopy); err != nil {
				return err
			}
		}
	}
	return nil
}

func verifyStagingMatchesSnapshot(stagingDir string, toSnap manifest.Snapshot) error {
	wantPaths := make(map[string]manifest.FileEntry, len(toSnap.Files))
	for _, f := range toSnap.Files {
		wantPaths[stripPayloadPrefix(f.Path)] = f
	}
	got := make(map[string]bool)
	err := filepath.Walk(stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(stagingDir, path)
		if err != nil {
			return err
		}
		relSlash := filepath.ToSlash(rel)
		if relSlash == "manifest.json" || relSlash == "manifest.sig" {
			return nil
		}
		got[relSlash] = true
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.KindTransient, "cannot list staged pack contents", err)
	}
	for rel := range wantPaths {
		if !got[rel] {
			return errs.Newf(errs.KindIntegrity, "staged pack missing expected file: %s", rel)
		}
	}
	for rel := range got {
		if _, ok := wantPaths[rel]; !ok {
			return errs.Newf(errs.KindIntegrity, "staged pack has unexpected extra file: %s", rel)
		}
	}

	for rel, want := range wantPaths {
		path := filepath.Join(stagingDir, filepath.FromSlash(rel))
		info, err := os.Stat(path)
		if err != nil {
			return errs.Wrapf(errs.KindTransient, err, "stat staged file %s", rel)
		}
		if info.Size() != want.Size {
			return errs.Newf(errs.KindIntegrity, "staged file %s has size %d, want %d", rel, info.Size(), want.Size)
		}
		sha, err := hashing.FileSHA256(path)
		if err != nil {
			return errs.Wrapf(errs.KindTransient, err, "hash staged file %s", rel)
		}
		if sha != want.SHA256 {
			return errs.Newf(errs.KindIntegrity, "staged file %s has sha256 %s, want %s", rel, sha, want.SHA256)
		}
	}
	return nil
}

func stripPayloadPrefix(p string) string {
	const prefix = manifestPayloadPrefix + "/"
	if len(p) > len(prefix) && p[:len(prefix)] == prefix {
		return p[len(prefix):]
	}
	return p
}

func activeManifestSHA(activeDir string) (string, error) {
	snap, err := manifest.ReadSnapshotManifestOnly(activeDir)
	if err != nil {
		return "", err
	}
	return snap.SHA256()
}
