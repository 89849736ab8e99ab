package update

import (
	"path/filepath"
	"time"

	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/manifest"
	"github.com/lexintellectus/knowledgepack/internal/packfs"
)

// verify checks the downloaded artifact's signature and content against
// pub, then confirms its manifest SHA-256 matches what latest.json
// promised — guarding against a channel manifest and artifact tree that
// have drifted out of sync.
func (u *Updater) verify(plan *Plan, artifactDir string) error {
	switch plan.Type {
	case PlanSnapshot:
		snap, err := manifest.VerifySnapshotDir(artifactDir, u.pub)
		if err != nil {
			return err
		}
		got, err := snap.SHA256()
		if err != nil {
			return err
		}
		if got != plan.ToManifestSHA256 {
			return errs.New(errs.KindIntegrity, "downloaded snapshot does not match expected manifest sha")
		}
		return nil
	case PlanDelta:
		delta, err := manifest.VerifyDeltaDir(artifactDir, u.pub)
		if err != nil {
			return err
		}
		if delta.ToSHA256 != plan.ToManifestSHA256 {
			return errs.New(errs.KindIntegrity, "downloaded delta does not match expected to-manifest sha")
		}
		return nil
	default:
		return errs.Newf(errs.KindValidation, "unknown plan type: %s", plan.Type)
	}
}

// apply materializes the verified artifact into a fresh staging directory
// and flips ACTIVE to it, returning the staging directory's absolute path.
func (u *Updater) apply(plan *Plan, artifactDir string, now time.Time) (string, error) {
	switch plan.Type {
	case PlanSnapshot:
		snap, err := manifest.ReadSnapshotManifestOnly(artifactDir)
		if err != nil {
			return "", err
		}
		return packfs.ApplySnapshot(u.packsDir, artifactDir, snap, now, u.inj)
	case PlanDelta:
		delta, err := manifest.VerifyDeltaDir(artifactDir, u.pub)
		if err != nil {
			return "", err
		}
		toSnapshotDir := filepath.Join(u.remoteDir, plan.Channel, "snapshots", plan.ToVersion)
		toSnap, err := manifest.ReadSnapshotManifestOnly(toSnapshotDir)
		if err != nil {
			return "", err
		}
		return packfs.ApplyDelta(u.packsDir, artifactDir, delta, toSnapshotDir, &toSnap, now, u.pub, u.inj)
	default:
		return "", errs.Newf(errs.KindValidation, "unknown plan type: %s", plan.Type)
	}
}
