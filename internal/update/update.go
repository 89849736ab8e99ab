// Package update implements the crash-safe offline update state machine:
// check -> download -> stage -> verify -> apply -> cleanup, backed by
// internal/packfs for the atomic switch and
// internal/manifest for signature and content verification.
package update

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/fslock"

	"github.com/lexintellectus/knowledgepack/internal/cache"
	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/manifest"
	"github.com/lexintellectus/knowledgepack/internal/packfs"
	"github.com/lexintellectus/knowledgepack/internal/sign"
)

// State names the update FSM's states.
type State string

const (
	StateIdle            State = "IDLE"
	StateChecking        State = "CHECKING"
	StateDownloading     State = "DOWNLOADING"
	StateStaging         State = "STAGING"
	StateVerifying       State = "VERIFYING"
	StateApplying        State = "APPLYING"
	StateCleanup         State = "CLEANUP"
	StateFailedRetryable State = "FAILED_RETRYABLE"
	StateFailedHard      State = "FAILED_HARD"
)

// PlanType distinguishes a full snapshot install from a delta.
type PlanType string

const (
	PlanSnapshot PlanType = "snapshot"
	PlanDelta    PlanType = "delta"
)

// Plan describes the single update check_updates decided to apply.
type Plan struct {
	Type               PlanType
	Channel            string
	PackID             string
	FromVersion        string
	ToVersion          string
	ArtifactRef        string // relative to <remote>/<channel>/
	FromManifestSHA256 string
	ToManifestSHA256   string
}

// persistedState is the on-disk shape of packs/state.json.
type persistedState struct {
	State              State  `json:"state"`
	Channel            string `json:"channel,omitempty"`
	Trigger            string `json:"trigger,omitempty"`
	StartedAtUTC       string `json:"started_at_utc,omitempty"`
	PlanType           string `json:"plan_type,omitempty"`
	FromManifestSHA256 string `json:"from_manifest_sha256,omitempty"`
	ToManifestSHA256   string `json:"to_manifest_sha256,omitempty"`
	ActiveBefore       string `json:"active_before,omitempty"`
	StagingDir         string `json:"staging_dir,omitempty"`
	CachePath          string `json:"cache_path,omitempty"`
	ErrorKind          string `json:"error_kind,omitempty"`
	ErrorMessage       string `json:"error_message,omitempty"`
}

// Updater runs the FSM rooted at dataDir/packs against a remote artifact
// tree. It is not safe for concurrent use by more than one instance over
// the same dataDir; RunOnce takes a cross-process lock for that reason.
type Updater struct {
	dataDir   string
	remoteDir string
	pub       sign.PublicKey

	packsDir   string
	cacheDir   string
	lockPath   string
	statePath  string

	// manifestCache archives every downloaded manifest.json under the
	// update's target manifest SHA-256 (for a delta, the snapshot it
	// leads to), independent of the staging dirs under cacheDir that
	// RunOnce's cleanup step removes. Lets an operator recover the
	// manifest of a version that has since been pruned from packs/.
	manifestCache *cache.Cache

	inj packfs.FaultInjector
}

// NewUpdater builds an Updater rooted at dataDir, pointed at remoteDir for
// channel manifests and artifacts, verifying everything against pub.
func NewUpdater(dataDir, remoteDir string, pub sign.PublicKey) (*Updater, error) {
	packsDir := filepath.Join(dataDir, "packs")
	cacheDir := filepath.Join(packsDir, "cache")
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, errs.Wrap(errs.KindTransient, "cannot create packs/cache directory", err)
	}
	return &Updater{
		dataDir:       dataDir,
		remoteDir:     remoteDir,
		pub:           pub,
		packsDir:      packsDir,
		cacheDir:      cacheDir,
		lockPath:      filepath.Join(packsDir, "lock"),
		statePath:     filepath.Join(packsDir, "state.json"),
		manifestCache: &cache.Cache{Dir: filepath.Join(dataDir, "manifest-cache")},
	}, nil
}

// WithFaultInjector attaches a FaultInjector consulted by the apply step.
// Only ever set from test code; the crash-injection hook is a pure test
// seam, never consulted on a production code path.
func (u *Updater) WithFaultInjector(inj packfs.FaultInjector) *Updater {
	u.inj = inj
	return u
}

func (u *Updater) loadState() persistedState {
	data, err := os.ReadFile(u.statePath)
	if err != nil {
		return persistedState{State: StateIdle}
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return persistedState{State: StateFailedRetryable, ErrorKind: "state_parse", ErrorMessage: "invalid state.json"}
	}
	return st
}

func (u *Updater) saveState(st persistedState) error {
	v, err := structToCanonical(st)
	if err != nil {
		return err
	}
	b, err := canon.Marshal(v)
	if err != nil {
		return err
	}
	return atomicWrite(u.statePath, b)
}

func structToCanonical(st persistedState) (canon.Value, error) {
	b, err := json.Marshal(st)
	if err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "cannot marshal state", err)
	}
	return canon.DecodeJSON(b)
}

func atomicWrite(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot create directory", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot write temp file", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.Wrap(errs.KindTransient, "cannot rename temp file into place", err)
	}
	return nil
}

// CheckUpdates reads <remote>/<channel>/latest.json, compares it against
// the active pack's manifest SHA-256, and returns nil if already current.
// A delta is preferred over a full snapshot whenever its from-manifest
// matches the active pack exactly.
func (u *Updater) CheckUpdates(channel string) (*Plan, error) {
	activeSha, err := u.activeManifestSHA()
	if err != nil {
		return nil, err
	}

	latestPath := filepath.Join(u.remoteDir, channel, "latest.json")
	data, err := os.ReadFile(latestPath)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "cannot read channel latest.json", err)
	}
	var latest struct {
		PackID           string `json:"pack_id"`
		LatestVersion    string `json:"latest_version"`
		SnapshotPath     string `json:"snapshot_path"`
		ToManifestSHA256 string `json:"to_manifest_sha256"`
		Delta            *struct {
			Path               string `json:"path"`
			FromVersion        string `json:"from_version"`
			FromManifestSHA256 string `json:"from_manifest_sha256"`
		} `json:"delta"`
	}
	if err := json.Unmarshal(data, &latest); err != nil {
		return nil, errs.Wrap(errs.KindEncoding, "cannot parse channel latest.json", err)
	}

	if activeSha == latest.ToManifestSHA256 {
		return nil, nil
	}

	if latest.Delta != nil && latest.Delta.FromManifestSHA256 == activeSha {
		return &Plan{
			Type:               PlanDelta,
			Channel:            channel,
			PackID:             latest.PackID,
			FromVersion:        latest.Delta.FromVersion,
			ToVersion:          latest.LatestVersion,
			ArtifactRef:        latest.Delta.Path,
			FromManifestSHA256: latest.Delta.FromManifestSHA256,
			ToManifestSHA256:   latest.ToManifestSHA256,
		}, nil
	}

	return &Plan{
		Type:             PlanSnapshot,
		Channel:          channel,
		PackID:           latest.PackID,
		ToVersion:        latest.LatestVersion,
		ArtifactRef:      latest.SnapshotPath,
		ToManifestSHA256: latest.ToManifestSHA256,
	}, nil
}

func (u *Updater) activeManifestSHA() (string, error) {
	activeDir, err := packfs.ActiveDir(u.packsDir)
	if err != nil {
		return "", err
	}
	snap, err := manifest.ReadSnapshotManifestOnly(activeDir)
	if err != nil {
		return "", err
	}
	return snap.SHA256()
}

// RecoverOnStartup restores ACTIVE to active_before if it drifted mid-cycle
// and removes any recorded staging/cache directories, then resets state to
// IDLE. It is idempotent and safe to call unconditionally at process start.
func (u *Updater) RecoverOnStartup() error {
	st := u.loadState()
	if st.State == StateIdle {
		return nil
	}

	if st.ActiveBefore != "" {
		cur, err := packfs.ReadActive(u.packsDir)
		if err == nil && cur != "" && cur != st.ActiveBefore {
			if err := packfs.SetActiveAtomic(u.packsDir, st.ActiveBefore); err != nil {
				return err
			}
			logf("update: recovery restored ACTIVE to %s", st.ActiveBefore)
		}
	}

	if st.StagingDir != "" {
		if err := packfs.RemoveQuiet(filepath.Join(u.packsDir, st.StagingDir)); err != nil {
			return err
		}
	}
	if st.CachePath != "" {
		if err := packfs.RemoveQuiet(filepath.Join(u.packsDir, st.CachePath)); err != nil {
			return err
		}
	}

	return u.saveState(persistedState{State: StateIdle})
}

// RunOnce acquires the cross-process lock, runs RecoverOnStartup, checks
// for an update on channel, and (if one exists) downloads, stages,
// verifies, applies and cleans up. It returns nil if already current.
func (u *Updater) RunOnce(channel, trigger string, now time.Time) error {
	lock := fslock.New(u.lockPath)
	if err := lock.TryLock(); err != nil {
		return errs.Wrap(errs.KindBusy, "updater lock already held", err)
	}
	defer lock.Unlock()

	if err := u.RecoverOnStartup(); err != nil {
		return u.fail(err)
	}

	st := persistedState{
		State:        StateChecking,
		Channel:      channel,
		Trigger:      trigger,
		StartedAtUTC: now.UTC().Format(time.RFC3339Nano),
	}
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}

	plan, err := u.CheckUpdates(channel)
	if err != nil {
		return u.fail(err)
	}
	if plan == nil {
		return u.saveState(persistedState{State: StateIdle})
	}

	activeBefore, err := packfs.ReadActive(u.packsDir)
	if err != nil {
		return u.fail(err)
	}
	st.PlanType = string(plan.Type)
	st.FromManifestSHA256 = plan.FromManifestSHA256
	st.ToManifestSHA256 = plan.ToManifestSHA256
	st.ActiveBefore = activeBefore
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}

	st.State = StateDownloading
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}
	cacheDir, err := u.download(plan, now)
	if err != nil {
		return u.fail(err)
	}
	cacheRel, err := filepath.Rel(u.packsDir, cacheDir)
	if err != nil {
		return u.fail(errs.Wrap(errs.KindTransient, "cannot relativize cache path", err))
	}
	st.CachePath = cacheRel
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}

	st.State = StateStaging
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}

	st.State = StateVerifying
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}
	if err := u.verify(plan, cacheDir); err != nil {
		return u.fail(err)
	}

	st.State = StateApplying
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}
	stagingDir, err := u.apply(plan, cacheDir, now)
	if err != nil {
		return u.fail(err)
	}
	stagingRel, err := filepath.Rel(u.packsDir, stagingDir)
	if err == nil {
		st.StagingDir = stagingRel
		_ = u.saveState(st)
	}

	st.State = StateCleanup
	if err := u.saveState(st); err != nil {
		return u.fail(err)
	}
	if err := packfs.RemoveQuiet(cacheDir); err != nil {
		return u.fail(err)
	}

	return u.saveState(persistedState{State: StateIdle})
}

// fail classifies err as hard (integrity/validation/signature: the
// artifact itself is bad, retrying won't help) or retryable (everything
// else: I/O, timeouts, transient network issues), persists the
// classification, and returns err unchanged to the caller.
func (u *Updater) fail(err error) error {
	st := u.loadState()
	kind, _ := errs.KindOf(err)
	switch kind {
	case errs.KindIntegrity, errs.KindSignature, errs.KindValidation:
		st.State = StateFailedHard
	default:
		st.State = StateFailedRetryable
	}
	st.ErrorKind = string(kind)
	st.ErrorMessage = err.Error()
	_ = u.saveState(st)
	logf("update: run_once failed state=%s err=%v", st.State, err)
	return err
}

func (u *Updater) download(plan *Plan, now time.Time) (string, error) {
	src := filepath.Join(u.remoteDir, plan.Channel, plan.ArtifactRef)
	if _, err := os.Stat(src); err != nil {
		return "", errs.Newf(errs.KindTransient, "remote artifact missing: %s", src)
	}
	name := fmt.Sprintf("cache_%s_%s", plan.Type, now.UTC().Format("20060102T150405.000000000Z"))
	dst := filepath.Join(u.cacheDir, name)
	if err := packfs.RemoveQuiet(dst); err != nil {
		return "", err
	}
	if err := packfs.CopyTree(src, dst); err != nil {
		return "", errs.Wrap(errs.KindTransient, "cannot copy remote artifact into cache", err)
	}
	if manifestBytes, err := os.ReadFile(filepath.Join(dst, "manifest.json")); err == nil {
		digest := plan.ToManifestSHA256
		if digest == "" {
			digest = plan.FromManifestSHA256
		}
		// best-effort: a failed archive write must not fail the download
		// itself, the staged tree at dst already has everything apply needs.
		_ = u.manifestCache.Write(digest, manifestBytes)
	}
	return dst, nil
}

// ReadCachedManifest returns the manifest.json bytes archived under digest
// by a prior download, so an operator can recover a manifest for a version
// that has since been pruned from packs/cache. Returns cache.MissErr if
// nothing was ever archived under that digest.
func (u *Updater) ReadCachedManifest(digest string) ([]byte, error) {
	return u.manifestCache.Read(digest)
}
