// Package knowledgepack re-exports the canonical-value, manifest, and
// update-state types an external caller embedding this module needs,
// without requiring an import of internal/. It is a thin façade: every
// type here is an alias for (or a small wrapper around) the corresponding
// internal/ type, so internal/ stays the single source of truth.
package knowledgepack

import (
	"time"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/manifest"
	"github.com/lexintellectus/knowledgepack/internal/sign"
	"github.com/lexintellectus/knowledgepack/internal/update"
)

// CanonicalValue is the canonical JSON value tree that gets hashed and
// signed: string, bool, nil, int64/float64, []CanonicalValue,
// or map[string]CanonicalValue.
type CanonicalValue = canon.Value

// FileEntry is one file's path, size, and SHA-256 within a manifest.
type FileEntry = manifest.FileEntry

// SnapshotManifest lists every file in a pack payload.
type SnapshotManifest = manifest.Snapshot

// DeltaManifest lists the add/replace/delete operations between two
// snapshots.
type DeltaManifest = manifest.Delta

// State names the update state machine's states.
type State = update.State

// Plan describes the update check_updates decided to apply.
type Plan = update.Plan

// PublicKey verifies pack signatures; PrivateKey signs them.
type PublicKey = sign.PublicKey
type PrivateKey = sign.PrivateKey

// BuildSnapshot walks payloadDir and builds a SnapshotManifest listing
// every regular file under it.
func BuildSnapshot(payloadDir, packID, channel, packVer string, builtAt time.Time) (SnapshotManifest, error) {
	return manifest.BuildSnapshot(payloadDir, packID, channel, packVer, builtAt)
}

// BuildDelta diffs two snapshots into a DeltaManifest.
func BuildDelta(from, to SnapshotManifest, builtAt time.Time) (DeltaManifest, error) {
	return manifest.BuildDelta(from, to, builtAt)
}

// WriteSnapshot writes manifest.json/manifest.sig for snap into dir,
// signed with priv.
func WriteSnapshot(dir string, snap SnapshotManifest, priv PrivateKey) error {
	return manifest.WriteSnapshot(dir, snap, priv)
}

// WriteDelta writes manifest.json/manifest.sig for delta into dir, signed
// with priv.
func WriteDelta(dir string, delta DeltaManifest, priv PrivateKey) error {
	return manifest.WriteDelta(dir, delta, priv)
}

// VerifySnapshotDir verifies a snapshot directory's signature and on-disk
// file integrity against pub.
func VerifySnapshotDir(dir string, pub PublicKey) (SnapshotManifest, error) {
	return manifest.VerifySnapshotDir(dir, pub)
}

// VerifyDeltaDir verifies a delta directory's signature and on-disk file
// integrity against pub.
func VerifyDeltaDir(dir string, pub PublicKey) (DeltaManifest, error) {
	return manifest.VerifyDeltaDir(dir, pub)
}

// GenerateKeypair returns a fresh Ed25519 key pair.
func GenerateKeypair() (PrivateKey, PublicKey, error) {
	return sign.GenerateKeypair()
}

// Updater runs the update state machine rooted at a data directory
// against a remote artifact tree.
type Updater = update.Updater

// NewUpdater builds an Updater rooted at dataDir, pointed at remoteDir for
// channel manifests and artifacts, verifying everything against pub.
func NewUpdater(dataDir, remoteDir string, pub PublicKey) (*Updater, error) {
	return update.NewUpdater(dataDir, remoteDir, pub)
}
