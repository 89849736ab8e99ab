// Package manifest builds and validates the snapshot and delta manifests:
// a snapshot lists every file in a pack payload with its size and
// SHA-256; a delta lists the add/replace/delete
// operations needed to move from one snapshot to the next. Both are always
// handled as canon.Value trees so their SHA-256 and signature match
// whatever was actually transmitted.
package manifest

import (
	"path"
	"sort"
	"strings"
	"time"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/hashing"
)

const manifestVersion = 1

// FileEntry is a single payload file's path, size and digest.
type FileEntry struct {
	Path   string
	Size   int64
	SHA256 string
}

func (e FileEntry) toCanonical() canon.Value {
	return map[string]canon.Value{
		"path":   e.Path,
		"size":   e.Size,
		"sha256": e.SHA256,
	}
}

func parseFileEntry(v canon.Value) (FileEntry, error) {
	m, ok := v.(map[string]canon.Value)
	if !ok {
		return FileEntry{}, errs.New(errs.KindIntegrity, "file entry is not an object")
	}
	p, err := str(m, "path")
	if err != nil {
		return FileEntry{}, err
	}
	if err := validateRelPath(p); err != nil {
		return FileEntry{}, err
	}
	size, err := toInt64(m["size"])
	if err != nil {
		return FileEntry{}, errs.Wrap(errs.KindIntegrity, "file entry size", err)
	}
	sha, err := str(m, "sha256")
	if err != nil {
		return FileEntry{}, err
	}
	return FileEntry{Path: p, Size: size, SHA256: sha}, nil
}

// Snapshot is the manifest form of a SnapshotManifest.
type Snapshot struct {
	Version int
	PackID  string
	Channel string
	PackVer string
	BuiltAt time.Time
	Files   []FileEntry
}

// ToCanonical converts the snapshot to the canon.Value tree that gets
// hashed and signed. Files are emitted in the order they are stored, which
// BuildSnapshot always produces sorted by path.
func (s Snapshot) ToCanonical() canon.Value {
	files := make([]canon.Value, len(s.Files))
	for i, f := range s.Files {
		files[i] = f.toCanonical()
	}
	return map[string]canon.Value{
		"manifest_version": int64(s.Version),
		"kind":             "snapshot",
		"pack_id":          s.PackID,
		"channel":          s.Channel,
		"pack_version":     s.PackVer,
		"built_at":         s.BuiltAt.UTC().Format(time.RFC3339),
		"files":            files,
	}
}

// SHA256 returns the hex SHA-256 of the snapshot's canonical bytes; this is
// the digest signed over and referenced by deltas as "to"/"from".
func (s Snapshot) SHA256() (string, error) {
	return hashing.ManifestSHA256(s.ToCanonical())
}

// BuildSnapshot walks payloadDir and builds a Snapshot listing every
// regular file under it, rooted at "payload/" the way a snapshot
// directory holds its files (internal/packfs strips that prefix when it
// installs a pack).
func BuildSnapshot(payloadDir, packID, channel, packVer string, builtAt time.Time) (Snapshot, error) {
	rels, err := hashing.ListFiles(payloadDir)
	if err != nil {
		return Snapshot{}, err
	}
	files := make([]FileEntry, 0, len(rels))
	for _, rel := range rels {
		e, err := hashing.BuildFileEntry(payloadDir, rel)
		if err != nil {
			return Snapshot{}, err
		}
		files = append(files, FileEntry{
			Path:   path.Join("payload", e.Path),
			Size:   e.Size,
			SHA256: e.SHA256,
		})
	}
	return Snapshot{
		Version: manifestVersion,
		PackID:  packID,
		Channel: channel,
		PackVer: packVer,
		BuiltAt: builtAt,
		Files:   files,
	}, nil
}

// ParseSnapshot validates a decoded canon.Value tree (e.g. from
// canon.DecodeJSON) as a Snapshot, rejecting any path-traversal attempt in
// a file entry.
func ParseSnapshot(v canon.Value) (Snapshot, error) {
	m, ok := v.(map[string]canon.Value)
	if !ok {
		return Snapshot{}, errs.New(errs.KindIntegrity, "snapshot manifest is not an object")
	}
	kind, _ := m["kind"].(string)
	if kind != "snapshot" {
		return Snapshot{}, errs.Newf(errs.KindIntegrity, "expected snapshot manifest, got kind %q", kind)
	}
	ver, err := toInt64(m["manifest_version"])
	if err != nil {
		return Snapshot{}, errs.Wrap(errs.KindIntegrity, "manifest_version", err)
	}
	packID, err := str(m, "pack_id")
	if err != nil {
		return Snapshot{}, err
	}
	channel, err := str(m, "channel")
	if err != nil {
		return Snapshot{}, err
	}
	packVer, err := str(m, "pack_version")
	if err != nil {
		return Snapshot{}, err
	}
	builtAtStr, err := str(m, "built_at")
	if err != nil {
		return Snapshot{}, err
	}
	builtAt, perr := time.Parse(time.RFC3339, builtAtStr)
	if perr != nil {
		return Snapshot{}, errs.Wrap(errs.KindIntegrity, "built_at is not RFC3339", perr)
	}
	rawFiles, ok := m["files"].([]canon.Value)
	if !ok {
		return Snapshot{}, errs.New(errs.KindIntegrity, "files is not an array")
	}
	files := make([]FileEntry, len(rawFiles))
	seen := make(map[string]bool, len(rawFiles))
	for i, rf := range rawFiles {
		fe, err := parseFileEntry(rf)
		if err != nil {
			return Snapshot{}, err
		}
		if seen[fe.Path] {
			return Snapshot{}, errs.Newf(errs.KindIntegrity, "duplicate file path in manifest: %s", fe.Path)
		}
		seen[fe.Path] = true
		files[i] = fe
	}
	return Snapshot{
		Version: int(ver),
		PackID:  packID,
		Channel: channel,
		PackVer: packVer,
		BuiltAt: builtAt,
		Files:   files,
	}, nil
}

// DeleteOp names a path removed by a delta.
type DeleteOp struct {
	Path string
}

// DeltaOps holds the operations that transform "from" into "to".
type DeltaOps struct {
	AddOrReplace []FileEntry
	Delete       []DeleteOp
}

// Delta is the manifest form of a DeltaManifest.
type Delta struct {
	Version    int
	PackID     string
	Channel    string
	FromVer    string
	ToVer      string
	FromSHA256 string
	ToSHA256   string
	BuiltAt    time.Time
	Ops        DeltaOps
}

func (d Delta) ToCanonical() canon.Value {
	add := make([]canon.Value, len(d.Ops.AddOrReplace))
	for i, f := range d.Ops.AddOrReplace {
		add[i] = f.toCanonical()
	}
	del := make([]canon.Value, len(d.Ops.Delete))
	for i, dl := range d.Ops.Delete {
		del[i] = map[string]canon.Value{"path": dl.Path}
	}
	return map[string]canon.Value{
		"manifest_version": int64(d.Version),
		"kind":             "delta",
		"pack_id":          d.PackID,
		"channel":          d.Channel,
		"from_version":     d.FromVer,
		"to_version":       d.ToVer,
		"from_sha256":      d.FromSHA256,
		"to_sha256":        d.ToSHA256,
		"built_at":         d.BuiltAt.UTC().Format(time.RFC3339),
		"ops": map[string]canon.Value{
			"add_or_replace": add,
			"delete":         del,
		},
	}
}

func (d Delta) SHA256() (string, error) {
	return hashing.ManifestSHA256(d.ToCanonical())
}

// BuildDelta diffs from and to snapshots into a Delta. Files present in
// both with matching SHA-256 are left untouched; everything else is
// either added/replaced (present in to) or deleted (present only in from).
func BuildDelta(from, to Snapshot, builtAt time.Time) (Delta, error) {
	if from.PackID != to.PackID {
		return Delta{}, errs.Newf(errs.KindValidation, "cannot build delta across pack IDs %q -> %q", from.PackID, to.PackID)
	}
	fromIdx := fileIndex(from.Files)
	toIdx := fileIndex(to.Files)

	var add []FileEntry
	for _, p := range sortedKeys(toIdx) {
		toEntry := toIdx[p]
		if fromEntry, ok := fromIdx[p]; ok && fromEntry.SHA256 == toEntry.SHA256 && fromEntry.Size == toEntry.Size {
			continue
		}
		add = append(add, toEntry)
	}
	var del []DeleteOp
	for _, p := range sortedKeys(fromIdx) {
		if _, ok := toIdx[p]; !ok {
			del = append(del, DeleteOp{Path: p})
		}
	}

	fromSHA, err := from.SHA256()
	if err != nil {
		return Delta{}, err
	}
	toSHA, err := to.SHA256()
	if err != nil {
		return Delta{}, err
	}
	return Delta{
		Version:    manifestVersion,
		PackID:     to.PackID,
		Channel:    to.Channel,
		FromVer:    from.PackVer,
		ToVer:      to.PackVer,
		FromSHA256: fromSHA,
		ToSHA256:   toSHA,
		BuiltAt:    builtAt,
		Ops: DeltaOps{
			AddOrReplace: add,
			Delete:       del,
		},
	}, nil
}

// ParseDelta validates a decoded canon.Value tree as a Delta.
func ParseDelta(v canon.Value) (Delta, error) {
	m, ok := v.(map[string]canon.Value)
	if !ok {
		return Delta{}, errs.New(errs.KindIntegrity, "delta manifest is not an object")
	}
	kind, _ := m["kind"].(string)
	if kind != "delta" {
		return Delta{}, errs.Newf(errs.KindIntegrity, "expected delta manifest, got kind %q", kind)
	}
	ver, err := toInt64(m["manifest_version"])
	if err != nil {
		return Delta{}, errs.Wrap(errs.KindIntegrity, "manifest_version", err)
	}
	packID, err := str(m, "pack_id")
	if err != nil {
		return Delta{}, err
	}
	channel, err := str(m, "channel")
	if err != nil {
		return Delta{}, err
	}
	fromVer, err := str(m, "from_version")
	if err != nil {
		return Delta{}, err
	}
	toVer, err := str(m, "to_version")
	if err != nil {
		return Delta{}, err
	}
	fromSHA, err := str(m, "from_sha256")
	if err != nil {
		return Delta{}, err
	}
	toSHA, err := str(m, "to_sha256")
	if err != nil {
		return Delta{}, err
	}
	builtAtStr, err := str(m, "built_at")
	if err != nil {
		return Delta{}, err
	}
	builtAt, perr := time.Parse(time.RFC3339, builtAtStr)
	if perr != nil {
		return Delta{}, errs.Wrap(errs.KindIntegrity, "built_at is not RFC3339", perr)
	}
	opsRaw, ok := m["ops"].(map[string]canon.Value)
	if !ok {
		return Delta{}, errs.New(errs.KindIntegrity, "ops is not an object")
	}
	addRaw, _ := opsRaw["add_or_replace"].([]canon.Value)
	add := make([]FileEntry, len(addRaw))
	for i, rf := range addRaw {
		fe, err := parseFileEntry(rf)
		if err != nil {
			return Delta{}, err
		}
		add[i] = fe
	}
	delRaw, _ := opsRaw["delete"].([]canon.Value)
	del := make([]DeleteOp, len(delRaw))
	for i, rd := range delRaw {
		dm, ok := rd.(map[string]canon.Value)
		if !ok {
			return Delta{}, errs.New(errs.KindIntegrity, "delete op is not an object")
		}
		p, err := str(dm, "path")
		if err != nil {
			return Delta{}, err
		}
		if err := validateRelPath(p); err != nil {
			return Delta{}, err
		}
		del[i] = DeleteOp{Path: p}
	}
	return Delta{
		Version:    int(ver),
		PackID:     packID,
		Channel:    channel,
		FromVer:    fromVer,
		ToVer:      toVer,
		FromSHA256: fromSHA,
		ToSHA256:   toSHA,
		BuiltAt:    builtAt,
		Ops:        DeltaOps{AddOrReplace: add, Delete: del},
	}, nil
}

func fileIndex(files []FileEntry) map[string]FileEntry {
	idx := make(map[string]FileEntry, len(files))
	for _, f := range files {
		idx[f.Path] = f
	}
	return idx
}

func sortedKeys(idx map[string]FileEntry) []string {
	keys := make([]string, 0, len(idx))
	for k := range idx {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateRelPath(p string) error {
	if p == "" {
		return errs.New(errs.KindIntegrity, "file path is empty")
	}
	if path.IsAbs(p) {
		return errs.Newf(errs.KindIntegrity, "file path must be relative: %s", p)
	}
	for _, part := range strings.Split(p, "/") {
		if part == ".." || part == "." {
			return errs.Newf(errs.KindIntegrity, "file path must not contain . or ..: %s", p)
		}
	}
	return nil
}

func str(m map[string]canon.Value, key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", errs.Newf(errs.KindIntegrity, "missing required field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errs.Newf(errs.KindIntegrity, "field %q must be a string", key)
	}
	return s, nil
}

func toInt64(v canon.Value) (int64, error) {
	switch t := v.(type) {
	case int64:
		return t, nil
	case int:
		return int64(t), nil
	case float64:
		return int64(t), nil
	default:
		return 0, errs.New(errs.KindIntegrity, "expected integer")
	}
}
