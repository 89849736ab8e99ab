// Package hashing computes SHA-256 digests of files and manifests. File
// hashing reads in bounded chunks so large payload files never require
// loading whole-file into memory.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/errs"
)

const chunkSize = 1 << 20 // 1 MiB

// FileSHA256 reads path in bounded chunks and returns its hex-encoded
// lowercase SHA-256 digest.
func FileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.KindTransient, "cannot open file for hashing", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", errs.Wrap(errs.KindTransient, "cannot read file for hashing", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ManifestSHA256 returns the hex SHA-256 of the canonical bytes of a
// manifest-like value. This is the only hash ever used to identify a
// manifest for signing or delta "from"/"to" linkage.
func ManifestSHA256(v canon.Value) (string, error) {
	b, err := canon.Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// ListFiles recursively lists regular files under root, returning
// POSIX-relative paths in sorted (deterministic) order.
func ListFiles(root string) ([]string, error) {
	var rels []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			rels = append(rels, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, "cannot list files", err)
	}
	sort.Strings(rels)
	return rels, nil
}

// FileEntry is one entry of a manifest's file list: {path, size, sha256}.
type FileEntry struct {
	Path   string
	Size   int64
	SHA256 string
}

// BuildFileEntry stats and hashes the file at root/relPath, returning a
// FileEntry keyed by its POSIX-relative path.
func BuildFileEntry(root, relPath string) (FileEntry, error) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))
	st, err := os.Stat(abs)
	if err != nil {
		return FileEntry{}, errs.Wrap(errs.KindTransient, "cannot stat file", err)
	}
	sha, err := FileSHA256(abs)
	if err != nil {
		return FileEntry{}, err
	}
	return FileEntry{Path: relPath, Size: st.Size(), SHA256: sha}, nil
}

// ToCanonical converts a FileEntry to its canon.Value map form.
func (e FileEntry) ToCanonical() canon.Value {
	return map[string]canon.Value{
		"path":   e.Path,
		"size":   e.Size,
		"sha256": e.SHA256,
	}
}
