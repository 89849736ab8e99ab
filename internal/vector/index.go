// Package vector implements the per-pack approximate nearest neighbor
// index over L2-normalized chunk embeddings. No ANN library travels with
// the example corpus (the Python prototype's hnswlib has no Go
// equivalent among the pack's dependencies) — see DESIGN.md for why this
// one component is stdlib-only: a brute-force scan over a few thousand
// chunk embeddings is well within budget for a single-node offline
// install, and the distance metric, label scheme, and idmap persistence
// match the prototype's contract regardless of the search algorithm
// underneath.
package vector

import (
	"encoding/json"
	"math"
	"os"
	"sort"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// Entry is one (chunk_id, embedding) pair handed to Build.
type Entry struct {
	ChunkID string
	Vector  []float32
}

// Index is a cosine-distance nearest neighbor index. Vectors are
// L2-normalized at build and query time so that cosine distance reduces
// to 1 - dot(a, b).
type Index struct {
	Dim     int
	vectors [][]float32 // vectors[label] is the normalized embedding for that label
}

// IDMap is the persisted label<->chunk_id bijection: labels are dense
// int32 assigned from 0..N-1 in sorted chunk_id order at build time,
// persisted as idmap.json.
type IDMap struct {
	Dim      int      `json:"dim"`
	ChunkIDs []string `json:"chunk_ids"` // ChunkIDs[label] == chunk_id
}

func l2Normalize(v []float32) []float32 {
	var sumSq float64
	for _, x := range v {
		sumSq += float64(x) * float64(x)
	}
	norm := math.Sqrt(sumSq) + 1e-12
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// Build constructs an Index and its IDMap from entries, sorted by
// chunk_id so that label assignment is a deterministic function of the
// chunk id set.
func Build(dim int, entries []Entry) (*Index, IDMap, error) {
	if dim <= 0 {
		return nil, IDMap{}, errs.Newf(errs.KindValidation, "vector index dim must be > 0, got %d", dim)
	}
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkID < sorted[j].ChunkID })

	idx := &Index{Dim: dim, vectors: make([][]float32, len(sorted))}
	ids := make([]string, len(sorted))
	for i, e := range sorted {
		if len(e.Vector) != dim {
			return nil, IDMap{}, errs.Newf(errs.KindValidation, "chunk %s embedding has dim %d, expected %d", e.ChunkID, len(e.Vector), dim)
		}
		idx.vectors[i] = l2Normalize(e.Vector)
		ids[i] = e.ChunkID
	}
	return idx, IDMap{Dim: dim, ChunkIDs: ids}, nil
}

// Hit is one search result: a label (row index) and its cosine distance
// from the query vector (lower is better).
type Hit struct {
	Label    int32
	Distance float32
}

// Search returns the topK nearest neighbors of query by cosine distance,
// ascending. Brute-force exact search; correct and deterministic given
// the fixed build order, at the cost of O(N) per query.
func (idx *Index) Search(query []float32, topK int) ([]Hit, error) {
	if len(query) != idx.Dim {
		return nil, errs.Newf(errs.KindValidation, "query embedding has dim %d, expected %d", len(query), idx.Dim)
	}
	if topK <= 0 || len(idx.vectors) == 0 {
		return nil, nil
	}
	q := l2Normalize(query)

	hits := make([]Hit, len(idx.vectors))
	for i, v := range idx.vectors {
		var dot float64
		for j, x := range v {
			dot += float64(x) * float64(q[j])
		}
		hits[i] = Hit{Label: int32(i), Distance: float32(1 - dot)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].Label < hits[j].Label
	})
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

// SaveIDMap writes the idmap to path as JSON, the sibling file the
// install's vector index is loaded alongside.
func SaveIDMap(path string, m IDMap) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return errs.Wrapf(errs.KindEncoding, err, "marshal idmap")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "write idmap %s", path)
	}
	return nil
}

// LoadIDMap reads a previously persisted idmap.json.
func LoadIDMap(path string) (IDMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return IDMap{}, errs.Wrapf(errs.KindNotFound, err, "read idmap %s", path)
	}
	var m IDMap
	if err := json.Unmarshal(b, &m); err != nil {
		return IDMap{}, errs.Wrapf(errs.KindEncoding, err, "parse idmap %s", path)
	}
	return m, nil
}

// ChunkID resolves a label to its chunk_id via the idmap.
func (m IDMap) ChunkID(label int32) (string, bool) {
	if label < 0 || int(label) >= len(m.ChunkIDs) {
		return "", false
	}
	return m.ChunkIDs[label], true
}
