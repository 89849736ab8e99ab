package retrieval

import (
	"sort"

	"github.com/lexintellectus/knowledgepack/internal/lexical"
)

// MergedHit is one chunk's fused lexical+vector signal, deduplicated by
// chunk id and ready for citation extraction.
type MergedHit struct {
	ChunkID        string
	PracticeDocID  string
	FTSBM25        *float64
	VectorDistance *float64
	Score          float64
}

// MergeAndRank dedups ftsHits and vecHits by chunk id and fuses their
// scores into [0,1] higher-is-better signals. Grounded on
// hybrid_retrieval.py's merge_and_rank: fts_score =
// 1/(1+bm25), vec_score = 1/(1+distance), S = 0.6*fts_score +
// 0.4*vec_score, a missing signal contributing 0. Ties broken by bm25
// ascending then chunk_id ascending.
func MergeAndRank(ftsHits []lexical.Hit, vecHits []VecHit, topN int) []MergedHit {
	if topN <= 0 {
		return nil
	}

	merged := make(map[string]*MergedHit)
	order := make([]string, 0)

	get := func(chunkID, practiceDocID string) *MergedHit {
		if m, ok := merged[chunkID]; ok {
			return m
		}
		m := &MergedHit{ChunkID: chunkID, PracticeDocID: practiceDocID}
		merged[chunkID] = m
		order = append(order, chunkID)
		return m
	}

	for _, h := range ftsHits {
		m := get(h.ChunkID, h.PracticeDocID)
		bm25 := h.BM25Score
		if m.FTSBM25 == nil || bm25 < *m.FTSBM25 {
			m.FTSBM25 = &bm25
		}
	}
	for _, h := range vecHits {
		m := get(h.ChunkID, h.PracticeDocID)
		dist := h.Distance
		if m.VectorDistance == nil || dist < *m.VectorDistance {
			m.VectorDistance = &dist
		}
	}

	out := make([]MergedHit, 0, len(order))
	for _, cid := range order {
		m := merged[cid]
		var ftsScore, vecScore float64
		if m.FTSBM25 != nil {
			ftsScore = 1.0 / (1.0 + *m.FTSBM25)
		}
		if m.VectorDistance != nil {
			vecScore = 1.0 / (1.0 + *m.VectorDistance)
		}
		m.Score = 0.6*ftsScore + 0.4*vecScore
		out = append(out, *m)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		bi, bj := bm25Or(out[i].FTSBM25), bm25Or(out[j].FTSBM25)
		if bi != bj {
			return bi < bj
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if topN < len(out) {
		out = out[:topN]
	}
	return out
}

func bm25Or(v *float64) float64 {
	if v == nil {
		return 1e9
	}
	return *v
}
