package retrieval

import (
	"context"
	"database/sql"
	"sort"

	"github.com/lexintellectus/knowledgepack/internal/lexical"
	"github.com/lexintellectus/knowledgepack/internal/planner"
)

// AggregatedHit is one chunk's combined score across every plan atom that
// matched it.
type AggregatedHit struct {
	ChunkID       string
	PracticeDocID string
	BM25Score     float64 // best (lowest) bm25 among matching atoms
	Score         float64 // aggregated atom-weighted score
}

// ExecutePlan runs the lexical search once per plan atom and aggregates
// the results. Grounded on the
// Python prototype's retrieval/query_executor.py execute_fts_plan: per
// atom, base = -bm25 (lower bm25 is better, so negating makes it
// higher-is-better), atom_score = atom.weight * base; per chunk, the
// aggregate score is the max atom_score across matches and the aggregate
// bm25 is the min bm25 across matches. Final order: score DESC, bm25 ASC,
// chunk_id ASC.
func ExecutePlan(ctx context.Context, db *sql.DB, plan planner.Plan, topN, perAtom int, flt lexical.Filter) ([]AggregatedHit, error) {
	if topN <= 0 || perAtom <= 0 || len(plan.Atoms) == 0 {
		return nil, nil
	}

	agg := make(map[string]*AggregatedHit)
	for _, atom := range plan.Atoms {
		hits, err := lexical.Search(ctx, db, atom.Text, perAtom, flt)
		if err != nil {
			return nil, err
		}
		for _, h := range hits {
			atomScore := atom.Weight * -h.BM25Score
			if existing, ok := agg[h.ChunkID]; ok {
				if h.BM25Score < existing.BM25Score {
					existing.BM25Score = h.BM25Score
				}
				if atomScore > existing.Score {
					existing.Score = atomScore
				}
				continue
			}
			agg[h.ChunkID] = &AggregatedHit{
				ChunkID:       h.ChunkID,
				PracticeDocID: h.PracticeDocID,
				BM25Score:     h.BM25Score,
				Score:         atomScore,
			}
		}
	}

	out := make([]AggregatedHit, 0, len(agg))
	for _, v := range agg {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].BM25Score != out[j].BM25Score {
			return out[i].BM25Score < out[j].BM25Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if topN < len(out) {
		out = out[:topN]
	}
	return out, nil
}
