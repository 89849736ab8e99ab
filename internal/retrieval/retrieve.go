// Package retrieval implements the hybrid lexical+vector retrieval
// pipeline: per-signal retrieval, score fusion,
// deduplication, and citation extraction. Grounded on the Python
// prototype's retrieval/hybrid_retrieval.py (hybrid_retrieve,
// merge_and_rank, extract_citations) and retrieval/query_executor.py
// (execute_fts_plan's multi-atom aggregation).
package retrieval

import (
	"context"
	"strings"

	"github.com/lexintellectus/knowledgepack/internal/chunkstore"
	"github.com/lexintellectus/knowledgepack/internal/lexical"
	"github.com/lexintellectus/knowledgepack/internal/vector"
)

// Hit is one fully resolved hybrid retrieval result: a merged score plus
// the citations extracted from the winning chunk's text.
type Hit struct {
	ChunkID        string
	PracticeDocID  string
	Score          float64
	FTSBM25        *float64
	VectorDistance *float64
	Citations      []Citation
}

// Options configures one hybrid retrieval invocation.
type Options struct {
	TopN      int
	Filter    lexical.Filter
	UseFTS    bool
	UseVector bool
}

// VectorBackend bundles what HybridRetrieve needs to run the vector
// signal: an index, its label<->chunk_id map, and an embedder. Both Index
// and IDMap are nil-safe; a nil Index disables the vector signal even if
// opts.UseVector is true (e.g. no pack has been built yet).
type VectorBackend struct {
	Index    *vector.Index
	IDMap    vector.IDMap
	Embedder vector.Embedder
}

const overfetchFactor = 3

// HybridRetrieve runs the full pipeline: per-signal retrieval (raw query
// against lexical, embedded query against vector), fusion, and citation
// extraction. An empty query or non-positive TopN returns an empty
// result, never an error.
func HybridRetrieve(ctx context.Context, store *chunkstore.Store, vb VectorBackend, query string, opts Options) ([]Hit, error) {
	q := strings.TrimSpace(query)
	if q == "" || opts.TopN <= 0 {
		return nil, nil
	}

	overfetch := opts.TopN * overfetchFactor
	if overfetch < opts.TopN {
		overfetch = opts.TopN
	}

	var ftsHits []lexical.Hit
	if opts.UseFTS {
		hits, err := lexical.Search(ctx, store.DB(), q, overfetch, opts.Filter)
		if err != nil {
			return nil, err
		}
		ftsHits = hits
	}

	var vecHits []VecHit
	if opts.UseVector && vb.Index != nil && vb.Embedder != nil {
		lookup := func(ctx context.Context, chunkIDs []string) (map[string]string, error) {
			texts, err := store.LoadChunkTexts(ctx, chunkIDs)
			if err != nil {
				return nil, err
			}
			out := make(map[string]string, len(texts))
			for id, t := range texts {
				out[id] = t.PracticeDocID
			}
			return out, nil
		}
		hits, err := VectorRetrieve(ctx, vb.Index, vb.IDMap, vb.Embedder, lookup, q, overfetch, VectorFilter{PracticeDocID: opts.Filter.PracticeDocID})
		if err != nil {
			return nil, err
		}
		vecHits = hits
	}

	merged := MergeAndRank(ftsHits, vecHits, opts.TopN)
	chunkIDs := make([]string, len(merged))
	for i, m := range merged {
		chunkIDs[i] = m.ChunkID
	}
	texts, err := store.LoadChunkTexts(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}
	terms := ExtractQueryTerms(q)

	out := make([]Hit, 0, len(merged))
	for _, m := range merged {
		t, ok := texts[m.ChunkID]
		if !ok {
			t = chunkstore.ChunkText{PracticeDocID: m.PracticeDocID}
		}
		citations := ExtractCitations(t.Text, terms, t.SourceURL, defaultMaxCitation)
		out = append(out, Hit{
			ChunkID:        m.ChunkID,
			PracticeDocID:  m.PracticeDocID,
			Score:          m.Score,
			FTSBM25:        m.FTSBM25,
			VectorDistance: m.VectorDistance,
			Citations:      citations,
		})
	}
	return out, nil
}
