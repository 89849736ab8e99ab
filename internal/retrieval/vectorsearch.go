package retrieval

import (
	"context"

	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/vector"
)

// VecHit is one vector-index match resolved to a chunk id and its owning
// document, mirroring the Python prototype's VectorHit.
type VecHit struct {
	ChunkID       string
	PracticeDocID string
	Distance      float64
}

// VectorFilter restricts a vector search. Only practice_doc_id is
// supported, applied as a post-retrieval backfill the way
// vector_retrieval.py's vector_retrieve does it.
type VectorFilter struct {
	PracticeDocID string
}

// ChunkMetaLookup resolves chunk ids to their owning practice_doc_id.
// The orchestrator wires this to chunkstore.Store.LoadChunkTexts.
type ChunkMetaLookup func(ctx context.Context, chunkIDs []string) (map[string]string, error)

// VectorRetrieve embeds query, searches idx, and resolves labels to
// chunk ids via idmap. It overfetches topK*5 candidates (matching
// vector_retrieval.py) so that a practice_doc_id filter can discard
// matches without starving the result below topK.
func VectorRetrieve(ctx context.Context, idx *vector.Index, idmap vector.IDMap, embedder vector.Embedder, lookup ChunkMetaLookup, query string, topK int, flt VectorFilter) ([]VecHit, error) {
	if query == "" || topK <= 0 {
		return nil, nil
	}
	vecs, err := embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "embed query")
	}
	if len(vecs) != 1 {
		return nil, errs.Newf(errs.KindValidation, "embedder returned %d vectors for 1 query", len(vecs))
	}

	overfetch := topK * 5
	if overfetch < topK {
		overfetch = topK
	}
	hits, err := idx.Search(vecs[0], overfetch)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	chunkIDs := make([]string, 0, len(hits))
	distanceByChunk := make(map[string]float64, len(hits))
	order := make([]string, 0, len(hits))
	for _, h := range hits {
		cid, ok := idmap.ChunkID(h.Label)
		if !ok {
			continue
		}
		chunkIDs = append(chunkIDs, cid)
		distanceByChunk[cid] = float64(h.Distance)
		order = append(order, cid)
	}

	meta, err := lookup(ctx, chunkIDs)
	if err != nil {
		return nil, err
	}

	out := make([]VecHit, 0, topK)
	for _, cid := range order {
		docID, ok := meta[cid]
		if !ok {
			continue
		}
		if flt.PracticeDocID != "" && docID != flt.PracticeDocID {
			continue
		}
		out = append(out, VecHit{ChunkID: cid, PracticeDocID: docID, Distance: distanceByChunk[cid]})
		if len(out) >= topK {
			break
		}
	}
	return out, nil
}
