package retrieval

import (
	"context"
	"testing"

	"github.com/lexintellectus/knowledgepack/internal/chunkstore"
	"github.com/lexintellectus/knowledgepack/internal/lexical"
	"github.com/lexintellectus/knowledgepack/internal/planner"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) *chunkstore.Store {
	t.Helper()
	store, err := chunkstore.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	doc, err := store.InsertDocument(ctx, chunkstore.Document{
		CaseID:         "case1",
		OriginalName:   "a.txt",
		Mime:           "text/plain",
		SizeBytes:      10,
		SHA256:         "deadbeef",
		StorageRelPath: "a.txt",
	})
	require.NoError(t, err)

	err = store.ReplaceChunks(ctx, doc.ID, []chunkstore.Chunk{
		{ID: "c1", Ordinal: 0, StartOffset: 0, EndOffset: 34, WordCount: 4, Text: "PVM deklaracija FR0600 pateikimas"},
		{ID: "c2", Ordinal: 1, StartOffset: 0, EndOffset: 30, WordCount: 4, Text: "FR0600 PVM deklaracija terminas"},
		{ID: "c3", Ordinal: 2, StartOffset: 0, EndOffset: 16, WordCount: 2, Text: "darbo užmokestis"},
	})
	require.NoError(t, err)
	return store
}

func TestExecutePlanAggregatesAcrossAtoms(t *testing.T) {
	store := seedStore(t)
	plan := planner.Plan{Atoms: []planner.Atom{
		{Text: "PVM", Kind: planner.KindKeywords, Weight: 1.0},
		{Text: "FR0600", Kind: planner.KindKeywords, Weight: 1.0},
	}}

	hits, err := ExecutePlan(context.Background(), store.DB(), plan, 10, 10, lexical.Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	for i := 1; i < len(hits); i++ {
		require.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestExecutePlanEmptyAtomsReturnsNil(t *testing.T) {
	store := seedStore(t)
	hits, err := ExecutePlan(context.Background(), store.DB(), planner.Plan{}, 10, 10, lexical.Filter{})
	require.NoError(t, err)
	require.Nil(t, hits)
}

func TestHybridRetrieveLexicalOnlyRanksDomainSpecificTermHigher(t *testing.T) {
	store := seedStore(t)
	hits, err := HybridRetrieve(context.Background(), store, VectorBackend{}, "PVM deklaracija FR0600", Options{
		TopN:   10,
		UseFTS: true,
	})
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	ids := make(map[string]int)
	for i, h := range hits {
		ids[h.ChunkID] = i
	}
	_, hasC1 := ids["c1"]
	_, hasC2 := ids["c2"]
	require.True(t, hasC1 && hasC2)
	if hasC3, ok := ids["c3"]; ok {
		require.Greater(t, hasC3, ids["c1"])
		require.Greater(t, hasC3, ids["c2"])
	}
	for _, h := range hits[:2] {
		found := false
		for _, c := range h.Citations {
			if c.Quote != "" {
				found = true
			}
		}
		require.True(t, found)
	}
}

func TestHybridRetrieveEmptyQueryReturnsEmptyNotError(t *testing.T) {
	store := seedStore(t)
	hits, err := HybridRetrieve(context.Background(), store, VectorBackend{}, "   ", Options{TopN: 10, UseFTS: true})
	require.NoError(t, err)
	require.Empty(t, hits)
}
