package lexical

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lexintellectus/knowledgepack/internal/chunkstore"
	"github.com/lexintellectus/knowledgepack/internal/errs"
)

func seedStore(t *testing.T) *chunkstore.Store {
	t.Helper()
	s, err := chunkstore.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	doc, err := s.InsertDocument(ctx, chunkstore.Document{
		CaseID: "case-1", OriginalName: "a.txt", Mime: "text/plain",
		SHA256: "aaa", StorageRelPath: "p", CreatedAtUTC: "2026-01-01T00:00:00Z",
	})
	require.NoError(t, err)
	require.NoError(t, s.ReplaceChunks(ctx, doc.ID, []chunkstore.Chunk{
		{ID: "1:0", DocumentID: doc.ID, Ordinal: 0, StartOffset: 0, EndOffset: 36, WordCount: 4, Text: "PVM deklaracija FR0600 pateikimas"},
		{ID: "1:1", DocumentID: doc.ID, Ordinal: 1, StartOffset: 36, EndOffset: 50, WordCount: 2, Text: "darbo uzmokestis"},
	}))
	return s
}

func TestSearchFindsMatchingChunk(t *testing.T) {
	s := seedStore(t)
	hits, err := Search(context.Background(), s.DB(), "PVM deklaracija", 10, Filter{})
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	require.Equal(t, "1:0", hits[0].ChunkID)
}

func TestSearchEmptyQueryReturnsEmptyNotError(t *testing.T) {
	s := seedStore(t)
	hits, err := Search(context.Background(), s.DB(), "  ", 10, Filter{})
	require.NoError(t, err)
	require.Empty(t, hits)
}

func TestSearchRejectsCourtAndTagsFilters(t *testing.T) {
	s := seedStore(t)

	_, err := Search(context.Background(), s.DB(), "PVM", 10, Filter{Court: "vilnius"})
	require.Error(t, err)
	kind, ok := errs.KindOf(err)
	require.True(t, ok)
	require.Equal(t, errs.KindUser, kind)

	_, err = Search(context.Background(), s.DB(), "PVM", 10, Filter{Tags: []string{"x"}})
	require.Error(t, err)
}

func TestSearchFiltersByDocType(t *testing.T) {
	s := seedStore(t)
	hits, err := Search(context.Background(), s.DB(), "PVM", 10, Filter{DocType: "application/pdf"})
	require.NoError(t, err)
	require.Empty(t, hits)
}
