package vector

import (
	"context"
	"os"
	"path/filepath"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// ChunkSource supplies the (chunk_id, text) pairs a rebuild embeds. It is
// satisfied by chunkstore.Store.AllChunksSortedByID (callers adapt via a
// small closure to avoid an import cycle between vector and chunkstore).
type ChunkSource func(ctx context.Context) (ids []string, texts []string, err error)

// RebuildPackIndex wipes dir and writes a fresh index.bin + idmap.json
// built from every chunk in the pack. Spec.md §4.6: "The index is not
// incrementally mutated: a pack apply triggers a fresh build." Mirrors
// the Python prototype's vector_index/rebuild_pack.py: wipe-then-rebuild,
// never a partial in-place update.
func RebuildPackIndex(ctx context.Context, dir string, embedder Embedder, batchSize int, source ChunkSource) error {
	if batchSize <= 0 {
		batchSize = 128
	}
	if err := os.RemoveAll(dir); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "clear vector index dir %s", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrapf(errs.KindTransient, err, "create vector index dir %s", dir)
	}

	ids, texts, err := source(ctx)
	if err != nil {
		return errs.Wrapf(errs.KindTransient, err, "list chunks for vector rebuild")
	}
	if len(ids) == 0 {
		return errs.New(errs.KindValidation, "no chunks to index")
	}

	entries := make([]Entry, 0, len(ids))
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		vecs, err := embedder.EmbedTexts(ctx, texts[start:end])
		if err != nil {
			return errs.Wrapf(errs.KindTransient, err, "embed chunk batch")
		}
		if len(vecs) != end-start {
			return errs.Newf(errs.KindValidation, "embedder returned %d vectors for %d texts", len(vecs), end-start)
		}
		for i, v := range vecs {
			entries = append(entries, Entry{ChunkID: ids[start+i], Vector: v})
		}
	}

	dim := len(entries[0].Vector)
	idx, idmap, err := Build(dim, entries)
	if err != nil {
		return err
	}
	if err := idx.Save(filepath.Join(dir, "index.bin")); err != nil {
		return err
	}
	return SaveIDMap(filepath.Join(dir, "idmap.json"), idmap)
}
