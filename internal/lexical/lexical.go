// Package lexical implements the BM25 full-text index over chunk text.
// Scoring is sqlite FTS5's bm25() where lower is better;
// the raw value is returned to callers verbatim, never inverted or
// rescaled here.
//
// Grounded on the Python prototype's
// apps/server/src/lex_server/retrieval/fts_retrieval.py (fts_search): same
// filter set, same "court"/"tags" reject-as-unimplemented behavior,
// same rowid join against document_chunks_fts.
package lexical

import (
	"context"
	"database/sql"
	"strings"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// Filter restricts an FTS search. Court and Tags are accepted for API
// compatibility but are rejected with errs.NotImplemented, never
// silently ignored.
type Filter struct {
	PracticeDocID string
	DocType       string
	Court         string
	DateFrom      string // YYYY-MM-DD
	DateTo        string // YYYY-MM-DD
	Tags          []string
}

// Hit is one FTS match.
type Hit struct {
	ChunkID       string
	PracticeDocID string
	BM25Score     float64
}

// Search runs a parameterized FTS5 query against document_chunks_fts.
// An empty query or non-positive topN returns an empty result, not an
// error.
func Search(ctx context.Context, db *sql.DB, query string, topN int, flt Filter) ([]Hit, error) {
	q := strings.TrimSpace(query)
	if q == "" || topN <= 0 {
		return nil, nil
	}
	if flt.Court != "" {
		return nil, errs.NotImplemented("court")
	}
	if len(flt.Tags) > 0 {
		return nil, errs.NotImplemented("tags")
	}

	where := []string{"document_chunks_fts MATCH ?"}
	args := []any{q}

	if flt.PracticeDocID != "" {
		where = append(where, "CAST(cd.id AS TEXT) = ?")
		args = append(args, flt.PracticeDocID)
	}
	if flt.DocType != "" {
		where = append(where, "cd.mime = ?")
		args = append(args, flt.DocType)
	}
	if flt.DateFrom != "" {
		where = append(where, "substr(cd.created_at_utc, 1, 10) >= ?")
		args = append(args, flt.DateFrom)
	}
	if flt.DateTo != "" {
		where = append(where, "substr(cd.created_at_utc, 1, 10) <= ?")
		args = append(args, flt.DateTo)
	}

	sqlQuery := `
		SELECT
		  dc.id AS chunk_id,
		  CAST(cd.id AS TEXT) AS practice_doc_id,
		  bm25(document_chunks_fts) AS bm25_score
		FROM document_chunks_fts
		JOIN document_chunks dc ON document_chunks_fts.rowid = dc.rowid
		JOIN case_documents cd ON dc.document_id = cd.id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY bm25_score ASC
		LIMIT ?;
	`
	args = append(args, topN)

	rows, err := db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "fts search")
	}
	defer rows.Close()

	var out []Hit
	for rows.Next() {
		var h Hit
		if err := rows.Scan(&h.ChunkID, &h.PracticeDocID, &h.BM25Score); err != nil {
			return nil, errs.Wrapf(errs.KindTransient, err, "scan fts hit")
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
