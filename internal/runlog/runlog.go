// Package runlog persists retrieval runs, their hits, and their
// citations as one append-only unit. Grounded
// on retrieval_runs/retrieval_run_hits/retrieval_run_citations in
// chunkstore's schema, and on canonical-chisel's staging-then-atomic-
// commit discipline generalized here to "one sqlite transaction commits
// the whole run or none of it".
package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/retrieval"
)

// Run is the top-level persisted record of one hybrid retrieval
// invocation.
type Run struct {
	ID           string
	CreatedAtUTC string
	Query        string
	TopN         int
	Filters      map[string]any
	UseFTS       bool
	UseVector    bool
	AlgoVersion  string
	Meta         map[string]any
}

// AlgoVersion identifies the scoring/fusion formula a run used, so that
// historical runs remain interpretable after the formula changes.
const AlgoVersion = "hybrid-v1"

func utcNowISOZ() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// Persist assigns a UUID run id and writes run, hits (in rank order) and
// citations (in idx order per hit) inside a single transaction, so
// loaders observe all of it or none of it.
func Persist(ctx context.Context, db *sql.DB, run Run, hits []retrieval.Hit) (string, error) {
	run.ID = uuid.NewString()
	run.CreatedAtUTC = utcNowISOZ()
	if run.AlgoVersion == "" {
		run.AlgoVersion = AlgoVersion
	}

	filtersJSON, err := marshalOrEmpty(run.Filters)
	if err != nil {
		return "", err
	}
	metaJSON, err := marshalOrEmpty(run.Meta)
	if err != nil {
		return "", err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", errs.Wrapf(errs.KindTransient, err, "begin run persist tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO retrieval_runs(id, created_at, query, top_n, filters_json, use_fts, use_vector, algo_version, meta_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
	`, run.ID, run.CreatedAtUTC, run.Query, run.TopN, filtersJSON, boolToInt(run.UseFTS), boolToInt(run.UseVector), run.AlgoVersion, metaJSON)
	if err != nil {
		return "", errs.Wrapf(errs.KindTransient, err, "insert retrieval run")
	}

	hitStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO retrieval_run_hits(run_id, rank, chunk_id, practice_doc_id, score, fts_bm25, vector_distance)
		VALUES (?, ?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return "", errs.Wrapf(errs.KindTransient, err, "prepare hit insert")
	}
	defer hitStmt.Close()

	citeStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO retrieval_run_citations(hit_id, idx, quote, start, end, source_url)
		VALUES (?, ?, ?, ?, ?, ?);
	`)
	if err != nil {
		return "", errs.Wrapf(errs.KindTransient, err, "prepare citation insert")
	}
	defer citeStmt.Close()

	for rank, h := range hits {
		res, err := hitStmt.ExecContext(ctx, run.ID, rank, h.ChunkID, h.PracticeDocID, h.Score, h.FTSBM25, h.VectorDistance)
		if err != nil {
			return "", errs.Wrapf(errs.KindTransient, err, "insert hit rank %d", rank)
		}
		hitID, err := res.LastInsertId()
		if err != nil {
			return "", errs.Wrapf(errs.KindTransient, err, "resolve hit id for rank %d", rank)
		}
		for idx, c := range h.Citations {
			if _, err := citeStmt.ExecContext(ctx, hitID, idx, c.Quote, c.Start, c.End, c.SourceURL); err != nil {
				return "", errs.Wrapf(errs.KindTransient, err, "insert citation %d of hit rank %d", idx, rank)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errs.Wrapf(errs.KindTransient, err, "commit run persist tx")
	}
	return run.ID, nil
}

func marshalOrEmpty(m map[string]any) (*string, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errs.Wrapf(errs.KindEncoding, err, "marshal run json field")
	}
	s := string(b)
	return &s, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
