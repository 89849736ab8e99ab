package runlog

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/retrieval"
)

// LoadedHit mirrors retrieval.Hit but is reconstructed from persisted
// rows, so it carries the rank it was stored under.
type LoadedHit struct {
	Rank int
	retrieval.Hit
}

// Load returns the run record and its hits in rank order, each with its
// citations in idx order, exactly as they were persisted, preserving
// the exact sequence originally produced.
func Load(ctx context.Context, db *sql.DB, runID string) (Run, []LoadedHit, error) {
	run, err := loadRun(ctx, db, runID)
	if err != nil {
		return Run{}, nil, err
	}
	hits, err := loadHits(ctx, db, runID)
	if err != nil {
		return Run{}, nil, err
	}
	return run, hits, nil
}

func loadRun(ctx context.Context, db *sql.DB, runID string) (Run, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, created_at, query, top_n, filters_json, use_fts, use_vector, algo_version, meta_json
		FROM retrieval_runs WHERE id = ?;
	`, runID)

	var r Run
	var filtersJSON, metaJSON *string
	var useFTS, useVector int
	if err := row.Scan(&r.ID, &r.CreatedAtUTC, &r.Query, &r.TopN, &filtersJSON, &useFTS, &useVector, &r.AlgoVersion, &metaJSON); err != nil {
		return Run{}, errs.Wrapf(errs.KindNotFound, err, "load retrieval run %s", runID)
	}
	r.UseFTS = useFTS != 0
	r.UseVector = useVector != 0
	if filtersJSON != nil {
		if err := json.Unmarshal([]byte(*filtersJSON), &r.Filters); err != nil {
			return Run{}, errs.Wrapf(errs.KindEncoding, err, "parse run filters_json")
		}
	}
	if metaJSON != nil {
		if err := json.Unmarshal([]byte(*metaJSON), &r.Meta); err != nil {
			return Run{}, errs.Wrapf(errs.KindEncoding, err, "parse run meta_json")
		}
	}
	return r, nil
}

func loadHits(ctx context.Context, db *sql.DB, runID string) ([]LoadedHit, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, rank, chunk_id, practice_doc_id, score, fts_bm25, vector_distance
		FROM retrieval_run_hits WHERE run_id = ? ORDER BY rank ASC;
	`, runID)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "load run hits %s", runID)
	}
	defer rows.Close()

	type rawHit struct {
		id   int64
		hit  LoadedHit
	}
	var raw []rawHit
	for rows.Next() {
		var rh rawHit
		if err := rows.Scan(&rh.id, &rh.hit.Rank, &rh.hit.ChunkID, &rh.hit.PracticeDocID, &rh.hit.Score, &rh.hit.FTSBM25, &rh.hit.VectorDistance); err != nil {
			return nil, errs.Wrapf(errs.KindTransient, err, "scan run hit row")
		}
		raw = append(raw, rh)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "iterate run hits")
	}

	out := make([]LoadedHit, len(raw))
	for i, rh := range raw {
		citations, err := loadCitations(ctx, db, rh.id)
		if err != nil {
			return nil, err
		}
		rh.hit.Citations = citations
		out[i] = rh.hit
	}
	return out, nil
}

func loadCitations(ctx context.Context, db *sql.DB, hitID int64) ([]retrieval.Citation, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT quote, start, end, source_url
		FROM retrieval_run_citations WHERE hit_id = ? ORDER BY idx ASC;
	`, hitID)
	if err != nil {
		return nil, errs.Wrapf(errs.KindTransient, err, "load run citations for hit %d", hitID)
	}
	defer rows.Close()

	var out []retrieval.Citation
	for rows.Next() {
		var c retrieval.Citation
		if err := rows.Scan(&c.Quote, &c.Start, &c.End, &c.SourceURL); err != nil {
			return nil, errs.Wrapf(errs.KindTransient, err, "scan run citation row")
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
