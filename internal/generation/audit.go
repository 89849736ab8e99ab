package generation

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/lexintellectus/knowledgepack/internal/canon"
	"github.com/lexintellectus/knowledgepack/internal/errs"
	"github.com/lexintellectus/knowledgepack/internal/hashing"
)

// AuditRecord is one attempted append to audit_log. Every successful or
// fallback generation attempts one of these; failures to write never
// affect the caller's result.
type AuditRecord struct {
	Model          string
	PackVersion    string
	RetrievalRunID *string
	Params         map[string]any
	Output         DefenseDirections
}

func utcNowISOZ() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05Z")
}

// TryAudit writes one best-effort audit row for rec, computing
// output_sha256 = SHA-256(canonical(output)). Any failure (including a
// nil db) is swallowed; nothing is returned for the caller to react
// to, mirroring audit.py's
// try_audit_llm_generation_to_db.
func TryAudit(ctx context.Context, db *sql.DB, rec AuditRecord) {
	if db == nil {
		return
	}
	outputMap, err := toCanonValue(rec.Output)
	if err != nil {
		return
	}
	outputSHA, err := hashing.ManifestSHA256(outputMap)
	if err != nil {
		return
	}
	outputJSON, err := json.Marshal(rec.Output)
	if err != nil {
		return
	}
	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return
	}

	_, _ = db.ExecContext(ctx, `
		INSERT INTO audit_log(created_at, event, model, pack_version, retrieval_run_id, params_json, output_json, output_sha256)
		VALUES (?, 'llm_generate_defense', ?, ?, ?, ?, ?, ?);
	`, utcNowISOZ(), rec.Model, rec.PackVersion, rec.RetrievalRunID, string(paramsJSON), string(outputJSON), outputSHA)
}

// toCanonValue round-trips v through encoding/json into the dynamic
// null/bool/number/string/array/object shape canon.Marshal accepts.
func toCanonValue(v any) (canon.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errs.Wrapf(errs.KindEncoding, err, "marshal value for canonicalization")
	}
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, errs.Wrapf(errs.KindEncoding, err, "unmarshal value for canonicalization")
	}
	return out, nil
}
