package generation

import (
	"context"
	"database/sql"
)

// Runtime generates raw text from a prompt. The concrete llama.cpp
// sidecar lives in llmproc; this interface is the seam the orchestrator
// depends on so it never imports a concrete subprocess runtime directly —
// the LLM runtime itself is an external collaborator.
type Runtime interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Params is the minimal set of generation parameters the orchestrator
// needs to know about directly (for the audit record); the rest of the
// LLM's sampling parameters are an llmproc concern.
type Params struct {
	Model       string
	PackVersion string
	Extra       map[string]any
}

const (
	minPaths            = 1
	minTotalClaims      = 1
	minCitationsPerPath = 1
)

// GenerateDefenseDirections orchestrates generation + parsing + schema
// validation + repair + enforcement, mirroring orchestrator.py's
// generate_defense_directions: one primary attempt,
// one repair attempt on failure, then a fallback object. Every path
// through the function ends with a best-effort audit write.
func GenerateDefenseDirections(ctx context.Context, db *sql.DB, runtime Runtime, query string, citations []CitationRef, params Params, retrievalRunID *string) (DefenseDirections, error) {
	audit := func(resp DefenseDirections) DefenseDirections {
		TryAudit(ctx, db, AuditRecord{
			Model:          params.Model,
			PackVersion:    params.PackVersion,
			RetrievalRunID: retrievalRunID,
			Params:         params.Extra,
			Output:         resp,
		})
		return resp
	}

	prompt := DefensePrompt(query, citations)
	raw1, err := runtime.Generate(ctx, prompt)
	if err != nil {
		return audit(enforceAndReturn(Fallback([]string{
			"LLM invocation failed.",
			err.Error(),
		}))), nil
	}

	resp1, parseErr1 := ParseResponse(raw1)
	if parseErr1 == nil {
		return audit(enforceAndReturn(resp1)), nil
	}

	raw2, err := runtime.Generate(ctx, RepairPrompt(raw1, parseErr1.Error()))
	if err != nil {
		return audit(enforceAndReturn(Fallback([]string{
			"LLM output was not valid JSON per schema after repair attempt.",
			"first_error=" + truncate(parseErr1.Error(), 500),
			"repair invocation failed: " + err.Error(),
		}))), nil
	}

	resp2, parseErr2 := ParseResponse(raw2)
	if parseErr2 == nil {
		return audit(enforceAndReturn(resp2)), nil
	}
	return audit(enforceAndReturn(Fallback([]string{
		"LLM output was not valid JSON per schema after repair attempt.",
		"first_error=" + truncate(parseErr1.Error(), 500),
		"second_error=" + truncate(parseErr2.Error(), 500),
	}))), nil
}

func enforceAndReturn(resp DefenseDirections) DefenseDirections {
	return EnforceNoCitationNoClaim(resp, minPaths, minTotalClaims, minCitationsPerPath)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
