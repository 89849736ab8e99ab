package generation

import "encoding/json"

// promptCitation is the schema-supported subset of a citation the prompt
// passes through verbatim, ignoring any extra fields the caller might
// carry: citations are the only allowed grounding source. Mirrors
// prompting.py's citations_compact.
type promptCitation struct {
	Quote         string  `json:"quote"`
	ChunkID       *string `json:"chunk_id"`
	PracticeDocID *string `json:"practice_doc_id"`
	SourceURL     *string `json:"source_url"`
	Start         *int    `json:"start"`
	End           *int    `json:"end"`
}

var exampleJSON = func() string {
	b, _ := json.MarshalIndent(map[string]any{
		"argument_paths": []map[string]any{
			{
				"title":  "Procedural defect line",
				"claims": []string{"A procedural defect may have affected the legality of the decision."},
				"supporting_citations": []map[string]any{
					{"quote": "…", "chunk_id": "chunk_123", "practice_doc_id": nil, "source_url": nil, "start": nil, "end": nil},
				},
			},
		},
		"counterarguments":       []string{"The prosecution will argue the defects are immaterial."},
		"risks":                  []string{"Insufficient data on how evidence was collected."},
		"missing_info":           []string{"Which specific procedural steps were taken and when."},
		"insufficient_authority": true,
	}, "", "  ")
	return string(b)
}()

// DefensePrompt builds the strict "ONLY JSON" prompt for
// DefenseDirections generation, grounded on prompting.py's
// defense_prompt: the schema embedded literally, citations passed
// through as the only allowed grounding source, and a tiny schema-valid
// example.
func DefensePrompt(query string, citations []CitationRef) string {
	compact := make([]promptCitation, len(citations))
	for i, c := range citations {
		compact[i] = promptCitation{
			Quote: c.Quote, ChunkID: c.ChunkID, PracticeDocID: c.PracticeDocID,
			SourceURL: c.SourceURL, Start: c.Start, End: c.End,
		}
	}
	citationsJSON, _ := json.MarshalIndent(compact, "", "  ")

	return "You are a legal assistant. Your task: propose defense directions based on the query and the provided citations.\n" +
		"\n" +
		"CRITICAL OUTPUT RULES:\n" +
		"- Output ONLY a single valid JSON object.\n" +
		"- No markdown. No code fences. No prose. No commentary.\n" +
		"- Do not include any text before or after the JSON.\n" +
		"\n" +
		"JSON CONTRACT (must match exactly; extra keys forbidden):\n" +
		schemaJSON + "\n" +
		"\n" +
		"FIELD GUIDANCE:\n" +
		"- argument_paths: array of {title, claims, supporting_citations}\n" +
		"- supporting_citations: MUST be non-empty; use the provided citations; the 'quote' MUST be copied from them.\n" +
		"- counterarguments/risks/missing_info: arrays of strings (can be empty).\n" +
		"- If citations are insufficient or key facts are missing: set insufficient_authority=true and add items to missing_info.\n" +
		"\n" +
		"USER QUERY:\n" +
		query + "\n" +
		"\n" +
		"AVAILABLE CITATIONS (use these only):\n" +
		string(citationsJSON) + "\n" +
		"\n" +
		"VALID EXAMPLE (shape only, keep yours grounded in citations):\n" +
		exampleJSON + "\n" +
		"\n" +
		"Now produce the JSON response.\n"
}

// RepairPrompt asks the LLM to fix a previous output that failed to
// parse or validate, mirroring orchestrator.py's _repair_prompt.
func RepairPrompt(raw, errorSummary string) string {
	return "You MUST output ONLY a single valid JSON object and nothing else.\n" +
		"No markdown. No code fences. No prose.\n" +
		"\n" +
		"The previous output did not match the required JSON schema.\n" +
		"Fix the JSON so it matches the schema EXACTLY (extra keys forbidden).\n" +
		"\n" +
		"REQUIRED JSON SCHEMA:\n" +
		schemaJSON + "\n" +
		"\n" +
		"ERROR SUMMARY:\n" +
		errorSummary + "\n" +
		"\n" +
		"PREVIOUS RAW OUTPUT (for reference):\n" +
		"-----BEGIN RAW-----\n" +
		raw + "\n" +
		"-----END RAW-----\n" +
		"\n" +
		"Return the corrected JSON now.\n"
}
