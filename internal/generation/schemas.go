// Package generation implements the generation guard: strict-JSON
// prompting of an external LLM sidecar, robust parsing, one repair
// attempt, schema-valid fallback, and the "no citation -> no claim"
// enforcement pass. Grounded on the Python prototype's
// llm/orchestrator.py, llm/prompting.py, llm/enforcement.py, and
// llm/schemas.py's DefenseDirectionsResponse Pydantic model.
package generation

// CitationRef is a citation as it crosses into generation output: the
// schema DefenseDirections invariant names.
type CitationRef struct {
	Quote         string  `json:"quote"`
	ChunkID       *string `json:"chunk_id,omitempty"`
	PracticeDocID *string `json:"practice_doc_id,omitempty"`
	SourceURL     *string `json:"source_url,omitempty"`
	Start         *int    `json:"start,omitempty"`
	End           *int    `json:"end,omitempty"`
}

// ArgumentPath is one line of defense argument, grounded in its
// supporting citations.
type ArgumentPath struct {
	Title               string        `json:"title"`
	Claims              []string      `json:"claims"`
	SupportingCitations []CitationRef `json:"supporting_citations"`
}

// DefenseDirections is the generation stage's strict-schema output.
// Extra keys are forbidden by the schema; ParseResponse rejects them at
// parse time.
type DefenseDirections struct {
	ArgumentPaths         []ArgumentPath `json:"argument_paths"`
	Counterarguments      []string       `json:"counterarguments"`
	Risks                 []string       `json:"risks"`
	MissingInfo           []string       `json:"missing_info"`
	InsufficientAuthority bool           `json:"insufficient_authority"`
}

// Fallback builds the schema-valid object returned when the LLM never
// produces parseable, schema-valid JSON even after a repair attempt,
// mirroring DefenseDirectionsResponse.fallback.
func Fallback(missingInfo []string) DefenseDirections {
	if len(missingInfo) == 0 {
		missingInfo = []string{"LLM output was not valid JSON per schema."}
	}
	return DefenseDirections{
		ArgumentPaths:         nil,
		Counterarguments:      nil,
		Risks:                 nil,
		MissingInfo:           missingInfo,
		InsufficientAuthority: true,
	}
}

// schemaJSON is the literal JSON Schema embedded in prompts, matching
// the shape pydantic's DefenseDirectionsResponse.model_json_schema()
// emits for this contract (extra keys forbidden, all arrays typed).
const schemaJSON = `{
  "title": "DefenseDirectionsResponse",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "argument_paths": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "properties": {
          "title": {"type": "string", "minLength": 3},
          "claims": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "supporting_citations": {
            "type": "array",
            "items": {
              "type": "object",
              "additionalProperties": false,
              "properties": {
                "quote": {"type": "string"},
                "chunk_id": {"type": ["string", "null"]},
                "practice_doc_id": {"type": ["string", "null"]},
                "source_url": {"type": ["string", "null"]},
                "start": {"type": ["integer", "null"]},
                "end": {"type": ["integer", "null"]}
              },
              "required": ["quote"]
            },
            "minItems": 1
          }
        },
        "required": ["title", "claims"]
      }
    },
    "counterarguments": {"type": "array", "items": {"type": "string"}},
    "risks": {"type": "array", "items": {"type": "string"}},
    "missing_info": {"type": "array", "items": {"type": "string"}},
    "insufficient_authority": {"type": "boolean"}
  },
  "required": ["argument_paths", "counterarguments", "risks", "missing_info", "insufficient_authority"]
}`

// SchemaJSON returns the pretty JSON schema string embedded in prompts.
func SchemaJSON() string { return schemaJSON }
