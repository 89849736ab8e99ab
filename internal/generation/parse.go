package generation

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/lexintellectus/knowledgepack/internal/errs"
)

// ParseResponse attempts a strict JSON parse of raw; on failure it
// extracts the substring from the first '{' to the last '}' and
// reparses. Extra keys anywhere in the object graph are rejected,
// mirroring Pydantic's ConfigDict(extra="forbid") on every schema model.
func ParseResponse(raw string) (DefenseDirections, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return DefenseDirections{}, errs.New(errs.KindValidation, "empty LLM output")
	}

	if resp, err := decodeStrict(s); err == nil {
		return resp, nil
	}

	i := strings.Index(s, "{")
	j := strings.LastIndex(s, "}")
	if i == -1 || j == -1 || j <= i {
		return DefenseDirections{}, errs.New(errs.KindValidation, "no JSON object found in LLM output")
	}
	resp, err := decodeStrict(s[i : j+1])
	if err != nil {
		return DefenseDirections{}, errs.Wrapf(errs.KindValidation, err, "LLM output did not match schema")
	}
	return resp, nil
}

func decodeStrict(s string) (DefenseDirections, error) {
	var resp DefenseDirections
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&resp); err != nil {
		return DefenseDirections{}, err
	}
	if err := validate(resp); err != nil {
		return DefenseDirections{}, err
	}
	return resp, nil
}

// validate enforces the parts of the schema json.Decoder's
// DisallowUnknownFields cannot: required string lengths, non-empty
// claims and non-empty supporting_citations (ArgumentPath.title
// min_length=3, claims min_length=1, supporting_citations min_length=1).
func validate(resp DefenseDirections) error {
	for _, p := range resp.ArgumentPaths {
		if len(p.Title) < 3 {
			return errs.Newf(errs.KindValidation, "argument path title %q shorter than 3 chars", p.Title)
		}
		if len(p.Claims) < 1 {
			return errs.Newf(errs.KindValidation, "argument path %q has no claims", p.Title)
		}
		if len(p.SupportingCitations) < 1 {
			return errs.Newf(errs.KindValidation, "argument path %q has no supporting citations", p.Title)
		}
	}
	return nil
}
