package generation

const defaultInsufficientMsg = "Insufficient grounded content: removed claims without citations; " +
	"provide more sources or refine query."

// EnforceNoCitationNoClaim applies the "no citation -> no claim"
// invariant at path level: a path with too few supporting
// citations loses all its claims; paths left with no claims are dropped
// entirely; if too little survives, insufficient_authority is set.
// Deterministic and non-mutating on its input, mirroring
// enforcement.py's enforce_no_citation_no_claim (deep-copy then rebuild).
func EnforceNoCitationNoClaim(resp DefenseDirections, minPaths, minTotalClaims, minCitationsPerPath int) DefenseDirections {
	out := DefenseDirections{
		Counterarguments:      append([]string(nil), resp.Counterarguments...),
		Risks:                 append([]string(nil), resp.Risks...),
		InsufficientAuthority: resp.InsufficientAuthority,
	}
	missingInfo := append([]string(nil), resp.MissingInfo...)

	var newPaths []ArgumentPath
	for _, p := range resp.ArgumentPaths {
		path := ArgumentPath{
			Title:               p.Title,
			Claims:              append([]string(nil), p.Claims...),
			SupportingCitations: append([]CitationRef(nil), p.SupportingCitations...),
		}
		if len(path.SupportingCitations) < minCitationsPerPath {
			path.Claims = nil
			missingInfo = append(missingInfo, "Removed claims in path '"+path.Title+"' because no supporting citations were provided.")
		}
		if len(path.Claims) > 0 {
			newPaths = append(newPaths, path)
		}
	}
	out.ArgumentPaths = newPaths
	out.MissingInfo = missingInfo

	claimsLeft := 0
	for _, p := range out.ArgumentPaths {
		claimsLeft += len(p.Claims)
	}
	if len(out.ArgumentPaths) < minPaths || claimsLeft < minTotalClaims {
		out.InsufficientAuthority = true
		if !contains(out.MissingInfo, defaultInsufficientMsg) {
			out.MissingInfo = append(out.MissingInfo, defaultInsufficientMsg)
		}
	}
	return out
}

func contains(ss []string, target string) bool {
	for _, s := range ss {
		if s == target {
			return true
		}
	}
	return false
}
