package generation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	outputs []string
	calls   []string
}

func (f *fakeRuntime) Generate(_ context.Context, prompt string) (string, error) {
	f.calls = append(f.calls, prompt)
	out := f.outputs[0]
	f.outputs = f.outputs[1:]
	return out, nil
}

func TestParseResponseAcceptsValidJSON(t *testing.T) {
	raw := `{"argument_paths":[{"title":"Kryptis A","claims":["Teiginys 1"],"supporting_citations":[{"quote":"Q1","chunk_id":"c1"}]}],"counterarguments":[],"risks":[],"missing_info":[],"insufficient_authority":false}`
	resp, err := ParseResponse(raw)
	require.NoError(t, err)
	require.False(t, resp.InsufficientAuthority)
	require.Len(t, resp.ArgumentPaths, 1)
	require.NotEmpty(t, resp.ArgumentPaths[0].SupportingCitations)
}

func TestParseResponseExtractsJSONFromNoise(t *testing.T) {
	valid := `{ "argument_paths": [ { "title": "Kryptis A", "claims": ["Teiginys 1"], "supporting_citations": [ { "quote": "Q1", "chunk_id": "c1" } ] } ], "counterarguments": [], "risks": [], "missing_info": [], "insufficient_authority": false }`
	resp, err := ParseResponse("SURE! " + valid + " thanks")
	require.NoError(t, err)
	require.Equal(t, "Kryptis A", resp.ArgumentPaths[0].Title)
}

func TestGenerateDefenseDirectionsParsesNoisyOutput(t *testing.T) {
	valid := `{ "argument_paths": [ { "title": "Kryptis A", "claims": ["Teiginys 1"], "supporting_citations": [ { "quote": "Q1", "chunk_id": "c1" } ] } ], "counterarguments": [], "risks": [], "missing_info": [], "insufficient_authority": false }`
	rt := &fakeRuntime{outputs: []string{"SURE! " + valid + " thanks"}}

	out, err := GenerateDefenseDirections(context.Background(), nil, rt, "gynybos kryptys", nil, Params{}, nil)
	require.NoError(t, err)
	require.Equal(t, "Kryptis A", out.ArgumentPaths[0].Title)
}

func TestGenerateDefenseDirectionsRepairsOnInvalidSchema(t *testing.T) {
	invalid := `{ "argument_paths": [ { "title": "Kryptis A", "claims": ["Teiginys 1"], "supporting_citations": [] } ], "counterarguments": [], "risks": [], "missing_info": [], "insufficient_authority": false }`
	valid := `{ "argument_paths": [ { "title": "Kryptis A", "claims": ["Teiginys 1"], "supporting_citations": [ { "quote": "Q1", "chunk_id": "c1" } ] } ], "counterarguments": [], "risks": [], "missing_info": [], "insufficient_authority": false }`
	rt := &fakeRuntime{outputs: []string{invalid, valid}}

	out, err := GenerateDefenseDirections(context.Background(), nil, rt, "gynybos kryptys", nil, Params{}, nil)
	require.NoError(t, err)
	require.Equal(t, "Q1", out.ArgumentPaths[0].SupportingCitations[0].Quote)
	require.Len(t, rt.calls, 2)
	require.Contains(t, rt.calls[1], "Fix the JSON")
}

func TestGenerateDefenseDirectionsFallbackAfterTwoFailures(t *testing.T) {
	rt := &fakeRuntime{outputs: []string{"not json at all", "still not json"}}

	out, err := GenerateDefenseDirections(context.Background(), nil, rt, "gynybos kryptys", nil, Params{}, nil)
	require.NoError(t, err)
	require.True(t, out.InsufficientAuthority)
	require.NotEmpty(t, out.MissingInfo)
	require.Empty(t, out.ArgumentPaths)
}

func TestEnforceRemovesPathsWithoutCitations(t *testing.T) {
	resp := DefenseDirections{
		ArgumentPaths: []ArgumentPath{
			{Title: "Path A", Claims: []string{"A1"}, SupportingCitations: nil},
			{Title: "Path B", Claims: []string{"B1"}, SupportingCitations: []CitationRef{{Quote: "y"}}},
		},
	}
	out := EnforceNoCitationNoClaim(resp, minPaths, minTotalClaims, minCitationsPerPath)
	require.Len(t, out.ArgumentPaths, 1)
	require.Equal(t, "Path B", out.ArgumentPaths[0].Title)
	require.False(t, out.InsufficientAuthority)
}

func TestEnforceSetsInsufficientAuthorityWhenAllRemoved(t *testing.T) {
	resp := DefenseDirections{
		ArgumentPaths: []ArgumentPath{
			{Title: "Only path", Claims: []string{"C1"}, SupportingCitations: nil},
		},
	}
	out := EnforceNoCitationNoClaim(resp, minPaths, minTotalClaims, minCitationsPerPath)
	require.Empty(t, out.ArgumentPaths)
	require.True(t, out.InsufficientAuthority)
	require.NotEmpty(t, out.MissingInfo)
}
