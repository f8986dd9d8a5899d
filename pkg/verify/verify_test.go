package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-cli/maestro/pkg/llms"
)

type fixedCaller struct {
	text string
	err  error
}

func (f *fixedCaller) Generate(ctx context.Context, req *llms.Request) (*llms.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llms.Result{Text: f.text, Usage: llms.Usage{InputTokens: 100, OutputTokens: 50}}, nil
}

func (f *fixedCaller) GenerateStreaming(ctx context.Context, req *llms.Request) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk, 2)
	ch <- llms.StreamChunk{Type: llms.ChunkTypeText, Text: f.text}
	ch <- llms.StreamChunk{Type: llms.ChunkTypeDone}
	close(ch)
	return ch, nil
}

func TestExtractClaims(t *testing.T) {
	caller := &fixedCaller{text: "```json\n" + `[
		{"text": "Revenue grew 12% year over year", "category": "figure", "value": "12%"},
		{"id": "margin", "text": "Gross margin expanded", "category": "figure"}
	]` + "\n```"}

	v := &Verifier{Caller: caller, Model: "claude-sonnet-4"}
	claims, err := v.ExtractClaims(context.Background(), "some analysis")
	require.NoError(t, err)
	require.Len(t, claims, 2)
	assert.Equal(t, "c1", claims[0].ID, "missing ids are synthesized")
	assert.Equal(t, "margin", claims[1].ID)
	assert.Equal(t, "12%", claims[0].Value)
}

func TestExtractClaims_MalformedJSON(t *testing.T) {
	v := &Verifier{Caller: &fixedCaller{text: "Sure! Here are the claims:"}, Model: "m"}
	_, err := v.ExtractClaims(context.Background(), "text")
	assert.Error(t, err)
}

func TestLinkClaims(t *testing.T) {
	outputs := map[string]string{
		"gather":  "Quarterly revenue grew 12% year over year, reaching $4.2B.",
		"analyze": "Margins held steady across segments.",
	}

	claims := []Claim{
		{ID: "c1", Text: "Revenue grew 12% year over year", Value: "12%"},
		{ID: "c2", Text: "Revenue grew 55% year over year", Value: "55%"},
		{ID: "c3", Text: "Shipping volumes doubled in Antarctica"},
	}

	linked := LinkClaims(claims, outputs)
	require.Len(t, linked, 3)

	assert.Equal(t, StatusVerified, linked[0].Status)
	require.NotEmpty(t, linked[0].Sources)
	assert.Equal(t, "gather", linked[0].Sources[0].Stage)

	// Context matches but the value does not appear anywhere.
	assert.Equal(t, StatusDisputed, linked[1].Status)

	assert.Equal(t, StatusUnverified, linked[2].Status)
	assert.Less(t, linked[2].Confidence, 0.3)
}

func TestLinkClaims_Deterministic(t *testing.T) {
	outputs := map[string]string{"a": "alpha beta gamma delta", "b": "alpha beta gamma delta"}
	claims := []Claim{{ID: "c1", Text: "alpha beta gamma delta"}}

	first := LinkClaims(claims, outputs)
	second := LinkClaims(claims, outputs)
	assert.Equal(t, first, second)
}

func TestBuildReport(t *testing.T) {
	analysis := "Revenue grew 12% year over year. Margins held steady."
	linked := []LinkedClaim{
		{
			Claim:      Claim{ID: "c1", Text: "Revenue grew 12% year over year", Value: "12%"},
			Status:     StatusVerified,
			Confidence: 0.9,
			Sources:    []SourceRef{{Stage: "gather", Excerpt: "revenue grew 12%"}},
		},
		{
			Claim:      Claim{ID: "c2", Text: "Margins held steady"},
			Status:     StatusUnverified,
			Confidence: 0.1,
		},
	}

	report := BuildReport(analysis, linked)

	assert.Equal(t, 1, report.Summary.Verified)
	assert.Equal(t, 1, report.Summary.Unverified)
	assert.InDelta(t, 0.5, report.OverallConfidence, 1e-9)
	assert.Contains(t, report.AnnotatedText, "Revenue grew 12% year over year[1]")
	require.Len(t, report.Footnotes, 1)
	assert.Contains(t, report.Footnotes[0], "gather")
}

func TestRun_EndToEnd(t *testing.T) {
	caller := &fixedCaller{text: `[{"text": "Revenue grew 12% year over year", "value": "12%"}]`}
	v := &Verifier{Caller: caller, Model: "claude-sonnet-4"}

	report, err := v.Run(context.Background(),
		"Revenue grew 12% year over year.",
		map[string]string{"gather": "revenue grew 12% year over year"})
	require.NoError(t, err)

	require.Len(t, report.Claims, 1)
	assert.Equal(t, StatusVerified, report.Claims[0].Status)
	assert.Equal(t, 1, report.Summary.Verified)
}
