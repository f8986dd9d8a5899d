// Package verify is the claim-verification subsystem run after verify
// stages: it extracts factual claims from an analysis text with one
// structured model call, links each claim deterministically against the
// prior stage outputs, and builds a report with per-claim status,
// confidence, and source references.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maestro-cli/maestro/pkg/llms"
)

type ClaimStatus string

const (
	StatusVerified   ClaimStatus = "verified"
	StatusDisputed   ClaimStatus = "disputed"
	StatusUnverified ClaimStatus = "unverified"
	StatusError      ClaimStatus = "error"
)

// Claim is one extracted factual statement.
type Claim struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category,omitempty"`
	Value    string `json:"value,omitempty"`
	Unit     string `json:"unit,omitempty"`
}

// SourceRef points back at the stage whose output supports a claim.
type SourceRef struct {
	Stage   string `json:"stage"`
	Excerpt string `json:"excerpt,omitempty"`
}

// LinkedClaim is a claim after evidence linking.
type LinkedClaim struct {
	Claim
	Status     ClaimStatus `json:"status"`
	Confidence float64     `json:"confidence"`
	Sources    []SourceRef `json:"sources,omitempty"`
}

// Summary counts claims by status.
type Summary struct {
	Verified   int `json:"verified"`
	Disputed   int `json:"disputed"`
	Unverified int `json:"unverified"`
	Errors     int `json:"errors"`
}

// Report is the complete verification output for one analysis.
type Report struct {
	Claims            []LinkedClaim `json:"claims"`
	Summary           Summary       `json:"summary"`
	OverallConfidence float64       `json:"overall_confidence"`
	AnalysisText      string        `json:"analysis_text"`
	AnnotatedText     string        `json:"annotated_text"`
	Footnotes         []string      `json:"footnotes,omitempty"`
}

// Verifier runs the three verification steps. Only the extraction step
// calls the model; linking and reporting are deterministic.
type Verifier struct {
	Caller llms.ModelCaller
	Model  string
}

func (v *Verifier) Run(ctx context.Context, analysisText string, stageOutputs map[string]string) (*Report, error) {
	claims, err := v.ExtractClaims(ctx, analysisText)
	if err != nil {
		return nil, err
	}
	linked := LinkClaims(claims, stageOutputs)
	return BuildReport(analysisText, linked), nil
}

const extractionPrompt = `Extract every checkable factual claim from the analysis below.
Respond with a JSON array only, no prose. Each element:
{"id": "<short id>", "text": "<claim as stated>", "category": "<figure|date|event|other>", "value": "<numeric or literal value if any>", "unit": "<unit if any>"}

Analysis:
%s`

// ExtractClaims performs the structured model call and parses its JSON
// response. Code fences around the JSON are tolerated.
func (v *Verifier) ExtractClaims(ctx context.Context, analysisText string) ([]Claim, error) {
	req := &llms.Request{
		Model:  v.Model,
		System: "You extract verifiable factual claims from analyst reports. Output strict JSON.",
		Messages: []*llms.Message{
			{Role: llms.RoleUser, Content: fmt.Sprintf(extractionPrompt, analysisText)},
		},
	}

	result, err := v.Caller.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("claim extraction failed: %w", err)
	}

	text := stripCodeFence(result.Text)
	var claims []Claim
	if err := json.Unmarshal([]byte(text), &claims); err != nil {
		return nil, fmt.Errorf("claim extraction returned malformed JSON: %w", err)
	}

	for i := range claims {
		if claims[i].ID == "" {
			claims[i].ID = fmt.Sprintf("c%d", i+1)
		}
	}
	return claims, nil
}

func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
