package verify

import (
	"fmt"
	"sort"
	"strings"
)

// Linking thresholds over the fraction of a claim's significant words
// found in a stage output.
const (
	strongOverlap = 0.6
	weakOverlap   = 0.3
)

// LinkClaims searches the stage outputs for evidence supporting each
// claim. No model call is made; results are deterministic for a given
// input. A claim whose value appears alongside its wording is verified; a
// matching context with a missing or contradicting value is disputed;
// weak matches stay unverified.
func LinkClaims(claims []Claim, stageOutputs map[string]string) []LinkedClaim {
	stageNames := make([]string, 0, len(stageOutputs))
	for name := range stageOutputs {
		stageNames = append(stageNames, name)
	}
	sort.Strings(stageNames)

	linked := make([]LinkedClaim, 0, len(claims))
	for _, claim := range claims {
		linked = append(linked, linkClaim(claim, stageNames, stageOutputs))
	}
	return linked
}

func linkClaim(claim Claim, stageNames []string, stageOutputs map[string]string) LinkedClaim {
	words := significantWords(claim.Text)
	if len(words) == 0 {
		return LinkedClaim{Claim: claim, Status: StatusError, Confidence: 0}
	}

	bestOverlap := 0.0
	bestStage := ""
	valueFound := false

	for _, stageName := range stageNames {
		output := strings.ToLower(stageOutputs[stageName])
		if output == "" {
			continue
		}

		matched := 0
		for _, word := range words {
			if strings.Contains(output, word) {
				matched++
			}
		}
		overlap := float64(matched) / float64(len(words))
		if overlap > bestOverlap {
			bestOverlap = overlap
			bestStage = stageName
		}
		if claim.Value != "" && overlap >= weakOverlap &&
			strings.Contains(output, strings.ToLower(claim.Value)) {
			valueFound = true
			if overlap >= bestOverlap {
				bestStage = stageName
			}
		}
	}

	result := LinkedClaim{Claim: claim}
	switch {
	case claim.Value != "" && valueFound:
		result.Status = StatusVerified
		result.Confidence = 0.9
	case claim.Value != "" && bestOverlap >= strongOverlap:
		// Context matches but the stated value never appears.
		result.Status = StatusDisputed
		result.Confidence = 0.5
	case bestOverlap >= strongOverlap:
		result.Status = StatusVerified
		result.Confidence = 0.7
	case bestOverlap >= weakOverlap:
		result.Status = StatusUnverified
		result.Confidence = 0.4
	default:
		result.Status = StatusUnverified
		result.Confidence = 0.1
	}

	if bestStage != "" && bestOverlap >= weakOverlap {
		result.Sources = append(result.Sources, SourceRef{
			Stage:   bestStage,
			Excerpt: excerptAround(stageOutputs[bestStage], words[0]),
		})
	}
	return result
}

// significantWords lowercases and keeps words longer than three runes,
// which skips articles and most stopwords without a word list.
func significantWords(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.Trim(field, ".,;:!?()\"'")
		if len([]rune(trimmed)) > 3 {
			words = append(words, trimmed)
		}
	}
	return words
}

const excerptRadius = 60

func excerptAround(text, word string) string {
	idx := strings.Index(strings.ToLower(text), word)
	if idx < 0 {
		return ""
	}
	start := idx - excerptRadius
	if start < 0 {
		start = 0
	}
	end := idx + len(word) + excerptRadius
	if end > len(text) {
		end = len(text)
	}
	return strings.TrimSpace(text[start:end])
}

// BuildReport assembles the final report: summary counts, the mean
// confidence, and an annotated text with footnote markers after each
// claim that could be located verbatim.
func BuildReport(analysisText string, claims []LinkedClaim) *Report {
	report := &Report{
		Claims:        claims,
		AnalysisText:  analysisText,
		AnnotatedText: analysisText,
	}

	total := 0.0
	for i, claim := range claims {
		total += claim.Confidence
		switch claim.Status {
		case StatusVerified:
			report.Summary.Verified++
		case StatusDisputed:
			report.Summary.Disputed++
		case StatusUnverified:
			report.Summary.Unverified++
		default:
			report.Summary.Errors++
		}

		if len(claim.Sources) == 0 {
			continue
		}
		marker := fmt.Sprintf("[%d]", i+1)
		if idx := strings.Index(report.AnnotatedText, claim.Text); idx >= 0 {
			insertAt := idx + len(claim.Text)
			report.AnnotatedText = report.AnnotatedText[:insertAt] + marker + report.AnnotatedText[insertAt:]
		}
		source := claim.Sources[0]
		report.Footnotes = append(report.Footnotes,
			fmt.Sprintf("%s %s (%s): %s", marker, source.Stage, claim.Status, source.Excerpt))
	}

	if len(claims) > 0 {
		report.OverallConfidence = total / float64(len(claims))
	}
	return report
}
