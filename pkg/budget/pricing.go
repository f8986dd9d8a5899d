package budget

import "strings"

// ModelPricing is USD per million tokens.
type ModelPricing struct {
	InputPerMTok  float64
	OutputPerMTok float64
}

// pricingTable maps model-id prefixes to pricing. Longest matching prefix
// wins; unknown models fall back to defaultPricing so estimates stay
// conservative rather than zero.
var pricingTable = map[string]ModelPricing{
	"claude-opus":      {InputPerMTok: 15.00, OutputPerMTok: 75.00},
	"claude-sonnet":    {InputPerMTok: 3.00, OutputPerMTok: 15.00},
	"claude-haiku":     {InputPerMTok: 0.80, OutputPerMTok: 4.00},
	"gpt-4o-mini":      {InputPerMTok: 0.15, OutputPerMTok: 0.60},
	"gpt-4o":           {InputPerMTok: 2.50, OutputPerMTok: 10.00},
	"gpt-4.1":          {InputPerMTok: 2.00, OutputPerMTok: 8.00},
	"o3":               {InputPerMTok: 2.00, OutputPerMTok: 8.00},
	"gemini-2.5-pro":   {InputPerMTok: 1.25, OutputPerMTok: 10.00},
	"gemini-2.5-flash": {InputPerMTok: 0.30, OutputPerMTok: 2.50},
}

var defaultPricing = ModelPricing{InputPerMTok: 3.00, OutputPerMTok: 15.00}

// PricingFor returns the pricing for a model id by longest-prefix match.
func PricingFor(model string) ModelPricing {
	best := ""
	for prefix := range pricingTable {
		if strings.HasPrefix(model, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return defaultPricing
	}
	return pricingTable[best]
}

// Cost computes the USD cost of a call from its token usage.
func Cost(model string, inputTokens, outputTokens int) float64 {
	p := PricingFor(model)
	return float64(inputTokens)*p.InputPerMTok/1e6 + float64(outputTokens)*p.OutputPerMTok/1e6
}
