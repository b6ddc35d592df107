package quality

import (
	"math"
	"strings"
)

var (
	toneKeywords       = []string{"formal", "casual", "professional", "technical", "academic", "persuasive", "friendly", "neutral"}
	formatKeywords     = []string{"json", "markdown", "table", "csv", "bullet points", "list", "xml", "latex", "structure"}
	metricKeywords     = []string{"latency", "throughput", "availability", "budget", "count", "words", "characters", "limit"}
	constraintKeywords = []string{"must", "cannot", "don't", "avoid", "ensure", "always", "never", "constraint", "limit"}
	contextKeywords    = []string{"background", "audience", "context", "history", "use case", "scenario"}
)

// EstimateFeatures scores raw prompt text against the six PES dimensions
// with keyword heuristics. It is a deterministic pure function; scores are
// rounded to 2 decimals at this boundary.
func EstimateFeatures(text string) FeatureVector {
	lower := strings.ToLower(text)

	p := 0.4
	if strings.Contains(lower, "you are") || strings.Contains(lower, "expert") || strings.Contains(lower, "persona") {
		p = 0.8
		if strings.Contains(lower, "years of experience") || strings.Contains(lower, "senior") || strings.Contains(lower, "specialist") {
			p = 0.95
		}
	}

	tone := 0.5
	if containsAny(lower, toneKeywords) {
		tone = 0.85
	}
	if strings.Contains(lower, "tone") || strings.Contains(lower, "voice") {
		tone = 0.95
	}

	format := 0.3
	if containsAny(lower, formatKeywords) {
		format = 0.7
	}
	if strings.Contains(lower, "format") || strings.Contains(lower, "output") ||
		strings.Contains(lower, "sections") || strings.Contains(lower, "schema") {
		format = 0.95
	}

	specificity := 0.4
	if strings.ContainsAny(lower, "0123456789") {
		specificity = 0.7
	}
	if containsAny(lower, metricKeywords) {
		specificity = 0.9
	}

	constraints := 0.3
	if containsAny(lower, constraintKeywords) {
		constraints = 0.8
	}
	if strings.Contains(lower, "validation") || strings.Contains(lower, "rules") || strings.Contains(lower, "enforce") {
		constraints = 0.95
	}

	contextScore := 0.3
	if len(text) > 200 {
		contextScore = 0.6
	}
	if len(text) > 500 {
		contextScore = 0.8
	}
	if containsAny(lower, contextKeywords) {
		contextScore = 0.95
	}

	return FeatureVector{
		Persona:     round2(p),
		Tone:        round2(tone),
		Format:      round2(format),
		Specificity: round2(specificity),
		Constraints: round2(constraints),
		Context:     round2(contextScore),
	}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
