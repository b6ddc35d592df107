// Package variant derives alternative renderings of a prompt and scores
// them against the rubric so callers can compare phrasings.
package variant

import (
	"strings"
	"unicode/utf8"

	"github.com/promptdash/promptdash/quality"
)

type Type string

const (
	// Concise trims the prompt down to its first two sentences.
	Concise Type = "concise"
	// Neutral is the prompt unchanged.
	Neutral Type = "neutral"
	// Commanding prefixes strong directives.
	Commanding Type = "commanding"
)

const (
	conciseMaxChars    = 150
	commandingPrefix   = "ACT NOW. MANDATORY: "
	commandingSentinel = "ACT"
)

// Variant is one rendering of a prompt with its quality score.
type Variant struct {
	Type     Type                  `json:"type"`
	Text     string                `json:"text"`
	QScore   float64               `json:"q_score"`
	Features quality.FeatureVector `json:"features"`
}

// Set is the scored comparison of all renderings.
type Set struct {
	Variants []Variant `json:"variants"`
	Winner   Type      `json:"winner"`
}

// Scorer turns text into rubric scores; quality.EstimateFeatures is the
// usual choice.
type Scorer func(text string) quality.FeatureVector

// Generate renders the concise, neutral, and commanding variants of text,
// scores each, and marks the highest-scoring one as the winner. Ties go to
// the earliest variant in that order.
func Generate(text string, scorer Scorer) (Set, error) {
	renderings := []struct {
		typ  Type
		text string
	}{
		{Concise, concise(text)},
		{Neutral, text},
		{Commanding, commanding(text)},
	}

	set := Set{Variants: make([]Variant, 0, len(renderings))}
	for _, r := range renderings {
		features := scorer(r.text)
		score, err := quality.ComputeQ(features)
		if err != nil {
			return Set{}, err
		}
		set.Variants = append(set.Variants, Variant{
			Type:     r.typ,
			Text:     r.text,
			QScore:   score.Q,
			Features: features,
		})
	}

	set.Winner = set.Variants[0].Type
	best := set.Variants[0].QScore
	for _, v := range set.Variants[1:] {
		if v.QScore > best {
			best = v.QScore
			set.Winner = v.Type
		}
	}
	return set, nil
}

// concise keeps the first two sentences, or the first 150 characters of
// prompts without enough sentence structure.
func concise(text string) string {
	sentences := strings.Split(text, ". ")
	if len(sentences) > 2 {
		return strings.Join(sentences[:2], ". ") + "."
	}
	if len(text) > conciseMaxChars {
		cut := conciseMaxChars
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		return text[:cut]
	}
	return text
}

func commanding(text string) string {
	if strings.HasPrefix(strings.ToUpper(text), commandingSentinel) {
		return text
	}
	return commandingPrefix + text
}
