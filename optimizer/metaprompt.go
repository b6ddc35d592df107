package optimizer

import (
	"fmt"
	"strings"

	"github.com/promptdash/promptdash/quality"
)

// rewriteTemplates are the per-dimension instructions sent to the provider.
// Each takes the current prompt text and the dimension's current score.
var rewriteTemplates = map[quality.Dimension]string{
	quality.Persona: `Analyze this prompt and improve its Persona dimension to increase clarity of role and expertise.

Original Prompt: "%s"

Current Persona Score: %.2f / 1.00
Target Persona Score: >= 0.85

Improvements needed:
- Add explicit role specification (e.g., "You are a Senior [Role]")
- Include years of experience (e.g., "15+ years")
- Specify domain expertise (e.g., "specializing in [Domain]")
- Add credentials or background if relevant

CRITICAL: Output ONLY the improved prompt text. Do not include explanations, preambles, or meta-commentary. Keep all other aspects of the prompt unchanged.`,

	quality.Tone: `Improve the Tone dimension of this prompt to ensure appropriate voice and style.

Original Prompt: "%s"

Current Tone Score: %.2f / 1.00
Target Tone Score: >= 0.85

Add:
- Explicit tone specification (formal/technical/persuasive/academic/casual)
- Consistent voice throughout
- Domain-appropriate language and style
- Example phrasing if helpful

Output ONLY the improved prompt. No explanations.`,

	quality.Format: `Enhance the Format dimension to clearly specify output structure.

Original Prompt: "%s"

Current Format Score: %.2f / 1.00
Target Format Score: >= 0.90

Add:
- Output structure specification (JSON schema, Markdown sections, table format, bullet points)
- Length constraints (word count, character limit, number of items)
- Section organization (specific headers, subsections)
- Template or schema if applicable

Output ONLY the improved prompt.`,

	quality.Specificity: `Increase Specificity by adding quantified details and concrete requirements.

Original Prompt: "%s"

Current Specificity Score: %.2f / 1.00
Target Specificity Score: >= 0.85

Add:
- Quantified metrics (latency targets, accuracy thresholds, performance goals)
- Numerical constraints (5 examples, 200 words, 3 sections, 10 bullet points)
- Specific technologies/frameworks/tools by name
- Concrete examples or edge cases

Output ONLY the improved prompt.`,

	quality.Constraints: `Strengthen Constraints by adding enforcement rules and validation criteria.

Original Prompt: "%s"

Current Constraints Score: %.2f / 1.00
Target Constraints Score: >= 0.80

Add:
- Enforcement rules using imperative language ("must include X", "cannot use Y", "always", "never")
- Validation criteria and quality gates
- Hard limits and requirements
- Error handling instructions
- Compliance requirements

Output ONLY the improved prompt.`,

	quality.Context: `Enrich Context by providing background information and use case details.

Original Prompt: "%s"

Current Context Score: %.2f / 1.00
Target Context Score: >= 0.75

Add:
- Background information or project context
- Target audience details (expertise level, role, needs)
- Success criteria or goals
- Use case examples or scenarios
- Related information that helps understanding

Output ONLY the improved prompt.`,
}

// rewritePrompt renders the meta-prompt instructing the provider to improve
// one dimension of the current prompt.
func rewritePrompt(dim quality.Dimension, current string, score float64) string {
	return fmt.Sprintf(rewriteTemplates[dim], current, score)
}

// mergePrompt renders the instruction to combine multiple single-dimension
// rewrites into one coherent prompt.
func mergePrompt(original string, rewrites []string) string {
	var numbered strings.Builder
	for i, rewrite := range rewrites {
		fmt.Fprintf(&numbered, "%d. %s\n", i+1, rewrite)
	}

	return fmt.Sprintf(`You have an original prompt and %d improved versions, each focusing on different aspects.

Original:
%s

Improved Versions:
%s
Combine the best elements from all improved versions into a single, cohesive prompt. Keep all improvements but ensure the result flows naturally and is well-structured.

Output ONLY the final merged prompt.`, len(rewrites), original, numbered.String())
}
