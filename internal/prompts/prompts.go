package prompts

import (
	"fmt"
	"strings"
)

// ============================================================================
// Channel Categorization Prompt (LLM)
// ============================================================================

// CategorizationSystemPrompt defines the classifier's role and output contract.
//
// JSON Schema:
//
//	{
//	  "categorization": {
//	    "niche": "one value from the niche list",
//	    "subniche": "one value from the subniche list",
//	    "microniche": "short free-text label",
//	    "category": "one value from the category list",
//	    "format": "one value from the format list"
//	  }
//	}
const CategorizationSystemPrompt = `You are a YouTube channel analyst. You classify a channel into a fixed taxonomy.

Rules:
- Choose niche, subniche, category and format ONLY from the allowed lists you are given. Copy the value exactly.
- microniche is a short free-text label (2-5 words) that is more specific than the subniche.
- Base the decision on what the channel's most-watched long-form videos are about, not on a single outlier.
- Respond with a single JSON object and nothing else, no markdown:
{"categorization":{"niche":"...","subniche":"...","microniche":"...","category":"...","format":"..."}}`

// CategorizationInput is everything the prompt builder needs about a channel.
type CategorizationInput struct {
	Title       string
	Description string
	Keywords    []string
	TopTitles   []string
	Transcript  string

	Niches     []string
	Subniches  []string
	Categories []string
	Formats    []string
}

const maxDescriptionChars = 1500

// BuildCategorizationPrompt renders the user message for the classifier.
func BuildCategorizationPrompt(in CategorizationInput) string {
	var b strings.Builder

	b.WriteString("Channel\n")
	fmt.Fprintf(&b, "Name: %s\n", orNone(in.Title))
	fmt.Fprintf(&b, "Description: %s\n", orNone(truncate(in.Description, maxDescriptionChars)))
	fmt.Fprintf(&b, "Keywords: %s\n", orNone(strings.Join(in.Keywords, ", ")))

	b.WriteString("\nTop videos by views\n")
	if len(in.TopTitles) == 0 {
		b.WriteString("(none)\n")
	}
	for i, title := range in.TopTitles {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}

	if t := strings.TrimSpace(in.Transcript); t != "" {
		b.WriteString("\nTranscript excerpt of the top video\n")
		b.WriteString(t)
		b.WriteString("\n")
	}

	b.WriteString("\nAllowed values\n")
	writeList(&b, "niche", in.Niches)
	writeList(&b, "subniche", in.Subniches)
	writeList(&b, "category", in.Categories)
	writeList(&b, "format", in.Formats)

	return b.String()
}

func writeList(b *strings.Builder, name string, values []string) {
	if len(values) == 0 {
		fmt.Fprintf(b, "%s: any\n", name)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", name, strings.Join(values, " | "))
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return "(none)"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
