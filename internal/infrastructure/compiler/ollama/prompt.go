package ollama

func buildCompilePrompt(question string) string {
	const maxSnippet = 2000
	snippet := question
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You translate analyst questions into fact-table lookups.
Return strict JSON object with keys:
compilable (boolean), metric (string), period (string), entity (string).
Set compilable to false when the question does not ask for a specific numeric fact.
Normalize metric to a short lowercase name (e.g. "revenue", "ebitda margin").
Normalize period to a year or quarter token (e.g. "2023", "q2 2024"), empty if absent.
No markdown, no extra keys.

Question:
` + snippet
}

func buildEnrichPrompt(question string) string {
	const maxSnippet = 2000
	snippet := question
	if len(snippet) > maxSnippet {
		snippet = snippet[:maxSnippet]
	}

	return `You extract search filter hints from analyst questions.
Return strict JSON object with keys:
metric (string), period (string), confidence (number from 0 to 1).
Leave a key empty when the question does not mention it.
No markdown, no extra keys.

Question:
` + snippet
}
