package generator

import "github.com/MikeSquared-Agency/quill/internal/gemini"

const systemPrompt = `You are an expert software architect. Read the Slack conversation below and extract the architectural decision it records.

Produce an Architectural Decision Record as strict JSON matching the response schema. Rules:
- "title" is a short imperative summary of the decision.
- "tags" are 1-4 topical labels suitable for filing the record.
- "context" explains the forces and background that led to the decision.
- "decision" states what was decided, in full sentences.
- "consequences" lists the results of the decision, good and bad.
- Capture any alternatives that were weighed in "alternatives_considered".
- Plain text only. Do not use Markdown emphasis such as ** or _.
- Do not invent facts that are not in the conversation.`

// recordSchema is the response schema every generation is constrained to.
// The required set matches what the record parser rejects on.
func recordSchema() *gemini.Schema {
	str := &gemini.Schema{Type: "STRING"}
	return &gemini.Schema{
		Type: "OBJECT",
		Properties: map[string]*gemini.Schema{
			"title":        str,
			"status":       str,
			"context":      str,
			"decision":     str,
			"drivers":      {Type: "ARRAY", Items: str},
			"consequences": {Type: "ARRAY", Items: str},
			"tags":         {Type: "ARRAY", Items: str},
			"alternatives_considered": {
				Type: "ARRAY",
				Items: &gemini.Schema{
					Type: "OBJECT",
					Properties: map[string]*gemini.Schema{
						"option":    str,
						"decision":  str,
						"reasoning": str,
					},
					Required: []string{"option", "decision", "reasoning"},
				},
			},
		},
		Required: []string{"title", "tags", "context", "decision", "consequences"},
	}
}

// buildPrompt joins the instruction block with the rendered thread.
func buildPrompt(threadText string) string {
	return systemPrompt + "\n\nHere is the Slack conversation:\n\n" + threadText
}
