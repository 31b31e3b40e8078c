package writer

import (
	"github.com/MikeSquared-Agency/quill/internal/notion"
	"github.com/MikeSquared-Agency/quill/internal/record"
)

// Headings stop at h3. Keys nested deeper degrade to paragraphs rather than
// erroring.
const maxHeadingDepth = 3

// Artifact lifecycle tags.
const (
	TagPending = "Pending"
	TagReady   = "Ready"
)

// BuildBlocks lowers a record body into a flat ordered block sequence.
// Top-level property keys (title, tags, status, manual fallback) are skipped
// because they land in page metadata, not the body.
func BuildBlocks(body record.Value) []notion.Block {
	return valueBlocks(body, 1, true)
}

func valueBlocks(v record.Value, depth int, topLevel bool) []notion.Block {
	var blocks []notion.Block

	switch v.Kind {
	case record.KindScalar:
		blocks = append(blocks, notion.ParagraphText(record.Sanitize(v.Scalar)))

	case record.KindList:
		for _, item := range v.Items {
			if item.Kind == record.KindScalar {
				blocks = append(blocks, notion.Bullet(record.Sanitize(item.Scalar)))
			} else {
				blocks = append(blocks, valueBlocks(item, depth, false)...)
			}
		}

	case record.KindObject:
		for _, e := range v.Entries {
			if topLevel && isPropertyKey(e.Key) {
				continue
			}
			heading := record.HumanizeKey(e.Key)
			if depth <= maxHeadingDepth {
				blocks = append(blocks, notion.Heading(depth, heading))
			} else {
				blocks = append(blocks, notion.ParagraphText(heading))
			}
			blocks = append(blocks, valueBlocks(e.Value, depth+1, false)...)
		}
	}

	return blocks
}

func isPropertyKey(key string) bool {
	switch key {
	case record.KeyTitle, record.KeyTags, record.KeyStatus, record.KeyManualFallback:
		return true
	}
	return false
}

// recordChildren assembles the full body of a finished record page.
func recordChildren(rec *record.DecisionRecord, sourceLink string) []notion.Block {
	var children []notion.Block

	if rec.Status != "" {
		children = append(children, notion.Callout("Status: "+rec.Status, "📌", "blue_background"))
	}

	children = append(children, BuildBlocks(rec.Body)...)
	children = append(children, notion.Divider(), notion.Divider())

	footer := notion.Paragraph(
		notion.RichText{Text: notion.TextContent{Content: "Original Slack Thread: "}},
		notion.TextLink(sourceLink, sourceLink),
	)
	children = append(children, footer)

	if rec.ManualFallback != "" {
		children = append(children,
			notion.Heading(3, "⚠️ AI Generation Fallback"),
			notion.Code(rec.ManualFallback, "markdown"),
		)
	}

	return children
}

// The empty record skeleton a human fills in when repairing an artifact.
const artifactTemplate = `{
  "title": "",
  "status": "Accepted",
  "context": "",
  "decision": "",
  "consequences": [],
  "tags": []
}`

// artifactChildren assembles the body of an error-artifact page: the exact
// failed prompt, then a repair section holding the JSON skeleton the recovery
// sweep parses once a human marks the page Ready.
func artifactChildren(promptText string) []notion.Block {
	return []notion.Block{
		notion.Heading(2, "Prompt at Error"),
		notion.Code(promptText, "markdown"),
		notion.Divider(),
		notion.Heading(2, "JSON Summary Input"),
		notion.ParagraphText(`Paste the AI-generated JSON here, then change the tag to "` + TagReady + `".`),
		notion.Code(artifactTemplate, "json"),
	}
}
