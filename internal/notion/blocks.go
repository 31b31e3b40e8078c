package notion

import "strings"

// Link is a hyperlink attached to a rich text span.
type Link struct {
	URL string `json:"url"`
}

// TextContent is the writable part of a rich text span.
type TextContent struct {
	Content string `json:"content"`
	Link    *Link  `json:"link,omitempty"`
}

// RichText is one span of page text. PlainText is only populated on reads.
type RichText struct {
	Type      string      `json:"type,omitempty"`
	Text      TextContent `json:"text"`
	PlainText string      `json:"plain_text,omitempty"`
}

// Text wraps a string as a single-span rich text slice.
func Text(content string) []RichText {
	return []RichText{{Text: TextContent{Content: content}}}
}

// TextLink builds a rich text span carrying a hyperlink.
func TextLink(content, url string) RichText {
	return RichText{Text: TextContent{Content: content, Link: &Link{URL: url}}}
}

// Block is a single content block. Exactly one of the typed payloads is set,
// matching Type.
type Block struct {
	ID               string        `json:"id,omitempty"`
	Type             string        `json:"type,omitempty"`
	Heading1         *TextBlock    `json:"heading_1,omitempty"`
	Heading2         *TextBlock    `json:"heading_2,omitempty"`
	Heading3         *TextBlock    `json:"heading_3,omitempty"`
	Paragraph        *TextBlock    `json:"paragraph,omitempty"`
	BulletedListItem *TextBlock    `json:"bulleted_list_item,omitempty"`
	Code             *CodeBlock    `json:"code,omitempty"`
	Callout          *CalloutBlock `json:"callout,omitempty"`
	Divider          *struct{}     `json:"divider,omitempty"`
}

type TextBlock struct {
	RichText []RichText `json:"rich_text"`
}

type CodeBlock struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language,omitempty"`
}

type CalloutBlock struct {
	RichText []RichText `json:"rich_text"`
	Icon     *Icon      `json:"icon,omitempty"`
	Color    string     `json:"color,omitempty"`
}

type Icon struct {
	Emoji string `json:"emoji"`
}

// Heading builds a heading block, clamping level into the supported 1..3 range.
func Heading(level int, text string) Block {
	tb := &TextBlock{RichText: Text(text)}
	switch {
	case level <= 1:
		return Block{Type: "heading_1", Heading1: tb}
	case level == 2:
		return Block{Type: "heading_2", Heading2: tb}
	default:
		return Block{Type: "heading_3", Heading3: tb}
	}
}

func Paragraph(rich ...RichText) Block {
	return Block{Type: "paragraph", Paragraph: &TextBlock{RichText: rich}}
}

func ParagraphText(text string) Block {
	return Paragraph(Text(text)...)
}

func Bullet(text string) Block {
	return Block{Type: "bulleted_list_item", BulletedListItem: &TextBlock{RichText: Text(text)}}
}

func Code(text, language string) Block {
	return Block{Type: "code", Code: &CodeBlock{RichText: Text(text), Language: language}}
}

func Callout(text, emoji, color string) Block {
	return Block{Type: "callout", Callout: &CalloutBlock{
		RichText: Text(text),
		Icon:     &Icon{Emoji: emoji},
		Color:    color,
	}}
}

func Divider() Block {
	return Block{Type: "divider", Divider: &struct{}{}}
}

// PlainText joins the text content of the block, preferring plain_text which
// the API populates on reads.
func (b Block) PlainText() string {
	var spans []RichText
	switch b.Type {
	case "heading_1":
		spans = richOf(b.Heading1)
	case "heading_2":
		spans = richOf(b.Heading2)
	case "heading_3":
		spans = richOf(b.Heading3)
	case "paragraph":
		spans = richOf(b.Paragraph)
	case "bulleted_list_item":
		spans = richOf(b.BulletedListItem)
	case "code":
		if b.Code != nil {
			spans = b.Code.RichText
		}
	case "callout":
		if b.Callout != nil {
			spans = b.Callout.RichText
		}
	}

	var sb strings.Builder
	for _, s := range spans {
		if s.PlainText != "" {
			sb.WriteString(s.PlainText)
		} else {
			sb.WriteString(s.Text.Content)
		}
	}
	return sb.String()
}

func richOf(tb *TextBlock) []RichText {
	if tb == nil {
		return nil
	}
	return tb.RichText
}
