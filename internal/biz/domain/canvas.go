package domain

import "strings"

// CanvasNode is one node of a canvas block/element tree
type CanvasNode struct {
	Type     string       `json:"type"`
	Text     string       `json:"text,omitempty"`
	Elements []CanvasNode `json:"elements,omitempty"`
}

// CanvasContent is the extracted text of a canvas plus its timestamp
type CanvasContent struct {
	Content string `json:"content"`
	TS      string `json:"ts"`
	FileID  string `json:"fileId,omitempty"`
}

// ExtractCanvasText flattens a canvas block tree into plain text.
// Blocks and list items are separated by newlines; unrecognized node kinds
// contribute nothing.
func ExtractCanvasText(blocks []CanvasNode) string {
	return joinNonEmpty(blocks, "\n")
}

func extractNode(n CanvasNode) string {
	switch n.Type {
	case "text":
		return n.Text
	case "rich_text", "rich_text_list":
		return joinNonEmpty(n.Elements, "\n")
	case "rich_text_section", "rich_text_preformatted", "rich_text_quote":
		return joinNonEmpty(n.Elements, "")
	default:
		return ""
	}
}

func joinNonEmpty(nodes []CanvasNode, sep string) string {
	parts := make([]string, 0, len(nodes))
	for _, child := range nodes {
		if text := extractNode(child); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, sep)
}
