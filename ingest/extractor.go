// Package ingest implements the document ingestion pipeline: loading from
// inline content or URLs, duplicate detection, chunking with overlap, and
// embedding + store writes.
package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText collapses a fetched document body into a form suitable for
// chunking and embedding: NFC-normalized, CRLF converted to LF, and trimmed.
func NormalizeText(s string) string {
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.TrimSpace(s)
}

// StripHTML removes HTML tags, scripts, styles, and decodes common entities.
// Used as a fallback when readability extraction yields nothing.
func StripHTML(content string) string {
	var sb strings.Builder
	inTag := false
	skipUntil := ""

	lower := strings.ToLower(content)
	for i := 0; i < len(content); i++ {
		if skipUntil != "" {
			if strings.HasPrefix(lower[i:], skipUntil) {
				i += len(skipUntil) - 1
				skipUntil = ""
				inTag = false
			}
			continue
		}
		c := content[i]
		switch {
		case c == '<':
			inTag = true
			if strings.HasPrefix(lower[i:], "<script") {
				skipUntil = "</script>"
			} else if strings.HasPrefix(lower[i:], "<style") {
				skipUntil = "</style>"
			}
		case c == '>':
			inTag = false
			sb.WriteByte(' ')
		case !inTag:
			sb.WriteByte(c)
		}
	}

	text := sb.String()
	for entity, repl := range map[string]string{
		"&nbsp;": " ", "&amp;": "&", "&lt;": "<", "&gt;": ">",
		"&quot;": `"`, "&#39;": "'", "&apos;": "'",
	} {
		text = strings.ReplaceAll(text, entity, repl)
	}

	return collapseWhitespace(text)
}

// collapseWhitespace reduces runs of whitespace to a single space, keeping
// newlines so paragraph boundaries survive.
func collapseWhitespace(s string) string {
	var sb strings.Builder
	lastSpace := false
	lastNewline := false
	for _, r := range s {
		if r == '\n' {
			if !lastNewline {
				sb.WriteByte('\n')
			}
			lastNewline = true
			lastSpace = true
			continue
		}
		if unicode.IsSpace(r) {
			if !lastSpace {
				sb.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		sb.WriteRune(r)
		lastSpace = false
		lastNewline = false
	}
	return strings.TrimSpace(sb.String())
}
