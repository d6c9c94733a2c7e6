// Package textconv turns tracker markup into plain text and escapes plain
// text for the supported output formats.
package textconv

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/irsreport/irsreport/internal/types"
)

// Normalizer converts tracker markup (summary, description) to plain text.
type Normalizer interface {
	ToPlain(markup string) string
}

// HTML is the default Normalizer for Jira rendered fields.
type HTML struct{}

// ToPlain implements Normalizer.
func (HTML) ToPlain(markup string) string { return ToPlain(markup) }

// blockAtoms end a run of inline text.
var blockAtoms = map[atom.Atom]bool{
	atom.Br: true, atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true,
	atom.Ol: true, atom.Tr: true, atom.Td: true, atom.Th: true, atom.Table: true,
	atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true, atom.H5: true,
	atom.H6: true, atom.Blockquote: true, atom.Pre: true, atom.Hr: true,
}

var trailingPeriodRe = regexp.MustCompile(`\s*\.\s*$`)

// ToPlain converts HTML (or plain text) to a single line of plain text.
// Line breaks and block boundaries collapse to single spaces, entities are
// decoded, and a trailing period is removed. Anchors pointing at a tracker
// issue (".../browse/KEY" with text KEY) reduce to the bare key; other
// anchors keep their target as "text (url)".
func ToPlain(markup string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(markup))

	var (
		inAnchor bool
		href     string
		anchor   strings.Builder
		skip     int // depth inside <script>/<style>
	)

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF, or a reader error after which nothing more decodes.
			if inAnchor {
				b.WriteString(anchorText(anchor.String(), href))
			}
			return finish(b.String())

		case html.TextToken:
			if skip > 0 {
				continue
			}
			text := string(z.Text())
			if inAnchor {
				anchor.WriteString(text)
			} else {
				b.WriteString(text)
			}

		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Script || tok.DataAtom == atom.Style:
				if tt == html.StartTagToken {
					skip++
				}
			case tok.DataAtom == atom.A:
				inAnchor = true
				href = attr(tok, "href")
				anchor.Reset()
			case blockAtoms[tok.DataAtom]:
				b.WriteByte(' ')
			}

		case html.EndTagToken:
			tok := z.Token()
			switch {
			case tok.DataAtom == atom.Script || tok.DataAtom == atom.Style:
				if skip > 0 {
					skip--
				}
			case tok.DataAtom == atom.A && inAnchor:
				b.WriteString(anchorText(anchor.String(), href))
				inAnchor = false
				href = ""
			case blockAtoms[tok.DataAtom]:
				b.WriteByte(' ')
			}
		}
	}
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func anchorText(text, href string) string {
	text = strings.TrimSpace(text)
	if types.IsIssueKey(text) && strings.HasSuffix(href, "/browse/"+text) {
		return text
	}
	if href == "" || href == text || strings.HasPrefix(href, "#") {
		return text
	}
	if text == "" {
		return href
	}
	return text + " (" + href + ")"
}

func finish(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return trailingPeriodRe.ReplaceAllString(s, "")
}

// EnsureTerminal appends a period unless s already ends in ".", "?" or "!".
// The empty string is returned unchanged.
func EnsureTerminal(s string) string {
	if s == "" {
		return s
	}
	switch s[len(s)-1] {
	case '.', '?', '!':
		return s
	}
	return s + "."
}

// StripPrefix removes a literal leading token such as "Feature:" and the
// whitespace that follows it. ok is false when s does not start with prefix.
func StripPrefix(s, prefix string) (rest string, ok bool) {
	if !strings.HasPrefix(s, prefix) {
		return s, false
	}
	return strings.TrimLeft(s[len(prefix):], " \t"), true
}

// EscapeTeX escapes LaTeX special characters.
func EscapeTeX(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '&', '%', '$', '#', '_', '{', '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\\':
			b.WriteString(`\textbackslash{}`)
		case '~':
			b.WriteString(`\textasciitilde{}`)
		case '^':
			b.WriteString(`\textasciicircum{}`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// EscapeMarkdown backslash-escapes characters with inline markdown meaning.
func EscapeMarkdown(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '\\', '`', '*', '_', '[', ']', '<', '>', '|':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

var linkKeyRe = regexp.MustCompile(`\b[A-Z][A-Z0-9]*-\d+\b`)

// LinkKeys rewrites every issue key in s through fn. When fn returns false
// the key is left as is.
func LinkKeys(s string, fn func(key string) (string, bool)) string {
	return linkKeyRe.ReplaceAllStringFunc(s, func(key string) string {
		if out, ok := fn(key); ok {
			return out
		}
		return key
	})
}
