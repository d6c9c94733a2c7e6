package render

import (
	"strconv"
	"strings"
	"text/template"
	"time"
	"unicode"

	"github.com/irsreport/irsreport/internal/report"
	"github.com/irsreport/irsreport/internal/textconv"
	"github.com/irsreport/irsreport/internal/types"
)

// NoRelatedText is shown for a user story with nothing related to it.
const NoRelatedText = "No features or policies have been associated with this user story."

// dialect is the markup of one output format.
type dialect struct {
	escape     func(string) string
	target     func(id string) string
	link       func(id, text string) string
	emphasis   func(string) string
	lineBreak  string
	epicAnchor func(name string) string
}

var tex = dialect{
	escape: textconv.EscapeTeX,
	target: func(id string) string { return `\hypertarget{` + id + `}{}` },
	link: func(id, text string) string {
		return `\hyperlink{` + id + `}{` + text + `}`
	},
	emphasis:   func(s string) string { return `\textit{` + s + `}` },
	lineBreak:  "\n\n",
	epicAnchor: textconv.EscapeTeX,
}

var markdown = dialect{
	escape: textconv.EscapeMarkdown,
	target: func(id string) string { return `<a id="` + id + `"></a>` },
	link: func(id, text string) string {
		return "[" + text + "](#" + id + ")"
	},
	emphasis:   func(s string) string { return "_" + s + "_" },
	lineBreak:  "  \n",
	epicAnchor: func(name string) string { return "epic-" + slug(name) },
}

// slug lower-cases name and joins its words with hyphens.
func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	return b.String()
}

// funcs builds the template helpers of d for doc.
func (d dialect) funcs(doc *report.Document) template.FuncMap {
	ref := func(key string) string {
		if doc.HasIssue(key) {
			return d.link(key, key)
		}
		return d.escape(key)
	}
	epicRef := func(name string) string {
		return d.link(d.epicAnchor(name), d.escape(name))
	}

	return template.FuncMap{
		"esc": d.escape,
		// text escapes s and links every issue key in the report.
		"text": func(s string) string {
			return textconv.LinkKeys(d.escape(s), func(key string) (string, bool) {
				if !doc.HasIssue(key) {
					return "", false
				}
				return d.link(key, key), true
			})
		},
		"target":     d.target,
		"ref":        ref,
		"epicTarget": func(name string) string { return d.target(d.epicAnchor(name)) },
		"epicRef":    epicRef,
		"related": func(issue *types.Issue) string {
			lines := make([]string, 0, len(issue.Related))
			for _, grp := range issue.Related {
				refs := make([]string, len(grp.Keys))
				for i, k := range grp.Keys {
					if grp.Names {
						refs[i] = epicRef(k)
					} else {
						refs[i] = ref(k)
					}
				}
				lines = append(lines, d.escape(grp.Label)+": "+strings.Join(refs, ", "))
			}
			if len(lines) == 0 && issue.Kind == types.KindUserStory {
				return d.emphasis(NoRelatedText)
			}
			return strings.Join(lines, d.lineBreak)
		},
		"keys": func(keys []string) string {
			if len(keys) == 0 {
				return "-"
			}
			refs := make([]string, len(keys))
			for i, k := range keys {
				refs[i] = ref(k)
			}
			return strings.Join(refs, ", ")
		},
		"days": func(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) },
		"date": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02")
		},
		"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05 MST") },
	}
}
