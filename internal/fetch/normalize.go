package fetch

import (
	"regexp"
	"strings"

	"github.com/jaytaylor/html2text"
)

var (
	blankRunRe   = regexp.MustCompile(`\n(?:[ \t]*\n)+`)
	trailingWSRe = regexp.MustCompile(`[ \t]+\n`)
	// документ, а не текст с тегами внутри: html2text раскрывает &lt;div&gt; в <div>
	documentRe = regexp.MustCompile(`(?is)^\s*(?:<\?xml[^>]*>\s*)?(?:<!--.*?-->\s*)*<(?:!doctype|html|head|body)\b`)
)

// Normalize converts an HTML document into plain readable text: hyperlink
// targets and images are dropped, only text is kept, and runs of blank lines
// collapse into a single line break. Anything that is not a whole document is
// only whitespace-collapsed, so Normalize(Normalize(x)) == Normalize(x).
func Normalize(markup string) (string, error) {
	if LooksLikeHTML(markup) {
		return NormalizeHTML(markup)
	}
	return CollapseBlankLines(markup), nil
}

// NormalizeHTML always runs the converter. Used for bodies served as HTML
// that are fragments rather than documents.
func NormalizeHTML(markup string) (string, error) {
	text, err := html2text.FromString(markup, html2text.Options{
		OmitLinks: true,
		TextOnly:  true,
	})
	if err != nil {
		return "", err
	}
	return CollapseBlankLines(text), nil
}

// CollapseBlankLines заменяет 2+ переводов строки (включая строки из пробелов) одним \n.
func CollapseBlankLines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = trailingWSRe.ReplaceAllString(text, "\n")
	text = blankRunRe.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

// LooksLikeHTML reports whether s starts as an HTML document (doctype, html,
// head or body tag after optional xml prolog and comments).
func LooksLikeHTML(s string) bool {
	return documentRe.MatchString(s)
}
