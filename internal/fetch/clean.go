package fetch

import (
	"regexp"
	"strings"
)

var (
	titleRe = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	tagRe   = regexp.MustCompile(`<[^>]+>`)
	spaceRe = regexp.MustCompile(`[ \t]+`)
	nlRe    = regexp.MustCompile(`\n{3,}`)

	// Chrome removed wholesale: boilerplate that drowns out article text.
	blockRes = func() []*regexp.Regexp {
		tags := []string{"script", "style", "nav", "footer", "header", "aside", "iframe", "noscript"}
		res := make([]*regexp.Regexp, len(tags))
		for i, tag := range tags {
			res[i] = regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		}
		return res
	}()
)

// extractTitle pulls the <title> from HTML.
func extractTitle(body []byte) string {
	m := titleRe.FindSubmatch(body)
	if len(m) > 1 {
		return strings.TrimSpace(string(m[1]))
	}
	return ""
}

// cleanHTML removes scripts/styles/chrome, strips tags, decodes entities,
// and collapses whitespace. The result is plaintext suitable for LLM
// extraction.
func cleanHTML(html string) string {
	for _, re := range blockRes {
		html = re.ReplaceAllString(html, "")
	}

	html = tagRe.ReplaceAllString(html, " ")

	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	html = r.Replace(html)

	html = spaceRe.ReplaceAllString(html, " ")
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}

// cleanPlain collapses whitespace in non-HTML text.
func cleanPlain(text string) string {
	text = spaceRe.ReplaceAllString(text, " ")
	text = nlRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
