package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/quizchain/internal/quiz"
)

// Links holds what a page points at.
type Links struct {
	SubmitURL  string
	SubmitRule string
	FileLink   string
	FileRule   string
}

// Extract derives the submit endpoint and file link from a page. HTML is
// searched before plain text; relative references are resolved against
// baseURL.
func Extract(html, text, baseURL string) Links {
	var links Links
	for _, source := range []string{html, text} {
		if links.SubmitURL == "" {
			if m, rule, ok := First(SubmitRules, source); ok {
				links.SubmitURL, links.SubmitRule = Resolve(baseURL, m), rule
			}
		}
		if links.FileLink == "" {
			if m, rule, ok := First(FileRules, source); ok {
				links.FileLink, links.FileRule = Resolve(baseURL, m), rule
			}
		}
	}
	return links
}

// InlineAnswer applies the inline answer rules to page text.
func InlineAnswer(text string) (quiz.Answer, string, bool) {
	if text == "" {
		return quiz.Answer{}, "", false
	}
	for _, rule := range InlineAnswerRules {
		if a, ok := rule.Resolve(text); ok {
			return a, rule.Name, true
		}
	}
	return quiz.Answer{}, "", false
}

// VisibleText approximates a browser's innerText for the document body.
// Script and style contents are dropped and whitespace is collapsed per line.
func VisibleText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script, style, noscript, template").Remove()
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	lines := strings.Split(body.Text(), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
