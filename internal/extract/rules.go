// Package extract finds submit endpoints, file links and inline answer hints
// in rendered quiz pages. Every lookup is an ordered list of rules; the first
// rule that matches wins, so structurally reliable signals (explicit hrefs)
// always beat looser textual matches.
package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/quizchain/internal/quiz"
)

// Rule is a pure function from text to an optional match.
type Rule struct {
	Name  string
	Match func(text string) (string, bool)
}

// First runs rules in order and returns the first match along with the name
// of the rule that produced it.
func First(rules []Rule, text string) (string, string, bool) {
	if text == "" {
		return "", "", false
	}
	for _, rule := range rules {
		if m, ok := rule.Match(text); ok {
			return m, rule.Name, true
		}
	}
	return "", "", false
}

func submatchRule(name string, re *regexp.Regexp) Rule {
	return Rule{
		Name: name,
		Match: func(text string) (string, bool) {
			m := re.FindStringSubmatch(text)
			if m == nil {
				return "", false
			}
			for _, group := range m[1:] {
				if group != "" {
					return group, true
				}
			}
			return m[0], true
		},
	}
}

var (
	absoluteSubmitRe = regexp.MustCompile(`(?i)https?://[^\s"'<>]*?/submit[^\s"'<>]*`)
	hrefSubmitRe     = regexp.MustCompile(`(?i)(?:href|action)=["']((?:\.{0,2}/)?(?:[^"':]*?/)?submit[^"']*)["']`)
	quotedSubmitRe   = regexp.MustCompile(`(?i)"(/(?:[^"]*?/)?submit[^"]*)"|'(/(?:[^']*?/)?submit[^']*)'`)

	fileExt           = `\.(?:pdf|csv|xlsx|xls)`
	absoluteFileHref  = regexp.MustCompile(`(?i)href=["'](https?://[^"']+` + fileExt + `)["']`)
	relativeFileHref  = regexp.MustCompile(`(?i)href=["']((?:\.{0,2}/)?[^"':]+` + fileExt + `)["']`)
	bareFileURL       = regexp.MustCompile(`(?i)(https?://[^\s"'<>]+?` + fileExt + `)`)
	lazyFileAttribute = regexp.MustCompile(`(?i)data-(?:href|src)=["']((?:https?://|/)[^\s"'<>]+?` + fileExt + `)["']`)

	inlineNumberRe = regexp.MustCompile(`(?i)answer\s*[:=]\s*["']?([0-9.\-]+)["']?`)
	inlineQuotedRe = regexp.MustCompile(`(?i)answer\s*[:=]\s*["'](.{1,200}?)["']`)
)

// SubmitRules is the precedence order for submit endpoints.
var SubmitRules = []Rule{
	submatchRule("absolute-submit", absoluteSubmitRe),
	submatchRule("href-submit", hrefSubmitRe),
	submatchRule("quoted-submit", quotedSubmitRe),
}

// FileRules is the precedence order for downloadable file links.
var FileRules = []Rule{
	submatchRule("absolute-href", absoluteFileHref),
	submatchRule("relative-href", relativeFileHref),
	submatchRule("bare-url", bareFileURL),
	submatchRule("lazy-attribute", lazyFileAttribute),
}

// AnswerRule resolves an inline answer from page text.
type AnswerRule struct {
	Name    string
	Resolve func(text string) (quiz.Answer, bool)
}

// InlineAnswerRules is the precedence order for answers found in page text.
var InlineAnswerRules = []AnswerRule{
	{Name: "inline-number", Resolve: inlineNumber},
	{Name: "inline-quoted", Resolve: inlineQuoted},
}

func inlineNumber(text string) (quiz.Answer, bool) {
	m := inlineNumberRe.FindStringSubmatch(text)
	if m == nil {
		return quiz.Answer{}, false
	}
	if v, err := strconv.ParseFloat(m[1], 64); err == nil {
		return quiz.NumberAnswer(v), true
	}
	return quiz.StringAnswer(m[1]), true
}

func inlineQuoted(text string) (quiz.Answer, bool) {
	m := inlineQuotedRe.FindStringSubmatch(text)
	if m == nil {
		return quiz.Answer{}, false
	}
	return quiz.StringAnswer(strings.TrimSpace(m[1])), true
}

// Resolve turns a possibly relative reference into an absolute URL. Absolute
// references and unparseable bases are returned unchanged.
func Resolve(baseURL, ref string) string {
	if baseURL == "" {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil || refURL.IsAbs() {
		return ref
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return ref
	}
	return base.ResolveReference(refURL).String()
}
