package util

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var (
	reSpaces      = regexp.MustCompile(`\s+`)
	reControlRuns = regexp.MustCompile(`[\t\n\r]+`)
)

// Fold lower-cases with Estonian rules after NFC composition, so a scraped
// "FLÖÖT" written with a combining diaeresis still matches "flööt".
func Fold(input string) string {
	return cases.Lower(language.Estonian).String(norm.NFC.String(input))
}

// ContainsAny reports whether the folded input contains any folded keyword.
func ContainsAny(input string, keywords []string) bool {
	folded := Fold(input)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(folded, Fold(kw)) {
			return true
		}
	}
	return false
}

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// CleanHTML drops markup, decodes entities and collapses whitespace into
// single spaces. Input that fails to parse is only whitespace-collapsed.
func CleanHTML(input string) string {
	if input == "" {
		return input
	}
	cleaned := input
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(input))
	if err == nil {
		cleaned = doc.Text()
	}
	cleaned = strings.ReplaceAll(cleaned, "\u00a0", " ")
	cleaned = reControlRuns.ReplaceAllString(cleaned, " ")
	return NormalizeSpaces(cleaned)
}

func Truncate(input string, max int) string {
	r := []rune(input)
	if len(r) <= max {
		return input
	}
	return string(r[:max]) + "..."
}

func StringPtr(v string) *string {
	return &v
}
