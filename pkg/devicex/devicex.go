// Package devicex derives a coarse (system, browser) pair from a raw
// User-Agent string. The pair is only ever compared for equality, to detect
// a stolen session token being replayed from a different OS or browser. It
// makes no uniqueness or collision guarantees and is useless as an
// identifier, which is the point.
package devicex

import (
	"regexp"
	"strings"
)

// MaxFieldLen bounds each derived field so it fits a varchar(63) column.
const MaxFieldLen = 63

// Device is the normalized fingerprint. Fields are compared with exact,
// case-sensitive string equality after truncation; no fuzzy matching.
type Device struct {
	System  string `json:"system"`
	Browser string `json:"browser"`
}

// IsZero reports whether nothing could be derived (empty User-Agent).
func (d Device) IsZero() bool { return d.System == "" && d.Browser == "" }

// versionRE strips build identifiers (Build/TP1A.220624.014), slash versions
// (/537.36) and dotted or underscored minor versions (.0.0, _15_7) from a
// segment.
var versionRE = regexp.MustCompile(`(?i)( ?Build)?(/[\w-]+|[._])[\w.-]*`)

// Derive parses a User-Agent into a Device. An empty input yields the zero
// Device. This is a best-effort heuristic, not a parser for the full
// User-Agent grammar.
//
// Example:
//
//	Derive("Mozilla/5.0 (Linux; Android 13; SM-S901B Build/TP1A.220624.014) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Mobile Safari/537.36")
//	// => Device{System: "Linux; Android 13; SM-S901B", Browser: "Chrome Mobile Safari"}
func Derive(userAgent string) Device {
	if userAgent == "" {
		return Device{}
	}

	// Split in two at the first ")": system information and extensions.
	head, tail, hasParen := strings.Cut(userAgent, ")")

	// The system segment is the text inside the first parenthesized group.
	// Without parentheses the whole prefix is the system information.
	system := head
	if _, inner, ok := strings.Cut(head, "("); ok {
		system = inner
	}
	system = versionRE.ReplaceAllString(system, "")

	// The browser segment is whatever follows the second parenthesized
	// group, or the remainder after the first when there is no second.
	browserSegment := ""
	if hasParen {
		browserSegment = tail
		if _, after, ok := strings.Cut(tail, ")"); ok {
			browserSegment = after
		}
	}

	// Keep only product names: drop each token's /version suffix.
	var products []string
	for _, tok := range strings.Fields(browserSegment) {
		if name, _, _ := strings.Cut(tok, "/"); name != "" {
			products = append(products, name)
		}
	}

	return Device{
		System:  truncate(system, MaxFieldLen),
		Browser: truncate(strings.Join(products, " "), MaxFieldLen),
	}
}

// truncate limits s to max runes, not bytes, so multibyte input cannot be
// cut mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
