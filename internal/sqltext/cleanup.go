package sqltext

import (
	"regexp"
	"strings"
)

var (
	codeFenceRe     = regexp.MustCompile("```(?i:sql)?")
	noteRe          = regexp.MustCompile(`(?i)Note:.*`)
	lineCommentRe   = regexp.MustCompile(`--.*`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	trailingLimitRe = regexp.MustCompile(`(?i)\s*\bLIMIT\s+\d+(?:\s*,\s*\d+|\s+OFFSET\s+\d+)?\s*;?\s*$`)
)

// CleanGenerated normalizes SQL produced by a text-generation service: code
// fences, "Note:" trailers, and line comments are removed, whitespace is
// collapsed to single spaces, and a trailing LIMIT clause is stripped so the
// full result set is returned.
//
// Line comments are removed textually, so "--" inside a string literal is
// also cut. Generated text is single-line by convention.
func CleanGenerated(raw string) string {
	s := codeFenceRe.ReplaceAllString(raw, "")
	s = noteRe.ReplaceAllString(s, "")
	s = lineCommentRe.ReplaceAllString(s, "")
	s = whitespaceRe.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	s = trailingLimitRe.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
