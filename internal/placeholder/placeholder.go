// Package placeholder finds and fills the [Name] tokens left in contract
// drafts.
package placeholder

import (
	"regexp"
	"sort"
	"strings"
)

var tokenPattern = regexp.MustCompile(`\[(.*?)\]`)

// Extract returns the distinct placeholder names in text in order of first
// appearance. Tokens never span lines and blank names are skipped.
func Extract(text string) []string {
	names := make([]string, 0)
	if text == "" {
		return names
	}

	seen := make(map[string]struct{})
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if strings.TrimSpace(name) == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Substitute replaces every [name] with its value. Empty values are skipped so
// the token stays in place.
//
// Filled names only disappear from Extract's result when text is not
// Unbalanced: in "[[B]]" replacing [B] with "A" leaves the new token "[A]".
func Substitute(text string, values map[string]string) string {
	if len(values) == 0 {
		return text
	}

	names := make([]string, 0, len(values))
	for name, value := range values {
		if value == "" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		text = strings.ReplaceAll(text, "["+name+"]", values[name])
	}
	return text
}

// Unbalanced reports whether text has a '[' or ']' that is not part of a
// complete token, including a '[' opened inside another token.
func Unbalanced(text string) bool {
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		if strings.Contains(m[1], "[") {
			return true
		}
	}
	rest := tokenPattern.ReplaceAllString(text, "")
	return strings.ContainsAny(rest, "[]")
}
