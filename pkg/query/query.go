// Package query extracts `field:value` qualifiers from free-text search
// input. It only reads text; applying tokens to filter state is up to the
// caller.
package query

import (
	"regexp"
	"strings"

	"github.com/rubiojr/shelf/pkg/catalog"
)

// Token is a single `field:value` qualifier.
type Token struct {
	// Field is the resolved registry entry; FieldUnknown for names the
	// registry does not know.
	Field catalog.Field
	// Name is the case-folded field name as typed.
	Name  string
	Value string
}

// Result is the outcome of Parse. Text is the input exactly as given:
// qualifiers are reported, never cut out of the search text.
type Result struct {
	Tokens []Token
	Text   string
}

// A qualifier value is either a double-quoted string (which may contain
// spaces and \" escapes) or a run of non-space characters.
const qualifier = `(\w+):(?:"((?:[^"\\]|\\.)*)"|(\S+))`

var (
	tokenPattern = regexp.MustCompile(qualifier)
	wholePattern = regexp.MustCompile(`^` + qualifier + `$`)
)

// Parse scans text for inline qualifiers. Only fields the registry marks
// as inline are returned; any other `name:value` is dropped silently.
func Parse(text string) Result {
	res := Result{Text: text}
	for _, m := range tokenPattern.FindAllStringSubmatch(text, -1) {
		tok := tokenFromMatch(m)
		if !tok.Field.Inline() {
			continue
		}
		res.Tokens = append(res.Tokens, tok)
	}
	return res
}

// ParseWhole reports whether the whole (trimmed) text is exactly one
// qualifier. Unlike Parse it accepts any field name; the returned token
// has FieldUnknown when the name is not registered.
func ParseWhole(text string) (Token, bool) {
	m := wholePattern.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return Token{}, false
	}
	return tokenFromMatch(m), true
}

// Qualifier renders a field and value in the quoted form Parse reads back.
func Qualifier(field, value string) string {
	return field + `:"` + strings.ReplaceAll(value, `"`, `\"`) + `"`
}

func tokenFromMatch(m []string) Token {
	name := catalog.FoldName(m[1])
	// \S+ never matches empty, so an empty third group means the quoted
	// form matched.
	value := strings.Trim(m[3], `"`)
	if m[3] == "" {
		value = strings.ReplaceAll(m[2], `\"`, `"`)
	}
	return Token{
		Field: catalog.LookupField(name),
		Name:  name,
		Value: value,
	}
}
