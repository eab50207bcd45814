package schema

import (
	"strings"
	"unicode"
)

// nameTrimmer strips everything but letters, digits and the punctuation that
// belongs inside a name from both ends of a name part.
func nameTrimmer(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-' && r != '\'' && r != '.'
}

// nameParts splits a display name into cleaned parts, dropping trailing periods
// so initials like "J." reduce to "J".
func nameParts(name string) []string {
	fields := strings.Fields(strings.Trim(name, "()\"'`"))
	parts := fields[:0]
	for _, f := range fields {
		if p := strings.TrimSuffix(strings.TrimFunc(f, nameTrimmer), "."); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// AbbreviateName formats "Grace Hopper" to "Grace H".
// Single-part names and bot accounts like dependabot[bot] come back unchanged.
func AbbreviateName(name string) string {
	trimmed := strings.TrimSpace(name)
	if strings.Contains(trimmed, "[bot]") {
		return strings.Join(strings.Fields(trimmed), " ")
	}

	parts := nameParts(trimmed)
	switch len(parts) {
	case 0:
		return strings.Trim(trimmed, "()\"'`")
	case 1:
		return parts[0]
	}
	last := []rune(parts[len(parts)-1])
	return parts[0] + " " + string(last[0])
}

// AuthorLabel is the short author column of history listings: the abbreviated
// name, else the username, else the local part of the email.
func AuthorLabel(id Identity) string {
	if label := AbbreviateName(id.Name); label != "" {
		return label
	}
	if u := strings.TrimSpace(id.Username); u != "" {
		return u
	}
	if local, _, ok := strings.Cut(strings.TrimSpace(id.Email), "@"); ok && local != "" {
		return local
	}
	return "-"
}
