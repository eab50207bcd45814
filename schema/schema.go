// Package schema has the records, verdicts, errors and enums shared by all parts of benchtrail.
package schema

import (
	"fmt"
	"strings"
)

// ShortHashLength is the number of hash characters shown in tables.
const ShortHashLength = 8

// ShortHash abbreviates a commit hash for display.
func ShortHash(hash string) string {
	if len(hash) <= ShortHashLength {
		return hash
	}
	return hash[:ShortHashLength]
}

// FormatIdentity renders an identity as "Name <email>", falling back to the
// username when no name was reported.
func FormatIdentity(id Identity) string {
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = strings.TrimSpace(id.Username)
	}
	switch {
	case name == "" && id.Email == "":
		return "unknown"
	case id.Email == "":
		return name
	case name == "":
		return id.Email
	}
	return fmt.Sprintf("%s <%s>", name, id.Email)
}

// FormatDelta renders a relative delta as a signed percentage.
func FormatDelta(delta float64, precision int) string {
	return fmt.Sprintf("%+.*f%%", precision, delta*100)
}
