// Package search holds small helpers shared by the persistence adapters'
// keyword-search query builders.
package search

import (
	"strings"
	"time"
)

// DefaultSearchTimeout bounds a single keyword-search query so a
// pathological pattern or an unindexed table cannot hang a request.
const DefaultSearchTimeout = 5 * time.Second

// EscapeILIKE escapes ILIKE wildcard metacharacters in a user-supplied
// keyword so it is matched literally except for the %-wrapping the
// caller applies around it.
func EscapeILIKE(keyword string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`%`, `\%`,
		`_`, `\_`,
	)
	return "%" + replacer.Replace(keyword) + "%"
}
