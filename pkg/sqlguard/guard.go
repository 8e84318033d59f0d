// Package sqlguard rejects SQL fragments containing mutating commands.
//
// The guard is a textual scan, not a parser. It runs on every externally
// authored fragment before the fragment is nested inside a larger statement.
package sqlguard

import (
	"errors"
	"regexp"
	"strings"
)

// ErrIllegalCommand is returned for any rejected fragment. The message never
// includes the fragment text.
var ErrIllegalCommand = errors.New("sql rejected: fragment contains a disallowed command")

// blocklist holds the commands a read-only fragment may not contain.
var blocklist = [...]string{
	"UPDATE",
	"TRUNCATE",
	"EXEC",
	"DROP",
	"INSERT",
	"CREATE",
	"DELETE",
	"MERGE",
	"SET",
}

var illegal = regexp.MustCompile(`(?i)\b(?:` + strings.Join(blocklist[:], "|") + `)\b`)

// Blocklist returns the disallowed commands.
func Blocklist() []string {
	out := make([]string, len(blocklist))
	copy(out, blocklist[:])
	return out
}

// IsIllegal reports whether sql contains a disallowed command as a whole word,
// ignoring case.
func IsIllegal(sql string) bool {
	return illegal.MatchString(sql)
}

// Check returns ErrIllegalCommand if any fragment is illegal.
func Check(fragments ...string) error {
	for _, f := range fragments {
		if IsIllegal(f) {
			return ErrIllegalCommand
		}
	}
	return nil
}
