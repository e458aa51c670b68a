// Package identity parses the passport number a user types into the
// authorization form.
//
// Two text forms are accepted: a bare number ("42") and a prefixed number
// ("3.42") where only the part after the first dot is significant.
package identity

import (
	"regexp"
	"strconv"
	"strings"
)

// Identity is the numeric passport identifier sent to the scan service.
type Identity uint32

var inputPattern = regexp.MustCompile(`^(?:\d\.)?\d{1,4}$`)

// Resolve turns raw input into an Identity. Empty input yields (0, false):
// the zero value is a placeholder and must never be sent.
//
// Resolve is lenient; whether the input may be submitted is decided by Valid.
func Resolve(raw string) (Identity, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if _, suffix, found := strings.Cut(s, "."); found {
		s = suffix
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return Identity(n), true
}

// Valid reports whether raw has the shape of a passport number: up to four
// digits, optionally preceded by a single digit and a dot.
func Valid(raw string) bool {
	return inputPattern.MatchString(raw)
}

// String returns the base-10 wire form.
func (i Identity) String() string {
	return strconv.FormatUint(uint64(i), 10)
}
