package runtime

import (
	"regexp"
	"strings"
)

// Address identifies a subscriber: two dot-separated segments of alphanumeric
// or hyphen characters, compared case-insensitively. Parsing normalises to
// lower case so map keys and log fields agree.
type Address string

var addressPattern = regexp.MustCompile(`^[a-z0-9-]+\.[a-z0-9-]+$`)

// ParseAddress validates and normalises a raw subscriber identifier. The
// second return value is false when the identifier does not satisfy the
// address syntax, which signals the message is not this system's concern.
func ParseAddress(raw string) (Address, bool) {
	lowered := strings.ToLower(raw)
	if !addressPattern.MatchString(lowered) {
		return "", false
	}
	return Address(lowered), true
}

func (a Address) String() string { return string(a) }
