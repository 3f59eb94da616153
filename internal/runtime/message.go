package runtime

import (
	"net/url"

	idspkg "github.com/relaykit/deferral/internal/runtime/ids"
)

// Preview truncation bounds. A rendering longer than previewMaxLen is cut to
// its first previewHeadLen and last previewTailLen runes joined by an
// ellipsis so confirmation prompts stay readable.
const (
	previewMaxLen  = 40
	previewHeadLen = 30
	previewTailLen = 5
)

// Message is an immutable addressed payload. The authority component of the
// URI names the target subscriber.
type Message struct {
	// ID is a ULID minted when the message enters the system. It survives a
	// restart carry so a revived message compares equal to the original.
	ID string

	// URI is the raw addressed payload.
	URI string
}

// NewMessage wraps a raw URI in a Message with a fresh ID.
func NewMessage(uri string) Message {
	return Message{ID: idspkg.NewMessageID(), URI: uri}
}

// reviveMessage rebuilds a message from persisted parts, keeping its ID.
func reviveMessage(id, uri string) Message {
	if id == "" {
		return NewMessage(uri)
	}
	return Message{ID: id, URI: uri}
}

// Address extracts and validates the target subscriber identifier from the
// message URI. The second return value is false when the URI has no authority
// or the authority fails the address syntax.
func (m Message) Address() (Address, bool) {
	parsed, err := url.Parse(m.URI)
	if err != nil {
		return "", false
	}
	return ParseAddress(parsed.Host)
}

// Preview renders the message for confirmation prompts, truncated to bound
// prompt size.
func (m Message) Preview() string {
	runes := []rune(m.URI)
	if len(runes) <= previewMaxLen {
		return m.URI
	}
	head := string(runes[:previewHeadLen])
	tail := string(runes[len(runes)-previewTailLen:])
	return head + "…" + tail
}
