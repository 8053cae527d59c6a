package leads

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Field limits applied to inbound lead data, in runes.
const (
	NameLimit    = 120
	ContactLimit = 200
	PackageLimit = 120
	MessageLimit = 2500
	PageLimit    = 300
	UALimit      = 200
	UTMLimit     = 1200
	SourceLimit  = 60
)

// Sanitize strips NUL bytes, trims whitespace and cuts the value to the
// given rune limit.
func Sanitize(s string, limit int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\x00", ""))
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) > limit {
		return string(runes[:limit])
	}
	return s
}

// NewRequestID returns the short public id attached to every lead.
func NewRequestID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])[:12]
}
