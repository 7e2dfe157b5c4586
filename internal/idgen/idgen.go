// Package idgen generates the two distinct identity shapes the gateway needs:
// session connection identities and UUID-v4 request/message identities.
package idgen

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const connectionIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// NewConnectionID returns a 12-character alphanumeric string followed by a
// literal "=", matching the shape the gateway uses for session identities.
// It is not cryptographically significant, only collision-resistant within
// a process lifetime.
func NewConnectionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	out := make([]byte, 13)
	for i, v := range b {
		out[i] = connectionIDAlphabet[int(v)%len(connectionIDAlphabet)]
	}
	out[12] = '='
	return string(out)
}

// NewRequestID returns a fresh UUID-v4 string, used for requestId,
// extendedRequestId, and messageId.
func NewRequestID() string {
	return uuid.New().String()
}
