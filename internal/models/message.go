package models

import (
	"strings"
	"time"
)

// InboundMessage is a transient view of one fetched mailbox message. It
// exists only for the duration of classification and is never persisted.
type InboundMessage struct {
	ID       string
	ThreadID string
	// Headers maps lower-cased header names to values.
	Headers map[string]string
	// Body is the plain-text body, best-effort extracted from the first
	// text/plain part. Empty when no text part was present.
	Body       string
	ReceivedAt time.Time
}

// Header returns the value of the named header, case-insensitively.
func (m *InboundMessage) Header(name string) string {
	return m.Headers[strings.ToLower(name)]
}

// Subject returns the Subject header.
func (m *InboundMessage) Subject() string {
	return m.Header("Subject")
}

// From returns the From header.
func (m *InboundMessage) From() string {
	return m.Header("From")
}
