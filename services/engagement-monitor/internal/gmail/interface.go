package gmail

import (
	"context"
	"errors"

	"github.com/truesoul/outreach/internal/models"
)

// Profile is the mailbox profile, carrying the current history cursor.
type Profile struct {
	EmailAddress string
	HistoryID    string
}

// HistoryPage is one page of the mailbox change log, filtered to
// message-added events.
type HistoryPage struct {
	// HistoryID is the cursor reported by this page. The final page's
	// value becomes the sender's new watermark.
	HistoryID     string
	MessageIDs    []string
	NextPageToken string
}

// MessagePage is one page of a date-range message listing (backfill mode).
type MessagePage struct {
	MessageIDs    []string
	NextPageToken string
}

// ErrHistoryExpired signals that a stored history cursor is no longer
// resolvable by the mailbox. The scanner treats this as a recovery path,
// not a fatal error.
var ErrHistoryExpired = errors.New("gmail: start history id no longer available")

// ErrMessageNotFound signals that a message id did not resolve, typically
// because the message was deleted between discovery and fetch.
var ErrMessageNotFound = errors.New("gmail: message not found")

// Mailbox is the surface of the mail provider the monitor consumes. One
// authenticated session per monitored mailbox.
type Mailbox interface {
	// Profile retrieves the mailbox profile and its current history cursor.
	Profile(ctx context.Context) (Profile, error)

	// ListHistory retrieves one page of message-added events starting at
	// startHistoryID. Returns ErrHistoryExpired when the cursor has been
	// evicted from the mailbox's history.
	ListHistory(ctx context.Context, startHistoryID, pageToken string) (HistoryPage, error)

	// GetMessage fetches one message in full format.
	GetMessage(ctx context.Context, id string) (*models.InboundMessage, error)

	// ListMessages retrieves one page of message ids matching a search
	// query (e.g. "after:2025/01/01").
	ListMessages(ctx context.Context, query, pageToken string) (MessagePage, error)
}
