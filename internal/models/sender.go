package models

import (
	"github.com/google/uuid"
)

// Sender is a monitored mailbox identity. Rows are created and deactivated
// by the admin UI; the monitor only reads them and advances the watermark.
type Sender struct {
	ID    uuid.UUID `db:"id"`
	Name  string    `db:"sender_name"`
	Email string    `db:"sender_email"`
	// LastHistoryID is an opaque cursor over the mailbox's change history.
	// nil means the mailbox has never been scanned.
	LastHistoryID *string `db:"last_checked_history_id"`
	IsActive      bool    `db:"is_active"`
}
