package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign job statuses. pending and failed_sending are dispatchable;
// REPLIED, BOUNCED and DELIVERED are engagement states written by the
// monitor. Transitions are monotone toward a terminal engagement state:
// the monitor never regresses a terminal status.
const (
	JobStatusPending       = "pending"
	JobStatusSent          = "sent"
	JobStatusReplied       = "REPLIED"
	JobStatusBounced       = "BOUNCED"
	JobStatusDelivered     = "DELIVERED"
	JobStatusFailedSending = "failed_sending"
)

// CampaignJob is one previously dispatched piece of outbound correspondence.
// EmailMessageID holds the angle-bracketed Message-ID header value assigned
// by the send API, and is the correlation key for engagement detection.
type CampaignJob struct {
	ID                 int64      `db:"id"`
	CampaignID         uuid.UUID  `db:"campaign_id"`
	LeadID             uuid.UUID  `db:"lead_id"`
	ContactEmail       string     `db:"contact_email"`
	EmailMessageID     string     `db:"email_message_id"`
	Status             string     `db:"status"`
	StatusUpdatedAt    *time.Time `db:"status_updated_at"`
	NextProcessingTime *time.Time `db:"next_processing_time"`
}
