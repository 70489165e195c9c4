package models

import "time"

// Engagement event types. Values match the job status they induce so the
// event log reads the same as the job table.
const (
	EventReplied   = JobStatusReplied
	EventBounced   = JobStatusBounced
	EventDelivered = JobStatusDelivered
)

// EngagementEvent is one append-only engagement record. Events are written
// once per successful classification and never read back by the monitor.
type EngagementEvent struct {
	CampaignJobID int64 `db:"campaign_job_id"`
	// EmailMessageID identifies the message that triggered the event: the
	// mailbox id for replies and bounces, the sent Message-ID for delivery
	// confirmations.
	EmailMessageID string    `db:"email_message_id"`
	EventType      string    `db:"event_type"`
	EventTimestamp time.Time `db:"event_timestamp"`
}
