package monitor

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/gmail"
)

// processMessage fetches one message, classifies it, correlates it to a
// dispatched campaign job and records the engagement. All failures are
// logged and swallowed so one message never aborts the batch; idempotency
// comes from re-reading current job status in every store lookup.
func (m *Monitor) processMessage(ctx context.Context, mailbox gmail.Mailbox, messageID string) {
	log := m.log.WithField("message_id", messageID)

	msg, err := mailbox.GetMessage(ctx, messageID)
	if errors.Is(err, gmail.ErrMessageNotFound) {
		log.Debug("Message not found, it may have been deleted")
		return
	}
	if err != nil {
		log.WithField("error", err).Error("Failed to fetch message")
		return
	}

	event, matched := Classify(msg)
	switch {
	case matched && event == models.EventReplied:
		m.reconcileReply(ctx, msg)
	case matched && event == models.EventBounced:
		m.reconcileBounce(ctx, msg)
	default:
		m.reconcileDelivery(ctx, msg)
	}
}

func (m *Monitor) reconcileReply(ctx context.Context, msg *models.InboundMessage) {
	log := m.log.WithField("message_id", msg.ID)

	refs := referencedMessageIDs(msg)
	if len(refs) == 0 {
		return
	}
	candidates := make([]string, len(refs))
	for i, id := range refs {
		candidates[i] = bracketed(id)
	}

	job, err := m.store.FindJobByMessageIDs(ctx, candidates, models.JobStatusReplied)
	if err != nil {
		log.WithField("error", err).Error("Reply correlation query failed")
		return
	}
	if job == nil {
		log.Debug("Reply could not be attributed to a campaign job, dropping")
		return
	}

	log.WithField("campaign_job_id", job.ID).Info("REPLY detected for campaign job")
	m.recordEngagement(ctx, job.ID, models.EventReplied, msg.ID, msg)
}

func (m *Monitor) reconcileBounce(ctx context.Context, msg *models.InboundMessage) {
	log := m.log.WithField("message_id", msg.ID)

	originalID := bounceOriginalMessageID(msg)
	if originalID == "" {
		log.Warn("Bounce message found, but could not extract an original message id")
		return
	}

	job, err := m.store.FindJobByMessageIDs(ctx, []string{bracketed(originalID)}, models.JobStatusBounced)
	if err != nil {
		log.WithField("error", err).Error("Bounce correlation query failed")
		return
	}
	if job == nil {
		log.Debug("Bounce could not be attributed to a campaign job, dropping")
		return
	}

	log.WithFields(logrus.Fields{
		"campaign_job_id":     job.ID,
		"original_message_id": originalID,
	}).Warn("BOUNCE detected for campaign job")
	m.recordEngagement(ctx, job.ID, models.EventBounced, msg.ID, msg)
}

// reconcileDelivery is the fallback for messages with no reply or bounce
// signal: re-observing the sent message itself confirms delivery once,
// transitioning sent -> DELIVERED.
func (m *Monitor) reconcileDelivery(ctx context.Context, msg *models.InboundMessage) {
	sentMessageID := msg.Header("Message-Id")
	if sentMessageID == "" {
		return
	}

	job, err := m.store.FindSentJobByMessageID(ctx, sentMessageID)
	if err != nil {
		m.log.WithFields(logrus.Fields{
			"message_id": msg.ID,
			"error":      err,
		}).Error("Delivery correlation query failed")
		return
	}
	if job == nil {
		return
	}

	m.log.WithFields(logrus.Fields{
		"campaign_job_id": job.ID,
		"email_message_id": sentMessageID,
	}).Info("DELIVERED status confirmed for campaign job")
	m.recordEngagement(ctx, job.ID, models.EventDelivered, sentMessageID, msg)
}

// recordEngagement applies the two writes of one logical reconciliation:
// the status transition and the append-only event row. A failed event
// insert after a successful status update is logged, not retried; a later
// re-classification of the same message is the only natural retry path.
func (m *Monitor) recordEngagement(ctx context.Context, jobID int64, eventType, triggerMessageID string, msg *models.InboundMessage) {
	log := m.log.WithFields(logrus.Fields{
		"campaign_job_id": jobID,
		"event_type":      eventType,
	})

	if err := m.store.UpdateJobStatus(ctx, jobID, eventType, msg.ReceivedAt); err != nil {
		log.WithField("error", err).Error("Failed to update campaign job status")
		return
	}

	event := models.EngagementEvent{
		CampaignJobID:  jobID,
		EmailMessageID: triggerMessageID,
		EventType:      eventType,
		EventTimestamp: msg.ReceivedAt,
	}
	if err := m.store.InsertEngagementEvent(ctx, event); err != nil {
		log.WithField("error", err).Error("Failed to insert engagement event after status update")
	}
}
