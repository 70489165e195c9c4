package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/gmail"
)

// Store is the slice of the job store the monitor reads and writes.
type Store interface {
	ActiveSenders(ctx context.Context) ([]models.Sender, error)
	SetSenderWatermark(ctx context.Context, senderID uuid.UUID, historyID *string) error
	FindJobByMessageIDs(ctx context.Context, messageIDs []string, excludeStatus string) (*models.CampaignJob, error)
	FindSentJobByMessageID(ctx context.Context, messageID string) (*models.CampaignJob, error)
	UpdateJobStatus(ctx context.Context, jobID int64, status string, at time.Time) error
	InsertEngagementEvent(ctx context.Context, event models.EngagementEvent) error
}

// MailboxFactory opens an authenticated mailbox session for one sender
// address.
type MailboxFactory func(ctx context.Context, senderEmail string) (gmail.Mailbox, error)

const defaultMessageDelay = 500 * time.Millisecond

// Monitor runs the scan-and-classify cycle over all active senders.
// Processing is sequential; every (sender, message) classification is
// independent and idempotent, so a crash mid-cycle only re-scans from the
// previous watermark.
type Monitor struct {
	store      Store
	mailboxFor MailboxFactory
	log        *logrus.Logger

	// MessageDelay is the pause between message-level API calls, to stay
	// under the mailbox provider's rate limits.
	MessageDelay time.Duration
}

func New(store Store, mailboxFor MailboxFactory, log *logrus.Logger) *Monitor {
	return &Monitor{
		store:        store,
		mailboxFor:   mailboxFor,
		log:          log,
		MessageDelay: defaultMessageDelay,
	}
}

// RunCycle executes one monitoring cycle for all active senders. Per-sender
// and per-message failures are logged and contained; they never abort the
// cycle.
func (m *Monitor) RunCycle(ctx context.Context) error {
	m.log.Info("Starting new message monitoring cycle")

	senders, err := m.store.ActiveSenders(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch active senders: %w", err)
	}
	if len(senders) == 0 {
		m.log.Warn("No active senders found to monitor")
		return nil
	}

	for _, sender := range senders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.processSender(ctx, sender); err != nil {
			m.log.WithFields(logrus.Fields{
				"sender": sender.Email,
				"error":  err,
			}).Error("Sender processing failed, continuing with next sender")
		}
	}

	m.log.Info("Monitoring cycle finished")
	return nil
}

func (m *Monitor) processSender(ctx context.Context, sender models.Sender) error {
	m.log.WithField("sender", sender.Email).Info("Checking for new mail")

	mailbox, err := m.mailboxFor(ctx, sender.Email)
	if err != nil {
		return fmt.Errorf("failed to open mailbox session: %w", err)
	}

	messageIDs, err := m.scan(ctx, mailbox, sender)
	if err != nil {
		return err
	}
	if len(messageIDs) == 0 {
		m.log.WithField("sender", sender.Email).Info("No new messages")
		return nil
	}

	m.log.WithFields(logrus.Fields{
		"sender": sender.Email,
		"count":  len(messageIDs),
	}).Info("Processing new messages")

	for _, id := range messageIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.processMessage(ctx, mailbox, id)
		m.pause(ctx)
	}
	return nil
}

// Backfill classifies every message in a trailing day-window for all active
// senders, via date-range search instead of the history cursor. The
// classification and correlation path is identical to the live cycle.
func (m *Monitor) Backfill(ctx context.Context, daysBack int) error {
	senders, err := m.store.ActiveSenders(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch active senders: %w", err)
	}

	for _, sender := range senders {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.backfillSender(ctx, sender, daysBack); err != nil {
			m.log.WithFields(logrus.Fields{
				"sender": sender.Email,
				"error":  err,
			}).Error("Backfill failed for sender, continuing with next sender")
		}
	}
	return nil
}

func (m *Monitor) backfillSender(ctx context.Context, sender models.Sender, daysBack int) error {
	log := m.log.WithFields(logrus.Fields{"sender": sender.Email, "days_back": daysBack})
	log.Info("Starting historical message processing")

	mailbox, err := m.mailboxFor(ctx, sender.Email)
	if err != nil {
		return fmt.Errorf("failed to open mailbox session: %w", err)
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)
	query := "after:" + cutoff.Format("2006/01/02")

	var messageIDs []string
	pageToken := ""
	for {
		page, err := mailbox.ListMessages(ctx, query, pageToken)
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}
		messageIDs = append(messageIDs, page.MessageIDs...)
		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if len(messageIDs) == 0 {
		log.Info("No historical messages found")
		return nil
	}
	log.WithField("count", len(messageIDs)).Info("Processing historical messages")

	for i, id := range messageIDs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.log.WithFields(logrus.Fields{
			"message_id": id,
			"progress":   fmt.Sprintf("%d/%d", i+1, len(messageIDs)),
		}).Debug("Processing historical message")
		m.processMessage(ctx, mailbox, id)
		m.pause(ctx)
	}
	return nil
}

func (m *Monitor) pause(ctx context.Context) {
	if m.MessageDelay <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(m.MessageDelay):
	}
}
