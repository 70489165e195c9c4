package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/services/engagement-monitor/internal/gmail"
)

// scan returns the set of message ids added to the sender's mailbox since
// its stored watermark, and advances the watermark to the last page's
// cursor. On first encounter (nil watermark) it only establishes a baseline
// cursor and emits nothing. The watermark is persisted strictly after all
// pages are consumed, so a crash mid-scan re-scans from the old cursor.
func (m *Monitor) scan(ctx context.Context, mailbox gmail.Mailbox, sender models.Sender) ([]string, error) {
	log := m.log.WithField("sender", sender.Email)

	if sender.LastHistoryID == nil {
		profile, err := mailbox.Profile(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch mailbox profile: %w", err)
		}
		log.WithField("history_id", profile.HistoryID).
			Warn("No stored history id, establishing baseline")
		if err := m.store.SetSenderWatermark(ctx, sender.ID, &profile.HistoryID); err != nil {
			return nil, fmt.Errorf("failed to set initial watermark: %w", err)
		}
		return nil, nil
	}

	seen := make(map[string]bool)
	lastHistoryID := *sender.LastHistoryID
	pageToken := ""

	for {
		page, err := mailbox.ListHistory(ctx, *sender.LastHistoryID, pageToken)
		if errors.Is(err, gmail.ErrHistoryExpired) {
			// The cursor aged out of the mailbox's history. Clear it so the
			// next cycle re-baselines instead of failing forever.
			log.WithField("history_id", *sender.LastHistoryID).
				Warn("Stored history id no longer resolvable, resetting watermark")
			if err := m.store.SetSenderWatermark(ctx, sender.ID, nil); err != nil {
				return nil, fmt.Errorf("failed to reset watermark: %w", err)
			}
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list mailbox history: %w", err)
		}

		for _, id := range page.MessageIDs {
			seen[id] = true
		}
		if page.HistoryID != "" {
			lastHistoryID = page.HistoryID
		}

		pageToken = page.NextPageToken
		if pageToken == "" {
			break
		}
	}

	if lastHistoryID != *sender.LastHistoryID {
		if err := m.store.SetSenderWatermark(ctx, sender.ID, &lastHistoryID); err != nil {
			return nil, fmt.Errorf("failed to advance watermark: %w", err)
		}
		log.WithField("history_id", lastHistoryID).Info("Advanced history watermark")
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	if len(ids) > 0 {
		log.WithFields(logrus.Fields{"count": len(ids)}).Debug("New message candidates discovered")
	}
	return ids, nil
}
