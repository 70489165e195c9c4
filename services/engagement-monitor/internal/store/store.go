package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/internal/retry"
)

const (
	queryAttempts  = 3
	queryBaseDelay = 200 * time.Millisecond
)

// Store wraps the job store tables. All queries go through the retry
// wrapper; the database remains the single source of truth for job status,
// so nothing is cached across cycles.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// ActiveSenders returns all senders flagged active.
func (s *Store) ActiveSenders(ctx context.Context) ([]models.Sender, error) {
	query := `SELECT id, sender_name, sender_email, last_checked_history_id, is_active
		FROM senders WHERE is_active = TRUE`

	var senders []models.Sender
	err := retry.Do(ctx, queryAttempts, queryBaseDelay, func() error {
		rows, err := s.pool.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		senders = senders[:0]
		for rows.Next() {
			var sender models.Sender
			if err := rows.Scan(
				&sender.ID,
				&sender.Name,
				&sender.Email,
				&sender.LastHistoryID,
				&sender.IsActive,
			); err != nil {
				return err
			}
			senders = append(senders, sender)
		}
		return rows.Err()
	})
	return senders, err
}

// SetSenderWatermark persists a sender's history cursor. A nil historyID
// clears the watermark so the next cycle re-baselines.
func (s *Store) SetSenderWatermark(ctx context.Context, senderID uuid.UUID, historyID *string) error {
	return retry.Do(ctx, queryAttempts, queryBaseDelay, func() error {
		_, err := s.pool.Exec(ctx,
			`UPDATE senders SET last_checked_history_id = $1 WHERE id = $2`,
			historyID, senderID,
		)
		return err
	})
}

// FindJobByMessageIDs returns the first job whose email_message_id matches
// one of the candidate ids and whose status differs from excludeStatus.
// Returns (nil, nil) when nothing matches; the caller treats that as an
// unattributable event.
func (s *Store) FindJobByMessageIDs(ctx context.Context, messageIDs []string, excludeStatus string) (*models.CampaignJob, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	query := `SELECT id, status FROM campaign_jobs
		WHERE email_message_id = ANY($1) AND status <> $2
		LIMIT 1`

	var job *models.CampaignJob
	err := retry.Do(ctx, queryAttempts, queryBaseDelay, func() error {
		var found models.CampaignJob
		err := s.pool.QueryRow(ctx, query, messageIDs, excludeStatus).Scan(&found.ID, &found.Status)
		if errors.Is(err, pgx.ErrNoRows) {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		job = &found
		return nil
	})
	return job, err
}

// FindSentJobByMessageID returns the job with the given email_message_id if
// its status is exactly "sent", or (nil, nil).
func (s *Store) FindSentJobByMessageID(ctx context.Context, messageID string) (*models.CampaignJob, error) {
	query := `SELECT id, status FROM campaign_jobs
		WHERE email_message_id = $1 AND status = $2
		LIMIT 1`

	var job *models.CampaignJob
	err := retry.Do(ctx, queryAttempts, queryBaseDelay, func() error {
		var found models.CampaignJob
		err := s.pool.QueryRow(ctx, query, messageID, models.JobStatusSent).Scan(&found.ID, &found.Status)
		if errors.Is(err, pgx.ErrNoRows) {
			job = nil
			return nil
		}
		if err != nil {
			return err
		}
		job = &found
		return nil
	})
	return job, err
}

// UpdateJobStatus moves a job to the given engagement status and stamps
// status_updated_at.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID int64, status string, at time.Time) error {
	return retry.Do(ctx, queryAttempts, queryBaseDelay, func() error {
		_, err := s.pool.Exec(ctx,
			`UPDATE campaign_jobs SET status = $1, status_updated_at = $2 WHERE id = $3`,
			status, at, jobID,
		)
		return err
	})
}

// InsertEngagementEvent appends one engagement event record.
func (s *Store) InsertEngagementEvent(ctx context.Context, event models.EngagementEvent) error {
	return retry.Do(ctx, queryAttempts, queryBaseDelay, func() error {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO email_engagement_events (campaign_job_id, email_message_id, event_type, event_timestamp)
			 VALUES ($1, $2, $3, $4)`,
			event.CampaignJobID, event.EmailMessageID, event.EventType, event.EventTimestamp,
		)
		return err
	})
}
