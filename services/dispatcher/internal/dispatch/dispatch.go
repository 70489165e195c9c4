package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/truesoul/outreach/internal/models"
	"github.com/truesoul/outreach/services/dispatcher/internal/manifest"
)

// The send API can spend most of a minute composing and sending one email.
const sendTimeout = 60 * time.Second

// StatusStore answers which jobs already moved past the dispatchable
// statuses.
type StatusStore interface {
	JobStatuses(ctx context.Context, jobIDs []int64) (map[int64]string, error)
}

// Dispatcher walks a manifest and triggers the send API for every due job.
// It never writes job state itself; the send API owns all post-send status
// updates, and the database status check keeps re-runs from double-sending.
type Dispatcher struct {
	store    StatusStore
	client   *http.Client
	endpoint string
	log      *logrus.Logger

	now func() time.Time
}

func New(store StatusStore, endpoint string, log *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		client:   &http.Client{Timeout: sendTimeout},
		endpoint: endpoint,
		log:      log,
		now:      time.Now,
	}
}

type sendRequest struct {
	SendToLead bool  `json:"sendToLead"`
	JobID      int64 `json:"jobId"`
}

// RunOnce processes one manifest pass. A failed status lookup aborts the
// whole pass, because without current statuses every trigger would risk a
// duplicate send. Individual trigger failures are logged and skipped.
func (d *Dispatcher) RunOnce(ctx context.Context, entries []manifest.Entry) error {
	if len(entries) == 0 {
		d.log.Info("No job IDs found in the manifest")
		return nil
	}

	jobIDs := make([]int64, len(entries))
	for i, e := range entries {
		jobIDs[i] = e.JobID
	}

	statuses, err := d.store.JobStatuses(ctx, jobIDs)
	if err != nil {
		return fmt.Errorf("failed to check job statuses: %w", err)
	}

	now := d.now().UTC()
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log := d.log.WithField("job_id", entry.JobID)

		if status, known := statuses[entry.JobID]; known && !dispatchable(status) {
			log.WithField("status", status).Debug("Job already progressed, skipping")
			continue
		}
		if entry.NextProcessingTime.After(now) {
			log.WithField("due", entry.NextProcessingTime).Debug("Job not yet due")
			continue
		}

		log.Info("Job is due, triggering send API")
		if err := d.trigger(ctx, entry.JobID); err != nil {
			log.WithField("error", err).Error("Send API call failed")
			continue
		}
		log.Info("Send API accepted job")
	}
	return nil
}

// dispatchable reports whether a job in this status may still be sent.
func dispatchable(status string) bool {
	return status == models.JobStatusPending || status == models.JobStatusFailedSending
}

func (d *Dispatcher) trigger(ctx context.Context, jobID int64) error {
	body, err := json.Marshal(sendRequest{SendToLead: true, JobID: jobID})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("send API returned status %d: %s", resp.StatusCode, string(detail))
	}
	return nil
}
