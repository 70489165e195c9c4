package dispatch

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/truesoul/outreach/internal/retry"
)

const (
	queryAttempts  = 3
	queryBaseDelay = 200 * time.Millisecond
)

// Store reads current job statuses from the campaign_jobs table.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// JobStatuses returns the current status for every known job id. Ids with
// no row are simply absent from the result.
func (s *Store) JobStatuses(ctx context.Context, jobIDs []int64) (map[int64]string, error) {
	statuses := make(map[int64]string, len(jobIDs))
	err := retry.Do(ctx, queryAttempts, queryBaseDelay, func() error {
		rows, err := s.pool.Query(ctx,
			`SELECT id, status FROM campaign_jobs WHERE id = ANY($1)`, jobIDs)
		if err != nil {
			return err
		}
		defer rows.Close()

		clear(statuses)
		for rows.Next() {
			var (
				id     int64
				status string
			)
			if err := rows.Scan(&id, &status); err != nil {
				return err
			}
			statuses[id] = status
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return statuses, nil
}
