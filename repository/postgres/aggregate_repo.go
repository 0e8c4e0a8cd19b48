package postgres

import (
	"context"
	"time"

	"github.com/fastygo/tasktracker/domain"
)

// AggregateMonthlyCompleted buckets completion stamps by UTC calendar month.
func (r *taskRepository) AggregateMonthlyCompleted(ctx context.Context, userID domain.ID, since time.Time) ([]domain.MonthlyCompleted, error) {
	const query = `
	SELECT
		EXTRACT(YEAR FROM completed_at AT TIME ZONE 'UTC')::int AS year,
		EXTRACT(MONTH FROM completed_at AT TIME ZONE 'UTC')::int AS month,
		COUNT(*) AS count
	FROM tasks
	WHERE assigned_to = $1
	  AND status = $2
	  AND completed_at IS NOT NULL
	  AND completed_at >= $3
	GROUP BY 1, 2
	ORDER BY 1, 2
	`

	rows, err := r.pool.Query(ctx, query, userID.String(), string(domain.StatusCompleted), since)
	if err != nil {
		return nil, domain.StoreFailure("task.aggregate", err)
	}
	defer rows.Close()

	buckets := []domain.MonthlyCompleted{}
	for rows.Next() {
		var bucket domain.MonthlyCompleted
		if err := rows.Scan(&bucket.Year, &bucket.Month, &bucket.Count); err != nil {
			return nil, domain.StoreFailure("task.aggregate", err)
		}
		buckets = append(buckets, bucket)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("task.aggregate", err)
	}
	return buckets, nil
}
