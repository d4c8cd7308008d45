package core

import (
	"context"
	"fmt"

	"github.com/edvin/marketbill/internal/model"
	"github.com/edvin/marketbill/internal/platform"
)

type JobRunService struct {
	db DB
}

func NewJobRunService(db DB) *JobRunService {
	return &JobRunService{db: db}
}

// RecordRun appends one billing cycle record and fills in the generated id.
func (s *JobRunService) RecordRun(ctx context.Context, run *model.JobRun) error {
	if run.ID == "" {
		run.ID = platform.NewID()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO billing_job_runs
		 (id, triggered_by, started_at, finished_at, success, renewed, failed_insufficient_balance, failed_other, locked, skipped, notifications_sent, errors)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		run.ID, run.TriggeredBy, run.StartedAt, run.FinishedAt, run.Success,
		run.Renewed, run.FailedInsufficientBalance, run.FailedOther,
		run.Locked, run.Skipped, run.NotificationsSent, run.Errors,
	)
	if err != nil {
		return fmt.Errorf("insert billing job run: %w", err)
	}
	return nil
}

// List returns billing cycle records, newest first, with cursor-based
// pagination.
func (s *JobRunService) List(ctx context.Context, limit int, cursor string) ([]model.JobRun, bool, error) {
	query := `SELECT id, triggered_by, started_at, finished_at, success, renewed, failed_insufficient_balance, failed_other, locked, skipped, notifications_sent, errors
		 FROM billing_job_runs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if cursor != "" {
		query += fmt.Sprintf(` AND id < $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list billing job runs: %w", err)
	}
	defer rows.Close()

	var runs []model.JobRun
	for rows.Next() {
		var r model.JobRun
		if err := rows.Scan(&r.ID, &r.TriggeredBy, &r.StartedAt, &r.FinishedAt, &r.Success,
			&r.Renewed, &r.FailedInsufficientBalance, &r.FailedOther,
			&r.Locked, &r.Skipped, &r.NotificationsSent, &r.Errors); err != nil {
			return nil, false, fmt.Errorf("scan billing job run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate billing job runs: %w", err)
	}

	hasMore := len(runs) > limit
	if hasMore {
		runs = runs[:limit]
	}
	return runs, hasMore, nil
}
