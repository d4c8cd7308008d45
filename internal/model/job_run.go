package model

import "time"

// JobRun records one completed billing cycle invocation.
type JobRun struct {
	ID                        string    `db:"id" json:"id"`
	TriggeredBy               string    `db:"triggered_by" json:"triggered_by"`
	StartedAt                 time.Time `db:"started_at" json:"started_at"`
	FinishedAt                time.Time `db:"finished_at" json:"finished_at"`
	Success                   bool      `db:"success" json:"success"`
	Renewed                   int       `db:"renewed" json:"renewed"`
	FailedInsufficientBalance int       `db:"failed_insufficient_balance" json:"failed_insufficient_balance"`
	FailedOther               int       `db:"failed_other" json:"failed_other"`
	Locked                    int       `db:"locked" json:"locked"`
	Skipped                   int       `db:"skipped" json:"skipped"`
	NotificationsSent         int       `db:"notifications_sent" json:"notifications_sent"`
	Errors                    []string  `db:"errors" json:"errors,omitempty"`
}
