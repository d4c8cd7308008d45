package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/marketbill/internal/model"
)

func TestJobRunService_RecordRun_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewJobRunService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, nil)

	run := &model.JobRun{
		TriggeredBy: model.TriggerScheduler,
		StartedAt:   time.Now().Add(-time.Minute),
		FinishedAt:  time.Now(),
		Renewed:     3,
		Locked:      1,
		Errors:      []string{"debit wallet for subscription sub-9: timeout"},
	}
	err := svc.RecordRun(ctx, run)
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	db.AssertExpectations(t)
}

func TestJobRunService_RecordRun_DBError(t *testing.T) {
	db := &mockDB{}
	svc := NewJobRunService(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("db down"))

	err := svc.RecordRun(ctx, &model.JobRun{TriggeredBy: model.TriggerManual})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert billing job run")
	db.AssertExpectations(t)
}

func TestJobRunService_List_Empty(t *testing.T) {
	db := &mockDB{}
	svc := NewJobRunService(db)
	ctx := context.Background()

	db.On("Query", ctx, mock.AnythingOfType("string"), mock.Anything).Return(newEmptyMockRows(), nil)

	runs, hasMore, err := svc.List(ctx, 50, "")
	require.NoError(t, err)
	assert.False(t, hasMore)
	assert.Empty(t, runs)
	db.AssertExpectations(t)
}
