package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/model"
)

type stubRunner struct {
	summary     *billing.Summary
	err         error
	triggeredBy string
}

func (s *stubRunner) Run(_ context.Context, triggeredBy string, _ time.Time) (*billing.Summary, error) {
	s.triggeredBy = triggeredBy
	return s.summary, s.err
}

func TestBillingRun_Success(t *testing.T) {
	runner := &stubRunner{summary: &billing.Summary{Renewed: 3, FailedInsufficientBalance: 1}}
	h := NewBilling(runner, nil)
	rec := httptest.NewRecorder()

	h.Run(rec, newRequest(http.MethodPost, "/billing/run", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TriggerScheduler, runner.triggeredBy)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	results := body["results"].(map[string]any)
	assert.Equal(t, float64(3), results["renewed"])
}

func TestBillingRun_ManualTrigger(t *testing.T) {
	runner := &stubRunner{summary: &billing.Summary{}}
	h := NewBilling(runner, nil)
	rec := httptest.NewRecorder()

	h.Run(rec, newRequest(http.MethodPost, "/billing/run?trigger=manual", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.TriggerManual, runner.triggeredBy)
}

func TestBillingRun_SweepFailure(t *testing.T) {
	runner := &stubRunner{
		summary: &billing.Summary{Errors: []string{"query renewal eligible: boom"}},
		err:     assert.AnError,
	}
	h := NewBilling(runner, nil)
	rec := httptest.NewRecorder()

	h.Run(rec, newRequest(http.MethodPost, "/billing/run", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}
