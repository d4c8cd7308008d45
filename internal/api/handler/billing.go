package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/edvin/marketbill/internal/api/request"
	"github.com/edvin/marketbill/internal/api/response"
	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/core"
	"github.com/edvin/marketbill/internal/model"
)

// CycleRunner runs one billing cycle. Implemented by billing.Controller.
type CycleRunner interface {
	Run(ctx context.Context, triggeredBy string, now time.Time) (*billing.Summary, error)
}

type Billing struct {
	runner CycleRunner
	runs   *core.JobRunService
}

func NewBilling(runner CycleRunner, runs *core.JobRunService) *Billing {
	return &Billing{runner: runner, runs: runs}
}

// Run executes a billing cycle synchronously and returns its summary. The
// external scheduler calls this once a day; operators can call it manually
// with ?trigger=manual.
func (h *Billing) Run(w http.ResponseWriter, r *http.Request) {
	triggeredBy := model.TriggerScheduler
	if r.URL.Query().Get("trigger") == model.TriggerManual {
		triggeredBy = model.TriggerManual
	}

	summary, err := h.runner.Run(r.Context(), triggeredBy, time.Now().UTC())
	if err != nil {
		// A failed sweep query means nothing was processed.
		response.WriteJSON(w, http.StatusInternalServerError, map[string]any{
			"success": false,
			"message": err.Error(),
			"results": summary,
		})
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "billing cycle completed",
		"results": summary,
	})
}

// ListRuns returns past billing cycle records.
func (h *Billing) ListRuns(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	runs, hasMore, err := h.runs.List(r.Context(), p.Limit, p.Cursor)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var nextCursor string
	if hasMore && len(runs) > 0 {
		nextCursor = runs[len(runs)-1].ID
	}
	response.WritePaginated(w, http.StatusOK, runs, nextCursor, hasMore)
}
