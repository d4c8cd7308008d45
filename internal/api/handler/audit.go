package handler

import (
	"fmt"
	"net/http"

	"github.com/edvin/marketbill/internal/api/request"
	"github.com/edvin/marketbill/internal/api/response"
	"github.com/edvin/marketbill/internal/core"
	"github.com/edvin/marketbill/internal/model"
)

type Audit struct {
	db core.DB
}

func NewAudit(db core.DB) *Audit {
	return &Audit{db: db}
}

// List returns audit log entries, newest first. Supports filtering by HTTP
// method (action) and date range (date_from/date_to).
func (h *Audit) List(w http.ResponseWriter, r *http.Request) {
	p := request.ParsePagination(r)

	action := r.URL.Query().Get("action")
	dateFrom := r.URL.Query().Get("date_from")
	dateTo := r.URL.Query().Get("date_to")

	query := `SELECT id, api_key_id, method, path, status_code, remote_addr, created_at
              FROM audit_logs WHERE 1=1`
	args := []any{}
	argIdx := 1

	if action != "" {
		query += fmt.Sprintf(` AND method = $%d`, argIdx)
		args = append(args, action)
		argIdx++
	}
	if dateFrom != "" {
		query += fmt.Sprintf(` AND created_at >= $%d`, argIdx)
		args = append(args, dateFrom)
		argIdx++
	}
	if dateTo != "" {
		query += fmt.Sprintf(` AND created_at <= $%d`, argIdx)
		args = append(args, dateTo)
		argIdx++
	}
	if p.Cursor != "" {
		query += fmt.Sprintf(` AND id < $%d`, argIdx)
		args = append(args, p.Cursor)
		argIdx++
	}

	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, argIdx)
	args = append(args, p.Limit+1)

	rows, err := h.db.Query(r.Context(), query, args...)
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer rows.Close()

	var logs []model.AuditLog
	for rows.Next() {
		var l model.AuditLog
		if err := rows.Scan(&l.ID, &l.APIKeyID, &l.Method, &l.Path, &l.StatusCode, &l.RemoteAddr, &l.CreatedAt); err != nil {
			response.WriteError(w, http.StatusInternalServerError, err.Error())
			return
		}
		logs = append(logs, l)
	}

	hasMore := len(logs) > p.Limit
	if hasMore {
		logs = logs[:p.Limit]
	}
	var nextCursor string
	if hasMore && len(logs) > 0 {
		nextCursor = logs[len(logs)-1].ID
	}

	response.WritePaginated(w, http.StatusOK, logs, nextCursor, hasMore)
}
