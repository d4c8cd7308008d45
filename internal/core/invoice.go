package core

import (
	"context"
	"fmt"

	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/model"
	"github.com/edvin/marketbill/internal/platform"
)

const invoiceColumns = `id, subscription_id, tenant_id, period_start, period_end, amount, currency, status, failure_reason, ledger_entry_id, created_at`

type InvoiceService struct {
	db DB
}

func NewInvoiceService(db DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// Create inserts one billing attempt record. The unique index on
// (subscription_id, period_start) means a second attempt for the same period
// comes back as ErrConflict.
func (s *InvoiceService) Create(ctx context.Context, inv *model.Invoice) error {
	if inv.ID == "" {
		inv.ID = platform.NewID()
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO subscription_invoices (id, subscription_id, tenant_id, period_start, period_end, amount, currency, status, failure_reason, ledger_entry_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())`,
		inv.ID, inv.SubscriptionID, inv.TenantID, inv.PeriodStart, inv.PeriodEnd,
		inv.Amount, inv.Currency, inv.Status, inv.FailureReason, inv.LedgerEntryID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("invoice for subscription %s period %s exists: %w",
				inv.SubscriptionID, inv.PeriodStart.Format("2006-01-02"), billing.ErrConflict)
		}
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (s *InvoiceService) GetByID(ctx context.Context, id string) (*model.Invoice, error) {
	var inv model.Invoice
	err := s.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM subscription_invoices WHERE id = $1`, id,
	).Scan(&inv.ID, &inv.SubscriptionID, &inv.TenantID, &inv.PeriodStart, &inv.PeriodEnd,
		&inv.Amount, &inv.Currency, &inv.Status, &inv.FailureReason, &inv.LedgerEntryID, &inv.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get invoice %s: %w", id, mapNotFound(err))
	}
	return &inv, nil
}

// ListByTenant returns a tenant's invoices, newest period first, with
// cursor-based pagination.
func (s *InvoiceService) ListByTenant(ctx context.Context, tenantID string, limit int, cursor string) ([]model.Invoice, bool, error) {
	query := `SELECT ` + invoiceColumns + ` FROM subscription_invoices WHERE tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

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
		return nil, false, fmt.Errorf("list invoices for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var invoices []model.Invoice
	for rows.Next() {
		var inv model.Invoice
		if err := rows.Scan(&inv.ID, &inv.SubscriptionID, &inv.TenantID, &inv.PeriodStart, &inv.PeriodEnd,
			&inv.Amount, &inv.Currency, &inv.Status, &inv.FailureReason, &inv.LedgerEntryID, &inv.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan invoice: %w", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate invoices: %w", err)
	}

	hasMore := len(invoices) > limit
	if hasMore {
		invoices = invoices[:limit]
	}
	return invoices, hasMore, nil
}
