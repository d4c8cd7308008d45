package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/edvin/marketbill/internal/billing"
	"github.com/edvin/marketbill/internal/model"
	"github.com/edvin/marketbill/internal/platform"
)

type WalletService struct {
	db DB
}

func NewWalletService(db DB) *WalletService {
	return &WalletService{db: db}
}

// Ensure creates the tenant's wallet if it does not exist yet and returns it.
func (s *WalletService) Ensure(ctx context.Context, tenantID, currency string) (*model.Wallet, error) {
	_, err := s.db.Exec(ctx,
		`INSERT INTO wallets (id, tenant_id, balance, currency, created_at, updated_at)
		 VALUES ($1, $2, 0, $3, now(), now())
		 ON CONFLICT (tenant_id) DO NOTHING`,
		platform.NewID(), tenantID, currency,
	)
	if err != nil {
		return nil, fmt.Errorf("ensure wallet for tenant %s: %w", tenantID, err)
	}
	return s.GetByTenant(ctx, tenantID)
}

func (s *WalletService) GetByTenant(ctx context.Context, tenantID string) (*model.Wallet, error) {
	var w model.Wallet
	err := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, balance, currency, created_at, updated_at
		 FROM wallets WHERE tenant_id = $1`, tenantID,
	).Scan(&w.ID, &w.TenantID, &w.Balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get wallet for tenant %s: %w", tenantID, mapNotFound(err))
	}
	return &w, nil
}

// Debit takes amount off the tenant's wallet and appends the ledger entry in
// one statement, so balance and ledger can never drift apart. The balance
// guard in the UPDATE makes an underfunded wallet yield zero rows; the
// unique idempotency key turns a replay into ErrConflict.
func (s *WalletService) Debit(ctx context.Context, tenantID string, amount decimal.Decimal, idempotencyKey, description string) (*model.LedgerEntry, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("debit amount must not be negative: %s", amount)
	}

	var entry model.LedgerEntry
	err := s.db.QueryRow(ctx,
		`WITH debited AS (
		     UPDATE wallets SET balance = balance - $2, updated_at = now()
		     WHERE tenant_id = $1 AND balance >= $2
		     RETURNING id, balance
		 )
		 INSERT INTO ledger_entries (id, wallet_id, entry_type, amount, balance_after, idempotency_key, description, created_at)
		 SELECT $3, debited.id, $4, $2, debited.balance, $5, $6, now() FROM debited
		 RETURNING id, wallet_id, entry_type, amount, balance_after, idempotency_key, description, created_at`,
		tenantID, amount, platform.NewID(), model.LedgerEntryTypeDebit, idempotencyKey, description,
	).Scan(&entry.ID, &entry.WalletID, &entry.EntryType, &entry.Amount, &entry.BalanceAfter,
		&entry.IdempotencyKey, &entry.Description, &entry.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("debit %s already applied: %w", idempotencyKey, billing.ErrConflict)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, s.classifyEmptyDebit(ctx, tenantID)
		}
		return nil, fmt.Errorf("debit wallet for tenant %s: %w", tenantID, err)
	}
	return &entry, nil
}

// classifyEmptyDebit distinguishes a missing wallet from one that simply
// cannot cover the amount.
func (s *WalletService) classifyEmptyDebit(ctx context.Context, tenantID string) error {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wallets WHERE tenant_id = $1)`, tenantID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check wallet for tenant %s: %w", tenantID, err)
	}
	if !exists {
		return fmt.Errorf("wallet for tenant %s: %w", tenantID, billing.ErrNotFound)
	}
	return billing.ErrInsufficientFunds
}

// Credit adds amount to the tenant's wallet with the same single-statement
// and idempotency discipline as Debit.
func (s *WalletService) Credit(ctx context.Context, tenantID string, amount decimal.Decimal, idempotencyKey, description string) (*model.LedgerEntry, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("credit amount must not be negative: %s", amount)
	}

	var entry model.LedgerEntry
	err := s.db.QueryRow(ctx,
		`WITH credited AS (
		     UPDATE wallets SET balance = balance + $2, updated_at = now()
		     WHERE tenant_id = $1
		     RETURNING id, balance
		 )
		 INSERT INTO ledger_entries (id, wallet_id, entry_type, amount, balance_after, idempotency_key, description, created_at)
		 SELECT $3, credited.id, $4, $2, credited.balance, $5, $6, now() FROM credited
		 RETURNING id, wallet_id, entry_type, amount, balance_after, idempotency_key, description, created_at`,
		tenantID, amount, platform.NewID(), model.LedgerEntryTypeCredit, idempotencyKey, description,
	).Scan(&entry.ID, &entry.WalletID, &entry.EntryType, &entry.Amount, &entry.BalanceAfter,
		&entry.IdempotencyKey, &entry.Description, &entry.CreatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("credit %s already applied: %w", idempotencyKey, billing.ErrConflict)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wallet for tenant %s: %w", tenantID, billing.ErrNotFound)
		}
		return nil, fmt.Errorf("credit wallet for tenant %s: %w", tenantID, err)
	}
	return &entry, nil
}

// ListEntries returns a wallet's ledger, newest first, with cursor-based
// pagination.
func (s *WalletService) ListEntries(ctx context.Context, tenantID string, limit int, cursor string) ([]model.LedgerEntry, bool, error) {
	query := `SELECT e.id, e.wallet_id, e.entry_type, e.amount, e.balance_after, e.idempotency_key, e.description, e.created_at
		 FROM ledger_entries e
		 JOIN wallets w ON w.id = e.wallet_id
		 WHERE w.tenant_id = $1`
	args := []any{tenantID}
	argIdx := 2

	if cursor != "" {
		query += fmt.Sprintf(` AND e.id < $%d`, argIdx)
		args = append(args, cursor)
		argIdx++
	}

	query += ` ORDER BY e.id DESC`
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit+1)

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, false, fmt.Errorf("list ledger entries for tenant %s: %w", tenantID, err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry
	for rows.Next() {
		var e model.LedgerEntry
		if err := rows.Scan(&e.ID, &e.WalletID, &e.EntryType, &e.Amount, &e.BalanceAfter, &e.IdempotencyKey, &e.Description, &e.CreatedAt); err != nil {
			return nil, false, fmt.Errorf("scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, false, fmt.Errorf("iterate ledger entries: %w", err)
	}

	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}
