package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/edvin/marketbill/internal/model"
)

// ---------- Mock SubscriptionStore ----------

type mockSubscriptionStore struct {
	mock.Mock
}

func (m *mockSubscriptionStore) GetByID(ctx context.Context, id string) (*model.Subscription, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) QueryRenewalEligible(ctx context.Context, now time.Time) ([]model.Subscription, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Subscription), args.Error(1)
}

func (m *mockSubscriptionStore) QueryLockEligible(ctx context.Context, now time.Time, graceDays int) ([]LockCandidate, error) {
	args := m.Called(ctx, now, graceDays)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]LockCandidate), args.Error(1)
}

func (m *mockSubscriptionStore) AdvancePeriod(ctx context.Context, id string, fromStatus string, expectedPeriodEnd, newPeriodStart, newPeriodEnd time.Time) error {
	args := m.Called(ctx, id, fromStatus, expectedPeriodEnd, newPeriodStart, newPeriodEnd)
	return args.Error(0)
}

func (m *mockSubscriptionStore) MarkPastDue(ctx context.Context, id string, fromStatus string, expectedPeriodEnd time.Time) error {
	args := m.Called(ctx, id, fromStatus, expectedPeriodEnd)
	return args.Error(0)
}

func (m *mockSubscriptionStore) Lock(ctx context.Context, id string, fromStatus, reason string, lockedAt, purgeAfter time.Time) error {
	args := m.Called(ctx, id, fromStatus, reason, lockedAt, purgeAfter)
	return args.Error(0)
}

// ---------- Mock PlanStore ----------

type mockPlanStore struct {
	mock.Mock
}

func (m *mockPlanStore) GetByID(ctx context.Context, id string) (*model.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Plan), args.Error(1)
}

// ---------- Mock WalletLedger ----------

type mockWalletLedger struct {
	mock.Mock
}

func (m *mockWalletLedger) GetByTenant(ctx context.Context, tenantID string) (*model.Wallet, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Wallet), args.Error(1)
}

func (m *mockWalletLedger) Debit(ctx context.Context, tenantID string, amount decimal.Decimal, idempotencyKey, description string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, amount, idempotencyKey, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

func (m *mockWalletLedger) Credit(ctx context.Context, tenantID string, amount decimal.Decimal, idempotencyKey, description string) (*model.LedgerEntry, error) {
	args := m.Called(ctx, tenantID, amount, idempotencyKey, description)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerEntry), args.Error(1)
}

// ---------- Mock InvoiceStore ----------

type mockInvoiceStore struct {
	mock.Mock
}

func (m *mockInvoiceStore) Create(ctx context.Context, inv *model.Invoice) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

// ---------- Mock NotificationDispatcher ----------

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, ev model.NotificationEvent) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

// ---------- Mock JobRunStore ----------

type mockJobRunStore struct {
	mock.Mock
}

func (m *mockJobRunStore) RecordRun(ctx context.Context, run *model.JobRun) error {
	args := m.Called(ctx, run)
	return args.Error(0)
}
