package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/marketbill/internal/model"
)

func testSubscription(status string, periodEnd time.Time) *model.Subscription {
	return &model.Subscription{
		ID:                 "sub-1",
		TenantID:           "tenant-1",
		PlanID:             "plan-1",
		Status:             status,
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   periodEnd,
	}
}

func testPlan() *model.Plan {
	return &model.Plan{
		ID:       "plan-1",
		Name:     "standard",
		Price:    decimal.RequireFromString("29.90"),
		Currency: "EUR",
	}
}

func newRenewalFixture() (*RenewalProcessor, *mockSubscriptionStore, *mockPlanStore, *mockWalletLedger, *mockInvoiceStore, *mockNotifier) {
	subs := new(mockSubscriptionStore)
	plans := new(mockPlanStore)
	wallet := new(mockWalletLedger)
	invoices := new(mockInvoiceStore)
	notifier := new(mockNotifier)
	p := NewRenewalProcessor(subs, plans, wallet, invoices, notifier, zerolog.Nop())
	return p, subs, plans, wallet, invoices, notifier
}

func TestRenew_Success(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(model.SubscriptionStatusActive, periodEnd)
	plan := testPlan()

	p, subs, plans, wallet, invoices, notifier := newRenewalFixture()

	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)
	plans.On("GetByID", mock.Anything, "plan-1").Return(plan, nil)

	wantKey := "renew:sub-1:" + periodEnd.UTC().Format(time.RFC3339)
	wallet.On("Debit", mock.Anything, "tenant-1", plan.Price, wantKey, mock.Anything).
		Return(&model.LedgerEntry{
			ID:           "le-1",
			EntryType:    model.LedgerEntryTypeDebit,
			BalanceAfter: decimal.RequireFromString("120.10"),
		}, nil)

	newEnd := periodEnd.AddDate(0, 1, 0)
	subs.On("AdvancePeriod", mock.Anything, "sub-1", model.SubscriptionStatusActive, periodEnd, periodEnd, newEnd).
		Return(nil)

	invoices.On("Create", mock.Anything, mock.MatchedBy(func(inv *model.Invoice) bool {
		return inv.Status == model.InvoiceStatusPaid &&
			inv.SubscriptionID == "sub-1" &&
			inv.LedgerEntryID != nil && *inv.LedgerEntryID == "le-1" &&
			inv.PeriodStart.Equal(periodEnd) &&
			inv.PeriodEnd.Equal(newEnd)
	})).Return(nil)

	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(ev model.NotificationEvent) bool {
		return ev.EventType == model.EventSubscriptionRenewed &&
			ev.TenantID == "tenant-1" &&
			ev.Payload["plan_name"] == "standard" &&
			ev.Payload["balance"] == "120.10"
	})).Return(nil)

	res, err := p.Renew(context.Background(), *sub, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, res.Outcome)
	assert.True(t, res.Notified)

	subs.AssertExpectations(t)
	wallet.AssertExpectations(t)
	invoices.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRenew_InsufficientFunds_MarksPastDue(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(model.SubscriptionStatusActive, periodEnd)
	plan := testPlan()

	p, subs, plans, wallet, invoices, notifier := newRenewalFixture()

	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)
	plans.On("GetByID", mock.Anything, "plan-1").Return(plan, nil)
	wallet.On("Debit", mock.Anything, "tenant-1", plan.Price, mock.Anything, mock.Anything).
		Return(nil, ErrInsufficientFunds)
	wallet.On("GetByTenant", mock.Anything, "tenant-1").
		Return(&model.Wallet{TenantID: "tenant-1", Balance: decimal.RequireFromString("12.00")}, nil)
	subs.On("MarkPastDue", mock.Anything, "sub-1", model.SubscriptionStatusActive, periodEnd).
		Return(nil)

	invoices.On("Create", mock.Anything, mock.MatchedBy(func(inv *model.Invoice) bool {
		return inv.Status == model.InvoiceStatusFailed &&
			inv.FailureReason != nil && *inv.FailureReason == model.InvoiceFailureInsufficientBalance &&
			inv.LedgerEntryID == nil
	})).Return(nil)

	notifier.On("Notify", mock.Anything, mock.MatchedBy(func(ev model.NotificationEvent) bool {
		return ev.EventType == model.EventRenewalFailed &&
			ev.Payload["plan_name"] == "standard" &&
			ev.Payload["balance"] == "12.00"
	})).Return(nil)

	res, err := p.Renew(context.Background(), *sub, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomePastDue, res.Outcome)
	assert.True(t, res.Notified)

	subs.AssertExpectations(t)
	invoices.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestRenew_ExpiredTrial_NeverCharged(t *testing.T) {
	// A trial past its end date belongs to the lock sweep, funded wallet or
	// not. The sweep must not convert it to a paying subscription.
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	trialEnd := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(model.SubscriptionStatusTrial, trialEnd)
	sub.TrialEndsAt = &trialEnd

	p, subs, _, wallet, invoices, notifier := newRenewalFixture()
	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)

	res, err := p.Renew(context.Background(), *sub, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	wallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	subs.AssertNotCalled(t, "AdvancePeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRenew_PastDue_NeverCharged(t *testing.T) {
	// A past_due row deep into its grace window is the lock sweep's to
	// retire; recovery only happens through an explicit reactivation.
	now := time.Date(2026, 3, 23, 1, 0, 0, 0, time.UTC)
	periodEnd := now.AddDate(0, 0, -8)
	sub := testSubscription(model.SubscriptionStatusPastDue, periodEnd)

	p, subs, _, wallet, _, _ := newRenewalFixture()
	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)

	res, err := p.Renew(context.Background(), *sub, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	wallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	subs.AssertNotCalled(t, "AdvancePeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	subs.AssertNotCalled(t, "MarkPastDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRenew_DebitConflict_Skips(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(model.SubscriptionStatusActive, periodEnd)

	p, subs, plans, wallet, invoices, notifier := newRenewalFixture()

	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)
	plans.On("GetByID", mock.Anything, "plan-1").Return(testPlan(), nil)
	wallet.On("Debit", mock.Anything, "tenant-1", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, ErrConflict)

	res, err := p.Renew(context.Background(), *sub, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
	subs.AssertNotCalled(t, "AdvancePeriod", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRenew_SnapshotStale_Skips(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	snapshot := testSubscription(model.SubscriptionStatusActive, periodEnd)

	// The stored row was already advanced by another runner.
	current := testSubscription(model.SubscriptionStatusActive, periodEnd.AddDate(0, 1, 0))

	p, subs, plans, wallet, _, _ := newRenewalFixture()
	subs.On("GetByID", mock.Anything, "sub-1").Return(current, nil)

	res, err := p.Renew(context.Background(), *snapshot, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	plans.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	wallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRenew_SubscriptionGone_Skips(t *testing.T) {
	now := time.Now().UTC()
	snapshot := testSubscription(model.SubscriptionStatusActive, now)

	p, subs, _, _, _, _ := newRenewalFixture()
	subs.On("GetByID", mock.Anything, "sub-1").Return(nil, ErrNotFound)

	res, err := p.Renew(context.Background(), *snapshot, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)
}

func TestRenew_AdvanceConflict_ReversesDebit(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(model.SubscriptionStatusActive, periodEnd)
	plan := testPlan()

	p, subs, plans, wallet, invoices, notifier := newRenewalFixture()

	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)
	plans.On("GetByID", mock.Anything, "plan-1").Return(plan, nil)
	wallet.On("Debit", mock.Anything, "tenant-1", plan.Price, mock.Anything, mock.Anything).
		Return(&model.LedgerEntry{ID: "le-3"}, nil)
	subs.On("AdvancePeriod", mock.Anything, "sub-1", model.SubscriptionStatusActive, periodEnd, periodEnd, periodEnd.AddDate(0, 1, 0)).
		Return(ErrConflict)

	reversalKey := "renew-reversal:sub-1:" + periodEnd.UTC().Format(time.RFC3339)
	wallet.On("Credit", mock.Anything, "tenant-1", plan.Price, reversalKey, mock.Anything).
		Return(&model.LedgerEntry{ID: "le-4"}, nil)

	res, err := p.Renew(context.Background(), *sub, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSkipped, res.Outcome)

	wallet.AssertExpectations(t)
	invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything)
}

func TestRenew_TransientDebitError(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(model.SubscriptionStatusActive, periodEnd)

	p, subs, plans, wallet, invoices, _ := newRenewalFixture()

	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)
	plans.On("GetByID", mock.Anything, "plan-1").Return(testPlan(), nil)
	wallet.On("Debit", mock.Anything, "tenant-1", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("connection reset"))

	res, err := p.Renew(context.Background(), *sub, now)
	require.Error(t, err)
	assert.Equal(t, OutcomeError, res.Outcome)

	// Subscription state is untouched so the next cycle retries.
	subs.AssertNotCalled(t, "MarkPastDue", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestRenew_NotifyFailureDoesNotFailRenewal(t *testing.T) {
	now := time.Date(2026, 3, 15, 1, 0, 0, 0, time.UTC)
	periodEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	sub := testSubscription(model.SubscriptionStatusActive, periodEnd)
	plan := testPlan()

	p, subs, plans, wallet, invoices, notifier := newRenewalFixture()

	subs.On("GetByID", mock.Anything, "sub-1").Return(sub, nil)
	plans.On("GetByID", mock.Anything, "plan-1").Return(plan, nil)
	wallet.On("Debit", mock.Anything, "tenant-1", plan.Price, mock.Anything, mock.Anything).
		Return(&model.LedgerEntry{ID: "le-5"}, nil)
	subs.On("AdvancePeriod", mock.Anything, "sub-1", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil)
	invoices.On("Create", mock.Anything, mock.Anything).Return(nil)
	notifier.On("Notify", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	res, err := p.Renew(context.Background(), *sub, now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRenewed, res.Outcome)
	assert.False(t, res.Notified)
}
