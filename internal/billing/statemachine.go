package billing

import "github.com/edvin/marketbill/internal/model"

// Event is a lifecycle trigger applied to a subscription status.
type Event string

const (
	EventRenewalSucceeded Event = "renewal_succeeded"
	EventRenewalFailed    Event = "renewal_failed"
	EventGraceExpired     Event = "grace_expired"
	EventTrialExpired     Event = "trial_expired"
	EventPeriodExpired    Event = "period_expired"
	EventCanceled         Event = "canceled"
	EventReactivated      Event = "reactivated"
	EventTrialConverted   Event = "trial_converted"
)

type transitionKey struct {
	from  string
	event Event
}

var transitions = map[transitionKey]string{
	// Sweep transitions. The renewal sweep only ever bills active rows;
	// the lock sweep retires everything else once its deadline passes.
	{model.SubscriptionStatusActive, EventRenewalSucceeded}: model.SubscriptionStatusActive,
	{model.SubscriptionStatusActive, EventRenewalFailed}:    model.SubscriptionStatusPastDue,
	{model.SubscriptionStatusTrial, EventTrialExpired}:      model.SubscriptionStatusLocked,
	{model.SubscriptionStatusPastDue, EventGraceExpired}:    model.SubscriptionStatusLocked,
	{model.SubscriptionStatusCanceled, EventPeriodExpired}:  model.SubscriptionStatusLocked,

	// Explicit API actions. Never applied by the sweeps.
	{model.SubscriptionStatusActive, EventCanceled}:      model.SubscriptionStatusCanceled,
	{model.SubscriptionStatusTrial, EventCanceled}:       model.SubscriptionStatusCanceled,
	{model.SubscriptionStatusTrial, EventTrialConverted}: model.SubscriptionStatusActive,
	{model.SubscriptionStatusPastDue, EventCanceled}:     model.SubscriptionStatusCanceled,
	{model.SubscriptionStatusPastDue, EventReactivated}:  model.SubscriptionStatusActive,
	{model.SubscriptionStatusCanceled, EventReactivated}: model.SubscriptionStatusActive,
}

// Next returns the status that applying event to from yields. The second
// return is false when the transition is not legal. Locked is terminal for
// the engine; only operator tooling ever moves a subscription out of it.
func Next(from string, event Event) (string, bool) {
	to, ok := transitions[transitionKey{from, event}]
	return to, ok
}

// CanTransition reports whether the event is legal from the given status.
func CanTransition(from string, event Event) bool {
	_, ok := Next(from, event)
	return ok
}
