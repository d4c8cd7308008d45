package request

// CreateSubscription is the signup payload for a tenant.
type CreateSubscription struct {
	PlanID string `json:"plan_id" validate:"required"`
}

// Topup adds funds to a tenant wallet. Amount is a decimal string; the
// idempotency key lets the marketplace retry safely.
type Topup struct {
	Amount         string `json:"amount" validate:"required,money"`
	IdempotencyKey string `json:"idempotency_key" validate:"required"`
}

// CreateAPIKey names a new management API key.
type CreateAPIKey struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}
