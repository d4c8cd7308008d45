package core

type Services struct {
	Plan         *PlanService
	Subscription *SubscriptionService
	Wallet       *WalletService
	Invoice      *InvoiceService
	Notification *NotificationService
	JobRun       *JobRunService
	APIKey       *APIKeyService
}

func NewServices(db DB) *Services {
	return &Services{
		Plan:         NewPlanService(db),
		Subscription: NewSubscriptionService(db),
		Wallet:       NewWalletService(db),
		Invoice:      NewInvoiceService(db),
		Notification: NewNotificationService(db),
		JobRun:       NewJobRunService(db),
		APIKey:       NewAPIKeyService(db),
	}
}
