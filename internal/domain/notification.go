package domain

// Notification types.
const (
	NotificationAwaitingVerification = "transaction.awaiting_verification"
	NotificationProcessing           = "transaction.processing"
	NotificationCompleted            = "transaction.completed"
	NotificationFailed               = "transaction.failed"
	NotificationExpired              = "transaction.expired"
	NotificationCredited             = "transaction.credited"
	NotificationVerificationCode     = "transaction.verification_code"
)

// Notification is the event emitted on every transaction status transition.
//
// Code carries the one-time verification code of a
// NotificationVerificationCode event and is empty for every other type.
type Notification struct {
	AccountID int64  `json:"account_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Reference string `json:"reference"`
	Code      string `json:"code,omitempty"`
}
