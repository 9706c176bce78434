// Package notification delivers transaction status events to the account owners.
package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/go-petr/pet-ledger/internal/domain"
	"github.com/go-petr/pet-ledger/pkg/moneypkg"
)

// Delivery results reported to the Observer.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
	ResultLogged  = "logged"
)

// Dispatcher delivers notifications. Dispatch must not block the caller on delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n domain.Notification)
}

// Observer records notification delivery results.
type Observer interface {
	Notification(result string)
}

// LogDispatcher writes every notification as a structured log line.
//
// Verification codes are never written to the log.
type LogDispatcher struct {
	logger   zerolog.Logger
	observer Observer
}

// NewLogDispatcher returns a LogDispatcher writing to logger.
func NewLogDispatcher(logger zerolog.Logger, observer Observer) *LogDispatcher {
	return &LogDispatcher{logger: logger, observer: observer}
}

// Dispatch logs n without its code.
func (d *LogDispatcher) Dispatch(_ context.Context, n domain.Notification) {
	d.logger.Info().
		Bool("has_code", n.Code != "").
		Int64("account_id", n.AccountID).
		Str("type", n.Type).
		Str("reference", n.Reference).
		Str("title", n.Title).
		Msg(n.Message)

	if d.observer != nil {
		d.observer.Notification(ResultLogged)
	}
}

// Multi fans a notification out to every dispatcher.
type Multi []Dispatcher

// Dispatch forwards n to every dispatcher in order.
func (m Multi) Dispatch(ctx context.Context, n domain.Notification) {
	for _, d := range m {
		d.Dispatch(ctx, n)
	}
}

// ForTransaction builds the notification of the initiating account for the current status of t.
func ForTransaction(t domain.Transaction) domain.Notification {
	amount := moneypkg.Format(t.Amount, t.Currency)
	label := typeLabel(t.Type)

	n := domain.Notification{
		AccountID: t.AccountID,
		Reference: t.Reference,
	}

	switch t.Status {
	case domain.StatusAwaitingVerification:
		n.Type = domain.NotificationAwaitingVerification
		n.Title = label + " awaiting verification"
		n.Message = fmt.Sprintf("Verify your %s of %s to continue.", strings.ToLower(label), amount)
	case domain.StatusProcessing:
		n.Type = domain.NotificationProcessing
		n.Title = label + " processing"
		n.Message = fmt.Sprintf("Your %s of %s is being processed.", strings.ToLower(label), amount)
	case domain.StatusCompleted:
		n.Type = domain.NotificationCompleted
		n.Title = label + " successful"
		n.Message = fmt.Sprintf("Your %s of %s was successful.", strings.ToLower(label), amount)
	case domain.StatusFailed:
		n.Type = domain.NotificationFailed
		n.Title = label + " failed"
		n.Message = fmt.Sprintf("Your %s of %s failed.", strings.ToLower(label), amount)
		if t.FailureReason != "" {
			n.Message += " Reason: " + t.FailureReason + "."
		}
	case domain.StatusExpired:
		n.Type = domain.NotificationExpired
		n.Title = label + " expired"
		n.Message = fmt.Sprintf("Your %s of %s expired before verification.", strings.ToLower(label), amount)
	default:
		n.Type = "transaction." + string(t.Status)
		n.Title = label + " " + string(t.Status)
		n.Message = fmt.Sprintf("Your %s of %s is %s.", strings.ToLower(label), amount, t.Status)
	}

	return n
}

// VerificationCode builds the notification delivering the one-time code of t to its owner.
func VerificationCode(t domain.Transaction, code string) domain.Notification {
	label := strings.ToLower(typeLabel(t.Type))

	return domain.Notification{
		AccountID: t.AccountID,
		Type:      domain.NotificationVerificationCode,
		Title:     "Verification code",
		Message: fmt.Sprintf("Use the code to confirm your %s of %s. Never share it.",
			label, moneypkg.Format(t.Amount, t.Currency)),
		Reference: t.Reference,
		Code:      code,
	}
}

// Credited builds the notification of the transfer recipient.
func Credited(t domain.Transaction, recipientID int64) domain.Notification {
	return domain.Notification{
		AccountID: recipientID,
		Type:      domain.NotificationCredited,
		Title:     "Account credited",
		Message:   fmt.Sprintf("You received %s from account %d.", moneypkg.Format(t.Amount, t.Currency), t.AccountID),
		Reference: t.Reference,
	}
}

func typeLabel(t domain.TransactionType) string {
	switch t {
	case domain.TypeFunding:
		return "Funding"
	case domain.TypeWithdrawal:
		return "Withdrawal"
	case domain.TypeTransfer:
		return "Transfer"
	case domain.TypeBillPayment:
		return "Bill payment"
	default:
		return "Transaction"
	}
}
