package domain

import (
	"errors"
	"fmt"
)

var (
	// Common domain errors
	ErrNotFound              = errors.New("entity not found")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrOperationFailed       = errors.New("operation failed")
	ErrReadDatabaseRow       = errors.New("failed to read database row")
	ErrInvalidExecContext    = errors.New("invalid execution context")
	ErrNotOwner              = errors.New("subscription does not belong to caller")
	ErrPaymentInFlight       = errors.New("donation already has a payment in flight")
	ErrSignatureInvalid      = errors.New("webhook signature verification failed")
	ErrProviderNotConfigured = errors.New("payment provider credentials missing")
	ErrSubscriptionCancelled = errors.New("subscription is cancelled")
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrNoRecurringToken      = errors.New("subscription has no stored charge token")
)

// ProviderError carries a vendor rejection verbatim so the initiating caller
// can see exactly what the provider said.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code=%s)", e.Provider, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}
