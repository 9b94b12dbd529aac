package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrInsufficientBalance is returned by Deduct when the requested amount
	// exceeds the current balance. Nothing is mutated in that case.
	ErrInsufficientBalance = errors.New("insufficient point balance")

	ErrSubscriptionAlreadyActive = errors.New("subscription already active")
	ErrPlanNotFound              = errors.New("subscription plan not found")
	// ErrInvalidExpirationState marks an internal consistency fault
	// (expiration at or before start). Logged, surfaced as generic failure.
	ErrInvalidExpirationState = errors.New("expiration date precedes start date")

	ErrProviderRateLimited      = errors.New("provider rate limited")
	ErrProviderCreditsExhausted = errors.New("provider credits exhausted")
	ErrProviderFailure          = errors.New("provider failure")

	ErrHoldAlreadySettled = errors.New("hold already settled")
	ErrPaymentUnverified  = errors.New("payment not verified")
)
