package domain

// Outcome is the fixed taxonomy every provider response is normalized into
// before any charge or refund decision is made.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeRateLimited      Outcome = "rate_limited"
	OutcomeCreditsExhausted Outcome = "credits_exhausted"
	OutcomeGenericFailure   Outcome = "generic_failure"
)

// Chargeable reports whether an outcome consumes the user's points.
// Only success is ever charged; every failure flavour is free.
func (o Outcome) Chargeable() bool {
	return o == OutcomeSuccess
}

// ProviderError carries an already-classified outcome from a backend that
// reports structured failures.
type ProviderError struct {
	Outcome Outcome
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return string(e.Outcome) + ": " + e.Message
	}
	return string(e.Outcome)
}
