package domain

import "time"

// JobKind enumerates batch-meterable feature categories.
type JobKind string

const (
	JobKindImageGenerate JobKind = "image_generate"
	JobKindSubtitle      JobKind = "subtitle_translate"
	JobKindSpeech        JobKind = "speech_synthesize"
	JobKindURLRewrite    JobKind = "url_rewrite"
)

// JobStatus enumerates stored job lifecycle states. Terminal states are
// derived from unit outcomes, never set directly by callers.
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusSucceeded JobStatus = "succeeded"
	JobStatusFailed    JobStatus = "failed"
)

// UnitStatus enumerates per-unit states. success and failed are terminal;
// a unit left pending was never attempted.
type UnitStatus string

const (
	UnitPending    UnitStatus = "pending"
	UnitProcessing UnitStatus = "processing"
	UnitSuccess    UnitStatus = "success"
	UnitFailed     UnitStatus = "failed"
)

// FailureInsufficientBalance marks a unit that completed at the provider but
// could not be charged. It extends the provider outcome taxonomy on the unit
// failure surface.
const FailureInsufficientBalance = "insufficient_balance"

// Unit is one chargeable sub-item of a batch job: one URL, one language,
// one image. Only units that reach success are ever charged.
type Unit struct {
	Position int
	Ref      string
	Cost     int
	Status   UnitStatus
	// FailureCode is the normalized outcome for failed units: an Outcome
	// string or FailureInsufficientBalance. Empty for pending/success.
	FailureCode  string
	ErrorMessage string
}

// Job is an ordered batch of units metered pay-per-completed-unit.
type Job struct {
	ID          string
	UserID      string
	Kind        JobKind
	CostPerUnit int
	Status      JobStatus
	Units       []Unit
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DeriveStatus computes the terminal job status from unit outcomes:
// succeeded when at least one unit succeeded, failed otherwise.
// Partial success is a valid, common outcome.
func (j *Job) DeriveStatus() JobStatus {
	for _, u := range j.Units {
		if u.Status == UnitSuccess {
			return JobStatusSucceeded
		}
	}
	return JobStatusFailed
}

// ChargedPoints sums the cost of successful units only.
func (j *Job) ChargedPoints() int {
	total := 0
	for _, u := range j.Units {
		if u.Status == UnitSuccess {
			total += u.Cost
		}
	}
	return total
}
