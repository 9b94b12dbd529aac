package domain

import "time"

// BillingPeriod enumerates supported subscription cycles.
type BillingPeriod string

const (
	BillingMonthly BillingPeriod = "monthly"
	BillingYearly  BillingPeriod = "yearly"
)

// Advance returns the instant one billing period after from.
func (p BillingPeriod) Advance(from time.Time) time.Time {
	if p == BillingYearly {
		return from.AddDate(1, 0, 0)
	}
	return from.AddDate(0, 1, 0)
}

// SubscriptionPlan is static catalog data. Price is in IDR cents.
type SubscriptionPlan struct {
	Name           string
	BillingPeriod  BillingPeriod
	PointsPerMonth int
	Price          int64
}

// Plans returns the plan catalog.
func Plans() []SubscriptionPlan {
	return []SubscriptionPlan{
		{Name: "Basic-Monthly", BillingPeriod: BillingMonthly, PointsPerMonth: 120, Price: 4900000},
		{Name: "Pro-Monthly", BillingPeriod: BillingMonthly, PointsPerMonth: 350, Price: 9900000},
		{Name: "Pro-Yearly", BillingPeriod: BillingYearly, PointsPerMonth: 350, Price: 99000000},
	}
}

// PlanByName looks a plan up in the catalog.
func PlanByName(name string) (SubscriptionPlan, error) {
	for _, p := range Plans() {
		if p.Name == name {
			return p, nil
		}
	}
	return SubscriptionPlan{}, ErrPlanNotFound
}

// SubscriptionStatus enumerates subscription lifecycle states.
type SubscriptionStatus string

const (
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
	SubscriptionExpired   SubscriptionStatus = "expired"
)

// Subscription is a user's paid entitlement period. Rows are kept for history
// and never physically deleted; Cancel and expiry sweeps only move status.
type Subscription struct {
	ID             string
	UserID         string
	PlanName       string
	BillingPeriod  BillingPeriod
	PointsPerMonth int
	Price          int64
	StartDate      time.Time
	ExpirationDate time.Time
	Status         SubscriptionStatus
}

// expiringSoonWindow is how close to expiry a subscription must be before
// ExpiringSoon starts warning.
const expiringSoonWindow = 7 * 24 * time.Hour

// ExpiringSoon reports whether the subscription is still running but inside
// the warning window before its expiration date.
func (s Subscription) ExpiringSoon(now time.Time) bool {
	if now.After(s.ExpirationDate) {
		return false
	}
	return s.ExpirationDate.Sub(now) <= expiringSoonWindow
}

// Entitled reports whether the subscription still grants access at now.
// A cancelled subscription keeps entitling through its already-paid period.
func (s Subscription) Entitled(now time.Time) bool {
	if s.Status == SubscriptionExpired {
		return false
	}
	return !now.After(s.ExpirationDate)
}
