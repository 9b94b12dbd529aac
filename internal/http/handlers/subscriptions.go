package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"server/internal/domain"
)

type planResponse struct {
	Name           string `json:"name"`
	BillingPeriod  string `json:"billing_period"`
	PointsPerMonth int    `json:"points_per_month"`
	Price          int64  `json:"price"`
}

// Plans lists the static plan catalog. Unauthenticated.
func (a *App) Plans(w http.ResponseWriter, r *http.Request) {
	items := make([]planResponse, 0)
	for _, p := range domain.Plans() {
		items = append(items, planResponse{
			Name:           p.Name,
			BillingPeriod:  string(p.BillingPeriod),
			PointsPerMonth: p.PointsPerMonth,
			Price:          p.Price,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type subscribeRequest struct {
	Plan string `json:"plan"`
}

type subscriptionResponse struct {
	ID             string    `json:"id"`
	PlanName       string    `json:"plan_name"`
	BillingPeriod  string    `json:"billing_period"`
	PointsPerMonth int       `json:"points_per_month"`
	Price          int64     `json:"price"`
	StartDate      time.Time `json:"start_date"`
	ExpirationDate time.Time `json:"expiration_date"`
	Status         string    `json:"status"`
	ExpiringSoon   bool      `json:"expiring_soon"`
}

func subscriptionToResponse(sub *domain.Subscription, now time.Time) subscriptionResponse {
	return subscriptionResponse{
		ID:             sub.ID,
		PlanName:       sub.PlanName,
		BillingPeriod:  string(sub.BillingPeriod),
		PointsPerMonth: sub.PointsPerMonth,
		Price:          sub.Price,
		StartDate:      sub.StartDate,
		ExpirationDate: sub.ExpirationDate,
		Status:         string(sub.Status),
		ExpiringSoon:   sub.ExpiringSoon(now),
	}
}

// Subscribe activates a plan and funds the ledger.
func (a *App) Subscribe(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Plan == "" {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}
	sub, err := a.Subs.Subscribe(r.Context(), userID, req.Plan)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPlanNotFound):
			a.error(w, r, http.StatusBadRequest, codePlanNotFound)
		case errors.Is(err, domain.ErrSubscriptionAlreadyActive):
			a.error(w, r, http.StatusConflict, codeSubscriptionActive)
		default:
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("subscriptions: subscribe failed")
			a.error(w, r, http.StatusInternalServerError, codeInternal)
		}
		return
	}
	a.json(w, http.StatusCreated, subscriptionToResponse(sub, time.Now()))
}

// SubscriptionCancel cancels the caller's active subscription. The paid
// period stays usable; nothing is clawed back.
func (a *App) SubscriptionCancel(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	sub, err := a.Subs.Current(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, codeNotFound)
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("subscriptions: lookup failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	if err := a.Subs.Cancel(r.Context(), sub.ID); err != nil {
		a.Logger.Error().Err(err).Str("subscription_id", sub.ID).Msg("subscriptions: cancel failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	a.json(w, http.StatusOK, map[string]string{"status": string(domain.SubscriptionCancelled)})
}

// SubscriptionCurrent returns the caller's active subscription with the
// expiring-soon warning flag.
func (a *App) SubscriptionCurrent(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	sub, err := a.Subs.Current(r.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, codeNotFound)
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("subscriptions: lookup failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	a.json(w, http.StatusOK, subscriptionToResponse(sub, time.Now()))
}
