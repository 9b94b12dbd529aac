package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"server/internal/domain"
	"server/internal/middleware"
)

type submitJobRequest struct {
	Kind  string   `json:"kind"`
	Refs  []string `json:"refs"`
	Async bool     `json:"async"`
}

type unitResponse struct {
	Ref    string `json:"ref"`
	Cost   int    `json:"cost"`
	Status string `json:"status"`
	Code   string `json:"code,omitempty"`
	Error  string `json:"error,omitempty"`
}

type jobResponse struct {
	ID            string         `json:"id"`
	Kind          string         `json:"kind"`
	Status        string         `json:"status"`
	CostPerUnit   int            `json:"cost_per_unit"`
	ChargedPoints int            `json:"charged_points"`
	Units         []unitResponse `json:"units"`
	CreatedAt     time.Time      `json:"created_at"`
}

func jobToResponse(job *domain.Job, locale string) jobResponse {
	resp := jobResponse{
		ID:            job.ID,
		Kind:          string(job.Kind),
		Status:        string(job.Status),
		CostPerUnit:   job.CostPerUnit,
		ChargedPoints: job.ChargedPoints(),
		CreatedAt:     job.CreatedAt,
	}
	for _, u := range job.Units {
		resp.Units = append(resp.Units, unitResponse{
			Ref:    u.Ref,
			Cost:   u.Cost,
			Status: string(u.Status),
			Code:   u.FailureCode,
			Error:  unitError(u, locale),
		})
	}
	return resp
}

// unitError localizes failure text for codes in the message catalog and
// falls back to the stored provider error otherwise.
func unitError(u domain.Unit, locale string) string {
	switch u.FailureCode {
	case codeRateLimited, codeCreditsExhausted, codeInsufficientBalance:
		return message(u.FailureCode, locale)
	}
	return u.ErrorMessage
}

const maxUnitsPerJob = 100

// JobsSubmit accepts a batch job. Synchronous submissions return terminal
// per-unit statuses; async ones are queued for the worker.
func (a *App) JobsSubmit(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}
	if len(req.Refs) == 0 || len(req.Refs) > maxUnitsPerJob {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}
	kind := domain.JobKind(req.Kind)
	costPerUnit := a.Costs.PerUnitCost(kind)
	if costPerUnit <= 0 {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}

	if req.Async {
		job, err := a.Batch.Enqueue(r.Context(), userID, kind, req.Refs, costPerUnit)
		if err != nil {
			a.Logger.Error().Err(err).Str("user_id", userID).Msg("jobs: enqueue failed")
			a.error(w, r, http.StatusInternalServerError, codeInternal)
			return
		}
		a.json(w, http.StatusAccepted, jobToResponse(job, middleware.LocaleFromContext(r.Context())))
		return
	}

	job, err := a.Batch.Submit(r.Context(), userID, kind, req.Refs, costPerUnit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("jobs: submit failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	a.json(w, http.StatusCreated, jobToResponse(job, middleware.LocaleFromContext(r.Context())))
}

// JobsGet returns a job with per-unit statuses. Callers only see their own jobs.
func (a *App) JobsGet(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	job, err := a.Batch.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, r, http.StatusNotFound, codeNotFound)
			return
		}
		a.Logger.Error().Err(err).Msg("jobs: lookup failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	if job.UserID != userID {
		a.error(w, r, http.StatusNotFound, codeNotFound)
		return
	}
	a.json(w, http.StatusOK, jobToResponse(job, middleware.LocaleFromContext(r.Context())))
}
