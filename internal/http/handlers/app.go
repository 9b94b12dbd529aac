package handlers

import (
	"encoding/json"
	"net/http"

	"server/internal/batch"
	"server/internal/domain"
	"server/internal/infra"
	"server/internal/middleware"
	"server/internal/payments"
	"server/internal/subscription"
)

// App is the handler container: every route is a method on it.
type App struct {
	Logger   infra.Logger
	Ledger   domain.LedgerStore
	Subs     *subscription.Manager
	Batch    *batch.Coordinator
	Costs    domain.CostTable
	Payments payments.Verifier
}

// NewApp wires the handler container.
func NewApp(logger infra.Logger, ledger domain.LedgerStore, subs *subscription.Manager, coordinator *batch.Coordinator, costs domain.CostTable, verifier payments.Verifier) *App {
	if verifier == nil {
		verifier = payments.Unconfigured{}
	}
	return &App{
		Logger:   logger,
		Ledger:   ledger,
		Subs:     subs,
		Batch:    coordinator,
		Costs:    costs,
		Payments: verifier,
	}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// error writes the standard error envelope, localizing the message for known
// user-facing codes.
func (a *App) error(w http.ResponseWriter, r *http.Request, status int, code string) {
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message(code, locale),
		},
	})
}

func (a *App) currentUserID(r *http.Request) string {
	return middleware.UserIDFromContext(r.Context())
}
