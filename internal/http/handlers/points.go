package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"server/internal/domain"
)

type transactionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Type         string    `json:"type"`
	Amount       int       `json:"amount"`
	BalanceAfter int       `json:"balance_after"`
	Description  string    `json:"description"`
	CreatedAt    time.Time `json:"created_at"`
}

// PointsBalance returns the caller's current balance, always re-read from
// the ledger store rather than any cached counter.
func (a *App) PointsBalance(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	balance, err := a.Ledger.GetBalance(r.Context(), userID)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("points: balance lookup failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	a.json(w, http.StatusOK, map[string]any{"user_id": userID, "balance": balance})
}

// PointsTransactions lists the caller's ledger entries, newest first.
func (a *App) PointsTransactions(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	limit := domain.TransactionPageLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= domain.TransactionPageLimit {
			limit = n
		}
	}
	txs, err := a.Ledger.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("points: transaction list failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	items := make([]transactionResponse, 0, len(txs))
	for _, tx := range txs {
		items = append(items, transactionResponse{
			ID:           tx.ID,
			UserID:       tx.UserID,
			Type:         string(tx.Type),
			Amount:       tx.Amount,
			BalanceAfter: tx.BalanceAfter,
			Description:  tx.Description,
			CreatedAt:    tx.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

type topupRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// PointsTopup credits purchased points. The credit only happens after the
// payment reference is verified against the gateway of record; the client
// never dictates the amount.
func (a *App) PointsTopup(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	if userID == "" {
		a.error(w, r, http.StatusUnauthorized, codeUnauthorized)
		return
	}
	var req topupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PaymentReference == "" {
		a.error(w, r, http.StatusBadRequest, codeBadRequest)
		return
	}
	confirmation, err := a.Payments.Verify(r.Context(), req.PaymentReference)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentUnverified) {
			a.error(w, r, http.StatusPaymentRequired, codePaymentUnverified)
			return
		}
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("points: payment verification failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	tx, err := a.Ledger.Add(r.Context(), userID, confirmation.Points, "point purchase "+confirmation.Reference)
	if err != nil {
		a.Logger.Error().Err(err).Str("user_id", userID).Msg("points: purchase credit failed")
		a.error(w, r, http.StatusInternalServerError, codeInternal)
		return
	}
	a.json(w, http.StatusCreated, map[string]any{
		"transaction_id": tx.ID,
		"balance":        tx.BalanceAfter,
	})
}
