package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ITDevS919/marketplace-backend/api/responses"
	"github.com/ITDevS919/marketplace-backend/api/validators"
	rewardsvc "github.com/ITDevS919/marketplace-backend/internal/rewards"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

const (
	defaultRewardsHistoryLimit = 50
	maxRewardsHistoryLimit     = 200
)

// RewardsBalance returns the buyer's current points balance.
func RewardsBalance(ledger *rewardsvc.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rewards ledger unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := ledger.Balance(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, rewardsBalanceResponse{
			UserID:        userID,
			BalanceCents:  balance.Balance,
			TotalEarned:   balance.TotalEarned,
			TotalRedeemed: balance.TotalRedeemed,
		})
	}
}

// RewardsHistory returns the buyer's points transactions, newest first.
func RewardsHistory(ledger *rewardsvc.Ledger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ledger == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "rewards ledger unavailable"))
			return
		}

		userID, err := userIDFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", defaultRewardsHistoryLimit, 1, maxRewardsHistoryLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		history, err := ledger.History(r.Context(), userID, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]rewardsTransactionResponse, 0, len(history))
		for _, txn := range history {
			out = append(out, newRewardsTransactionResponse(txn))
		}
		responses.WriteSuccess(w, out)
	}
}

type rewardsBalanceResponse struct {
	UserID        uuid.UUID `json:"user_id"`
	BalanceCents  int       `json:"balance_cents"`
	TotalEarned   int       `json:"total_earned"`
	TotalRedeemed int       `json:"total_redeemed"`
}

type rewardsTransactionResponse struct {
	TransactionID uuid.UUID  `json:"transaction_id"`
	Kind          string     `json:"kind"`
	AmountCents   int        `json:"amount_cents"`
	OrderGroupID  *uuid.UUID `json:"order_group_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

func newRewardsTransactionResponse(txn models.PointsTransaction) rewardsTransactionResponse {
	return rewardsTransactionResponse{
		TransactionID: txn.ID,
		Kind:          string(txn.Kind),
		AmountCents:   txn.Amount,
		OrderGroupID:  txn.OrderGroupID,
		CreatedAt:     txn.CreatedAt,
	}
}
