package controllers

import (
	"net/http"
	"time"

	"github.com/ITDevS919/marketplace-backend/api/responses"
	"github.com/ITDevS919/marketplace-backend/api/validators"
	commissionsvc "github.com/ITDevS919/marketplace-backend/internal/commission"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

// AdminCommissionLatest returns the commission rate currently in force.
func AdminCommissionLatest(repo *commissionsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission repository unavailable"))
			return
		}

		setting, err := repo.Latest(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCommissionResponse(setting))
	}
}

// AdminCommissionPublish appends a new commission rate version. Existing
// orders keep the rate they were stamped with.
func AdminCommissionPublish(repo *commissionsvc.Repository, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "commission repository unavailable"))
			return
		}

		var payload commissionPublishRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		setting, err := repo.Publish(r.Context(), payload.RateBps)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCommissionResponse(setting))
	}
}

type commissionPublishRequest struct {
	RateBps int `json:"rate_bps" validate:"required,min=0,max=10000"`
}

type commissionResponse struct {
	Version   int       `json:"version"`
	RateBps   int       `json:"rate_bps"`
	CreatedAt time.Time `json:"created_at"`
}

func newCommissionResponse(setting *models.CommissionSetting) commissionResponse {
	if setting == nil {
		return commissionResponse{}
	}
	return commissionResponse{
		Version:   setting.Version,
		RateBps:   setting.RateBps,
		CreatedAt: setting.CreatedAt,
	}
}
