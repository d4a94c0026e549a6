package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ITDevS919/marketplace-backend/internal/cart"
	"github.com/ITDevS919/marketplace-backend/internal/commission"
	"github.com/ITDevS919/marketplace-backend/internal/inventory"
	"github.com/ITDevS919/marketplace-backend/internal/orders"
	"github.com/ITDevS919/marketplace-backend/internal/promotion"
	"github.com/ITDevS919/marketplace-backend/internal/retailers"
	"github.com/ITDevS919/marketplace-backend/internal/rewards"
	"github.com/ITDevS919/marketplace-backend/pkg/config"
	"github.com/ITDevS919/marketplace-backend/pkg/db/models"
	"github.com/ITDevS919/marketplace-backend/pkg/enums"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
)

const percentDenominatorBps = 10_000

// TxRunner runs a function inside one database transaction.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SessionCreator opens hosted payment sessions. Satisfied by
// payments.Client; stubbed in tests.
type SessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params payments.CheckoutSessionParams) (*payments.CheckoutSession, error)
}

// Service turns a buyer's cart into per-retailer order groups and payment
// sessions. The order ledger write is a single transaction; payment session
// creation happens strictly after that transaction commits and can only
// degrade a group with a warning, never undo it.
type Service struct {
	tx         TxRunner
	promos     *promotion.Repository
	ledger     *rewards.Ledger
	orders     *orders.Repository
	retailers  *retailers.Repository
	commission *commission.Repository
	sessions   SessionCreator
	logg       *logger.Logger
	rewardsCfg config.RewardsConfig
}

type ServiceParams struct {
	Tx         TxRunner
	Promotions *promotion.Repository
	Rewards    *rewards.Ledger
	Orders     *orders.Repository
	Retailers  *retailers.Repository
	Commission *commission.Repository
	Sessions   SessionCreator
	Logger     *logger.Logger
	RewardsCfg config.RewardsConfig
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner is required")
	case params.Promotions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "promotions repository is required")
	case params.Rewards == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "rewards ledger is required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "orders repository is required")
	case params.Retailers == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "retailers repository is required")
	case params.Commission == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "commission repository is required")
	case params.Sessions == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session creator is required")
	case params.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &Service{
		tx:         params.Tx,
		promos:     params.Promotions,
		ledger:     params.Rewards,
		orders:     params.Orders,
		retailers:  params.Retailers,
		commission: params.Commission,
		sessions:   params.Sessions,
		logg:       params.Logger,
		rewardsCfg: params.RewardsCfg,
	}, nil
}

// SubmitInput is one buyer checkout submission.
type SubmitInput struct {
	UserID       uuid.UUID
	BuyerEmail   string
	DiscountCode string
	PointsCents  int
	SuccessURL   string
	CancelURL    string
}

// GroupResult reports one created order group back to the buyer.
type GroupResult struct {
	OrderGroupID  uuid.UUID            `json:"order_group_id"`
	RetailerID    uuid.UUID            `json:"retailer_id"`
	SubtotalCents int                  `json:"subtotal_cents"`
	DiscountCents int                  `json:"discount_cents"`
	PointsCents   int                  `json:"points_cents"`
	TotalCents    int                  `json:"total_cents"`
	RedirectURL   string               `json:"redirect_url,omitempty"`
	Warnings      []enums.OrderWarning `json:"warnings,omitempty"`
}

// SubmitResult is the checkout outcome.
type SubmitResult struct {
	CheckoutID      uuid.UUID     `json:"checkout_id"`
	Groups          []GroupResult `json:"groups"`
	SubtotalCents   int           `json:"subtotal_cents"`
	DiscountCents   int           `json:"discount_cents"`
	PointsCents     int           `json:"points_cents"`
	TotalCents      int           `json:"total_cents"`
	PointsEarned    int           `json:"points_earned"`
	DiscountApplied bool          `json:"discount_applied"`
}

// Submit materializes the cart, writes the order ledger in one transaction
// and then opens payment sessions for the groups that have an eligible
// destination account.
//
// Out-of-stock rolls the whole submission back. A discount that fails its
// usage-cap claim is stripped and the orders commit at pre-discount totals.
// Session failures leave a warning on the group and nothing else.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.PointsCents < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "points must not be negative")
	}

	var (
		result    *SubmitResult
		groupRows []*models.OrderGroup
	)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		materialized, err := cart.Materialize(ctx, tx, input.UserID)
		if err != nil {
			return err
		}

		var warnings []enums.OrderWarning
		discountCents, discountApplied := 0, false
		if code := strings.TrimSpace(input.DiscountCode); code != "" {
			discountCents, discountApplied, err = s.claimDiscount(ctx, tx, code, materialized.SubtotalCents)
			if err != nil {
				return err
			}
			if !discountApplied {
				warnings = append(warnings, enums.OrderWarningPromotionVoided)
			}
		}

		pointsCents := 0
		if input.PointsCents > 0 {
			balance, err := s.ledger.WithTx(tx).Balance(ctx, input.UserID)
			if err != nil {
				return err
			}
			pointsCents = promotion.CapPoints(balance.Balance, input.PointsCents)
			if remaining := materialized.SubtotalCents - discountCents; pointsCents > remaining {
				pointsCents = remaining
			}
		}

		checkout := models.Checkout{ID: uuid.New(), UserID: input.UserID}
		if err := s.orders.WithTx(tx).CreateCheckout(ctx, &checkout); err != nil {
			return err
		}

		groupCount := len(materialized.Groups)
		discountShares := promotion.SplitEvenly(discountCents, groupCount)
		pointsShares := promotion.SplitEvenly(pointsCents, groupCount)

		result = &SubmitResult{
			CheckoutID:      checkout.ID,
			SubtotalCents:   materialized.SubtotalCents,
			DiscountApplied: discountApplied,
		}
		groupRows = groupRows[:0]

		for i, grouped := range materialized.Groups {
			group := &models.OrderGroup{
				ID:              uuid.New(),
				CheckoutID:      checkout.ID,
				UserID:          input.UserID,
				RetailerID:      grouped.RetailerID,
				Status:          enums.OrderStatusPending,
				SubtotalCents:   grouped.SubtotalCents,
				DiscountCents:   discountShares[i],
				PointsUsedCents: pointsShares[i],
			}
			group.TotalCents = group.SubtotalCents - group.DiscountCents - group.PointsUsedCents
			if group.TotalCents < 0 {
				group.TotalCents = 0
			}
			for _, warning := range warnings {
				group.Warnings = group.Warnings.Append(warning)
			}
			for _, line := range grouped.Lines {
				group.Lines = append(group.Lines, models.OrderLine{
					ID:             uuid.New(),
					OrderGroupID:   group.ID,
					ProductID:      line.ProductID,
					Qty:            line.Qty,
					UnitPriceCents: line.UnitPriceCents,
				})
			}
			group.PointsEarned = group.TotalCents * s.cashbackRateBps() / percentDenominatorBps

			if err := s.orders.WithTx(tx).CreateGroup(ctx, group); err != nil {
				return err
			}
			groupRows = append(groupRows, group)

			result.DiscountCents += group.DiscountCents
			result.PointsCents += group.PointsUsedCents
			result.TotalCents += group.TotalCents
			result.PointsEarned += group.PointsEarned
		}

		if err := inventory.Deduct(ctx, tx, materialized.Deductions()); err != nil {
			return err
		}

		cartRepo := cart.NewRepository(tx)
		if err := cartRepo.Clear(ctx, input.UserID); err != nil {
			return err
		}

		ledger := s.ledger.WithTx(tx)
		if result.PointsCents > 0 {
			if err := ledger.Redeem(ctx, input.UserID, &checkout.ID, result.PointsCents); err != nil {
				return err
			}
		}
		// Cashback accrues at order creation, before the payment settles.
		for _, group := range groupRows {
			if err := ledger.Accrue(ctx, input.UserID, &group.ID, group.PointsEarned); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, group := range groupRows {
		url := s.openSession(ctx, group, input)
		result.Groups = append(result.Groups, GroupResult{
			OrderGroupID:  group.ID,
			RetailerID:    group.RetailerID,
			SubtotalCents: group.SubtotalCents,
			DiscountCents: group.DiscountCents,
			PointsCents:   group.PointsUsedCents,
			TotalCents:    group.TotalCents,
			RedirectURL:   url,
			Warnings:      group.Warnings,
		})
	}
	return result, nil
}

// claimDiscount resolves the code and claims a usage slot inside the order
// transaction. A code that fails resolution or loses the usage race is
// reported as not applied; only infrastructure errors abort the checkout.
func (s *Service) claimDiscount(ctx context.Context, tx *gorm.DB, code string, subtotalCents int) (int, bool, error) {
	promos := s.promos.WithTx(tx)

	record, err := promos.FindByCode(ctx, code)
	if err != nil {
		if isPromotionInvalid(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	discount, err := promotion.Resolve(record, subtotalCents, time.Now().UTC())
	if err != nil {
		if isPromotionInvalid(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if discount == 0 {
		return 0, false, nil
	}

	if err := promos.ConsumeUsage(ctx, record.ID); err != nil {
		if isPromotionInvalid(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return discount, true, nil
}

// openSession stamps the current commission rate on the group and opens its
// hosted payment session, returning the redirect URL. Failures downgrade to
// warnings persisted on the group; the committed order is never rolled back
// from here.
func (s *Service) openSession(ctx context.Context, group *models.OrderGroup, input SubmitInput) string {
	logCtx := s.logg.WithField(ctx, "order_group_id", group.ID.String())

	account, err := s.retailers.PayoutAccount(ctx, group.RetailerID)
	if err != nil || !account.Eligible() {
		if err != nil {
			s.logg.Error(logCtx, "load payout account", err)
		}
		s.warn(logCtx, group, enums.OrderWarningNoPayoutAccount)
		return ""
	}

	setting, err := s.commission.Latest(ctx)
	if err != nil {
		s.logg.Error(logCtx, "load commission rate", err)
		s.warn(logCtx, group, enums.OrderWarningSessionFailed)
		return ""
	}
	group.CommissionRateBps = setting.RateBps
	group.CommissionCents = commission.Fee(group.TotalCents, setting.RateBps)
	group.RetailerNetCents = group.TotalCents - group.CommissionCents

	session, err := s.sessions.CreateCheckoutSession(ctx, payments.CheckoutSessionParams{
		OrderGroupID:       group.ID.String(),
		BuyerEmail:         input.BuyerEmail,
		Currency:           enums.CurrencyGBP.String(),
		Lines:              sessionLines(group),
		ApplicationFee:     group.CommissionCents,
		DestinationAccount: account.ProviderAccountID,
		SuccessURL:         input.SuccessURL,
		CancelURL:          input.CancelURL,
	})
	if err != nil {
		s.logg.Error(logCtx, "create checkout session", err)
		s.warn(logCtx, group, enums.OrderWarningSessionFailed)
		return ""
	}

	group.SessionRef = &session.ID
	if err := s.orders.UpdateGroup(ctx, group); err != nil {
		s.logg.Error(logCtx, "persist session ref", err)
	}
	return session.URL
}

func (s *Service) warn(ctx context.Context, group *models.OrderGroup, warning enums.OrderWarning) {
	group.Warnings = group.Warnings.Append(warning)
	if err := s.orders.UpdateGroup(ctx, group); err != nil {
		s.logg.Error(ctx, "persist order warning", err)
	}
}

func (s *Service) cashbackRateBps() int {
	if s.rewardsCfg.CashbackRateBps <= 0 {
		return 100
	}
	return s.rewardsCfg.CashbackRateBps
}

// sessionLines folds discounts and points into the charged amounts. When the
// group total matches the raw subtotal the session itemizes each product;
// otherwise it charges a single adjusted line, since the processor cannot
// take negative line items.
func sessionLines(group *models.OrderGroup) []payments.SessionLine {
	if group.TotalCents == group.SubtotalCents {
		lines := make([]payments.SessionLine, 0, len(group.Lines))
		for _, line := range group.Lines {
			lines = append(lines, payments.SessionLine{
				Name:           "item " + line.ProductID.String(),
				Qty:            line.Qty,
				UnitPriceCents: line.UnitPriceCents,
			})
		}
		return lines
	}
	return []payments.SessionLine{{
		Name:           "order " + group.ID.String(),
		Qty:            1,
		UnitPriceCents: group.TotalCents,
	}}
}

func isPromotionInvalid(err error) bool {
	typed := pkgerrors.As(err)
	return typed != nil && typed.Code() == pkgerrors.CodePromotionInvalid
}
