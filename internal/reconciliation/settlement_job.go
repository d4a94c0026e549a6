package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/multierr"

	"github.com/ITDevS919/marketplace-backend/internal/orders"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
	"github.com/ITDevS919/marketplace-backend/pkg/payments"
)

const (
	settlementJobName = "settlement_sweep"

	defaultStaleAfter   = 30 * time.Minute
	defaultBatchSize    = 50
	defaultPollAttempts = 3
	pollInitialBackoff  = 500 * time.Millisecond
)

// SessionFetcher polls the payment processor for a session's current state.
// Satisfied by payments.Client.
type SessionFetcher interface {
	GetCheckoutSession(ctx context.Context, sessionID string) (*payments.CheckoutSession, error)
}

// Settler applies the settlement transition from a polled session. Satisfied
// by the settlement service.
type Settler interface {
	SettleFromSession(ctx context.Context, groupID uuid.UUID, session *payments.CheckoutSession) error
}

// SettlementSweepJob recovers order groups whose payment-succeeded webhook
// was lost. It finds groups that opened a payment session and never settled,
// polls the processor for each session, and applies the normal settlement
// transition to the ones that actually got paid.
type SettlementSweepJob struct {
	orders       *orders.Repository
	sessions     SessionFetcher
	settler      Settler
	logg         *logger.Logger
	staleAfter   time.Duration
	batchSize    int
	pollAttempts uint64
}

type SettlementSweepParams struct {
	Orders       *orders.Repository
	Sessions     SessionFetcher
	Settler      Settler
	Logger       *logger.Logger
	StaleAfter   time.Duration
	BatchSize    int
	PollAttempts int
}

func NewSettlementSweepJob(params SettlementSweepParams) (*SettlementSweepJob, error) {
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Sessions == nil {
		return nil, fmt.Errorf("session fetcher required")
	}
	if params.Settler == nil {
		return nil, fmt.Errorf("settler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	job := &SettlementSweepJob{
		orders:       params.Orders,
		sessions:     params.Sessions,
		settler:      params.Settler,
		logg:         params.Logger,
		staleAfter:   params.StaleAfter,
		batchSize:    params.BatchSize,
		pollAttempts: defaultPollAttempts,
	}
	if job.staleAfter <= 0 {
		job.staleAfter = defaultStaleAfter
	}
	if job.batchSize <= 0 {
		job.batchSize = defaultBatchSize
	}
	if params.PollAttempts > 0 {
		job.pollAttempts = uint64(params.PollAttempts)
	}
	return job, nil
}

// Name implements Job.
func (j *SettlementSweepJob) Name() string {
	return settlementJobName
}

// Run sweeps one batch of stale groups. Per-group failures are collected and
// reported together so one bad session does not stall the rest of the batch.
func (j *SettlementSweepJob) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-j.staleAfter)
	groups, err := j.orders.ListStaleAwaitingPayment(ctx, cutoff, j.batchSize)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return nil
	}
	j.logg.Info(j.logg.WithField(ctx, "stale_groups", len(groups)), "sweeping unsettled payment sessions")

	var errs error
	settled := 0
	for _, group := range groups {
		if group.SessionRef == nil {
			continue
		}
		groupCtx := j.logg.WithField(ctx, "order_group_id", group.ID.String())

		session, err := j.pollSession(groupCtx, *group.SessionRef)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("poll session for group %s: %w", group.ID, err))
			continue
		}
		if !session.Paid {
			continue
		}
		if err := j.settler.SettleFromSession(groupCtx, group.ID, session); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("settle group %s: %w", group.ID, err))
			continue
		}
		settled++
		j.logg.Info(groupCtx, "recovered settlement for lost webhook")
	}

	j.logg.Info(j.logg.WithField(ctx, "settled", settled), "settlement sweep finished")
	return errs
}

// pollSession fetches the session with exponential backoff; transient
// processor errors are retried a bounded number of times.
func (j *SettlementSweepJob) pollSession(ctx context.Context, sessionRef string) (*payments.CheckoutSession, error) {
	var session *payments.CheckoutSession
	backoff := retry.WithMaxRetries(j.pollAttempts-1, retry.NewExponential(pollInitialBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		fetched, err := j.sessions.GetCheckoutSession(ctx, sessionRef)
		if err != nil {
			return retry.RetryableError(err)
		}
		session = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
