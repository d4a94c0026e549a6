package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/ITDevS919/marketplace-backend/pkg/config"
	pkgerrors "github.com/ITDevS919/marketplace-backend/pkg/errors"
	"github.com/ITDevS919/marketplace-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired = errors.New("payments api key is required")
	errSecretRequired = errors.New("payments webhook secret is required")
	errInvalidEnv     = fmt.Errorf("payments environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps the payment processor's API client plus env-specific metadata.
// All network calls happen outside database transactions.
type Client struct {
	api           *stripe.Client
	environment   string
	signingSecret string
}

// NewClient initializes the processor client once with the configured secrets.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	signingSecret := strings.TrimSpace(cfg.WebhookSecret)
	if signingSecret == "" {
		return nil, errSecretRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("payments client initialized (%s)", env))
	}

	return &Client{
		api:           api,
		environment:   env,
		signingSecret: signingSecret,
	}, nil
}

// Environment reports the normalized processor environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// SigningSecret returns the webhook signing secret.
func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// SessionLine is one order line forwarded to the hosted checkout page.
type SessionLine struct {
	Name           string
	Qty            int
	UnitPriceCents int
}

// CheckoutSessionParams describes one order group's hosted checkout session.
type CheckoutSessionParams struct {
	OrderGroupID       string
	BuyerEmail         string
	Currency           string
	Lines              []SessionLine
	ApplicationFee     int
	DestinationAccount string
	SuccessURL         string
	CancelURL          string
}

// CheckoutSession is the subset of the processor's session the pipeline needs.
type CheckoutSession struct {
	ID          string
	URL         string
	PaymentRef  string
	Paid        bool
	OrderGroup  string
	AmountTotal int64
}

// CreateCheckoutSession opens a hosted checkout session that routes funds to
// the retailer's destination account minus the platform commission.
func (c *Client) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*CheckoutSession, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments client unavailable")
	}
	if params.OrderGroupID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order group id required")
	}
	if params.DestinationAccount == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination account required")
	}
	if len(params.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session requires at least one line")
	}

	lineItems := make([]*stripe.CheckoutSessionCreateLineItemParams, 0, len(params.Lines))
	for _, line := range params.Lines {
		lineItems = append(lineItems, &stripe.CheckoutSessionCreateLineItemParams{
			Quantity: stripe.Int64(int64(line.Qty)),
			PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(params.Currency)),
				UnitAmount: stripe.Int64(int64(line.UnitPriceCents)),
				ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Name),
				},
			},
		})
	}

	create := &stripe.CheckoutSessionCreateParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:     lineItems,
		CustomerEmail: stripe.String(params.BuyerEmail),
		SuccessURL:    stripe.String(params.SuccessURL),
		CancelURL:     stripe.String(params.CancelURL),
		PaymentIntentData: &stripe.CheckoutSessionCreatePaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(int64(params.ApplicationFee)),
			TransferData: &stripe.CheckoutSessionCreatePaymentIntentDataTransferDataParams{
				Destination: stripe.String(params.DestinationAccount),
			},
			// Mirrored onto the payment intent so settlement webhooks can
			// find the order group without a session lookup.
			Metadata: map[string]string{"order_group_id": params.OrderGroupID},
		},
	}
	create.AddMetadata("order_group_id", params.OrderGroupID)

	session, err := c.api.V1CheckoutSessions.Create(ctx, create)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	return sessionFromStripe(session), nil
}

// GetCheckoutSession fetches the current state of a hosted checkout session.
func (c *Client) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments client unavailable")
	}
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	session, err := c.api.V1CheckoutSessions.Retrieve(ctx, sessionID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve checkout session")
	}
	return sessionFromStripe(session), nil
}

// TransferParams describes one payout transfer to a destination account.
type TransferParams struct {
	PayoutID           string
	AmountCents        int
	Currency           string
	DestinationAccount string
}

// Transfer is the subset of the processor transfer the payout executor needs.
type Transfer struct {
	ID string
}

// CreateTransfer moves funds to the retailer's destination account. Callers
// must treat a failure as terminal for the payout: the transfer may have
// landed even when the call errors, so retrying risks a double payout.
func (c *Client) CreateTransfer(ctx context.Context, params TransferParams) (*Transfer, error) {
	if c == nil || c.api == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "payments client unavailable")
	}
	if params.DestinationAccount == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "destination account required")
	}
	if params.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transfer amount must be positive")
	}

	create := &stripe.TransferCreateParams{
		Amount:      stripe.Int64(int64(params.AmountCents)),
		Currency:    stripe.String(strings.ToLower(params.Currency)),
		Destination: stripe.String(params.DestinationAccount),
	}
	create.AddMetadata("payout_id", params.PayoutID)

	transfer, err := c.api.V1Transfers.Create(ctx, create)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create transfer")
	}
	return &Transfer{ID: transfer.ID}, nil
}

func sessionFromStripe(session *stripe.CheckoutSession) *CheckoutSession {
	if session == nil {
		return nil
	}
	out := &CheckoutSession{
		ID:          session.ID,
		URL:         session.URL,
		Paid:        session.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: session.AmountTotal,
	}
	if session.Metadata != nil {
		out.OrderGroup = session.Metadata["order_group_id"]
	}
	if session.PaymentIntent != nil {
		out.PaymentRef = session.PaymentIntent.ID
	}
	return out
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("payments environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("payments environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidEnv
	}
}
