package billing

import (
	"encoding/json"
	"errors"
	"time"
)

// Tier represents a user's subscription tier
type Tier string

const (
	TierTrial Tier = "trial"
	TierFree  Tier = "free"
	TierBasic Tier = "basic"
	TierPro   Tier = "pro"
)

// Valid reports whether the tier is one of the known values.
func (t Tier) Valid() bool {
	switch t {
	case TierTrial, TierFree, TierBasic, TierPro:
		return true
	}
	return false
}

// Paid reports whether the tier is a paying one.
func (t Tier) Paid() bool {
	return t == TierBasic || t == TierPro
}

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
	SubscriptionStatusPastDue  SubscriptionStatus = "past_due"
	SubscriptionStatusUnpaid   SubscriptionStatus = "unpaid"
)

// User is a newsletter subscriber
type User struct {
	ID                 string             `json:"id"`
	Email              string             `json:"email"`
	SubscriptionTier   Tier               `json:"subscription_tier"`
	SubscriptionStatus SubscriptionStatus `json:"subscription_status"`
	StripeCustomerID   string             `json:"stripe_customer_id,omitempty"`
	TrialEnd           *time.Time         `json:"trial_end,omitempty"`
	TrialReminderSent  bool               `json:"trial_reminder_sent"`
	EmailStatus        string             `json:"email_status"`
	Perspective        string             `json:"perspective"`
	Locale             string             `json:"locale"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Subscription mirrors the provider-side subscription for a user.
//
// EventVersion holds the created timestamp of the last webhook event applied
// to this row; updates carrying an older timestamp are stale and ignored.
type Subscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	StripePriceID        string             `json:"stripe_price_id,omitempty"`
	Tier                 Tier               `json:"tier"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd    bool               `json:"cancel_at_period_end"`
	EventVersion         int64              `json:"event_version"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// WebhookEvent is one row of the append-only idempotency ledger
type WebhookEvent struct {
	EventID     string    `json:"event_id"`
	EventType   string    `json:"event_type"`
	Endpoint    string    `json:"endpoint"`
	Payload     []byte    `json:"payload"`
	ProcessedAt time.Time `json:"processed_at"`
}

// Email types produced by the billing state machine
const (
	EmailUpgradeConfirmation  = "upgrade_confirmation"
	EmailDowngradeNotice      = "downgrade_notice"
	EmailSubscriptionCanceled = "subscription_canceled"
	EmailTrialEnding          = "trial_ending"
	EmailTrialExpired         = "trial_expired"
	EmailPaymentFinalNotice   = "payment_final_notice"
)

// StripeEvent is the webhook event envelope
type StripeEvent struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Created int64  `json:"created"`
	Data    struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// StripeSubscription is the subscription object carried by
// customer.subscription.* events
type StripeSubscription struct {
	ID                string            `json:"id"`
	Customer          string            `json:"customer"`
	CustomerEmail     string            `json:"customer_email"`
	Status            string            `json:"status"`
	CancelAtPeriodEnd bool              `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Metadata          map[string]string `json:"metadata"`
	Items             struct {
		Data []struct {
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

// PriceID returns the price id of the first subscription item, or "".
func (s *StripeSubscription) PriceID() string {
	if len(s.Items.Data) == 0 {
		return ""
	}
	return s.Items.Data[0].Price.ID
}

// StripeInvoice is the invoice object carried by invoice.* events
type StripeInvoice struct {
	ID            string `json:"id"`
	Customer      string `json:"customer"`
	CustomerEmail string `json:"customer_email"`
	Subscription  string `json:"subscription"`
	AttemptCount  int    `json:"attempt_count"`
	PeriodEnd     int64  `json:"period_end"`
}

// Errors returned by webhook processing. Handlers map these to HTTP 400;
// everything else is a transient dispatch failure.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
	ErrMalformedEvent   = errors.New("malformed webhook event")
	ErrDispatchFailed   = errors.New("webhook dispatch exhausted all attempts")
)
