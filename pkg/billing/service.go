package billing

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/astralpost/astralpost/pkg/config"
	"github.com/astralpost/astralpost/pkg/observability"
)

// Endpoint names for the two webhook URLs. Each has its own shared secret.
const (
	EndpointSubscription = "subscription"
	EndpointPayment      = "payment"
)

// Notifier enqueues outbound email. Implemented by mailer.Queue.
type Notifier interface {
	// Enqueue records an email log entry and queues it for delivery.
	Enqueue(ctx context.Context, userID, emailType string, payload map[string]any) (string, error)
	// Push queues an already-recorded email log entry for delivery. Used
	// when the log row was written inside a caller's transaction.
	Push(ctx context.Context, emailLogID string) error
}

// Service is the billing state machine. It verifies webhook signatures,
// deduplicates events against the ledger, dispatches handlers with bounded
// retry, and keeps users/subscriptions in sync with the payment provider.
type Service struct {
	db       *sql.DB
	cfg      config.BillingConfig
	prices   *PriceMap
	notifier Notifier
	logger   *observability.Logger
	metrics  *observability.Metrics

	// Injected for tests
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewService creates a billing service.
func NewService(db *sql.DB, cfg config.BillingConfig, prices *PriceMap, notifier Notifier, logger *observability.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		db:       db,
		cfg:      cfg,
		prices:   prices,
		notifier: notifier,
		logger:   logger.WithField("component", "billing"),
		metrics:  metrics,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessWebhook runs the full pipeline for one webhook request: signature
// verification, envelope parsing, ledger dedupe, handler dispatch with
// retry, and the ledger append that marks the event settled.
//
// The returned bool is true when a handler ran to completion, false when
// the event was a duplicate or of an unknown type. Errors map to HTTP 400.
func (s *Service) ProcessWebhook(ctx context.Context, endpoint string, body []byte, sigHeader string) (bool, error) {
	started := time.Now()

	secret, err := s.secretFor(endpoint)
	if err != nil {
		return false, err
	}

	if err := VerifySignature(sigHeader, body, secret, s.cfg.SignatureTolerance, s.now()); err != nil {
		s.metrics.WebhookSignatureFailures.WithLabelValues(endpoint, signatureFailureReason(err)).Inc()
		s.logger.WithError(err).WithField("endpoint", endpoint).Warn("webhook signature rejected")
		return false, err
	}

	var event StripeEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.ID == "" || event.Type == "" {
		return false, fmt.Errorf("%w: missing id or type", ErrMalformedEvent)
	}

	ctx = observability.WithEventID(ctx, event.ID)
	logger := s.logger.WithField("event_id", event.ID).WithField("event_type", event.Type)

	duplicate, err := s.seenEvent(ctx, event.ID)
	if err != nil {
		return false, fmt.Errorf("failed to check event ledger: %w", err)
	}
	if duplicate {
		s.metrics.WebhookDuplicatesTotal.WithLabelValues(endpoint).Inc()
		logger.Info("duplicate webhook event, acknowledging without dispatch")
		s.recordWebhookMetric(ctx, endpoint, &event, "duplicate", started, nil)
		return false, nil
	}

	handler := s.handlerFor(event.Type)
	if handler == nil {
		// Unknown types are acknowledged and ledgered so replays of them
		// stay cheap.
		logger.Debug("no handler for event type, acknowledging")
		if err := s.appendLedger(ctx, endpoint, &event, body); err != nil {
			return false, err
		}
		s.metrics.WebhookEventsTotal.WithLabelValues(endpoint, event.Type, "ignored").Inc()
		s.recordWebhookMetric(ctx, endpoint, &event, "ignored", started, nil)
		return false, nil
	}

	if err := s.dispatch(ctx, logger, &event, handler); err != nil {
		s.metrics.WebhookEventsTotal.WithLabelValues(endpoint, event.Type, "dead_letter").Inc()
		s.metrics.WebhookDeadLetterTotal.WithLabelValues(event.Type).Inc()
		logger.WithError(err).Error("webhook event dead-lettered")
		// Dead-lettered events never reach the ledger, so the telemetry row
		// keeps the payload: it is the only copy on our side.
		s.recordWebhookMetric(ctx, endpoint, &event, "dead_letter", started, body)
		return false, fmt.Errorf("%w: %v", ErrDispatchFailed, err)
	}

	// The ledger row is written only after the handler succeeded, so a
	// crash mid-handler leaves the event unrecorded and the provider's
	// retry will run it again.
	if err := s.appendLedger(ctx, endpoint, &event, body); err != nil {
		return false, err
	}

	s.metrics.WebhookEventsTotal.WithLabelValues(endpoint, event.Type, "processed").Inc()
	logger.Info("webhook event processed")
	s.recordWebhookMetric(ctx, endpoint, &event, "processed", started, nil)
	return true, nil
}

// recordWebhookMetric appends one telemetry row per settled processing
// attempt. Failures are logged and dropped: telemetry never blocks an ack.
func (s *Service) recordWebhookMetric(ctx context.Context, endpoint string, event *StripeEvent, result string, started time.Time, payload []byte) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_metrics (event_id, event_type, endpoint, result, duration_ms, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.Type, endpoint, result, time.Since(started).Milliseconds(), payload)
	if err != nil {
		s.logger.WithError(err).WithField("event_id", event.ID).Warn("failed to persist webhook metric")
	}
}

func (s *Service) secretFor(endpoint string) (string, error) {
	switch endpoint {
	case EndpointSubscription:
		return s.cfg.SubscriptionWebhookSecret, nil
	case EndpointPayment:
		return s.cfg.PaymentWebhookSecret, nil
	default:
		return "", fmt.Errorf("unknown webhook endpoint: %s", endpoint)
	}
}

func signatureFailureReason(err error) string {
	if errors.Is(err, ErrStaleTimestamp) {
		return "stale_timestamp"
	}
	return "bad_signature"
}

func (s *Service) handlerFor(eventType string) func(context.Context, *StripeEvent) error {
	switch eventType {
	case "customer.subscription.created":
		return s.handleSubscriptionCreated
	case "customer.subscription.updated":
		return s.handleSubscriptionUpdated
	case "customer.subscription.deleted":
		return s.handleSubscriptionDeleted
	case "invoice.payment_succeeded":
		return s.handlePaymentSucceeded
	case "invoice.payment_failed":
		return s.handlePaymentFailed
	default:
		return nil
	}
}

// dispatch runs the handler with exponential backoff. Attempt n waits
// base*2^(n-1) capped at the configured max before retrying.
func (s *Service) dispatch(ctx context.Context, logger *observability.Logger, event *StripeEvent, handler func(context.Context, *StripeEvent) error) error {
	var lastErr error

	for attempt := 1; attempt <= s.cfg.MaxDispatchAttempts; attempt++ {
		lastErr = handler(ctx, event)
		if lastErr == nil {
			s.metrics.WebhookDispatchAttempts.WithLabelValues(event.Type).Observe(float64(attempt))
			return nil
		}

		logger.WithError(lastErr).WithField("attempt", attempt).Warn("webhook handler attempt failed")

		if attempt == s.cfg.MaxDispatchAttempts {
			break
		}

		delay := s.cfg.RetryBaseDelay << (attempt - 1)
		if delay > s.cfg.RetryMaxDelay {
			delay = s.cfg.RetryMaxDelay
		}
		if err := s.sleep(ctx, delay); err != nil {
			return fmt.Errorf("dispatch canceled: %w", err)
		}
	}

	s.metrics.WebhookDispatchAttempts.WithLabelValues(event.Type).Observe(float64(s.cfg.MaxDispatchAttempts))
	return lastErr
}

func (s *Service) seenEvent(ctx context.Context, eventID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM webhook_events WHERE event_id = $1`, eventID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) appendLedger(ctx context.Context, endpoint string, event *StripeEvent, body []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO webhook_events (event_id, event_type, endpoint, payload)
		 VALUES ($1, $2, $3, $4)`,
		event.ID, event.Type, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to append event ledger: %w", err)
	}
	return nil
}

// ResolveTier maps a provider subscription to a tier: price map first, then
// the subscription's metadata.tier, then the configured default. Falling
// through to the default is a provisioning bug worth alerting on, so it
// bumps a counter and logs loudly.
func (s *Service) ResolveTier(sub *StripeSubscription) Tier {
	priceID := sub.PriceID()

	if tier, ok := s.prices.Resolve(priceID); ok {
		return tier
	}

	if metaTier := Tier(sub.Metadata["tier"]); metaTier.Paid() {
		return metaTier
	}

	s.metrics.TierDefaultedTotal.WithLabelValues(priceID).Inc()
	s.logger.WithField("price_id", priceID).
		WithField("subscription_id", sub.ID).
		WithField("default_tier", s.cfg.DefaultTier).
		Warn("could not resolve tier, assigning configured default")

	return Tier(s.cfg.DefaultTier)
}

// handleSubscriptionCreated applies a new paid subscription: the user's
// tier flip, the subscription row, and the pending confirmation email all
// commit in one transaction, then the email is pushed to the queue.
func (s *Service) handleSubscriptionCreated(ctx context.Context, event *StripeEvent) error {
	var sub StripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return fmt.Errorf("%w: bad subscription object: %v", ErrMalformedEvent, err)
	}

	userID, err := s.resolveUserID(ctx, sub.Customer, sub.CustomerEmail)
	if err != nil {
		return err
	}

	tier := s.ResolveTier(&sub)
	emailLogID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE users
		 SET subscription_tier = $1, subscription_status = 'active',
		     trial_end = NULL, updated_at = NOW()
		 WHERE id = $2`,
		tier, userID)
	if err != nil {
		return fmt.Errorf("failed to update user tier: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO subscriptions
		     (id, user_id, stripe_subscription_id, stripe_price_id, tier, status,
		      current_period_end, cancel_at_period_end, event_version)
		 VALUES ($1, $2, $3, $4, $5, $6, to_timestamp($7), $8, $9)
		 ON CONFLICT (stripe_subscription_id) DO NOTHING`,
		uuid.NewString(), userID, sub.ID, sub.PriceID(), tier, SubscriptionStatusActive,
		sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, event.Created)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}

	payload, _ := json.Marshal(map[string]any{"tier": tier})
	_, err = tx.ExecContext(ctx,
		`INSERT INTO email_logs (id, user_id, email_type, status, payload)
		 VALUES ($1, $2, $3, 'pending', $4)`,
		emailLogID, userID, EmailUpgradeConfirmation, payload)
	if err != nil {
		return fmt.Errorf("failed to record confirmation email: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit subscription creation: %w", err)
	}

	// Queue push happens after the commit; if it fails the pending log row
	// is picked up by the mailer's requeue sweep.
	if err := s.notifier.Push(ctx, emailLogID); err != nil {
		s.logger.WithError(err).WithField("email_log_id", emailLogID).
			Warn("failed to push confirmation email, leaving pending")
	}

	return nil
}

// handleSubscriptionUpdated applies plan and status changes, guarding
// against out-of-order delivery with the event's created timestamp.
func (s *Service) handleSubscriptionUpdated(ctx context.Context, event *StripeEvent) error {
	var sub StripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return fmt.Errorf("%w: bad subscription object: %v", ErrMalformedEvent, err)
	}

	var userID string
	var currentTier Tier
	var eventVersion int64
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, tier, event_version FROM subscriptions
		 WHERE stripe_subscription_id = $1`,
		sub.ID).Scan(&userID, &currentTier, &eventVersion)
	if err == sql.ErrNoRows {
		// The created event may still be in flight; fail so dispatch retries.
		return fmt.Errorf("subscription %s not found", sub.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	if event.Created <= eventVersion {
		s.logger.WithField("subscription_id", sub.ID).
			WithField("event_created", event.Created).
			WithField("applied_version", eventVersion).
			Info("stale subscription update, skipping")
		return nil
	}

	newTier := s.ResolveTier(&sub)
	status := mapStatus(sub.Status)
	emailLogID := ""

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// The version predicate makes the write itself race-safe: two
	// concurrent updates for the same subscription serialize on the row
	// and the loser's stale write affects zero rows.
	res, err := tx.ExecContext(ctx,
		`UPDATE subscriptions
		 SET tier = $1, status = $2, stripe_price_id = $3,
		     current_period_end = to_timestamp($4), cancel_at_period_end = $5,
		     event_version = $6, updated_at = NOW()
		 WHERE stripe_subscription_id = $7 AND event_version < $6`,
		newTier, status, sub.PriceID(), sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd,
		event.Created, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil // lost the race to a newer event
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET subscription_tier = $1, subscription_status = $2, updated_at = NOW()
		 WHERE id = $3`,
		newTier, status, userID)
	if err != nil {
		return fmt.Errorf("failed to update user tier: %w", err)
	}

	if newTier != currentTier {
		emailType := EmailUpgradeConfirmation
		if tierRank(newTier) < tierRank(currentTier) {
			emailType = EmailDowngradeNotice
		}
		emailLogID = uuid.NewString()
		payload, _ := json.Marshal(map[string]any{"from": currentTier, "to": newTier})
		_, err = tx.ExecContext(ctx,
			`INSERT INTO email_logs (id, user_id, email_type, status, payload)
			 VALUES ($1, $2, $3, 'pending', $4)`,
			emailLogID, userID, emailType, payload)
		if err != nil {
			return fmt.Errorf("failed to record tier change email: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit subscription update: %w", err)
	}

	if emailLogID != "" {
		if err := s.notifier.Push(ctx, emailLogID); err != nil {
			s.logger.WithError(err).WithField("email_log_id", emailLogID).
				Warn("failed to push tier change email, leaving pending")
		}
	}

	return nil
}

// handleSubscriptionDeleted cancels the subscription and drops the user to
// the free tier.
func (s *Service) handleSubscriptionDeleted(ctx context.Context, event *StripeEvent) error {
	var sub StripeSubscription
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return fmt.Errorf("%w: bad subscription object: %v", ErrMalformedEvent, err)
	}

	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id FROM subscriptions WHERE stripe_subscription_id = $1`,
		sub.ID).Scan(&userID)
	if err == sql.ErrNoRows {
		// Nothing to cancel; treat as settled.
		s.logger.WithField("subscription_id", sub.ID).Warn("delete for unknown subscription")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	emailLogID := uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = 'canceled', event_version = $1, updated_at = NOW()
		 WHERE stripe_subscription_id = $2 AND event_version < $1`,
		event.Created, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to cancel subscription: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE users SET subscription_tier = 'free', subscription_status = 'canceled', updated_at = NOW()
		 WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to downgrade user: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO email_logs (id, user_id, email_type, status, payload)
		 VALUES ($1, $2, $3, 'pending', '{}')`,
		emailLogID, userID, EmailSubscriptionCanceled)
	if err != nil {
		return fmt.Errorf("failed to record cancellation email: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}

	if err := s.notifier.Push(ctx, emailLogID); err != nil {
		s.logger.WithError(err).WithField("email_log_id", emailLogID).
			Warn("failed to push cancellation email, leaving pending")
	}

	return nil
}

// handlePaymentSucceeded reactivates a possibly past-due subscription and
// rolls the paid-through date forward.
func (s *Service) handlePaymentSucceeded(ctx context.Context, event *StripeEvent) error {
	var invoice StripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return fmt.Errorf("%w: bad invoice object: %v", ErrMalformedEvent, err)
	}
	if invoice.Subscription == "" {
		return nil // one-off invoice, nothing to roll
	}

	userID, err := s.resolveUserID(ctx, invoice.Customer, invoice.CustomerEmail)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE subscriptions
		 SET status = 'active', current_period_end = to_timestamp($1), updated_at = NOW()
		 WHERE stripe_subscription_id = $2`,
		invoice.PeriodEnd, invoice.Subscription)
	if err != nil {
		return fmt.Errorf("failed to roll subscription period: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET subscription_status = 'active', updated_at = NOW()
		 WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to reactivate user: %w", err)
	}

	return nil
}

// handlePaymentFailed marks the subscription past due and runs the dunning
// sequence. The fourth failed attempt cancels and downgrades.
func (s *Service) handlePaymentFailed(ctx context.Context, event *StripeEvent) error {
	var invoice StripeInvoice
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return fmt.Errorf("%w: bad invoice object: %v", ErrMalformedEvent, err)
	}

	userID, err := s.resolveUserID(ctx, invoice.Customer, invoice.CustomerEmail)
	if err != nil {
		return err
	}

	if invoice.AttemptCount >= 4 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		if invoice.Subscription != "" {
			_, err = tx.ExecContext(ctx,
				`UPDATE subscriptions SET status = 'canceled', updated_at = NOW()
				 WHERE stripe_subscription_id = $1`,
				invoice.Subscription)
			if err != nil {
				return fmt.Errorf("failed to cancel subscription: %w", err)
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE users SET subscription_tier = 'free', subscription_status = 'canceled', updated_at = NOW()
			 WHERE id = $1`,
			userID)
		if err != nil {
			return fmt.Errorf("failed to downgrade user: %w", err)
		}

		emailLogID := uuid.NewString()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO email_logs (id, user_id, email_type, status, payload)
			 VALUES ($1, $2, $3, 'pending', '{}')`,
			emailLogID, userID, EmailPaymentFinalNotice)
		if err != nil {
			return fmt.Errorf("failed to record final notice: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit downgrade: %w", err)
		}

		if err := s.notifier.Push(ctx, emailLogID); err != nil {
			s.logger.WithError(err).WithField("email_log_id", emailLogID).
				Warn("failed to push final notice, leaving pending")
		}
		return nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET subscription_status = 'past_due', updated_at = NOW() WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("failed to mark user past due: %w", err)
	}
	if invoice.Subscription != "" {
		_, err = s.db.ExecContext(ctx,
			`UPDATE subscriptions SET status = 'past_due', updated_at = NOW()
			 WHERE stripe_subscription_id = $1`,
			invoice.Subscription)
		if err != nil {
			return fmt.Errorf("failed to mark subscription past due: %w", err)
		}
	}

	emailType := fmt.Sprintf("payment_retry_%d", invoice.AttemptCount)
	if _, err := s.notifier.Enqueue(ctx, userID, emailType, map[string]any{
		"attempt": invoice.AttemptCount,
	}); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).
			Warn("failed to enqueue dunning email")
	}

	return nil
}

// resolveUserID maps a provider customer id to a user. Accounts register
// before checkout, so the first webhook for a customer arrives with the
// users row not yet linked; that first sight finds the account by the
// customer email on the event and backfills stripe_customer_id.
func (s *Service) resolveUserID(ctx context.Context, customerID, email string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM users WHERE stripe_customer_id = $1`, customerID).Scan(&userID)
	if err == nil {
		return userID, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to look up customer: %w", err)
	}

	if email == "" {
		return "", fmt.Errorf("no user for customer %s and event carries no customer email", customerID)
	}

	// The customer-id predicate keeps the backfill idempotent and refuses
	// to relink an email that already belongs to a different customer.
	err = s.db.QueryRowContext(ctx,
		`UPDATE users SET stripe_customer_id = $1, updated_at = NOW()
		 WHERE email = $2 AND (stripe_customer_id IS NULL OR stripe_customer_id = $1)
		 RETURNING id`,
		customerID, email).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("no user for customer %s (%s)", customerID, email)
	}
	if err != nil {
		return "", fmt.Errorf("failed to link customer: %w", err)
	}

	s.logger.WithField("user_id", userID).
		WithField("customer_id", customerID).
		Info("linked provider customer to user")
	return userID, nil
}

func mapStatus(stripeStatus string) SubscriptionStatus {
	switch stripeStatus {
	case "active", "trialing":
		return SubscriptionStatusActive
	case "past_due":
		return SubscriptionStatusPastDue
	case "unpaid":
		return SubscriptionStatusUnpaid
	case "canceled":
		return SubscriptionStatusCanceled
	default:
		return SubscriptionStatusActive
	}
}

func tierRank(t Tier) int {
	switch t {
	case TierPro:
		return 3
	case TierBasic:
		return 2
	case TierTrial:
		return 1
	default:
		return 0
	}
}
