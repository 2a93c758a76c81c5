package mailer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/astralpost/astralpost/pkg/observability"
)

// Subject lines per email type. Body rendering is intentionally plain: the
// design system lives in the frontend repo and emails here carry short
// transactional copy.
var subjects = map[string]string{
	"upgrade_confirmation":  "Welcome aboard — your subscription is live",
	"downgrade_notice":      "Your plan has changed",
	"subscription_canceled": "Your subscription has been canceled",
	"trial_ending":          "Your trial ends tomorrow",
	"trial_expired":         "Your trial has ended",
	"payment_final_notice":  "Final notice: we could not process your payment",
}

func subjectFor(emailType string) string {
	if s, ok := subjects[emailType]; ok {
		return s
	}
	if strings.HasPrefix(emailType, "payment_retry_") {
		return "We could not process your payment"
	}
	return "A note from Astral Post"
}

func bodyFor(emailType string) string {
	switch {
	case emailType == "upgrade_confirmation":
		return "Thanks for subscribing. Your first full newsletter arrives tomorrow morning."
	case emailType == "downgrade_notice":
		return "Your plan change is confirmed and takes effect with your next issue."
	case emailType == "subscription_canceled":
		return "Your subscription is canceled. You can resubscribe any time from your account page."
	case emailType == "trial_ending":
		return "Your free trial ends tomorrow. Pick a plan to keep your daily issue coming."
	case emailType == "trial_expired":
		return "Your free trial has ended. Pick a plan whenever you are ready to continue."
	case emailType == "payment_final_notice":
		return "We were unable to process your payment after several attempts, so your subscription has been paused. Update your payment details to restore it."
	case strings.HasPrefix(emailType, "payment_retry_"):
		return "We had trouble processing your payment and will retry automatically. You can update your payment details to fix this right away."
	default:
		return "There is an update on your Astral Post account."
	}
}

// Worker drains the delivery queue.
type Worker struct {
	db          *sql.DB
	redis       *redis.Client
	queueKey    string
	sender      Sender
	workers     int
	maxAttempts int
	metrics     *observability.Metrics
	logger      *observability.Logger
}

// NewWorker creates the delivery worker pool.
func NewWorker(db *sql.DB, rdb *redis.Client, queueKey string, sender Sender, workers, maxAttempts int, metrics *observability.Metrics, logger *observability.Logger) *Worker {
	if workers < 1 {
		workers = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Worker{
		db:          db,
		redis:       rdb,
		queueKey:    queueKey,
		sender:      sender,
		workers:     workers,
		maxAttempts: maxAttempts,
		metrics:     metrics,
		logger:      logger.WithField("component", "mailer.worker"),
	}
}

// Run blocks until ctx is canceled, popping and delivering queued emails
// with the configured number of goroutines.
func (w *Worker) Run(ctx context.Context) {
	done := make(chan struct{})
	for i := 0; i < w.workers; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			w.loop(ctx)
		}()
	}
	for i := 0; i < w.workers; i++ {
		<-done
	}
}

func (w *Worker) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := w.redis.BRPop(ctx, 5*time.Second, w.queueKey).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.WithError(err).Warn("queue pop failed, backing off")
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		// BRPop returns [key, value].
		if len(res) == 2 {
			w.Deliver(ctx, res[1])
		}
	}
}

// Deliver sends one email_logs row and records the outcome.
func (w *Worker) Deliver(ctx context.Context, emailLogID string) {
	var (
		userID      string
		emailType   string
		attempts    int
		email       string
		emailStatus string
	)
	err := w.db.QueryRowContext(ctx,
		`SELECT e.user_id, e.email_type, e.attempts, u.email, u.email_status
		 FROM email_logs e JOIN users u ON u.id = e.user_id
		 WHERE e.id = $1 AND e.status = 'pending'`,
		emailLogID).Scan(&userID, &emailType, &attempts, &email, &emailStatus)
	if errors.Is(err, sql.ErrNoRows) {
		// Already delivered, or the id is stale. Nothing to do.
		return
	}
	if err != nil {
		w.logger.WithError(err).WithField("email_log_id", emailLogID).Error("failed to load email log")
		return
	}

	logger := w.logger.WithField("email_log_id", emailLogID).WithField("email_type", emailType)

	if emailStatus != "active" {
		// Soft-disabled address: settle the row without sending.
		if err := w.mark(ctx, emailLogID, "skipped", attempts, "recipient email disabled"); err != nil {
			logger.WithError(err).Error("failed to mark email skipped")
		}
		return
	}

	sendErr := w.sender.Send(ctx, email, subjectFor(emailType), bodyFor(emailType))
	attempts++

	if sendErr == nil {
		if err := w.markSent(ctx, emailLogID, attempts); err != nil {
			logger.WithError(err).Error("failed to mark email sent")
			return
		}
		w.metrics.EmailsSentTotal.WithLabelValues(emailType).Inc()
		logger.Info("email delivered")
		return
	}

	logger.WithError(sendErr).WithField("attempt", attempts).Warn("email delivery failed")

	if attempts >= w.maxAttempts {
		if err := w.mark(ctx, emailLogID, "failed", attempts, sendErr.Error()); err != nil {
			logger.WithError(err).Error("failed to mark email failed")
		}
		w.metrics.EmailsFailedTotal.WithLabelValues(emailType).Inc()
		return
	}

	// Record the attempt and requeue for another try.
	if err := w.mark(ctx, emailLogID, "pending", attempts, sendErr.Error()); err != nil {
		logger.WithError(err).Error("failed to record delivery attempt")
		return
	}
	if err := w.redis.LPush(ctx, w.queueKey, emailLogID).Err(); err != nil {
		// Row stays pending; the requeue sweep recovers it.
		logger.WithError(err).Warn("failed to requeue email")
	}
}

func (w *Worker) mark(ctx context.Context, id, status string, attempts int, lastError string) error {
	_, err := w.db.ExecContext(ctx,
		`UPDATE email_logs SET status = $1, attempts = $2, last_error = $3 WHERE id = $4`,
		status, attempts, lastError, id)
	if err != nil {
		return fmt.Errorf("failed to update email log: %w", err)
	}
	return nil
}

func (w *Worker) markSent(ctx context.Context, id string, attempts int) error {
	_, err := w.db.ExecContext(ctx,
		`UPDATE email_logs SET status = 'sent', attempts = $1, last_error = NULL, sent_at = NOW()
		 WHERE id = $2`,
		attempts, id)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}
	return nil
}
