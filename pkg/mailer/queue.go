package mailer

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/astralpost/astralpost/pkg/observability"
)

// Queue is the email-enqueue sink. It satisfies billing.Notifier.
type Queue struct {
	db       *sql.DB
	redis    *redis.Client
	queueKey string
	metrics  *observability.Metrics
	logger   *observability.Logger
}

// NewQueue creates the email queue.
func NewQueue(db *sql.DB, rdb *redis.Client, queueKey string, metrics *observability.Metrics, logger *observability.Logger) *Queue {
	return &Queue{
		db:       db,
		redis:    rdb,
		queueKey: queueKey,
		metrics:  metrics,
		logger:   logger.WithField("component", "mailer.queue"),
	}
}

// Enqueue records a pending email_logs row and queues it for delivery.
// Returns the log id.
func (q *Queue) Enqueue(ctx context.Context, userID, emailType string, payload map[string]any) (string, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode email payload: %w", err)
	}

	id := uuid.NewString()
	_, err = q.db.ExecContext(ctx,
		`INSERT INTO email_logs (id, user_id, email_type, status, payload)
		 VALUES ($1, $2, $3, 'pending', $4)`,
		id, userID, emailType, data)
	if err != nil {
		return "", fmt.Errorf("failed to record email log: %w", err)
	}

	if err := q.Push(ctx, id); err != nil {
		// Row exists; the requeue sweep will retry the push.
		q.logger.WithError(err).WithField("email_log_id", id).
			Warn("failed to push email, leaving pending for requeue")
	}

	q.metrics.EmailsEnqueuedTotal.WithLabelValues(emailType).Inc()
	return id, nil
}

// Push queues an already-recorded email_logs row for delivery.
func (q *Queue) Push(ctx context.Context, emailLogID string) error {
	if err := q.redis.LPush(ctx, q.queueKey, emailLogID).Err(); err != nil {
		return fmt.Errorf("failed to push email to queue: %w", err)
	}
	return nil
}

// RequeuePending re-pushes pending rows older than the grace period. These
// are rows whose queue push failed after the database write, or that were
// in flight when a worker died.
func (q *Queue) RequeuePending(ctx context.Context, olderThan time.Duration) (int, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id FROM email_logs
		 WHERE status = 'pending' AND created_at < NOW() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, fmt.Errorf("failed to query pending emails: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan pending email: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate pending emails: %w", err)
	}

	requeued := 0
	for _, id := range ids {
		if err := q.Push(ctx, id); err != nil {
			q.logger.WithError(err).WithField("email_log_id", id).Warn("requeue push failed")
			continue
		}
		requeued++
	}

	if requeued > 0 {
		q.logger.WithField("count", requeued).Info("pending emails requeued")
	}
	return requeued, nil
}

// Depth reports the current queue length and updates the gauge.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	n, err := q.redis.LLen(ctx, q.queueKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	q.metrics.EmailQueueDepth.Set(float64(n))
	return n, nil
}
