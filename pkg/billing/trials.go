package billing

import (
	"context"
	"fmt"
)

// ProcessExpiredTrials downgrades every trial whose window has passed to
// the free tier and queues the expiry email. Each row is handled in its own
// statement so one bad account cannot wedge the whole sweep.
func (s *Service) ProcessExpiredTrials(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM users
		 WHERE subscription_tier = 'trial' AND trial_end IS NOT NULL AND trial_end < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("failed to query expired trials: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan trial row: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate trial rows: %w", err)
	}

	expired := 0
	for _, userID := range userIDs {
		// The tier predicate keeps this idempotent against a concurrent
		// sweep or an upgrade that landed between the select and here.
		res, err := s.db.ExecContext(ctx,
			`UPDATE users
			 SET subscription_tier = 'free', trial_end = NULL, updated_at = NOW()
			 WHERE id = $1 AND subscription_tier = 'trial'`,
			userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Error("failed to expire trial")
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}

		expired++
		s.metrics.TrialsExpiredTotal.Inc()

		if _, err := s.notifier.Enqueue(ctx, userID, EmailTrialExpired, nil); err != nil {
			s.logger.WithError(err).WithField("user_id", userID).
				Warn("failed to enqueue trial expiry email")
		}
	}

	if expired > 0 {
		s.logger.WithField("count", expired).Info("expired trials downgraded")
	}
	return expired, nil
}

// SendTrialEndingReminders queues the one-day-out reminder for trials
// ending between 24 and 36 hours from now. The conditional flag flip is
// the gate: only the process that actually transitions reminder_sent from
// false to true may enqueue, so concurrent sweeps cannot double-send.
func (s *Service) SendTrialEndingReminders(ctx context.Context) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM users
		 WHERE subscription_tier = 'trial'
		   AND trial_reminder_sent = FALSE
		   AND trial_end BETWEEN NOW() + INTERVAL '24 hours' AND NOW() + INTERVAL '36 hours'`)
	if err != nil {
		return 0, fmt.Errorf("failed to query ending trials: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return 0, fmt.Errorf("failed to scan reminder row: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("failed to iterate reminder rows: %w", err)
	}

	sent := 0
	for _, userID := range userIDs {
		res, err := s.db.ExecContext(ctx,
			`UPDATE users SET trial_reminder_sent = TRUE, updated_at = NOW()
			 WHERE id = $1 AND trial_reminder_sent = FALSE`,
			userID)
		if err != nil {
			s.logger.WithError(err).WithField("user_id", userID).Error("failed to flag reminder")
			continue
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue // another sweep won the flip
		}

		// The reminder carries both hosted payment links so the email can
		// offer a one-click upgrade to either paid tier.
		payload := map[string]any{
			"upgrade_basic_url": s.cfg.UpgradeBasicURL,
			"upgrade_pro_url":   s.cfg.UpgradeProURL,
		}
		if _, err := s.notifier.Enqueue(ctx, userID, EmailTrialEnding, payload); err != nil {
			// The flag stays flipped; a missed reminder beats a double one.
			s.logger.WithError(err).WithField("user_id", userID).
				Error("failed to enqueue trial reminder")
			continue
		}

		sent++
		s.metrics.RemindersSentTotal.Inc()
	}

	if sent > 0 {
		s.logger.WithField("count", sent).Info("trial reminders queued")
	}
	return sent, nil
}
