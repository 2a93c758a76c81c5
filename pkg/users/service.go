package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/astralpost/astralpost/pkg/billing"
	"github.com/astralpost/astralpost/pkg/content"
	"github.com/astralpost/astralpost/pkg/observability"
)

// ErrEmailTaken is returned when registration hits an existing email.
var ErrEmailTaken = errors.New("email already registered")

// ErrNotFound is returned when no user matches.
var ErrNotFound = errors.New("user not found")

const uniqueViolation = "23505"

// Service handles user lifecycle: registration, preferences, and the
// account tokens used by both.
type Service struct {
	db          *sql.DB
	tokenSecret string
	trialDays   int
	metrics     *observability.Metrics
	logger      *observability.Logger

	now func() time.Time
}

// NewService creates the users service.
func NewService(db *sql.DB, tokenSecret string, trialDays int, metrics *observability.Metrics, logger *observability.Logger) *Service {
	return &Service{
		db:          db,
		tokenSecret: tokenSecret,
		trialDays:   trialDays,
		metrics:     metrics,
		logger:      logger.WithField("component", "users"),
		now:         time.Now,
	}
}

// Register creates a trial user and returns it with its account token.
func (s *Service) Register(ctx context.Context, email string, perspective content.Perspective, locale string) (*billing.User, string, error) {
	if locale == "" {
		locale = "en"
	}
	if perspective == "" {
		perspective = content.PerspectiveCalm
	}

	user := &billing.User{
		ID:                 uuid.NewString(),
		Email:              email,
		SubscriptionTier:   billing.TierTrial,
		SubscriptionStatus: billing.SubscriptionStatusActive,
		Perspective:        string(perspective),
		Locale:             locale,
	}
	trialEnd := s.now().AddDate(0, 0, s.trialDays)
	user.TrialEnd = &trialEnd

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, subscription_tier, subscription_status, trial_end, perspective, locale)
		 VALUES ($1, $2, 'trial', 'active', $3, $4, $5)`,
		user.ID, email, trialEnd, string(perspective), locale)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return nil, "", ErrEmailTaken
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.WithField("user_id", user.ID).WithField("perspective", string(perspective)).
		Info("user registered")
	return user, IssueToken(s.tokenSecret, user.ID), nil
}

// Lookup validates a token and loads the user it names.
func (s *Service) Lookup(ctx context.Context, token string) (*billing.User, error) {
	userID, err := ValidateToken(s.tokenSecret, token)
	if err != nil {
		return nil, err
	}

	var user billing.User
	err = s.db.QueryRowContext(ctx,
		`SELECT id, email, subscription_tier, subscription_status, perspective, locale
		 FROM users WHERE id = $1`,
		userID).Scan(&user.ID, &user.Email, &user.SubscriptionTier, &user.SubscriptionStatus,
		&user.Perspective, &user.Locale)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// UpdatePreferences sets the user's perspective and locale.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, perspective content.Perspective, locale string) error {
	if !perspective.Valid() {
		return fmt.Errorf("unknown perspective: %s", perspective)
	}
	if locale == "" {
		locale = "en"
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET perspective = $1, locale = $2, updated_at = NOW() WHERE id = $3`,
		string(perspective), locale, userID)
	if err != nil {
		return fmt.Errorf("failed to update preferences: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ActivePerspectiveTiers lists the distinct (perspective, tier) pairs with
// at least one active subscriber. The pregeneration fan-out walks this list
// instead of the full perspective x tier grid.
func (s *Service) ActivePerspectiveTiers(ctx context.Context) ([][2]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT perspective, subscription_tier FROM users
		 WHERE email_status = 'active' AND subscription_tier IN ('trial', 'basic', 'pro')`)
	if err != nil {
		return nil, fmt.Errorf("failed to query active perspectives: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var p, tier string
		if err := rows.Scan(&p, &tier); err != nil {
			return nil, fmt.Errorf("failed to scan perspective row: %w", err)
		}
		pairs = append(pairs, [2]string{p, tier})
	}
	return pairs, rows.Err()
}

// RefreshSubscriberGauge recounts subscribers per tier into the gauge.
func (s *Service) RefreshSubscriberGauge(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT subscription_tier, COUNT(*) FROM users GROUP BY subscription_tier`)
	if err != nil {
		return fmt.Errorf("failed to count subscribers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var tier string
		var count float64
		if err := rows.Scan(&tier, &count); err != nil {
			return fmt.Errorf("failed to scan subscriber count: %w", err)
		}
		s.metrics.SubscribersByTier.WithLabelValues(tier).Set(count)
	}
	return rows.Err()
}
