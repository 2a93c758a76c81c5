package mailer

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralpost/astralpost/pkg/observability"
)

type fakeSender struct {
	sent []string // recipient addresses
	err  error
}

func (f *fakeSender) Send(ctx context.Context, to, subject, text string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, to)
	return nil
}

func newTestWorker(t *testing.T, sender Sender, maxAttempts int) (*Worker, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	w := NewWorker(db, client, testQueueKey, sender, 1, maxAttempts,
		observability.NewMetrics(prometheus.NewRegistry()),
		observability.NewLogger(observability.ErrorLevel, io.Discard))
	return w, mock, mr
}

func emailLogRow(emailType string, attempts int, emailStatus string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"user_id", "email_type", "attempts", "email", "email_status"}).
		AddRow("user-1", emailType, attempts, "u@example.com", emailStatus)
}

func TestDeliverSuccess(t *testing.T) {
	sender := &fakeSender{}
	w, mock, _ := newTestWorker(t, sender, 3)

	mock.ExpectQuery("SELECT e.user_id, e.email_type").
		WithArgs("log-1").
		WillReturnRows(emailLogRow("trial_ending", 0, "active"))
	mock.ExpectExec("UPDATE email_logs SET status = 'sent'").
		WithArgs(1, "log-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w.Deliver(context.Background(), "log-1")

	assert.Equal(t, []string{"u@example.com"}, sender.sent)
	assert.Equal(t, float64(1),
		testutil.ToFloat64(w.metrics.EmailsSentTotal.WithLabelValues("trial_ending")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverSoftDisabledRecipient(t *testing.T) {
	sender := &fakeSender{}
	w, mock, _ := newTestWorker(t, sender, 3)

	mock.ExpectQuery("SELECT e.user_id, e.email_type").
		WithArgs("log-2").
		WillReturnRows(emailLogRow("trial_ending", 0, "disabled"))
	mock.ExpectExec("UPDATE email_logs").
		WithArgs("skipped", 0, "recipient email disabled", "log-2").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w.Deliver(context.Background(), "log-2")

	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverRetriesThenFails(t *testing.T) {
	sender := &fakeSender{err: fmt.Errorf("mail API returned status 500")}
	w, mock, mr := newTestWorker(t, sender, 2)

	// First attempt: recorded and requeued.
	mock.ExpectQuery("SELECT e.user_id, e.email_type").
		WithArgs("log-3").
		WillReturnRows(emailLogRow("payment_final_notice", 0, "active"))
	mock.ExpectExec("UPDATE email_logs").
		WithArgs("pending", 1, sender.err.Error(), "log-3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w.Deliver(context.Background(), "log-3")

	queued, err := mr.List(testQueueKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"log-3"}, queued)

	// Second attempt exhausts the budget.
	mock.ExpectQuery("SELECT e.user_id, e.email_type").
		WithArgs("log-3").
		WillReturnRows(emailLogRow("payment_final_notice", 1, "active"))
	mock.ExpectExec("UPDATE email_logs").
		WithArgs("failed", 2, sender.err.Error(), "log-3").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w.Deliver(context.Background(), "log-3")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(w.metrics.EmailsFailedTotal.WithLabelValues("payment_final_notice")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliverMissingRowIsNoop(t *testing.T) {
	sender := &fakeSender{}
	w, mock, _ := newTestWorker(t, sender, 3)

	mock.ExpectQuery("SELECT e.user_id, e.email_type").
		WithArgs("log-gone").
		WillReturnRows(sqlmock.NewRows([]string{"user_id", "email_type", "attempts", "email", "email_status"}))

	w.Deliver(context.Background(), "log-gone")

	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type chanSender struct {
	sent chan string
}

func (c *chanSender) Send(ctx context.Context, to, subject, text string) error {
	c.sent <- to
	return nil
}

// Run owns its pool for its whole lifetime: it drains the queue while the
// context is live and returns only after cancellation. Callers that have
// other work to do must give it its own goroutine.
func TestRunDrainsUntilCanceled(t *testing.T) {
	sender := &chanSender{sent: make(chan string, 1)}
	w, mock, mr := newTestWorker(t, sender, 3)

	mock.ExpectQuery("SELECT e.user_id, e.email_type").
		WithArgs("log-9").
		WillReturnRows(emailLogRow("trial_ending", 0, "active"))
	mock.ExpectExec("UPDATE email_logs SET status = 'sent'").
		WithArgs(1, "log-9").
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := mr.Lpush(testQueueKey, "log-9")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case to := <-sender.sent:
		assert.Equal(t, "u@example.com", to)
	case <-time.After(5 * time.Second):
		t.Fatal("queued email was not delivered")
	}

	select {
	case <-done:
		t.Fatal("Run returned while its context was still live")
	case <-time.After(100 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestSubjectAndBodyForDunningSequence(t *testing.T) {
	assert.Equal(t, "We could not process your payment", subjectFor("payment_retry_2"))
	assert.Contains(t, bodyFor("payment_retry_1"), "retry automatically")
	assert.Equal(t, "Final notice: we could not process your payment", subjectFor("payment_final_notice"))
	assert.Equal(t, "A note from Astral Post", subjectFor("unknown_type"))
}
