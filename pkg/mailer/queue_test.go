package mailer

import (
	"context"
	"database/sql"
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

const testQueueKey = "mail:queue"

func newTestQueue(t *testing.T) (*Queue, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	q := NewQueue(db, client, testQueueKey,
		observability.NewMetrics(prometheus.NewRegistry()),
		observability.NewLogger(observability.ErrorLevel, io.Discard))
	return q, mock, mr
}

func TestQueueEnqueue(t *testing.T) {
	q, mock, mr := newTestQueue(t)

	mock.ExpectExec("INSERT INTO email_logs").
		WithArgs(sqlmock.AnyArg(), "user-1", "trial_ending", []byte(`{}`)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	id, err := q.Enqueue(context.Background(), "user-1", "trial_ending", nil)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	queued, err := mr.List(testQueueKey)
	require.NoError(t, err)
	require.Len(t, queued, 1)
	assert.Equal(t, id, queued[0])

	assert.Equal(t, float64(1),
		testutil.ToFloat64(q.metrics.EmailsEnqueuedTotal.WithLabelValues("trial_ending")))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueEnqueueDBError(t *testing.T) {
	q, mock, mr := newTestQueue(t)

	mock.ExpectExec("INSERT INTO email_logs").
		WillReturnError(sql.ErrConnDone)

	_, err := q.Enqueue(context.Background(), "user-1", "trial_ending", nil)
	require.Error(t, err)

	// Nothing queued without a row behind it.
	queued, _ := mr.List(testQueueKey)
	assert.Empty(t, queued)
}

func TestQueuePush(t *testing.T) {
	q, _, mr := newTestQueue(t)

	require.NoError(t, q.Push(context.Background(), "log-123"))

	queued, err := mr.List(testQueueKey)
	require.NoError(t, err)
	assert.Equal(t, []string{"log-123"}, queued)
}

func TestQueueRequeuePending(t *testing.T) {
	q, mock, mr := newTestQueue(t)

	mock.ExpectQuery("SELECT id FROM email_logs").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("log-a").AddRow("log-b"))

	n, err := q.RequeuePending(context.Background(), 10*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	queued, err := mr.List(testQueueKey)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"log-a", "log-b"}, queued)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQueueDepth(t *testing.T) {
	q, _, mr := newTestQueue(t)

	mr.Lpush(testQueueKey, "a")
	mr.Lpush(testQueueKey, "b")

	n, err := q.Depth(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, float64(2), testutil.ToFloat64(q.metrics.EmailQueueDepth))
}
