package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	func() {
		defer RecoverPanic(logger, "price map watcher")
		panic("boom")
	}()

	out := buf.String()
	assert.Contains(t, out, "panic recovered in background task")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "price map watcher")
}

func TestRecoverPanicWithoutPanicLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(ErrorLevel, &buf)

	func() {
		defer RecoverPanic(logger, "quiet task")
	}()

	assert.Empty(t, buf.String())
}
