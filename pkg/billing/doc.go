// Package billing implements the subscription state machine driven by
// payment provider webhooks.
//
// Two endpoints receive events, each with its own shared secret:
// /stripe/webhook/subscription for lifecycle events and
// /stripe/webhook/payment for invoice events. Every request flows through
// the same pipeline:
//
//	signature -> envelope parse -> ledger dedupe -> dispatch (retried) -> ledger append
//
// The webhook_events table is the idempotency ledger. A row is written only
// after an event's handler finished, so replays of half-processed events
// run the handler again instead of being dropped; handlers are therefore
// written to be idempotent. Dispatch retries up to the configured attempt
// budget with exponential backoff, then dead-letters the event and returns
// an error so the provider retries later.
//
// Tier resolution goes price map, then subscription metadata, then a
// configured default. The price map is a YAML file hot-reloaded on change.
// Out-of-order subscription updates are rejected with the event_version
// column, which records the created timestamp of the last applied event.
//
// The trial jobs live here too: ProcessExpiredTrials and
// SendTrialEndingReminders are invoked by the cron binary.
package billing
