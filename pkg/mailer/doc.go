// Package mailer owns outbound email. Queue records every send in the
// email_logs table and pushes the log id onto a Redis list; Worker pops ids,
// delivers through the mail API, and writes the outcome back to the row.
// The table is the source of truth: a row stuck in 'pending' (for example
// because the queue push after a billing transaction failed) is picked up
// again by the requeue sweep.
package mailer
