// Package almanac fetches the day's astronomical and news context used to
// ground newsletter generation. Both clients read through a Redis cache so
// the cron refresh jobs do the fetching and request-path callers almost
// always hit the cache.
package almanac
