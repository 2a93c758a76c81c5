// Package content generates the daily newsletter.
//
// The pipeline's contract is that Generate always returns a usable payload.
// The path on a cold cache is:
//
//	cache (L1 LRU + Redis) -> nova via breaker -> scribe via breaker -> static template
//
// Each provider sits behind its own circuit breaker (opens after a run of
// consecutive failures, half-opens after the cooldown, closes on the first
// success). Provider output is validated structurally (field length bounds,
// 1-5 sections) and for quality (per-section text floor, profanity filter);
// rejected output falls through exactly like a provider failure. The static
// perspective templates are the terminal safety net and cannot fail.
//
// Results are HTML-minified before caching for 48 hours, optionally archived
// to S3, and every generation writes a telemetry row with token count,
// estimated cost, duration, and the path that produced the result.
package content
