// Package async provides safe concurrent execution primitives for background tasks.
//
// # Overview
//
// This package handles goroutine lifecycle management with panic recovery, timeout
// enforcement, context cancellation, and error collection.
//
// # Key Functions
//
// SafeGo: Execute function in goroutine with safety features
//
//	async.SafeGo(ctx, 30*time.Second, "notification enqueue", logger, func(ctx context.Context) error {
//		return mailer.Enqueue(ctx, job)
//	})
//
// WorkerPool: Managed pool of concurrent workers
//
//	pool := async.NewWorkerPool(ctx, 10, "email delivery", 30*time.Second, logger)
//	defer pool.Shutdown(5 * time.Second)
//
//	pool.Submit(func(ctx context.Context) error {
//		return deliver(ctx, job)
//	})
//
// Batch: Concurrent batch processing
//
//	errs := async.Batch(ctx, cells, 4, "content pregeneration", 40*time.Second, logger,
//		func(ctx context.Context, cell Cell) error {
//			return pipeline.Warm(ctx, cell)
//		})
//
// # Features
//
// Panic Recovery: Captures panics with stack traces
// Timeout Enforcement: Per-task timeouts
// Context Cancellation: Respects context cancellation
// Error Collection: Non-blocking error channels
// Graceful Shutdown: Worker draining
//
// # Use Cases
//
// Post-commit notification enqueues, email delivery workers, per-tier content
// pregeneration fan-out in the cron binary.
package async
