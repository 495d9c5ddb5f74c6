// Package notifier sends reminder notifications and free-form operator
// messages through a transport.TextSender.
//
// # Deliveries
//
// Deliver is synchronous and at-most-once: it waits for the rate limiter,
// sends once with a timeout and reports the error to the caller. A delivery
// whose Key was already sent inside the dedup window is suppressed and
// reported as success, which absorbs a late duplicate fire of the same job.
//
// # Notifications
//
// Notify queues a message for the worker pool, which retries with backoff.
// It is used for start-up and operator notices.
//
// # History
//
// A small in-memory history of sent texts is kept for diagnostics.
package notifier
