// Package pipeline drives capture uploads from admission to delivery.
//
// The Queue owns the serial worker: exactly one network attempt runs at a
// time, while backoff waits burn timer, not worker capacity, so other
// pending tasks keep flowing during a retry delay. Admission deduplicates
// by media ID and content fingerprint, every state change is persisted
// before it is visible, and a restart resumes from the stored queue in
// admission order.
//
// Delegates observe the queue through the Events interface. Notifications
// are serialized: callbacks never run concurrently, and per task they
// arrive in lifecycle order (started, progress, exactly one finished).
// After CancelAll, late results from an aborted attempt are discarded
// rather than reported.
package pipeline
