// Package dispatch serializes agent requests against the scoring and
// learning engine.
//
// A Dispatcher runs at most one handler at a time. A request that arrives
// while a handler is running is queued and answered immediately with a
// QUEUED response; queued requests are then drained in order by a single
// worker goroutine before the dispatcher goes idle again. Completed queued
// responses can be polled with Result or observed through an OnComplete
// hook.
//
// Dispatch never returns a Go error. Unknown personas, unknown triggers,
// malformed payloads, handler failures and handler panics all come back as a
// Response with Success false, an error code and a non-empty Reasoning.
//
// Two queue policies exist. QueueFIFO serves requests in arrival order and
// ignores Request.Priority; it is the compatibility default and is unbounded
// unless WithMaxQueue is set. QueuePriority serves higher priorities first
// and keeps arrival order among equal priorities.
package dispatch
