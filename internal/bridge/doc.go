// Package bridge implements the capability-scoped message bridge between the
// privileged host and the sandboxed frontend.
//
// The Router owns message classification, correlation-ID allocation, and the
// pending request table. The Facade is the single surface handed to sandbox
// code; everything it can reach was declared in the contract before the
// sandbox connected.
//
// Channel shapes:
//   - event: sandbox → host, fire-and-forget
//   - request: sandbox → host, exactly one response per request
//   - push: host → sandbox, best-effort, zero or more deliveries
//
// Per-request lifecycle: sent → awaiting response → resolved, timed out, or
// transport closed. The terminal states are final; a response arriving after
// the entry was removed is dropped and logged.
package bridge
