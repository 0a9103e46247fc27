// Package poller talks HTTP to the insight generation service.
//
// This package is internal to insightwatch. [Client] performs single insight
// lookups against GET {base}/issues/{id}/insight with a per-request timeout,
// a response size cap and pooled connections. It knows nothing about retry
// budgets or sessions; the polling state machine lives in the root package
// and calls into this client once per attempt.
package poller
