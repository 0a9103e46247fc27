// Package insightwatch fetches resources that become available some time
// after they are requested, such as the AI insight produced for an issue.
//
// The core is a small polling state machine. A [Controller] fetches once,
// then polls on a fixed interval until the resource is ready, an attempt
// budget runs out, or the session is cancelled. A [Guard] ties a controller
// to the identifier a consumer currently cares about and to the consumer's
// lifetime, so a stale result can never reach a consumer that moved on.
//
// # Quick Start
//
// Poll for one insight and print the outcome:
//
//	src, _ := insightwatch.NewInsightSource("http://localhost:8083")
//	fetcher := insightwatch.NewHTTPFetcher(src)
//	defer fetcher.Close()
//
//	ctrl, _ := insightwatch.NewController[insightwatch.Insight](fetcher,
//	    func(obs insightwatch.Observation[insightwatch.Insight]) {
//	        fmt.Println(obs.Identifier, obs.State)
//	    })
//	guard := insightwatch.NewGuard(ctrl)
//	defer guard.Close()
//
//	guard.Set("issue-42")
//
// Observers see three states:
//
//   - [StatePending]: not available yet, polling continues
//   - [StateReady]: the payload arrived
//   - [StateUnavailable]: the attempt budget was exhausted
//
// A fetch error is treated exactly like a result that is not ready.
//
// # Dashboard
//
// [Board] watches many issues at once and serves a live dashboard with a
// JSON API and Server-Sent Events:
//
//	b, err := insightwatch.New(
//	    insightwatch.WithSource(src),
//	    insightwatch.WithIssues("issue-42", "issue-43"),
//	    insightwatch.WithPort(9090),
//	)
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	b.Start(ctx) // blocks until context is cancelled
//
// # Payload Extractors
//
// Extractors decide how insight service responses are interpreted:
//
//   - [DefaultPayloadExtractor]: reads the {"insight": {...}} envelope
//   - [JSONPathPayloadExtractor]: reads the insight at a dot-notation path
//   - [FirstReady]: tries several extractors in order
//
// # Architecture
//
// The internal packages are not part of the public API:
//
//   - internal/poller: pooled HTTP client for insight lookups
//   - internal/store: in-memory snapshots with pub/sub for live updates
//   - internal/server: HTTP server with REST API and Server-Sent Events
//   - internal/tui: terminal panel following one issue
//   - dashboard: embedded web UI assets
package insightwatch
