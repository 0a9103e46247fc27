// Package server provides the HTTP surface of the insight dashboard.
//
// This package is internal to insightwatch and handles all HTTP concerns:
//
//   - Dashboard serving: the embedded page at "/"
//   - Snapshot API: "/api/insights" and "/api/insights/{id}"
//   - Watch API: POST "/api/watch" and DELETE "/api/watch/{id}"
//   - Server-Sent Events: live snapshots at "/api/sse", optionally filtered
//     with ?issue=<id>
//
// The server shuts down gracefully when its context is cancelled, with a
// 5-second timeout for in-flight requests.
package server
