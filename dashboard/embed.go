// Package dashboard provides the embedded web UI assets for insightwatch.
//
// The page subscribes to the server's SSE stream and renders one card per
// watched issue. Issues can be added and removed from the page through the
// watch API.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - Main dashboard page with inline CSS and JavaScript
//
//go:embed assets/*
var Assets embed.FS
