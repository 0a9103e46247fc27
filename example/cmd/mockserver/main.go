// Standalone mock insight service for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/insightwatch serve -c example/config.yaml
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jpalmerr/insightwatch/example/mockintel"
)

func main() {
	fmt.Println("Mock insight service starting on :8083")
	fmt.Println("Insights become ready 10-40s after the first lookup")
	fmt.Printf("Issue ids starting with %q never get one\n", mockintel.StalePrefix)
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	svc := mockintel.New(10*time.Second, 40*time.Second)
	if err := http.ListenAndServe(":8083", svc.Handler()); err != nil {
		slog.Error("mock server error", "error", err)
		os.Exit(1)
	}
}
