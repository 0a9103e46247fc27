package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/insightwatch"
	"github.com/jpalmerr/insightwatch/example/mockintel"
)

func main() {
	// start the mock insight service
	svc := mockintel.New(5*time.Second, 30*time.Second)
	go func() {
		if err := http.ListenAndServe(":8083", svc.Handler()); err != nil {
			slog.Error("mock service error", "error", err)
		}
	}()
	time.Sleep(100 * time.Millisecond)

	src, err := insightwatch.NewInsightSource("http://localhost:8083",
		insightwatch.WithTimeout(5*time.Second),
	)
	if err != nil {
		slog.Error("failed to create insight source", "error", err)
		os.Exit(1)
	}

	// start the dashboard
	board, err := insightwatch.New(
		insightwatch.WithSource(src),
		insightwatch.WithIssues("issue-101", "issue-102", "stale-issue-103"),
		insightwatch.WithPollingInterval(5*time.Second),
		insightwatch.WithSessionOptions(insightwatch.WithMaxAttempts(8)),
		insightwatch.WithPort(8080),
		insightwatch.WithObservationCallback(func(obs insightwatch.Observation[insightwatch.Insight]) {
			if obs.State == insightwatch.StateReady {
				fmt.Printf("  insight for %s: %s\n", obs.Identifier, obs.Payload.Summary)
			}
		}),
	)
	if err != nil {
		slog.Error("failed to create board", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  ╔═══════════════════════════════════════════════════════╗")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Insightwatch Demo                                   ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Open http://localhost:8080 in your browser          ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Issues:                                             ║")
	fmt.Println("  ║   • 2 that get an insight within 30s                  ║")
	fmt.Println("  ║   • 1 that gives up after 8 attempts                  ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ║   Press Ctrl+C to stop                                ║")
	fmt.Println("  ║                                                       ║")
	fmt.Println("  ╚═══════════════════════════════════════════════════════╝")
	fmt.Println()

	// set up context with signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := board.Start(ctx); err != nil {
		slog.Error("insightwatch error", "error", err)
		os.Exit(1)
	}
}
