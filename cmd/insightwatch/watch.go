package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jpalmerr/insightwatch"
	"github.com/jpalmerr/insightwatch/config"
	"github.com/jpalmerr/insightwatch/internal/tui"
	"github.com/spf13/cobra"
)

// watchCmd follows issues in the terminal.
var watchCmd = &cobra.Command{
	Use:   "watch [issue-id]",
	Short: "Follow an issue until its insight is ready",
	Long: `Follow the insight of an issue in the terminal.

The service is taken from a config file (-c) or from --url and --token.
Without --plain an interactive view starts; type another issue id and
press enter to switch to it.

With --plain every observation is printed as one line. Issue ids are read
from the argument or, without one, from stdin, one per line. Each issue is
followed until its insight is ready or unavailable before the next starts.
The command fails if any insight is unavailable.

Example:
  insightwatch watch 8d1f0f7e-8c6b-4c55-9d0e-5f0bcb0f3a11 -c config.yaml
  insightwatch watch --url http://localhost:8083 --plain < issues.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("config", "c", "", "path to config file")
	watchCmd.Flags().String("url", "", "insight service URL (ignored with --config)")
	watchCmd.Flags().String("token", "", "bearer token for the insight service")
	watchCmd.Flags().Duration("interval", 5*time.Second, "time between polls")
	watchCmd.Flags().Int("max-attempts", 12, "polls before giving up")
	watchCmd.Flags().Bool("plain", false, "print observations instead of starting the interactive view")
	watchCmd.MarkFlagsMutuallyExclusive("config", "url")
}

// watchSettings resolves the source and session options from flags, or from
// the config file when one is given.
func watchSettings(cmd *cobra.Command) (insightwatch.InsightSource, []insightwatch.ControllerOption, error) {
	flags := cmd.Flags()

	if configFile, _ := flags.GetString("config"); configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return insightwatch.InsightSource{}, nil, fmt.Errorf("failed to load config: %w", err)
		}
		src, err := config.BuildSource(cfg)
		if err != nil {
			return insightwatch.InsightSource{}, nil, err
		}
		return src, config.SessionOptions(cfg), nil
	}

	rawURL, _ := flags.GetString("url")
	if rawURL == "" {
		return insightwatch.InsightSource{}, nil, errors.New("either --config or --url is required")
	}
	token, _ := flags.GetString("token")
	interval, _ := flags.GetDuration("interval")
	maxAttempts, _ := flags.GetInt("max-attempts")

	src, err := insightwatch.NewInsightSource(rawURL, insightwatch.WithToken(token))
	if err != nil {
		return insightwatch.InsightSource{}, nil, err
	}
	return src, []insightwatch.ControllerOption{
		insightwatch.WithInterval(interval),
		insightwatch.WithMaxAttempts(maxAttempts),
	}, nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	src, opts, err := watchSettings(cmd)
	if err != nil {
		return err
	}

	fetcher := insightwatch.NewHTTPFetcher(src)
	defer fetcher.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var issueID string
	if len(args) == 1 {
		issueID = strings.TrimSpace(args[0])
	}

	if plain, _ := cmd.Flags().GetBool("plain"); plain {
		opts = append(opts, insightwatch.WithControllerLogger(newLogger(false)))
		return watchPlain(ctx, cmd.OutOrStdout(), cmd.InOrStdin(), fetcher, opts, issueID)
	}

	// the interactive view owns the terminal
	opts = append(opts, insightwatch.WithControllerLogger(slog.New(slog.DiscardHandler)))
	return watchInteractive(ctx, fetcher, opts, issueID)
}

func watchInteractive(ctx context.Context, fetcher insightwatch.Fetcher[insightwatch.Insight], opts []insightwatch.ControllerOption, issueID string) error {
	feed := tui.NewFeed()
	ctrl, err := insightwatch.NewController(fetcher, feed.Observe, opts...)
	if err != nil {
		return err
	}
	guard := insightwatch.NewGuard(ctrl)
	defer guard.Close()

	model := tui.New(guard, feed, tui.Settings{
		Identifier:  issueID,
		Interval:    ctrl.Interval(),
		MaxAttempts: ctrl.MaxAttempts(),
	})

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("terminal view: %w", err)
	}
	return nil
}

// watchPlain follows each issue to a terminal state in turn, printing every
// observation to out.
func watchPlain(ctx context.Context, out io.Writer, in io.Reader, fetcher insightwatch.Fetcher[insightwatch.Insight], opts []insightwatch.ControllerOption, issueID string) error {
	var outMu sync.Mutex
	finals := make(chan insightwatch.Observation[insightwatch.Insight], 1)

	observer := func(obs insightwatch.Observation[insightwatch.Insight]) {
		outMu.Lock()
		printObservation(out, obs)
		outMu.Unlock()

		if obs.State != insightwatch.StatePending {
			finals <- obs
		}
	}

	ctrl, err := insightwatch.NewController(fetcher, observer, opts...)
	if err != nil {
		return err
	}
	guard := insightwatch.NewGuard(ctrl)
	defer guard.Close()

	var ids <-chan string
	if issueID != "" {
		one := make(chan string, 1)
		one <- issueID
		close(one)
		ids = one
	} else {
		ids = readIDs(ctx, in)
	}

	var total, unavailable int
	for {
		var id string
		select {
		case <-ctx.Done():
			return nil
		case next, ok := <-ids:
			if !ok {
				if total == 0 {
					return errors.New("no issue ids given")
				}
				if unavailable > 0 {
					return fmt.Errorf("%d of %d insights unavailable", unavailable, total)
				}
				return nil
			}
			id = next
		}

		total++
		// a repeated id must start a fresh session
		guard.Set("")
		guard.Set(id)

		select {
		case <-ctx.Done():
			return nil
		case obs := <-finals:
			if obs.State == insightwatch.StateUnavailable {
				unavailable++
			}
		}
	}
}

// readIDs sends the non-blank lines of in until EOF or ctx is done.
func readIDs(ctx context.Context, in io.Reader) <-chan string {
	ids := make(chan string)
	go func() {
		defer close(ids)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			id := strings.TrimSpace(scanner.Text())
			if id == "" {
				continue
			}
			select {
			case ids <- id:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ids
}

func printObservation(out io.Writer, obs insightwatch.Observation[insightwatch.Insight]) {
	fmt.Fprintf(out, "%s\t%s\tattempt=%d\n", obs.Identifier, obs.State, obs.Attempt)
	if obs.State != insightwatch.StateReady {
		return
	}

	in := obs.Payload
	fmt.Fprintf(out, "  summary:     %s\n", in.Summary)
	fmt.Fprintf(out, "  root cause:  %s\n", in.RootCause)
	fmt.Fprintf(out, "  remediation: %s\n", in.Remediation)
	if in.ModelUsed != "" {
		fmt.Fprintf(out, "  model:       %s (%d tokens)\n", in.ModelUsed, in.TokensUsed)
	}
}
