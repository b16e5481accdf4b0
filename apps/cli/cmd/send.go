package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/quiverhq/quiver/packages/bench"
	"github.com/quiverhq/quiver/packages/output"
	"github.com/quiverhq/quiver/packages/schema"
	"github.com/quiverhq/quiver/packages/send"
	"github.com/quiverhq/quiver/packages/store"
)

var sendCmd = &cobra.Command{
	Use:   "send <request id|name>",
	Short: "Send a stored request and capture the response",
	Long: `Send a stored request. The request is rendered against the selected
environment, dispatched, and the response is captured in the database.

Examples:
  quiver send req_2f8a1c
  quiver send "create user" --env staging
  quiver send req_2f8a1c --filter users.0.name
  quiver send req_2f8a1c --schema user.schema.json
  quiver send req_2f8a1c --repeat 100 --rate 20
  quiver send req_2f8a1c --watch`,
	Args: cobra.ExactArgs(1),
	RunE: sendCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for database change
	// events in watch mode.
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	sendEnvFlag      string
	sendFilterFlag   string
	sendSchemaFlag   string
	sendRepeatFlag   int
	sendRateFlag     float64
	sendOutputFlag   string
	sendVerboseFlag  bool
	sendNoColorFlag  bool
	sendWatchFlag    bool
	sendTimeoutFlag  string
	sendInsecureFlag bool
	sendProxyFlag    string
)

func init() {
	sendCmd.Flags().StringVarP(&sendEnvFlag, "env", "e", getEnvString("QUIVER_ENV", ""), "Environment id or name to render against (env: QUIVER_ENV)")
	sendCmd.Flags().StringVar(&sendFilterFlag, "filter", "", "Print only the body field at this gjson path")
	sendCmd.Flags().StringVar(&sendSchemaFlag, "schema", "", "Validate the response body against a JSON Schema file")
	sendCmd.Flags().IntVar(&sendRepeatFlag, "repeat", 0, "Send the request N times and print a latency summary")
	sendCmd.Flags().Float64Var(&sendRateFlag, "rate", 0, "Cap repeated sends at this rate per second")
	sendCmd.Flags().StringVarP(&sendOutputFlag, "output", "o", getEnvString("QUIVER_OUTPUT", "console"), "Output format: console, json (env: QUIVER_OUTPUT)")
	sendCmd.Flags().BoolVarP(&sendVerboseFlag, "verbose", "v", false, "Print response headers")
	sendCmd.Flags().BoolVar(&sendNoColorFlag, "no-color", getEnvBool("QUIVER_NO_COLOR", false), "Disable colored output (env: QUIVER_NO_COLOR)")
	sendCmd.Flags().BoolVarP(&sendWatchFlag, "watch", "w", false, "Re-send whenever the database changes")
	sendCmd.Flags().StringVar(&sendTimeoutFlag, "timeout", "", "Override the request timeout (e.g., 30s, 1m)")
	sendCmd.Flags().BoolVarP(&sendInsecureFlag, "insecure", "k", false, "Disable SSL certificate validation for this send")
	sendCmd.Flags().StringVar(&sendProxyFlag, "proxy", "", "Proxy URL for this send")
}

func sendCommand(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	st, err := openStore()
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	req, err := resolveRequest(ctx, st, args[0])
	if err != nil {
		return err
	}

	environmentID, err := resolveEnvironment(ctx, st, sendEnvFlag)
	if err != nil {
		return err
	}

	override, err := settingsOverride()
	if err != nil {
		return err
	}

	sender := send.NewSender(st,
		send.WithLogger(newLogger()),
		send.WithSettingsOverride(override))

	formatter := output.NewConsoleFormatter(
		output.WithWriter(cmd.OutOrStdout()),
		output.WithVerbose(sendVerboseFlag),
		output.WithNoColor(sendNoColorFlag))

	doSend := func(ctx context.Context) (*store.Response, error) {
		return sender.Send(ctx, req.ID, environmentID)
	}

	if sendRepeatFlag > 0 {
		return sendRepeated(ctx, cmd, doSend)
	}

	if sendWatchFlag {
		return sendWatched(ctx, cmd, formatter, doSend)
	}

	resp, err := doSend(ctx)
	if err != nil && resp == nil {
		return err
	}
	return printResponse(cmd, formatter, resp, err)
}

// printResponse writes the captured response and exits non-zero for
// failed sends and schema violations.
func printResponse(cmd *cobra.Command, formatter *output.ConsoleFormatter, resp *store.Response, sendErr error) error {
	switch strings.ToLower(sendOutputFlag) {
	case "json":
		if err := output.WriteJSON(cmd.OutOrStdout(), resp); err != nil {
			return err
		}
	default:
		formatter.FormatResponse(resp, sendFilterFlag)
	}

	if sendErr != nil || resp.Error != "" {
		os.Exit(ExitRequestFailure)
	}

	if sendSchemaFlag != "" {
		if err := schema.ValidateResponseFile(resp, sendSchemaFlag); err != nil {
			formatter.FormatError(err)
			os.Exit(ExitSchemaFailure)
		}
	}
	return nil
}

// sendRepeated drives the request through the benchmark runner.
func sendRepeated(ctx context.Context, cmd *cobra.Command, doSend bench.SendFunc) error {
	runner, err := bench.NewRunner(doSend, sendRepeatFlag, sendRateFlag)
	if err != nil {
		return err
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Sends: %d total, %d ok, %d failed in %s\n",
		summary.Total, summary.Success, summary.Failed, summary.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Latency: min=%s mean=%s p50=%s p95=%s p99=%s max=%s\n",
		summary.Min, summary.Mean.Round(time.Microsecond), summary.P50, summary.P95, summary.P99, summary.Max)

	if summary.Failed > 0 {
		os.Exit(ExitRequestFailure)
	}
	return nil
}

// sendWatched re-sends whenever the database file changes. Writes are
// debounced so one logical edit triggers one send.
func sendWatched(ctx context.Context, cmd *cobra.Command, formatter *output.ConsoleFormatter, doSend bench.SendFunc) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// SQLite replaces the file on some writes, so watch the directory.
	dbPath, err := filepath.Abs(dbFlag)
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(dbPath), err)
	}

	runOnce := func() {
		resp, err := doSend(ctx)
		if err != nil && resp == nil {
			formatter.FormatError(err)
			return
		}
		formatter.FormatResponse(resp, sendFilterFlag)
	}

	runOnce()
	fmt.Fprintf(cmd.OutOrStdout(), "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	var debounceTimer *time.Timer
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) || filepath.Base(event.Name) != filepath.Base(dbPath) {
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(WatchDebounceDelay, runOnce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			formatter.FormatError(err)

		case <-ctx.Done():
			fmt.Fprintf(cmd.OutOrStdout(), "\nStopped.\n")
			return nil
		}
	}
}

// settingsOverride builds the per-send settings hook from CLI flags.
func settingsOverride() (func(*store.Settings), error) {
	var timeout time.Duration
	if sendTimeoutFlag != "" {
		var err error
		timeout, err = time.ParseDuration(sendTimeoutFlag)
		if err != nil {
			return nil, fmt.Errorf("invalid --timeout: %w", err)
		}
	}
	return func(s *store.Settings) {
		if timeout > 0 {
			s.Timeout = timeout
		}
		if sendInsecureFlag {
			s.ValidateSSL = false
		}
		if sendProxyFlag != "" {
			s.HTTPProxy = sendProxyFlag
			s.HTTPSProxy = sendProxyFlag
		}
	}, nil
}

// resolveRequest accepts a document id or a request name.
func resolveRequest(ctx context.Context, st *store.Store, ref string) (*store.Request, error) {
	if strings.HasPrefix(ref, "req_") {
		return st.GetRequest(ctx, ref)
	}

	requests, err := st.ListRequests(ctx, "")
	if err != nil {
		return nil, err
	}
	var matches []*store.Request
	for _, req := range requests {
		if matchesName(req.Name, ref) {
			matches = append(matches, req)
		}
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no request named %q", ref)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("%d requests named %q, use the id instead", len(matches), ref)
	}
}

// resolveEnvironment accepts a document id or an environment name and
// returns the id. An empty ref selects no environment.
func resolveEnvironment(ctx context.Context, st *store.Store, ref string) (string, error) {
	if ref == "" {
		return "", nil
	}
	if strings.HasPrefix(ref, "env_") {
		if _, err := st.GetEnvironment(ctx, ref); err != nil {
			return "", err
		}
		return ref, nil
	}

	envs, err := st.ListEnvironments(ctx, "")
	if err != nil {
		return "", err
	}
	for _, env := range envs {
		if matchesName(env.Name, ref) {
			return env.ID, nil
		}
	}
	return "", fmt.Errorf("no environment named %q", ref)
}
