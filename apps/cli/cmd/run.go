package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hitman-sh/hitman/packages/config"
	"github.com/hitman-sh/hitman/packages/extract"
	"github.com/hitman-sh/hitman/packages/flurry"
	"github.com/hitman-sh/hitman/packages/history"
	"github.com/hitman-sh/hitman/packages/output"
	"github.com/hitman-sh/hitman/packages/request"
	"github.com/hitman-sh/hitman/packages/scope"
	"github.com/hitman-sh/hitman/packages/substitute"
)

// watchDebounce coalesces editor save bursts into one re-run.
const watchDebounce = 300 * time.Millisecond

var runFlags struct {
	target         string
	overrides      []string
	nonInteractive bool
	verbose        bool
	quiet          bool
	noColor        bool
	timeout        time.Duration
	insecure       bool
	noHistory      bool

	watch       bool
	repeat      int
	flurrySize  int
	connections int
	rate        float64
}

var runCmd = &cobra.Command{
	Use:   "run <template>",
	Short: "Execute a request template",
	Long: `Reads an .http (or .gql/.graphql) template, substitutes {{placeholders}}
from the layered configuration, sends the request and captures values
from the response per the template's _extract table.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRequest(cmd.Context(), args[0])
	},
}

func init() {
	f := runCmd.Flags()
	f.StringVarP(&runFlags.target, "target", "t", "", "target to run against (default: selected target)")
	f.StringArrayVarP(&runFlags.overrides, "override", "O", nil, "override a variable (key=value, repeatable)")
	f.BoolVarP(&runFlags.nonInteractive, "non-interactive", "n", false, "never prompt; fail on unresolved variables")
	f.BoolVarP(&runFlags.verbose, "verbose", "v", false, "echo the request and response headers")
	f.BoolVarP(&runFlags.quiet, "quiet", "q", false, "only print warnings and the response body")
	f.BoolVar(&runFlags.noColor, "no-color", false, "disable colored output")
	f.DurationVar(&runFlags.timeout, "timeout", request.DefaultTimeout, "per-request timeout")
	f.BoolVar(&runFlags.insecure, "insecure", false, "skip TLS certificate validation")
	f.BoolVar(&runFlags.noHistory, "no-history", false, "do not record this run in the history log")

	f.BoolVarP(&runFlags.watch, "watch", "w", false, "re-run whenever the template or configuration changes")
	f.IntVar(&runFlags.repeat, "repeat", 0, "re-send the resolved request every N seconds, printing one line per response")
	f.IntVarP(&runFlags.flurrySize, "flurry", "f", 0, "send the resolved request N times over a worker pool")
	f.IntVarP(&runFlags.connections, "connections", "c", 1, "concurrent connections in flurry mode")
	f.Float64Var(&runFlags.rate, "rate", 0, "dispatch rate limit in requests per second (flurry mode, 0 = unthrottled)")
}

func runRequest(ctx context.Context, path string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := loadStore()
	if err != nil {
		return err
	}

	target := runFlags.target
	if target == "" {
		target = store.Target()
	}

	overrides, err := parseOverrides(runFlags.overrides)
	if err != nil {
		return err
	}

	console := output.NewConsole(
		output.WithVerbose(runFlags.verbose),
		output.WithQuiet(runFlags.quiet),
		output.WithNoColor(runFlags.noColor),
	)

	src, err := request.LoadSource(path)
	if err != nil {
		return err
	}

	sc, err := store.BuildScope(target, src.Vars(), overrides)
	if err != nil {
		return err
	}

	client := request.NewClient(
		request.WithTimeout(runFlags.timeout),
		request.WithValidateSSL(!runFlags.insecure),
		request.WithCookieJar(request.NewJar(store.Captures())),
	)

	engineOpts := []request.EngineOption{
		request.WithClient(client),
		request.WithConsole(console),
	}
	if !runFlags.noHistory {
		log, err := history.Open(filepath.Join(store.RootDir(), historyFile))
		if err != nil {
			console.Warn("history disabled: %v", err)
		} else {
			defer log.Close()
			engineOpts = append(engineOpts, request.WithHistory(log))
		}
	}
	newEngine := func(s *config.Store) *request.Engine {
		return request.NewEngine(s, engineOpts...)
	}
	engine := newEngine(store)

	switch {
	case runFlags.flurrySize > 0:
		return runFlurry(ctx, store, console, client, src, sc)
	case runFlags.repeat > 0:
		return runMonitor(ctx, console, client, src, sc)
	case runFlags.watch:
		return runWatch(ctx, store, console, newEngine, src, target, overrides)
	}

	var interaction substitute.Interaction = newTerminalInteraction()
	if runFlags.nonInteractive {
		interaction = substitute.NonInteractive{}
	}
	_, err = engine.Execute(ctx, src, sc, interaction)
	return err
}

// runFlurry resolves the template once, non-interactively, and replays
// it over the worker pool. A capture persistence failure cancels the
// rest of the batch.
func runFlurry(ctx context.Context, store *config.Store, console *output.Console, client *request.Client, src *request.Source, sc scope.Scope) error {
	def, _, err := src.Render(sc, substitute.NonInteractive{})
	if err != nil {
		return err
	}

	opts := flurry.Options{
		Total:       runFlags.flurrySize,
		Connections: runFlags.connections,
		Rate:        runFlags.rate,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var once sync.Once
	var persistErr error
	onResponse := func(resp *request.Response) {
		spec := src.ExtractSpec()
		if len(spec) == 0 || !resp.IsJSON() {
			return
		}
		results, _ := extract.Extract(resp.Body, spec)
		if len(results) == 0 {
			return
		}
		if err := store.Captures().PersistAll(results); err != nil {
			once.Do(func() {
				persistErr = err
				cancel()
			})
		}
	}

	console.Info("Sending %d requests over %d connections to %s %s", opts.Total, opts.Connections, def.Method, def.URL)

	agg, runErr := flurry.Run(ctx, client, def, opts, onResponse)
	if persistErr != nil {
		return persistErr
	}
	if agg != nil {
		printFlurrySummary(console, agg)
	}
	if runErr != nil && runErr != context.Canceled {
		return runErr
	}
	return nil
}

func printFlurrySummary(console *output.Console, agg *flurry.Aggregate) {
	console.Info("%d ok, %d failed in %s", agg.Successes, agg.Failures, agg.Elapsed.Round(time.Millisecond))
	for status, count := range agg.StatusCounts {
		console.Info("  HTTP %d: %d", status, count)
	}
	if agg.Successes+agg.Failures > 0 {
		console.Info("latency min %s  mean %s  max %s", agg.Min, agg.Mean, agg.Max)
		console.Info("        p50 %s  p95 %s  p99 %s", agg.P50, agg.P95, agg.P99)
	}
}

// runMonitor resolves once and re-sends the request on a fixed interval,
// printing one comma-separated line per response until interrupted.
func runMonitor(ctx context.Context, console *output.Console, client *request.Client, src *request.Source, sc scope.Scope) error {
	def, _, err := src.Render(sc, substitute.NonInteractive{})
	if err != nil {
		return err
	}

	interval := time.Duration(runFlags.repeat) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	check := func() {
		resp, err := client.Do(ctx, def)
		if err != nil {
			if ctx.Err() == nil {
				console.Warn("%v", err)
			}
			return
		}
		fmt.Printf("%s, %d, %s\n",
			time.Now().Format(time.RFC3339), resp.StatusCode, resp.Duration.Round(time.Millisecond))
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			check()
		}
	}
}

// runWatch runs the request once, then re-runs it non-interactively
// whenever the template or any configuration file changes. The capture
// data file is not watched; re-running on our own writes would loop.
func runWatch(ctx context.Context, store *config.Store, console *output.Console, newEngine func(*config.Store) *request.Engine, src *request.Source, target string, overrides map[string]string) error {
	engine := newEngine(store)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := make(map[string]bool)
	dirs := make(map[string]bool)
	files := store.WatchList(src.Path)
	if src.HTTPPath != src.Path {
		files = append(files, src.HTTPPath)
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	// Watch directories, not files: editors replace files on save, which
	// drops inode-level watches.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	rerun := func() {
		if _, err := engine.Rerun(ctx, src, target, overrides); err != nil {
			console.Error("%v", err)
		}
	}
	rerun()

	var debounce *time.Timer
	fire := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			console.Warn("watch: %v", err)
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case fire <- struct{}{}:
				default:
				}
			})
		case <-fire:
			console.Info("Change detected, re-running %s", src.Path)
			// Reload configuration and the request sidecar; both may be
			// what changed.
			freshStore, err := config.Load(store.RootDir())
			if err != nil {
				console.Error("%v", err)
				continue
			}
			freshSrc, err := request.LoadSource(src.Path)
			if err != nil {
				console.Error("%v", err)
				continue
			}
			store, src, engine = freshStore, freshSrc, newEngine(freshStore)
			if runFlags.target == "" {
				target = store.Target()
			}
			rerun()
		}
	}
}

func parseOverrides(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	overrides := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid override %q, expected key=value", pair)
		}
		overrides[key] = value
	}
	return overrides, nil
}
