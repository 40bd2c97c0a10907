package request

import (
	"context"
	"time"

	"github.com/hitman-sh/hitman/packages/config"
	"github.com/hitman-sh/hitman/packages/extract"
	"github.com/hitman-sh/hitman/packages/history"
	"github.com/hitman-sh/hitman/packages/output"
	"github.com/hitman-sh/hitman/packages/schema"
	"github.com/hitman-sh/hitman/packages/scope"
	"github.com/hitman-sh/hitman/packages/substitute"
)

// Outcome is the result of one executed request, handed to the
// presentation layer unformatted.
type Outcome struct {
	StatusCode   int
	Status       string
	Headers      map[string]string
	Body         []byte
	Duration     time.Duration
	Captured     map[string]scope.Value
	SchemaErrors []string
}

// Engine executes a single resolved request and runs the post-response
// pipeline: extraction, schema validation, capture persistence, history.
type Engine struct {
	client  *Client
	store   *config.Store
	console *output.Console
	history *history.Log
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithClient sets the HTTP client.
func WithClient(client *Client) EngineOption {
	return func(e *Engine) {
		e.client = client
	}
}

// WithConsole sets the reporter.
func WithConsole(console *output.Console) EngineOption {
	return func(e *Engine) {
		e.console = console
	}
}

// WithHistory enables the run history log.
func WithHistory(log *history.Log) EngineOption {
	return func(e *Engine) {
		e.history = log
	}
}

// NewEngine creates an engine bound to a configuration store.
func NewEngine(store *config.Store, opts ...EngineOption) *Engine {
	e := &Engine{store: store}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = NewClient()
	}
	if e.console == nil {
		e.console = output.NewConsole()
	}
	return e
}

// Execute renders src against sc, sends it, and on a 2xx response runs
// extraction and persists captures before returning. When Execute returns
// without error, every captured variable is already durable on disk.
// Non-2xx responses return the outcome together with a StatusError.
func (e *Engine) Execute(ctx context.Context, src *Source, sc scope.Scope, interaction substitute.Interaction) (*Outcome, error) {
	def, text, err := src.Render(sc, interaction)
	if err != nil {
		return nil, err
	}

	e.console.Request(text)

	resp, err := e.client.Do(ctx, def)
	if err != nil {
		return nil, err
	}

	e.console.Response(resp.Status, resp.Headers)
	e.console.Body(resp.Body)
	e.recordHistory(ctx, src, def, resp)

	outcome := &Outcome{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Headers:    resp.Headers,
		Body:       resp.Body,
		Duration:   resp.Duration,
	}

	if !resp.IsSuccess() {
		return outcome, &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if src.SchemaPath() != "" && resp.IsJSON() {
		violations, err := schema.Validate(src.SchemaPath(), resp.Body)
		if err != nil {
			e.console.Warn("schema validation skipped: %v", err)
		} else {
			for _, v := range violations {
				e.console.Warn("schema: %s", v)
			}
			outcome.SchemaErrors = violations
		}
	}

	if spec := src.ExtractSpec(); len(spec) > 0 && resp.IsJSON() {
		captured, err := e.capture(resp.Body, spec)
		if err != nil {
			// Losing a captured value silently would poison later
			// runs, so persistence failures are fatal.
			return nil, err
		}
		outcome.Captured = captured
	}

	e.console.Completed(resp.Duration)
	return outcome, nil
}

// Rerun re-executes a request non-interactively with a freshly built
// scope, for watch-triggered runs.
func (e *Engine) Rerun(ctx context.Context, src *Source, target string, overrides map[string]string) (*Outcome, error) {
	sc, err := e.store.BuildScope(target, src.Vars(), overrides)
	if err != nil {
		return nil, err
	}
	return e.Execute(ctx, src, sc, substitute.NonInteractive{})
}

// capture extracts variables from the body and persists them in one
// atomic rewrite of the capture file.
func (e *Engine) capture(body []byte, spec extract.Spec) (map[string]scope.Value, error) {
	results, warnings := extract.Extract(body, spec)
	for _, w := range warnings {
		e.console.Warn("%v", w)
	}

	for name, value := range results {
		if value.Kind() == scope.KindList {
			e.console.CapturedList(name, len(value.List()))
		} else {
			e.console.Captured(name, value.Scalar().String())
		}
	}

	if err := e.store.Captures().PersistAll(results); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Engine) recordHistory(ctx context.Context, src *Source, def *Definition, resp *Response) {
	if e.history == nil {
		return
	}
	if err := e.history.Record(ctx, src.Path, def.Method, def.URL, resp.StatusCode, resp.Duration); err != nil {
		e.console.Warn("history: %v", err)
	}
}
