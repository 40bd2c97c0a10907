// Package output renders request traffic, warnings and flurry summaries
// to a terminal. The core engine never formats output itself; it reports
// through a Console injected by the CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
)

const maxEchoLine = 200

// Console is the terminal reporter.
type Console struct {
	writer  io.Writer
	stdout  io.Writer
	noColor bool
	verbose bool
	quiet   bool

	yellow *color.Color
	green  *color.Color
	red    *color.Color
	dim    *color.Color
}

// Option configures the console.
type Option func(*Console)

// WithWriter sets the diagnostic writer (stderr by default).
func WithWriter(w io.Writer) Option {
	return func(c *Console) {
		c.writer = w
	}
}

// WithStdout sets the body writer (stdout by default).
func WithStdout(w io.Writer) Option {
	return func(c *Console) {
		c.stdout = w
	}
}

// WithNoColor disables colored output.
func WithNoColor(noColor bool) Option {
	return func(c *Console) {
		c.noColor = noColor
	}
}

// WithVerbose enables request/response echo.
func WithVerbose(verbose bool) Option {
	return func(c *Console) {
		c.verbose = verbose
	}
}

// WithQuiet suppresses everything except warnings and errors.
func WithQuiet(quiet bool) Option {
	return func(c *Console) {
		c.quiet = quiet
	}
}

// NewConsole creates a console reporter.
func NewConsole(opts ...Option) *Console {
	c := &Console{
		writer: os.Stderr,
		stdout: os.Stdout,
		yellow: color.New(color.FgYellow),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		dim:    color.New(color.Faint),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.noColor {
		for _, col := range []*color.Color{c.yellow, c.green, c.red, c.dim} {
			col.DisableColor()
		}
	}
	return c
}

// Info prints an informational line, suppressed in quiet mode.
func (c *Console) Info(format string, args ...any) {
	if c.quiet {
		return
	}
	fmt.Fprintf(c.writer, "# "+format+"\n", args...)
}

// Warn prints a warning line.
func (c *Console) Warn(format string, args ...any) {
	c.yellow.Fprintf(c.writer, "# "+format+"\n", args...)
}

// Error prints an error line.
func (c *Console) Error(format string, args ...any) {
	c.red.Fprintf(c.writer, "# "+format+"\n", args...)
}

// Request echoes the outgoing request text, one prefixed line at a time.
func (c *Console) Request(text string) {
	if c.quiet || !c.verbose {
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		c.dim.Fprintf(c.writer, "> %s\n", truncate(line))
	}
	fmt.Fprintln(c.writer)
}

// Response echoes the response status line and headers.
func (c *Console) Response(status string, headers map[string]string) {
	if c.quiet || !c.verbose {
		return
	}
	c.dim.Fprintf(c.writer, "< %s\n", status)

	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c.dim.Fprintf(c.writer, "< %s: %s\n", name, truncate(headers[name]))
	}
	fmt.Fprintln(c.writer)
}

// Body prints the response body to stdout, where it can be piped.
func (c *Console) Body(body []byte) {
	if c.quiet || len(body) == 0 {
		return
	}
	fmt.Fprintln(c.stdout, strings.TrimRight(string(body), "\n"))
}

// Captured reports one extracted variable.
func (c *Console) Captured(name, value string) {
	c.Warn("Got '%s' = '%s'", name, truncate(value))
}

// CapturedList reports an extracted list variable.
func (c *Console) CapturedList(name string, count int) {
	c.Warn("Got '%s' with %d elements", name, count)
}

// Completed reports the request round-trip time.
func (c *Console) Completed(elapsed time.Duration) {
	c.Info("Request completed in %s", elapsed.Round(time.Millisecond))
}

func truncate(s string) string {
	if len(s) <= maxEchoLine {
		return s
	}
	return s[:maxEchoLine] + "..."
}
