package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/hitman-sh/hitman/packages/scope"
)

// terminalInteraction asks the user for missing variables on stderr so
// the response body on stdout stays pipeable.
type terminalInteraction struct {
	in  *bufio.Reader
	out io.Writer
}

func newTerminalInteraction() *terminalInteraction {
	return &terminalInteraction{in: bufio.NewReader(os.Stdin), out: os.Stderr}
}

func (t *terminalInteraction) Prompt(key, fallback string, hasFallback bool) (string, error) {
	for {
		if hasFallback {
			fmt.Fprintf(t.out, "%s [%s]: ", key, fallback)
		} else {
			fmt.Fprintf(t.out, "%s: ", key)
		}

		line, err := t.in.ReadString('\n')
		value := strings.TrimSpace(line)
		if value != "" {
			return value, nil
		}
		if hasFallback {
			return fallback, nil
		}
		if err != nil {
			return "", fmt.Errorf("reading value for %s: %w", key, err)
		}
		// Empty input with no fallback: ask again rather than give up.
	}
}

func (t *terminalInteraction) Select(key string, items []scope.ListItem) (scope.Scalar, error) {
	fmt.Fprintf(t.out, "select a value for %s:\n", key)
	for i, item := range items {
		fmt.Fprintf(t.out, "  %d) %s\n", i+1, item.Name)
	}

	for {
		fmt.Fprint(t.out, "> ")
		line, err := t.in.ReadString('\n')
		if err != nil && strings.TrimSpace(line) == "" {
			return scope.Scalar{}, fmt.Errorf("reading selection for %s: %w", key, err)
		}
		if n, convErr := strconv.Atoi(strings.TrimSpace(line)); convErr == nil && n >= 1 && n <= len(items) {
			return items[n-1].Value, nil
		}
		fmt.Fprintf(t.out, "enter a number between 1 and %d\n", len(items))
	}
}
