// Package substitute resolves {{name}} and {{name | fallback}}
// placeholders in request templates against a variable scope. Resolution
// is depth-first per placeholder: a variable's value or fallback may
// itself contain placeholders, but once a replacement is produced it is
// inserted literally and never re-scanned by the enclosing template.
package substitute

import (
	"fmt"
	"strings"

	"github.com/hitman-sh/hitman/packages/scope"
)

// UnresolvedVariableError is returned when a placeholder has no value in
// scope, no usable fallback, and no interaction to supply one.
type UnresolvedVariableError struct {
	Key string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("no value for {{%s}}", e.Key)
}

// CycleError is returned when resolution revisits a variable already
// being expanded on the active path.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("cyclic reference: %s", strings.Join(e.Path, " -> "))
}

// SyntaxError is returned for unbalanced placeholder delimiters.
type SyntaxError struct {
	Text string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("unbalanced placeholder delimiters in %q", e.Text)
}

// Interaction supplies values the scope cannot: prompting for missing
// variables and selecting one entry from a list value. Implementations
// decide between interactive prompts, fallback acceptance and first-entry
// policies.
type Interaction interface {
	// Prompt asks for a value for key. When hasFallback is true,
	// fallback holds the fully resolved fallback text to offer as the
	// default.
	Prompt(key, fallback string, hasFallback bool) (string, error)
	// Select picks one entry from a list value; the selected entry's
	// scalar is what gets substituted.
	Select(key string, items []scope.ListItem) (scope.Scalar, error)
}

// NonInteractive accepts fallbacks and selects the first list entry, and
// fails with UnresolvedVariableError otherwise. Flurry mode and watch
// mode resolve through this.
type NonInteractive struct{}

func (NonInteractive) Prompt(key, fallback string, hasFallback bool) (string, error) {
	if hasFallback {
		return fallback, nil
	}
	return "", &UnresolvedVariableError{Key: key}
}

func (NonInteractive) Select(key string, items []scope.ListItem) (scope.Scalar, error) {
	if len(items) == 0 {
		return scope.Scalar{}, &UnresolvedVariableError{Key: key}
	}
	return items[0].Value, nil
}

// Resolve substitutes every placeholder in input against sc, consulting
// interaction for missing values and list selection.
func Resolve(input string, sc scope.Scope, interaction Interaction) (string, error) {
	r := &resolver{scope: sc, interaction: interaction}
	return r.resolveText(input)
}

type resolver struct {
	scope       scope.Scope
	interaction Interaction

	// resolving is the stack of variable names on the active expansion
	// path, used to turn unbounded recursion into a CycleError.
	resolving []string
}

// resolveText scans text left to right, substituting each placeholder.
// Replacement text is appended literally; only the placeholder's own
// value and fallback are resolved recursively.
func (r *resolver) resolveText(text string) (string, error) {
	var out strings.Builder
	rest := text

	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			if strings.Contains(rest, "}}") {
				return "", &SyntaxError{Text: firstLine(rest)}
			}
			out.WriteString(rest)
			return out.String(), nil
		}

		out.WriteString(rest[:start])
		rest = rest[start:]

		end, ok := matchClose(rest)
		if !ok {
			return "", &SyntaxError{Text: firstLine(rest)}
		}

		replacement, err := r.resolvePlaceholder(rest[2 : end-2])
		if err != nil {
			return "", err
		}
		out.WriteString(replacement)

		rest = rest[end:]
	}
}

// matchClose finds the end offset (exclusive) of the placeholder opening
// at the start of s, counting nested {{ }} pairs so fallbacks may contain
// placeholders of their own. Placeholders never span lines; scanning
// stops at the first newline so an unterminated opener on one line does
// not swallow the rest of the template.
func matchClose(s string) (int, bool) {
	depth := 0
	for i := 0; i+1 < len(s); i++ {
		if s[i] == '\n' {
			return 0, false
		}
		switch s[i : i+2] {
		case "{{":
			depth++
			i++
		case "}}":
			depth--
			i++
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// resolvePlaceholder handles the inner text of one {{...}} occurrence.
func (r *resolver) resolvePlaceholder(inner string) (string, error) {
	rawKey, fallback, hasFallback := strings.Cut(inner, "|")
	rawKey = strings.TrimSpace(rawKey)
	fallback = strings.TrimSpace(fallback)

	key := filterKey(rawKey)
	if key == "" {
		return "", &SyntaxError{Text: "{{" + inner + "}}"}
	}

	value, err := r.resolveKey(key, fallback, hasFallback)
	if err != nil {
		return "", err
	}

	// Characters around the name inside the braces (quotes, brackets)
	// survive the substitution: {{ "key" }} renders as "value".
	return strings.Replace(rawKey, key, value, 1), nil
}

func (r *resolver) resolveKey(key, fallback string, hasFallback bool) (string, error) {
	for i, name := range r.resolving {
		if name == key {
			cycle := append(append([]string{}, r.resolving[i:]...), key)
			return "", &CycleError{Path: cycle}
		}
	}

	r.resolving = append(r.resolving, key)
	defer func() { r.resolving = r.resolving[:len(r.resolving)-1] }()

	value, _, found := r.scope.Lookup(key)
	if found {
		switch value.Kind() {
		case scope.KindList:
			selected, err := r.interaction.Select(key, value.List())
			if err != nil {
				return "", err
			}
			return r.resolveText(selected.String())
		default:
			return r.resolveText(value.Scalar().String())
		}
	}

	// Not in scope: resolve the fallback first so the prompt can offer
	// it as a default, then let the interaction decide.
	resolvedFallback := ""
	if hasFallback {
		var err error
		resolvedFallback, err = r.resolveText(fallback)
		if err != nil {
			return "", err
		}
	}

	return r.interaction.Prompt(key, resolvedFallback, hasFallback)
}

// filterKey keeps only the characters valid in a variable name, so that
// decoration like quotes stays out of the lookup key.
func filterKey(s string) string {
	var b strings.Builder
	for _, c := range s {
		if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			b.WriteRune(c)
		}
	}
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
