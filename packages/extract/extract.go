// Package extract derives new scope variables from JSON response bodies
// using JSONPath-style expressions declared in a request's _extract table.
// Extraction failures never fail the request; they surface as warnings
// and leave the corresponding variable unset.
package extract

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/hitman-sh/hitman/packages/scope"
)

// Entry describes how one output variable is extracted: either a single
// path for scalar extraction, or a list form where Root selects an array
// and Name/Value are evaluated per element.
type Entry struct {
	Path string
	List *ListEntry
}

// ListEntry is the structured {_, name, value} form of an entry.
type ListEntry struct {
	Root  string
	Name  string
	Value string
}

// Spec maps output variable names to extraction entries.
type Spec map[string]Entry

// Warning reports a non-fatal extraction problem for one variable.
type Warning struct {
	Name string
	Err  error
}

func (w Warning) Error() string {
	return fmt.Sprintf("extracting %s: %v", w.Name, w.Err)
}

// ParseSpec converts the decoded _extract table into a Spec. A string
// value is a scalar path; a table value must carry _ (or the legacy
// "list" key), name and value paths.
func ParseSpec(raw any) (Spec, error) {
	if raw == nil {
		return nil, nil
	}
	table, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("_extract must be a table")
	}

	spec := make(Spec, len(table))
	for name, v := range table {
		switch entry := v.(type) {
		case string:
			spec[name] = Entry{Path: entry}
		case map[string]any:
			root, ok := entry["_"].(string)
			if !ok {
				// Earlier versions used "list" for the array path.
				root, ok = entry["list"].(string)
			}
			if !ok {
				return nil, fmt.Errorf("_extract.%s: missing _ path", name)
			}
			namePath, ok := entry["name"].(string)
			if !ok {
				return nil, fmt.Errorf("_extract.%s: missing name path", name)
			}
			valuePath, ok := entry["value"].(string)
			if !ok {
				return nil, fmt.Errorf("_extract.%s: missing value path", name)
			}
			spec[name] = Entry{List: &ListEntry{Root: root, Name: namePath, Value: valuePath}}
		default:
			return nil, fmt.Errorf("_extract.%s: expected path string or {_, name, value} table", name)
		}
	}
	return spec, nil
}

// Extract evaluates spec against a JSON body. Scalar entries that match
// nothing are simply not produced; shape mismatches are reported as
// warnings. Order of list elements follows the response.
func Extract(body []byte, spec Spec) (map[string]scope.Value, []Warning) {
	if len(spec) == 0 {
		return nil, nil
	}

	doc := gjson.ParseBytes(body)
	results := make(map[string]scope.Value)
	var warnings []Warning

	for name, entry := range spec {
		if entry.List != nil {
			value, err := extractList(doc, entry.List)
			if err != nil {
				warnings = append(warnings, Warning{Name: name, Err: err})
				continue
			}
			results[name] = value
			continue
		}

		res := lookup(doc, entry.Path)
		if !res.Exists() {
			continue
		}
		value, err := scalarOf(res)
		if err != nil {
			warnings = append(warnings, Warning{Name: name, Err: err})
			continue
		}
		results[name] = scope.ScalarValue(value.Raw())
	}

	return results, warnings
}

func extractList(doc gjson.Result, entry *ListEntry) (scope.Value, error) {
	root := lookup(doc, entry.Root)
	if !root.Exists() {
		return scope.Value{}, fmt.Errorf("path %s matched nothing", entry.Root)
	}
	if !root.IsArray() {
		return scope.Value{}, fmt.Errorf("path %s is not an array", entry.Root)
	}

	var items []scope.ListItem
	for _, el := range root.Array() {
		value := lookup(el, entry.Value)
		if !value.Exists() {
			// Elements without a value are dropped, not fatal.
			continue
		}
		valueScalar, err := scalarOf(value)
		if err != nil {
			continue
		}

		name := valueScalar.String()
		if n := lookup(el, entry.Name); n.Exists() {
			name = n.String()
		}
		items = append(items, scope.ListItem{Name: name, Value: valueScalar})
	}

	return scope.ListValue(items), nil
}

// lookup evaluates a JSONPath-style expression against a node. Only path
// evaluation is supported, which maps directly onto gjson syntax once the
// $ anchor and bracketed indices are normalized.
func lookup(node gjson.Result, path string) gjson.Result {
	p := toGJSONPath(path)
	if p == "" {
		return node
	}
	return node.Get(p)
}

// toGJSONPath converts "$.a.b[0]" into "a.b.0". "$" alone addresses the
// whole node.
func toGJSONPath(path string) string {
	p := strings.TrimSpace(path)
	p = strings.TrimPrefix(p, "$")
	p = strings.ReplaceAll(p, "[", ".")
	p = strings.ReplaceAll(p, "]", "")
	return strings.Trim(p, ".")
}

func scalarOf(res gjson.Result) (scope.Scalar, error) {
	switch res.Type {
	case gjson.String:
		return scope.NewScalar(res.String()), nil
	case gjson.Number:
		// Preserve integer-ness where possible so captures round-trip
		// through TOML unchanged.
		if f := res.Float(); f == float64(int64(f)) {
			return scope.NewScalar(int64(f)), nil
		}
		return scope.NewScalar(res.Float()), nil
	case gjson.True:
		return scope.NewScalar(true), nil
	case gjson.False:
		return scope.NewScalar(false), nil
	default:
		return scope.Scalar{}, fmt.Errorf("matched node is not a scalar")
	}
}
