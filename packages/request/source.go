// Package request turns a template file plus a resolved scope into an
// outgoing HTTP request, sends it, and feeds captured values back into
// the configuration store.
package request

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hitman-sh/hitman/packages/config"
	"github.com/hitman-sh/hitman/packages/extract"
	"github.com/hitman-sh/hitman/packages/scope"
	"github.com/hitman-sh/hitman/packages/substitute"
)

// GraphQLWrapper is the shared .http template wrapping GraphQL queries.
const GraphQLWrapper = "_graphql.http"

// Source is a loaded request template: the template file itself, the
// optional GraphQL query it wraps, and its per-request TOML sidecar.
type Source struct {
	// Path is the file the user named (.http, .gql or .graphql).
	Path string
	// HTTPPath is the template that gets substituted; for GraphQL
	// sources this is the shared wrapper.
	HTTPPath string
	// GraphQLPath is the query file, empty for plain requests.
	GraphQLPath string

	vars        map[string]any
	extractSpec extract.Spec
	schemaPath  string
}

// LoadSource resolves path into a Source. GraphQL files (.gql/.graphql)
// are wrapped by the nearest _graphql.http found walking upward.
func LoadSource(path string) (*Source, error) {
	src := &Source{Path: path, HTTPPath: path}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".gql" || ext == ".graphql" {
		wrapper, err := findGraphQLWrapper(path)
		if err != nil {
			return nil, err
		}
		src.HTTPPath = wrapper
		src.GraphQLPath = path
	}

	vars, err := config.ReadRequestTOML(path)
	if err != nil {
		return nil, err
	}
	src.vars = vars

	src.extractSpec, err = extract.ParseSpec(vars["_extract"])
	if err != nil {
		return nil, fmt.Errorf("%s.toml: %w", path, err)
	}

	if raw, ok := vars["_schema"]; ok {
		schemaPath, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("%s.toml: _schema must be a path string", path)
		}
		if !filepath.IsAbs(schemaPath) {
			schemaPath = filepath.Join(filepath.Dir(path), schemaPath)
		}
		src.schemaPath = schemaPath
	}

	return src, nil
}

// Vars returns the request TOML table, consumed as a scope layer.
func (s *Source) Vars() map[string]any {
	return s.vars
}

// ExtractSpec returns the parsed _extract table, nil when absent.
func (s *Source) ExtractSpec() extract.Spec {
	return s.extractSpec
}

// SchemaPath returns the response schema path, empty when absent.
func (s *Source) SchemaPath() string {
	return s.schemaPath
}

// Render substitutes the template against sc and parses the result into a
// request definition. The returned text is the substituted template, for
// echoing.
func (s *Source) Render(sc scope.Scope, interaction substitute.Interaction) (*Definition, string, error) {
	raw, err := os.ReadFile(s.HTTPPath)
	if err != nil {
		return nil, "", err
	}

	text, err := substitute.Resolve(string(raw), sc, interaction)
	if err != nil {
		return nil, "", err
	}

	def, err := Parse(text)
	if err != nil {
		return nil, "", err
	}

	if s.GraphQLPath != "" {
		body, err := s.graphQLBody(sc, interaction)
		if err != nil {
			return nil, "", err
		}
		def.Body = body
		if _, ok := def.Headers["Content-Type"]; !ok {
			def.Headers["Content-Type"] = "application/json"
		}
	}

	return def, text, nil
}

var graphQLArgPattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)

// graphQLBody builds the {"query": ..., "variables": ...} payload. Every
// $arg referenced by the query is resolved from the same scope as the
// wrapper template.
func (s *Source) graphQLBody(sc scope.Scope, interaction substitute.Interaction) (string, error) {
	raw, err := os.ReadFile(s.GraphQLPath)
	if err != nil {
		return "", err
	}
	query := string(raw)

	seen := make(map[string]bool)
	variables := make(map[string]string)
	for _, m := range graphQLArgPattern.FindAllStringSubmatch(query, -1) {
		arg := m[1]
		if seen[arg] {
			continue
		}
		seen[arg] = true

		value, err := substitute.Resolve("{{"+arg+"}}", sc, interaction)
		if err != nil {
			return "", err
		}
		variables[arg] = value
	}

	payload := map[string]any{"query": query}
	if len(variables) > 0 {
		payload["variables"] = variables
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// findGraphQLWrapper walks up from the query file's directory looking for
// the shared wrapper template.
func findGraphQLWrapper(path string) (string, error) {
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	for {
		wrapper := filepath.Join(dir, GraphQLWrapper)
		if _, err := os.Stat(wrapper); err == nil {
			return wrapper, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found above %s", GraphQLWrapper, path)
		}
		dir = parent
	}
}

// FindRequests walks root for request templates, skipping the GraphQL
// wrapper itself. Paths are returned relative to root.
func FindRequests(root string) ([]string, error) {
	var files []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		name := strings.ToLower(info.Name())
		if name == GraphQLWrapper {
			return nil
		}
		if strings.HasSuffix(name, ".http") || strings.HasSuffix(name, ".gql") || strings.HasSuffix(name, ".graphql") {
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}
