// Package config loads and merges the layered TOML configuration
// (project file, local override file, selected target) and owns the
// capture store that persists values extracted from responses.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/hitman-sh/hitman/packages/scope"
)

const (
	// ConfigFile is the shared project configuration.
	ConfigFile = "hitman.toml"
	// LocalConfigFile overrides the project configuration and is
	// typically gitignored.
	LocalConfigFile = "hitman.local.toml"
	// TargetFile remembers the selected target between invocations.
	TargetFile = ".hitman-target"
	// DataFile holds values captured from responses.
	DataFile = ".hitman-data.toml"

	// DefaultTable supplies defaults below any selected target.
	DefaultTable = "default"
)

// UnknownTargetError is returned when the selected target has no table in
// either configuration file.
type UnknownTargetError struct {
	Target    string
	Available []string
}

func (e *UnknownTargetError) Error() string {
	return fmt.Sprintf("unknown target %q (available: %s)", e.Target, strings.Join(e.Available, ", "))
}

// ErrNoTargets is returned when the configuration defines no target table.
var ErrNoTargets = errors.New("no target tables defined in configuration")

// Store owns the configuration layers for one project directory.
type Store struct {
	rootDir  string
	project  map[string]any
	local    map[string]any
	merged   map[string]any
	captures *CaptureStore
}

// Load reads and validates the configuration in rootDir. It fails when no
// configuration file exists, when TOML is malformed, or when no target
// table is defined.
func Load(rootDir string) (*Store, error) {
	project, projectOK, err := readTOMLFile(filepath.Join(rootDir, ConfigFile))
	if err != nil {
		return nil, err
	}
	local, localOK, err := readTOMLFile(filepath.Join(rootDir, LocalConfigFile))
	if err != nil {
		return nil, err
	}
	if !projectOK && !localOK {
		return nil, fmt.Errorf("no %s found in %s", ConfigFile, rootDir)
	}

	s := &Store{
		rootDir: rootDir,
		project: project,
		local:   local,
		merged:  merge(project, local),
	}

	if len(s.Targets()) == 0 {
		return nil, ErrNoTargets
	}

	s.captures, err = OpenCaptureStore(filepath.Join(rootDir, DataFile))
	if err != nil {
		return nil, err
	}

	return s, nil
}

// FindRootDir walks upward from dir looking for a hitman.toml.
func FindRootDir(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ConfigFile)); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s found in this directory or any parent", ConfigFile)
		}
		dir = parent
	}
}

// RootDir returns the project directory the store was loaded from.
func (s *Store) RootDir() string {
	return s.rootDir
}

// Captures returns the capture store for this project.
func (s *Store) Captures() *CaptureStore {
	return s.captures
}

// Targets lists the target tables defined in the merged configuration,
// sorted by name. Tables starting with an underscore are directives, not
// targets.
func (s *Store) Targets() []string {
	var targets []string
	for k, v := range s.merged {
		if strings.HasPrefix(k, "_") || k == DefaultTable {
			continue
		}
		if _, ok := v.(map[string]any); ok {
			targets = append(targets, k)
		}
	}
	sort.Strings(targets)
	return targets
}

// Target reads the selected target from the target file, defaulting to the
// first available target when none was selected yet.
func (s *Store) Target() string {
	data, err := os.ReadFile(filepath.Join(s.rootDir, TargetFile))
	if err == nil {
		if t := strings.TrimSpace(string(data)); t != "" {
			return t
		}
	}
	targets := s.Targets()
	if len(targets) > 0 {
		return targets[0]
	}
	return DefaultTable
}

// SetTarget validates and persists the target selection.
func (s *Store) SetTarget(target string) error {
	if !s.hasTarget(target) {
		return &UnknownTargetError{Target: target, Available: s.Targets()}
	}
	return os.WriteFile(filepath.Join(s.rootDir, TargetFile), []byte(target+"\n"), 0o644)
}

func (s *Store) hasTarget(target string) bool {
	for _, t := range s.Targets() {
		if t == target {
			return true
		}
	}
	return false
}

// BuildScope assembles the variable scope for one request. Layers from
// highest to lowest precedence: command-line overrides, captured values,
// request-file variables, the target's table in the local file, the
// target's table in the project file, the default table, then global
// (tableless) keys.
func (s *Store) BuildScope(target string, requestVars map[string]any, overrides map[string]string) (scope.Scope, error) {
	if !s.hasTarget(target) {
		return scope.Scope{}, &UnknownTargetError{Target: target, Available: s.Targets()}
	}

	overrideVars := make(map[string]scope.Value, len(overrides))
	for k, v := range overrides {
		overrideVars[k] = scope.ScalarValue(v)
	}

	requestLayer, err := scope.LayerFromTOML("request", requestVars)
	if err != nil {
		return scope.Scope{}, err
	}

	localTarget, err := scope.LayerFromTOML("target (local)", tableOf(s.local, target))
	if err != nil {
		return scope.Scope{}, err
	}
	projectTarget, err := scope.LayerFromTOML("target", tableOf(s.project, target))
	if err != nil {
		return scope.Scope{}, err
	}
	defaults, err := scope.LayerFromTOML("default", tableOf(s.merged, DefaultTable))
	if err != nil {
		return scope.Scope{}, err
	}

	globalVars := make(map[string]any)
	for k, v := range s.merged {
		if _, ok := v.(map[string]any); !ok {
			globalVars[k] = v
		}
	}
	globals, err := scope.LayerFromTOML("global", globalVars)
	if err != nil {
		return scope.Scope{}, err
	}

	return scope.New(
		scope.Layer{Name: "override", Vars: overrideVars},
		s.captures.Layer(),
		requestLayer,
		localTarget,
		projectTarget,
		defaults,
		globals,
	), nil
}

// ReadRequestTOML reads the optional per-request TOML file sitting next to
// a template (<template>.http.toml). A missing file yields an empty table.
func ReadRequestTOML(templatePath string) (map[string]any, error) {
	table, _, err := readTOMLFile(templatePath + ".toml")
	if err != nil {
		return nil, err
	}
	if table == nil {
		return map[string]any{}, nil
	}
	return table, nil
}

// WatchList returns the files watch mode should observe for one request:
// the template, its request TOML, both configuration files and the target
// file. The data file is deliberately excluded since the tool writes it
// after every capture, which would trigger a re-run loop.
func (s *Store) WatchList(templatePath string) []string {
	return []string{
		templatePath,
		templatePath + ".toml",
		filepath.Join(s.rootDir, ConfigFile),
		filepath.Join(s.rootDir, LocalConfigFile),
		filepath.Join(s.rootDir, TargetFile),
	}
}

func tableOf(m map[string]any, key string) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	if t, ok := m[key].(map[string]any); ok {
		return t
	}
	return map[string]any{}
}

func readTOMLFile(path string) (map[string]any, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var table map[string]any
	if err := toml.Unmarshal(data, &table); err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", path, err)
	}
	return table, true, nil
}

// merge deep-merges b over a, merging child tables into existing child
// tables and replacing everything else.
func merge(a, b map[string]any) map[string]any {
	out := make(map[string]any, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if bt, ok := v.(map[string]any); ok {
			if at, ok := out[k].(map[string]any); ok {
				out[k] = merge(at, bt)
				continue
			}
		}
		out[k] = v
	}
	return out
}
