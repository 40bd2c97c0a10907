package substitute

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitman-sh/hitman/packages/scope"
)

func scopeOf(vars map[string]scope.Value) scope.Scope {
	return scope.New(scope.Layer{Name: "test", Vars: vars})
}

func TestResolve(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"base_url": scope.ScalarValue("http://example.com"),
		"token":    scope.ScalarValue("Bearer {{secret}}"),
		"secret":   scope.ScalarValue("s3cr3t"),
		"port":     scope.ScalarValue(int64(8080)),
	})

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain text untouched", "GET /health", "GET /health"},
		{"simple placeholder", "GET {{base_url}}/users", "GET http://example.com/users"},
		{"whitespace inside braces", "{{ base_url }}", "http://example.com"},
		{"value resolved recursively", "Authorization: {{token}}", "Authorization: Bearer s3cr3t"},
		{"integer scalar", "Host: localhost:{{port}}", "Host: localhost:8080"},
		{"fallback ignored when key resolves", "{{base_url | http://fallback}}", "http://example.com"},
		{"fallback used when key missing", "{{missing | plan-b}}", "plan-b"},
		{"quotes around name survive", `{"key": {{ "secret" }}}`, `{"key": "s3cr3t"}`},
		{"two placeholders on one line", "{{base_url}}:{{port}}", "http://example.com:8080"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.input, sc, NonInteractive{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveNestedFallback(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"base": scope.ScalarValue("http://x"),
	})

	got, err := Resolve("{{url | {{base}}/login}}", sc, NonInteractive{})
	require.NoError(t, err)
	assert.Equal(t, "http://x/login", got)
}

func TestResolveIsDeterministic(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"a": scope.ScalarValue("{{b}}-{{b}}"),
		"b": scope.ScalarValue("x"),
	})

	first, err := Resolve("{{a}}/{{a}}", sc, NonInteractive{})
	require.NoError(t, err)
	second, err := Resolve("{{a}}/{{a}}", sc, NonInteractive{})
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, "x-x/x-x", first)
}

func TestResolveCycle(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"a": scope.ScalarValue("{{b}}"),
		"b": scope.ScalarValue("{{a}}"),
	})

	_, err := Resolve("{{a}}", sc, NonInteractive{})
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "b", "a"}, cycleErr.Path)
}

func TestResolveSelfCycle(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"a": scope.ScalarValue("prefix {{a}}"),
	})

	_, err := Resolve("{{a}}", sc, NonInteractive{})
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []string{"a", "a"}, cycleErr.Path)
}

func TestResolveCycleThroughFallback(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"a": scope.ScalarValue("{{missing | {{a}}}}"),
	})

	_, err := Resolve("{{a}}", sc, NonInteractive{})
	var cycleErr *CycleError
	require.ErrorAs(t, err, &cycleErr)
}

func TestResolveSyntaxErrors(t *testing.T) {
	sc := scopeOf(nil)

	tests := []struct {
		name  string
		input string
	}{
		{"unclosed placeholder", "GET {{base_url"},
		{"stray closer", "GET foo}} bar"},
		{"empty key", "{{ | fallback}}"},
		{"only punctuation key", "{{ !!! }}"},
		{"opener left unclosed on its line", "GET {{base_url\nHost: example.com\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(tt.input, sc, NonInteractive{})
			var synErr *SyntaxError
			assert.ErrorAs(t, err, &synErr)
		})
	}
}

func TestUnclosedOpenerDoesNotSwallowFollowingLines(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"base_urlHostexamplecom": scope.ScalarValue("should never match"),
	})

	// An unterminated opener must fail on its own line, not mash the
	// following lines into one giant key.
	_, err := Resolve("GET {{base_url\nHost: example.com}}\n", sc, NonInteractive{})
	var synErr *SyntaxError
	require.ErrorAs(t, err, &synErr)
	assert.Contains(t, synErr.Text, "{{base_url")
}

func TestNonInteractiveUnresolved(t *testing.T) {
	_, err := Resolve("{{missing}}", scopeOf(nil), NonInteractive{})
	var unresolved *UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "missing", unresolved.Key)
	assert.EqualError(t, err, "no value for {{missing}}")
}

func TestNonInteractiveSelectsFirstListEntry(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"user_id": scope.ListValue([]scope.ListItem{
			{Name: "alice", Value: scope.NewScalar(int64(1))},
			{Name: "bob", Value: scope.NewScalar(int64(2))},
		}),
	})

	got, err := Resolve("GET /users/{{user_id}}", sc, NonInteractive{})
	require.NoError(t, err)
	assert.Equal(t, "GET /users/1", got)
}

// recordingInteraction captures prompt arguments and returns canned values.
type recordingInteraction struct {
	promptKey      string
	promptFallback string
	hadFallback    bool
	promptReturn   string

	selectIndex int
}

func (r *recordingInteraction) Prompt(key, fallback string, hasFallback bool) (string, error) {
	r.promptKey = key
	r.promptFallback = fallback
	r.hadFallback = hasFallback
	return r.promptReturn, nil
}

func (r *recordingInteraction) Select(key string, items []scope.ListItem) (scope.Scalar, error) {
	return items[r.selectIndex].Value, nil
}

func TestPromptReceivesResolvedFallback(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"base": scope.ScalarValue("http://x"),
	})
	interaction := &recordingInteraction{promptReturn: "typed"}

	got, err := Resolve("{{url | {{base}}/login}}", sc, interaction)
	require.NoError(t, err)
	assert.Equal(t, "typed", got)
	assert.Equal(t, "url", interaction.promptKey)
	assert.Equal(t, "http://x/login", interaction.promptFallback)
	assert.True(t, interaction.hadFallback)
}

func TestInteractionSelectsListEntry(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"env": scope.ListValue([]scope.ListItem{
			{Name: "staging", Value: scope.NewScalar("https://staging.example.com")},
			{Name: "prod", Value: scope.NewScalar("https://example.com")},
		}),
	})
	interaction := &recordingInteraction{selectIndex: 1}

	got, err := Resolve("{{env}}", sc, interaction)
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", got)
}

func TestSelectedListEntryIsResolved(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"host": scope.ScalarValue("example.com"),
		"url": scope.ListValue([]scope.ListItem{
			{Name: "http", Value: scope.NewScalar("http://{{host}}")},
		}),
	})

	got, err := Resolve("{{url}}", sc, NonInteractive{})
	require.NoError(t, err)
	assert.Equal(t, "http://example.com", got)
}

func TestNonInteractiveEmptyList(t *testing.T) {
	sc := scopeOf(map[string]scope.Value{
		"ids": scope.ListValue(nil),
	})

	_, err := Resolve("{{ids}}", sc, NonInteractive{})
	var unresolved *UnresolvedVariableError
	assert.True(t, errors.As(err, &unresolved))
}
