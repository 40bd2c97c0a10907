package request

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitman-sh/hitman/packages/config"
	"github.com/hitman-sh/hitman/packages/output"
	"github.com/hitman-sh/hitman/packages/substitute"
)

func writeProjectFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// testProject builds a minimal project directory with one target pointing
// at the given server.
func testProject(t *testing.T, serverURL string) (*config.Store, string) {
	t.Helper()
	dir := t.TempDir()
	writeProjectFile(t, dir, config.ConfigFile,
		fmt.Sprintf("[test]\nbase_url = %q\n", serverURL))
	store, err := config.Load(dir)
	require.NoError(t, err)
	return store, dir
}

func quietConsole() *output.Console {
	return output.NewConsole(output.WithWriter(io.Discard), output.WithStdout(io.Discard))
}

func TestEngineExecute(t *testing.T) {
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"result": {"token": "abc"}}`)
	}))
	defer server.Close()

	store, dir := testProject(t, server.URL)
	template := writeProjectFile(t, dir, "login.http",
		"POST {{base_url}}/login\nContent-Type: application/json\n\n{\"user\": \"{{username}}\"}\n")
	writeProjectFile(t, dir, "login.http.toml",
		"username = \"admin\"\n\n[_extract]\ntoken = \"$.result.token\"\n")

	src, err := LoadSource(template)
	require.NoError(t, err)
	sc, err := store.BuildScope("test", src.Vars(), nil)
	require.NoError(t, err)

	engine := NewEngine(store, WithConsole(quietConsole()))
	outcome, err := engine.Execute(context.Background(), src, sc, substitute.NonInteractive{})
	require.NoError(t, err)

	assert.Equal(t, `{"user": "admin"}`, string(gotBody))
	assert.Equal(t, http.StatusOK, outcome.StatusCode)
	require.Contains(t, outcome.Captured, "token")
	assert.Equal(t, "abc", outcome.Captured["token"].Scalar().String())

	// The capture must already be durable when Execute returns.
	reopened, err := config.OpenCaptureStore(filepath.Join(dir, config.DataFile))
	require.NoError(t, err)
	assert.Equal(t, "abc", reopened.Layer().Vars["token"].Scalar().String())
}

func TestEngineExecuteNonSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"result": {"token": "abc"}}`)
	}))
	defer server.Close()

	store, dir := testProject(t, server.URL)
	template := writeProjectFile(t, dir, "get.http", "GET {{base_url}}/thing\n")
	writeProjectFile(t, dir, "get.http.toml", "[_extract]\ntoken = \"$.result.token\"\n")

	src, err := LoadSource(template)
	require.NoError(t, err)
	sc, err := store.BuildScope("test", src.Vars(), nil)
	require.NoError(t, err)

	engine := NewEngine(store, WithConsole(quietConsole()))
	outcome, err := engine.Execute(context.Background(), src, sc, substitute.NonInteractive{})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.NotNil(t, outcome)
	assert.Equal(t, http.StatusNotFound, outcome.StatusCode)

	// Extraction never runs on failed responses.
	assert.Empty(t, outcome.Captured)
	_, err = os.Stat(filepath.Join(dir, config.DataFile))
	assert.True(t, os.IsNotExist(err))
}

func TestEngineExecuteUnresolvedVariable(t *testing.T) {
	store, dir := testProject(t, "http://example.com")
	template := writeProjectFile(t, dir, "get.http", "GET {{base_url}}/{{missing}}\n")

	src, err := LoadSource(template)
	require.NoError(t, err)
	sc, err := store.BuildScope("test", src.Vars(), nil)
	require.NoError(t, err)

	engine := NewEngine(store, WithConsole(quietConsole()))
	_, err = engine.Execute(context.Background(), src, sc, substitute.NonInteractive{})

	var unresolved *substitute.UnresolvedVariableError
	require.ErrorAs(t, err, &unresolved)
	assert.Equal(t, "missing", unresolved.Key)
}

func TestEngineRerunPicksUpCaptures(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			fmt.Fprint(w, `{"token": "tkn-1"}`)
		default:
			gotAuth = r.Header.Get("Authorization")
			fmt.Fprint(w, `{}`)
		}
	}))
	defer server.Close()

	store, dir := testProject(t, server.URL)
	login := writeProjectFile(t, dir, "login.http", "POST {{base_url}}/login\n")
	writeProjectFile(t, dir, "login.http.toml", "[_extract]\ntoken = \"$.token\"\n")
	profile := writeProjectFile(t, dir, "profile.http",
		"GET {{base_url}}/profile\nAuthorization: Bearer {{token}}\n")

	engine := NewEngine(store, WithConsole(quietConsole()))

	loginSrc, err := LoadSource(login)
	require.NoError(t, err)
	_, err = engine.Rerun(context.Background(), loginSrc, "test", nil)
	require.NoError(t, err)

	profileSrc, err := LoadSource(profile)
	require.NoError(t, err)
	_, err = engine.Rerun(context.Background(), profileSrc, "test", nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tkn-1", gotAuth)
}
