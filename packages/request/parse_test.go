package request

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("full request", func(t *testing.T) {
		def, err := Parse("POST http://example.com/login\nContent-Type: application/json\nX-Trace: a:b:c\n\n{\"user\": \"admin\"}\n")
		require.NoError(t, err)
		assert.Equal(t, "POST", def.Method)
		assert.Equal(t, "http://example.com/login", def.URL)
		assert.Equal(t, "application/json", def.Headers["Content-Type"])
		// Header values may themselves contain colons.
		assert.Equal(t, "a:b:c", def.Headers["X-Trace"])
		assert.Equal(t, `{"user": "admin"}`, def.Body)
	})

	t.Run("no headers no body", func(t *testing.T) {
		def, err := Parse("GET http://example.com/health\n")
		require.NoError(t, err)
		assert.Equal(t, "GET", def.Method)
		assert.Empty(t, def.Headers)
		assert.Empty(t, def.Body)
	})

	t.Run("method is uppercased", func(t *testing.T) {
		def, err := Parse("get http://example.com/\n")
		require.NoError(t, err)
		assert.Equal(t, "GET", def.Method)
	})

	t.Run("leading blank lines are skipped", func(t *testing.T) {
		def, err := Parse("\n\nGET http://example.com/\n")
		require.NoError(t, err)
		assert.Equal(t, "GET", def.Method)
	})

	t.Run("body keeps internal newlines", func(t *testing.T) {
		def, err := Parse("POST http://example.com/\n\nline1\nline2\n")
		require.NoError(t, err)
		assert.Equal(t, "line1\nline2", def.Body)
	})
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty template", "\n\n"},
		{"missing URL", "GET\n"},
		{"header without colon", "GET http://example.com/\nBadHeader\n"},
		{"unsupported scheme", "GET ftp://example.com/\n"},
		{"no host", "GET http:///path\n"},
		{"relative URL", "GET /just/a/path\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.input)
			assert.Error(t, err)
		})
	}
}
