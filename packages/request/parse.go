package request

import (
	"fmt"
	"net/url"
	"strings"
)

// Definition is a parsed, fully substituted request ready to send.
type Definition struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    string
}

// Parse splits substituted template text into method, URL, headers and
// body. The format is the literal HTTP request: a request line, header
// lines, a blank line, then the body.
func Parse(text string) (*Definition, error) {
	lines := strings.Split(text, "\n")

	i := 0
	for i < len(lines) && strings.TrimSpace(lines[i]) == "" {
		i++
	}
	if i == len(lines) {
		return nil, fmt.Errorf("malformed request: empty template")
	}

	fields := strings.Fields(lines[i])
	if len(fields) < 2 {
		return nil, fmt.Errorf("malformed request: expected METHOD URL, got %q", lines[i])
	}
	def := &Definition{
		Method:  strings.ToUpper(fields[0]),
		URL:     fields[1],
		Headers: make(map[string]string),
	}
	if err := validateURL(def.URL); err != nil {
		return nil, err
	}
	i++

	for ; i < len(lines); i++ {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", line)
		}
		def.Headers[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	if i < len(lines) {
		def.Body = strings.TrimRight(strings.Join(lines[i:], "\n"), "\n")
	}

	return def, nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme %q (only http and https are allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
