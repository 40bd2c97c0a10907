package request

import (
	"net/http"
	"net/url"

	"github.com/hitman-sh/hitman/packages/config"
)

// Jar replays cookies captured from earlier responses, so a login
// request's session cookie carries into the requests that follow, within
// this run and across invocations. The cookie set lives in the capture
// file and is shared project-wide rather than keyed by host; a project
// talks to one API.
type Jar struct {
	store *config.CaptureStore
}

// NewJar creates a cookie jar backed by the capture store.
func NewJar(store *config.CaptureStore) *Jar {
	return &Jar{store: store}
}

// SetCookies persists the response's cookies, replacing the stored set.
func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	headers := make([]string, 0, len(cookies))
	for _, c := range cookies {
		headers = append(headers, c.String())
	}
	// The jar interface has no error channel; a failed write surfaces on
	// the next capture persist.
	_ = j.store.StoreCookies(headers)
}

// Cookies returns the stored cookies as name/value pairs for the outgoing
// request. Unparseable entries are skipped.
func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	var out []*http.Cookie
	for _, h := range j.store.CookieHeaders() {
		c, err := http.ParseSetCookie(h)
		if err != nil {
			continue
		}
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}
