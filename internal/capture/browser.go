package capture

import (
	"context"
	"encoding/base64"
	"net/url"
	"strings"
)

// Browser is one isolated browsing context.
//
// Every method that waits takes its bound from ctx. Implementations must
// return an error rather than block once ctx is done.
type Browser interface {
	// Authorize attaches an Authorization header to every request the
	// context makes from now on.
	Authorize(ctx context.Context, header string) error

	// Navigate loads url.
	Navigate(ctx context.Context, url string) error

	// Location returns the current URL including its fragment.
	Location(ctx context.Context) (string, error)

	// ForceRoute sets the client-side route (the URL fragment) without a
	// page load.
	ForceRoute(ctx context.Context, route string) error

	// WaitPresent blocks until an element matches the XPath selector.
	WaitPresent(ctx context.Context, selector string) error

	// Text returns the rendered text of the first matching element.
	Text(ctx context.Context, selector string) (string, error)

	// InnerText reads the element's innerText property through script.
	InnerText(ctx context.Context, selector string) (string, error)

	// Screenshot returns a PNG of the viewport.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close releases the context. It is safe to call more than once.
	Close() error
}

// Launcher starts fresh browsing contexts.
type Launcher interface {
	Launch(ctx context.Context) (Browser, error)
}

// Credential is one username/password pair for the dashboard.
type Credential struct {
	Username string
	Password string
}

// String hides the password.
func (c Credential) String() string {
	return c.Username + ":[redacted]"
}

// BasicAuth returns the Authorization header value for c.
func (c Credential) BasicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(c.Username+":"+c.Password))
}

// Target identifies the display holding the monitored elements.
type Target struct {
	// BaseURL is the web app root, e.g. https://host/PIVision/.
	BaseURL string

	DisplayID   string
	DisplayName string

	// Params is the raw query appended to the route, e.g.
	// mode=kiosk&hidetoolbar&redirect=false.
	Params string
}

// Route returns the client-side route of the display.
func (t Target) Route() string {
	r := "/Displays/" + url.PathEscape(t.DisplayID)
	if t.DisplayName != "" {
		r += "/" + url.PathEscape(t.DisplayName)
	}
	if t.Params != "" {
		r += "?" + t.Params
	}
	return r
}

// URL returns the full address of the display.
func (t Target) URL() string {
	return t.BaseURL + "#" + t.Route()
}

// Reached reports whether location shows the display, whatever its name
// segment or query.
func (t Target) Reached(location string) bool {
	_, frag, ok := strings.Cut(location, "#")
	if !ok {
		return false
	}
	prefix := "/Displays/" + url.PathEscape(t.DisplayID)
	rest, ok := strings.CutPrefix(frag, prefix)
	if !ok {
		return false
	}
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}

// ElementSelector returns the XPath of the element showing tag. The element
// carries the tag in its title attribute.
func ElementSelector(tag string) string {
	return "//div[contains(@title, " + xpathLiteral(tag) + ")]"
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so a value holding both quote kinds is built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, p := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + p + "'")
	}
	b.WriteString(")")
	return b.String()
}
