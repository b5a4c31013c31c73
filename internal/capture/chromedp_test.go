package capture

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

const displayPage = `<!DOCTYPE html>
<html><body>
<div title="\\PI-BRRC\LT-101 level">12,34 m</div>
<div title="\\PI-BRRC\LT-102 level"></div>
</body></html>`

// chromeForTest returns a local Chrome binary or skips the test.
func chromeForTest(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	for _, name := range []string{
		"headless-shell", "chromium", "chromium-browser",
		"google-chrome", "google-chrome-stable", "chrome",
	} {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}
	t.Skip("no Chrome binary found")
	return ""
}

func testChromeOptions(execPath string) ChromeOptions {
	return ChromeOptions{
		ExecPath:     execPath,
		Headless:     true,
		NoSandbox:    true,
		WindowWidth:  1280,
		WindowHeight: 800,
		UserAgent:    "tankwatch-test",
	}
}

// displayServer serves the test display and records the Authorization
// header of the last request.
type displayServer struct {
	*httptest.Server

	mu   sync.Mutex
	auth string
}

func newDisplayServer(t *testing.T) *displayServer {
	t.Helper()
	ds := &displayServer{}
	ds.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds.mu.Lock()
		ds.auth = r.Header.Get("Authorization")
		ds.mu.Unlock()
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(displayPage)) //nolint:errcheck // Test server
	}))
	t.Cleanup(ds.Close)
	return ds
}

func (ds *displayServer) lastAuth() string {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.auth
}

func TestChromeLauncher_BrowserOutlivesLaunchContext(t *testing.T) {
	launcher := NewChromeLauncher(testChromeOptions(chromeForTest(t)))
	ds := newDisplayServer(t)

	launchCtx, cancelLaunch := context.WithTimeout(context.Background(), 30*time.Second)
	b, err := launcher.Launch(launchCtx)
	if err != nil {
		cancelLaunch()
		t.Fatalf("Launch() error = %v", err)
	}
	defer b.Close() //nolint:errcheck // Test cleanup
	cancelLaunch()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cred := Credential{Username: "DOMAIN\\capture", Password: "secret"}
	if err := b.Authorize(ctx, cred.BasicAuth()); err != nil {
		t.Fatalf("Authorize() after Launch error = %v", err)
	}
	if err := b.Navigate(ctx, ds.URL+"/"); err != nil {
		t.Fatalf("Navigate() error = %v", err)
	}
	if got := ds.lastAuth(); got != cred.BasicAuth() {
		t.Errorf("Authorization header = %q, want %q", got, cred.BasicAuth())
	}

	target := Target{BaseURL: ds.URL + "/", DisplayID: "3755", Params: "mode=kiosk"}
	if err := b.ForceRoute(ctx, target.Route()); err != nil {
		t.Fatalf("ForceRoute() error = %v", err)
	}
	loc, err := b.Location(ctx)
	if err != nil {
		t.Fatalf("Location() error = %v", err)
	}
	if !target.Reached(loc) {
		t.Errorf("Location() = %q, want the display route", loc)
	}

	sel := ElementSelector(`\\PI-BRRC\LT-101`)
	if err := b.WaitPresent(ctx, sel); err != nil {
		t.Fatalf("WaitPresent() error = %v", err)
	}
	if text, err := b.Text(ctx, sel); err != nil || text != "12,34 m" {
		t.Errorf("Text() = %q, %v, want 12,34 m", text, err)
	}
	if text, err := b.InnerText(ctx, ElementSelector(`\\PI-BRRC\LT-102`)); err != nil || text != "" {
		t.Errorf("InnerText() = %q, %v, want empty", text, err)
	}

	png, err := b.Screenshot(ctx)
	if err != nil || len(png) == 0 {
		t.Errorf("Screenshot() = %d bytes, %v", len(png), err)
	}
}

func TestChromeLauncher_CallerDeadline(t *testing.T) {
	launcher := NewChromeLauncher(testChromeOptions(chromeForTest(t)))

	b, err := launcher.Launch(context.Background())
	if err != nil {
		t.Fatalf("Launch() error = %v", err)
	}
	defer b.Close() //nolint:errcheck // Test cleanup

	// An expired call context fails that call only.
	expired, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-expired.Done()
	if err := b.WaitPresent(expired, ElementSelector("missing")); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("WaitPresent() error = %v, want DeadlineExceeded", err)
	}

	ctx, cancel2 := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel2()
	if _, err := b.Location(ctx); err != nil {
		t.Errorf("Location() after a failed call error = %v", err)
	}
}

func TestChromeLauncher_CanceledLaunch(t *testing.T) {
	launcher := NewChromeLauncher(testChromeOptions(chromeForTest(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if b, err := launcher.Launch(ctx); err == nil {
		b.Close() //nolint:errcheck // Test cleanup
		t.Fatal("Launch() with a cancelled context should fail")
	}
}

func TestChromeLauncher_MissingBinary(t *testing.T) {
	launcher := NewChromeLauncher(testChromeOptions(filepath.Join(t.TempDir(), "no-such-chrome")))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if b, err := launcher.Launch(ctx); err == nil {
		b.Close() //nolint:errcheck // Test cleanup
		t.Fatal("Launch() with a missing binary should fail")
	}
}

func TestChromeBrowser_CloseIsIdempotent(t *testing.T) {
	calls := 0
	b := &chromeBrowser{ctx: context.Background(), cancel: func() { calls++ }}

	b.Close() //nolint:errcheck // Close never fails
	b.Close() //nolint:errcheck // Close never fails
	if calls != 1 {
		t.Errorf("cancel called %d times, want 1", calls)
	}
}
