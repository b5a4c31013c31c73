package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// hideWebdriver runs before any page script in every document.
const hideWebdriver = `Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`

// ChromeOptions configures ChromeLauncher.
type ChromeOptions struct {
	// RemoteURL attaches to a running browser's DevTools endpoint instead
	// of starting one.
	RemoteURL string

	ExecPath     string
	Headless     bool
	NoSandbox    bool
	WindowWidth  int
	WindowHeight int
	UserAgent    string
}

// ChromeLauncher starts Chrome browsing contexts through the DevTools
// protocol.
type ChromeLauncher struct {
	opts ChromeOptions
}

// NewChromeLauncher creates a launcher. Nothing starts until Launch.
func NewChromeLauncher(opts ChromeOptions) *ChromeLauncher {
	return &ChromeLauncher{opts: opts}
}

// Launch starts a browser (or a new target on the remote one) with a fresh
// profile. The browser outlives ctx; the caller must Close it.
func (l *ChromeLauncher) Launch(ctx context.Context) (Browser, error) {
	allocCtx, allocCancel := l.allocator()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	b := &chromeBrowser{
		ctx: tabCtx,
		cancel: func() {
			tabCancel()
			allocCancel()
		},
	}

	if err := b.start(ctx); err != nil {
		b.Close() //nolint:errcheck // Launch error takes precedence
		return nil, fmt.Errorf("starting chrome: %w", err)
	}
	return b, nil
}

// start performs the first Run on the tab context itself. chromedp binds
// the browser process and the tab's event loop to the context of that
// first call, so it must live as long as the browser. ctx only bounds the
// startup: if it ends first the whole browser is torn down.
func (b *chromeBrowser) start(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { b.Close() }) //nolint:errcheck // Close never fails
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideWebdriver).Do(ctx)
		return err
	}))
	if !stop() {
		return ctx.Err()
	}
	return err
}

func (l *ChromeLauncher) allocator() (context.Context, context.CancelFunc) {
	if l.opts.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(context.Background(), l.opts.RemoteURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if !l.opts.Headless {
		opts = append(opts, chromedp.Flag("headless", false))
	}
	if l.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if l.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(l.opts.ExecPath))
	}
	if l.opts.WindowWidth > 0 && l.opts.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(l.opts.WindowWidth, l.opts.WindowHeight))
	}
	if l.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(l.opts.UserAgent))
	}
	return chromedp.NewExecAllocator(context.Background(), opts...)
}

// chromeBrowser implements Browser over one chromedp tab.
type chromeBrowser struct {
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

// run executes actions on the tab, bounded by the caller's ctx.
func (b *chromeBrowser) run(ctx context.Context, actions ...chromedp.Action) error {
	rctx, cancel := context.WithCancel(b.ctx)
	defer cancel()
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		rctx, cancelDeadline = context.WithDeadline(rctx, deadline)
		defer cancelDeadline()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return ctx.Err()
	}
	return err
}

func (b *chromeBrowser) Authorize(ctx context.Context, header string) error {
	return b.run(ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Authorization": header}),
	)
}

func (b *chromeBrowser) Navigate(ctx context.Context, url string) error {
	return b.run(ctx, chromedp.Navigate(url))
}

func (b *chromeBrowser) Location(ctx context.Context) (string, error) {
	var loc string
	err := b.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (b *chromeBrowser) ForceRoute(ctx context.Context, route string) error {
	quoted, err := json.Marshal(route)
	if err != nil {
		return err
	}
	var out string
	return b.run(ctx, chromedp.Evaluate("window.location.hash = "+string(quoted), &out))
}

func (b *chromeBrowser) WaitPresent(ctx context.Context, selector string) error {
	return b.run(ctx, chromedp.WaitReady(selector, chromedp.BySearch))
}

func (b *chromeBrowser) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := b.run(ctx, chromedp.Text(selector, &text, chromedp.BySearch, chromedp.NodeReady))
	return text, err
}

func (b *chromeBrowser) InnerText(ctx context.Context, selector string) (string, error) {
	var text string
	err := b.run(ctx, chromedp.JavascriptAttribute(selector, "innerText", &text, chromedp.BySearch, chromedp.NodeReady))
	return text, err
}

func (b *chromeBrowser) Screenshot(ctx context.Context) ([]byte, error) {
	var png []byte
	err := b.run(ctx, chromedp.CaptureScreenshot(&png))
	return png, err
}

func (b *chromeBrowser) Close() error {
	b.closeOnce.Do(b.cancel)
	return nil
}
