// Package browser drives isolated headless Chrome sessions for report rendering.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jonathan/report-renderer/internal/observability"
)

const (
	// DefaultUserAgent is sent by rendering sessions unless overridden.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/118.0.0.0 Safari/537.36"
	// DiagnoseUserAgent is sent by the minimal session used for URL probes.
	DiagnoseUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"
	// DefaultLaunchTimeout bounds browser start-up and session configuration.
	DefaultLaunchTimeout = 30 * time.Second

	viewportWidth  = 1200
	viewportHeight = 800
	acceptHeader   = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Options configures how sessions are launched.
type Options struct {
	ExecPath      string
	CacheDir      string
	UserAgent     string
	ExtraHeaders  map[string]string
	LaunchTimeout time.Duration
	Logger        *observability.Logger
}

// Launcher starts one isolated browser per session.
type Launcher struct {
	opts     Options
	execPath string
	logger   *observability.Logger
}

// NewLauncher resolves the Chrome executable and applies defaults.
func NewLauncher(opts Options) *Launcher {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.LaunchTimeout <= 0 {
		opts.LaunchTimeout = DefaultLaunchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	return &Launcher{
		opts:     opts,
		execPath: ResolveExecPath(opts.ExecPath, opts.CacheDir),
		logger:   logger.Component("browser"),
	}
}

// Session is one browser process with a single page. It is not safe for
// concurrent use and must be closed by its owner.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *observability.Logger

	closeOnce sync.Once

	mu             sync.Mutex
	documentStatus int64
	requestURLs    map[network.RequestID]string
}

// NewSession launches a browser configured for report rendering: fixed
// viewport, user agent, and the Accept plus configured extra headers.
func (l *Launcher) NewSession(ctx context.Context) (*Session, error) {
	headers := network.Headers{"Accept": acceptHeader}
	for k, v := range l.opts.ExtraHeaders {
		headers[k] = v
	}
	return l.launch(ctx, allocatorOptions(l.execPath, l.opts.UserAgent, false),
		network.Enable(),
		chromedp.EmulateViewport(viewportWidth, viewportHeight),
		network.SetExtraHTTPHeaders(headers),
	)
}

func (l *Launcher) newMinimalSession(ctx context.Context) (*Session, error) {
	return l.launch(ctx, allocatorOptions(l.execPath, DiagnoseUserAgent, true), network.Enable())
}

func (l *Launcher) launch(ctx context.Context, allocOpts []chromedp.ExecAllocatorOption, setup ...chromedp.Action) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		ctx: browserCtx,
		cancel: func() {
			browserCancel()
			allocCancel()
		},
		logger:      l.logger,
		requestURLs: make(map[network.RequestID]string),
	}
	s.listen()

	// The first Run starts the browser and must use the undecorated browser
	// context, otherwise the browser dies with the timeout context.
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(browserCtx, setup...)
	}()

	timer := time.NewTimer(l.opts.LaunchTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to start browser: %w", err)
		}
	case <-timer.C:
		s.Close()
		return nil, fmt.Errorf("browser did not start within %s", l.opts.LaunchTimeout)
	case <-ctx.Done():
		s.Close()
		return nil, ctx.Err()
	}

	return s, nil
}

// Close shuts down the browser. It is safe to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.Debug("graceful browser close failed", "error", err)
		}
		s.cancel()
	})
	return nil
}

// derive returns a context bound to the session's page that also honours the
// deadline and cancellation of ctx.
func (s *Session) derive(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	if deadline, ok := ctx.Deadline(); ok {
		var cancelDeadline context.CancelFunc
		runCtx, cancelDeadline = context.WithDeadline(runCtx, deadline)
		parentCancel := cancel
		cancel = func() {
			cancelDeadline()
			parentCancel()
		}
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := s.derive(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// allocatorOptions returns the exec allocator flags. Minimal sessions only
// disable sandboxing, as the URL probe needs nothing else.
func allocatorOptions(execPath, userAgent string, minimal bool) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.UserAgent(userAgent))
	if execPath != "" {
		opts = append(opts, chromedp.ExecPath(execPath))
	}
	flags := hardenedFlags
	if minimal {
		flags = minimalFlags
	}
	for _, f := range flags {
		opts = append(opts, chromedp.Flag(f.name, f.value))
	}
	return opts
}

type flag struct {
	name  string
	value any
}

var minimalFlags = []flag{
	{"no-sandbox", true},
	{"disable-setuid-sandbox", true},
}

var hardenedFlags = []flag{
	{"no-sandbox", true},
	{"disable-setuid-sandbox", true},
	{"disable-dev-shm-usage", true},
	{"disable-gpu", true},
	{"disable-web-security", true},
	{"disable-features", "VizDisplayCompositor"},
	{"enable-features", "NetworkService,NetworkServiceLogging"},
	{"no-first-run", true},
	{"disable-default-apps", true},
	{"disable-background-timer-throttling", true},
	{"disable-backgrounding-occluded-windows", true},
	{"disable-renderer-backgrounding", true},
	{"disable-field-trial-config", true},
	{"disable-back-forward-cache", true},
	{"disable-ipc-flooding-protection", true},
	{"force-color-profile", "srgb"},
	{"metrics-recording-only", true},
	{"no-default-browser-check", true},
	{"no-crash-upload", true},
	{"disable-breakpad", true},
}
