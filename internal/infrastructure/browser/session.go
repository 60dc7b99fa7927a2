// Package browser owns the shared headless Chrome process and hands out tabs.
//
// All chromedp usage is isolated here so the scrapers only see domain.Page.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/pricescout/backend/internal/domain"
	log "github.com/sirupsen/logrus"
)

// Options describes how Chrome is launched
type Options struct {
	Headless     bool
	ExecPath     string // empty lets chromedp locate Chrome
	NoSandbox    bool
	UserAgent    string
	StartTimeout time.Duration
	WaitTimeout  time.Duration // upper bound for Page.WaitFor
}

// Session is one Chrome process shared by every scraper. It is started explicitly
// with Start and restarted lazily by AcquirePage when it has died.
type Session struct {
	opts Options

	mu            sync.Mutex
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
}

// NewSession creates a session; Chrome is not launched until Start or AcquirePage
func NewSession(opts Options) *Session {
	if opts.StartTimeout <= 0 {
		opts.StartTimeout = 30 * time.Second
	}
	if opts.WaitTimeout <= 0 {
		opts.WaitTimeout = 15 * time.Second
	}
	return &Session{opts: opts}
}

func (s *Session) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("lang", "en-US"),
		chromedp.WindowSize(1366, 900),
	)
	if s.opts.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if s.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.opts.ExecPath))
	}
	if s.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.opts.UserAgent))
	}
	return opts
}

// Start launches Chrome and waits until it accepts commands
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.startLocked(ctx)
	return err
}

func (s *Session) startLocked(ctx context.Context) (context.Context, error) {
	if s.browserCtx != nil && s.browserCtx.Err() == nil {
		return s.browserCtx, nil
	}
	s.shutdownLocked()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), s.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Debugf),
		chromedp.WithErrorf(log.Debugf),
	)

	// The first Run allocates Chrome; it must not carry a deadline of its own
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(browserCtx) }()

	timer := time.NewTimer(s.opts.StartTimeout)
	defer timer.Stop()

	var err error
	select {
	case err = <-done:
	case <-timer.C:
		err = fmt.Errorf("start timed out after %s", s.opts.StartTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		browserCancel()
		allocCancel()
		log.WithError(err).Error("failed to start browser")
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserUnavailable, err)
	}

	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	s.allocCancel = allocCancel
	log.WithField("headless", s.opts.Headless).Info("browser started")
	return browserCtx, nil
}

// AcquirePage opens a new tab, starting or restarting Chrome when needed
func (s *Session) AcquirePage(ctx context.Context) (domain.Page, error) {
	browserCtx, err := s.ensure(ctx)
	if err != nil {
		return nil, err
	}

	page, err := s.openTab(ctx, browserCtx)
	if err == nil {
		return page, nil
	}
	if ctx.Err() != nil {
		return nil, err
	}

	log.WithError(err).Warn("opening tab failed, restarting browser")
	s.restart(browserCtx)

	browserCtx, err = s.ensure(ctx)
	if err != nil {
		return nil, err
	}
	page, err = s.openTab(ctx, browserCtx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrBrowserUnavailable, err)
	}
	return page, nil
}

func (s *Session) ensure(ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

// restart drops the browser only if it is still the one that failed
func (s *Session) restart(failed context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCtx == failed {
		s.shutdownLocked()
	}
}

func (s *Session) openTab(ctx, browserCtx context.Context) (*Page, error) {
	tabCtx, cancel := chromedp.NewContext(browserCtx)
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	// The first Run on a tab context creates the target
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, err
	}
	return &Page{ctx: tabCtx, cancel: cancel, waitTimeout: s.opts.WaitTimeout}, nil
}

// Close terminates Chrome
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownLocked()
}

func (s *Session) shutdownLocked() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.browserCtx = nil
	s.browserCancel = nil
	s.allocCancel = nil
}
