// Package browser drives a Chromium instance through rod.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/chatprobe/internal/chat"
	"github.com/IshaanNene/chatprobe/internal/config"
	"github.com/IshaanNene/chatprobe/internal/fetcher"
	"github.com/IshaanNene/chatprobe/internal/types"
)

// Session is a single browser tab reused for every prompt.
type Session struct {
	cfg      *config.BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	proxyMgr *fetcher.ProxyManager
	proxy    *url.URL
	logger   *slog.Logger
	mu       sync.Mutex
	closed   bool
}

var _ chat.Driver = (*Session)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithProxyManager routes the browser through the next healthy proxy.
func WithProxyManager(pm *fetcher.ProxyManager) SessionOption {
	return func(s *Session) { s.proxyMgr = pm }
}

// NewSession launches Chromium and connects to it.
func NewSession(cfg *config.BrowserConfig, logger *slog.Logger, opts ...SessionOption) (*Session, error) {
	s := &Session{
		cfg:    cfg,
		logger: logger.With("component", "browser_session"),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.start(); err != nil {
		return nil, err
	}

	s.logger.Info("browser session ready",
		"headless", cfg.Headless,
		"stealth", cfg.Stealth,
		"window", fmt.Sprintf("%dx%d", cfg.WindowWidth, cfg.WindowHeight),
	)
	return s, nil
}

// start launches Chromium and connects to it.
func (s *Session) start() error {
	controlURL, err := s.launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		s.launcher.Kill()
		return fmt.Errorf("connect browser: %w", err)
	}
	s.browser = b
	return nil
}

// launch starts a Chromium instance with appropriate flags.
func (s *Session) launch() (string, error) {
	s.proxy = nil

	l := launcher.New().
		Headless(s.cfg.Headless).
		NoSandbox(s.cfg.NoSandbox).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("disable-blink-features", "AutomationControlled").
		Set("window-size", fmt.Sprintf("%d,%d", s.cfg.WindowWidth, s.cfg.WindowHeight))

	if s.cfg.Bin != "" {
		l = l.Bin(s.cfg.Bin)
	}
	if s.cfg.UserDataDir != "" {
		l = l.UserDataDir(s.cfg.UserDataDir)
	}
	if s.proxyMgr != nil {
		if proxyURL := s.proxyMgr.Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
			s.proxy = proxyURL
			s.logger.Info("using proxy", "proxy", proxyURL.Host)
		}
	}

	s.launcher = l
	return l.Launch()
}

// currentPage returns the session tab, creating it on first use.
func (s *Session) currentPage(ctx context.Context) (*rod.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, types.ErrSessionClosed
	}
	if s.page == nil {
		var (
			page *rod.Page
			err  error
		)
		if s.cfg.Stealth {
			page, err = stealth.Page(s.browser)
		} else {
			page, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		}
		if err != nil {
			return nil, fmt.Errorf("create page: %w", err)
		}
		err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             s.cfg.WindowWidth,
			Height:            s.cfg.WindowHeight,
			DeviceScaleFactor: 1,
		})
		if err != nil {
			s.logger.Warn("failed to set viewport", "error", err)
		}
		s.page = page
	}
	return s.page.Context(ctx), nil
}

// Open navigates the tab to rawURL and waits for the load event.
func (s *Session) Open(ctx context.Context, rawURL string) error {
	page, err := s.currentPage(ctx)
	if err != nil {
		return err
	}

	start := time.Now()
	if err := page.Timeout(s.cfg.NavTimeout).Navigate(rawURL); err != nil {
		if s.proxy != nil && ctx.Err() == nil {
			if rerr := s.rotateProxy(err); rerr != nil {
				s.logger.Warn("proxy rotation failed", "error", rerr)
				return &types.FetchError{URL: rawURL, Err: errors.Join(err, rerr)}
			}
		}
		return &types.FetchError{URL: rawURL, Err: err}
	}
	if err := page.Timeout(s.cfg.NavTimeout).WaitLoad(); err != nil {
		s.logger.Warn("page load timeout, continuing", "url", rawURL, "error", err)
	}

	s.logger.Debug("page opened", "url", rawURL, "duration", time.Since(start))
	return nil
}

// element finds the first element matching selector within the element timeout.
func (s *Session) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	page, err := s.currentPage(ctx)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = s.cfg.ElementTimeout
	}

	el, err := page.Timeout(timeout).Element(selector)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &types.ExtractError{Selector: selector, Err: fmt.Errorf("%w: %w", types.ErrElementNotFound, err)}
	}
	// Actions on el follow ctx, not the lookup timeout.
	return el.Context(ctx), nil
}

// Click clicks the first element matching selector.
func (s *Session) Click(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector, 0)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return &types.ExtractError{Selector: selector, Err: err}
	}
	return nil
}

// ClickIfPresent clicks selector if it shows up within timeout. A missing
// element is not an error.
func (s *Session) ClickIfPresent(ctx context.Context, selector string, timeout time.Duration) (bool, error) {
	el, err := s.element(ctx, selector, timeout)
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, nil
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, &types.ExtractError{Selector: selector, Err: err}
	}
	return true, nil
}

// Type focuses selector and inputs text.
func (s *Session) Type(ctx context.Context, selector, text string) error {
	el, err := s.element(ctx, selector, 0)
	if err != nil {
		return err
	}
	if err := el.Input(text); err != nil {
		return &types.ExtractError{Selector: selector, Err: err}
	}
	return nil
}

// PressEnter sends the Enter key to selector.
func (s *Session) PressEnter(ctx context.Context, selector string) error {
	el, err := s.element(ctx, selector, 0)
	if err != nil {
		return err
	}
	if err := el.Type(input.Enter); err != nil {
		return &types.ExtractError{Selector: selector, Err: err}
	}
	return nil
}

// InnerHTML returns the inner HTML of the first element matching selector.
func (s *Session) InnerHTML(ctx context.Context, selector string) (string, error) {
	el, err := s.element(ctx, selector, 0)
	if err != nil {
		return "", err
	}
	res, err := el.Eval(`() => this.innerHTML`)
	if err != nil {
		return "", &types.ExtractError{Selector: selector, Err: err}
	}
	return res.Value.String(), nil
}

// HTML returns the rendered HTML of the whole page.
func (s *Session) HTML(ctx context.Context) (string, error) {
	page, err := s.currentPage(ctx)
	if err != nil {
		return "", err
	}
	return page.HTML()
}

// Screenshot captures the viewport as a PNG at path.
func (s *Session) Screenshot(ctx context.Context, path string) error {
	page, err := s.currentPage(ctx)
	if err != nil {
		return err
	}
	img, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return fmt.Errorf("capture screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.WriteFile(path, img, 0o644); err != nil {
		return fmt.Errorf("write screenshot: %w", err)
	}
	return nil
}

// rotateProxy takes the current proxy out of rotation and restarts the
// browser on the next healthy one. The failed navigation is not repeated.
func (s *Session) rotateProxy(cause error) error {
	s.proxyMgr.MarkFailed(s.proxy, cause)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrSessionClosed
	}
	if s.proxyMgr.HealthyCount() == 0 {
		return types.ErrProxyExhausted
	}

	if s.page != nil {
		_ = s.page.Close()
		s.page = nil
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	if s.launcher != nil && s.cfg.UserDataDir == "" {
		s.launcher.Cleanup()
	}
	if err := s.start(); err != nil {
		return err
	}
	s.logger.Info("browser restarted on next proxy", "proxy", s.proxy.Host)
	return nil
}

// Close shuts down the browser and releases resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		err = s.browser.Close()
	}
	// Cleanup deletes the profile directory, so keep user-supplied ones.
	if s.launcher != nil && s.cfg.UserDataDir == "" {
		s.launcher.Cleanup()
	}
	s.logger.Info("browser session closed")
	return err
}
