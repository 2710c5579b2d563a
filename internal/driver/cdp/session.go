// Package cdp drives a web form in Chrome over the DevTools protocol. It
// provides every capability the recorder and the replay engine consume.
package cdp

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
	"github.com/xkilldash9x/autofill-cli/internal/config"
	"go.uber.org/zap"
)

// AllocatorOptions translates the browser configuration into chromedp allocator options.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		// The operator watches and clicks the form while recording.
		chromedp.Flag("headless", cfg.Headless),
	)
	if cfg.Width > 0 && cfg.Height > 0 {
		opts = append(opts, chromedp.WindowSize(cfg.Width, cfg.Height))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	return opts
}

// Session is one browser tab showing the target form.
type Session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *zap.Logger
}

// NewSession launches a browser and opens cfg.FormURL when set.
func NewSession(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (*Session, error) {
	logger = logger.Named("cdp")
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(logger.Sugar().Debugf),
		chromedp.WithErrorf(logger.Sugar().Errorf),
	)
	s := &Session{ctx: tabCtx, cancel: cancel, allocCancel: allocCancel, logger: logger}

	actions := []chromedp.Action{}
	if cfg.Width > 0 && cfg.Height > 0 {
		actions = append(actions, chromedp.EmulateViewport(int64(cfg.Width), int64(cfg.Height)))
	}
	if cfg.FormURL != "" {
		actions = append(actions, chromedp.Navigate(cfg.FormURL))
	}
	// Run with no actions still starts the browser.
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start browser session: %w", err)
	}
	logger.Info("Browser session started.", zap.String("url", cfg.FormURL), zap.Bool("headless", cfg.Headless))
	return s, nil
}

// Context is the tab context. It is done once the session is closed.
func (s *Session) Context() context.Context { return s.ctx }

// Run executes actions in the tab, bounded by both ctx and the session.
func (s *Session) Run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(opCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// Navigate opens url in the tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.Run(ctx, chromedp.Navigate(url))
}

// Screenshot captures the visible viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.Run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}

// Close shuts the tab and the browser.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	s.logger.Debug("Browser session closed.")
}
