// Package session acquires upstream cookie sessions via headless Chrome.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Config controls the behavior of the chromedp session provider.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	SettleDelay       time.Duration
	LandmarkSelector  string
	LandmarkTimeout   time.Duration
	ViewportWidth     int64
	ViewportHeight    int64
}

// Provider visits the upstream site with a headless browser and extracts
// the cookies the site sets. Acquisition failure is non-fatal; callers fall
// back to a preconfigured static cookie.
type Provider struct {
	cfg    Config
	logger *zap.Logger
}

// NewChromedp creates a chromedp-backed session provider.
func NewChromedp(cfg Config, logger *zap.Logger) *Provider {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 2 * time.Second
	}
	if cfg.LandmarkTimeout <= 0 {
		cfg.LandmarkTimeout = 5 * time.Second
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1366
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 768
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{cfg: cfg, logger: logger}
}

// Acquire navigates to baseURL and returns all cookies concatenated into a
// single Cookie header string. On any failure it returns an empty token and
// the cause; the browser is torn down on every exit path.
func (p *Provider) Acquire(ctx context.Context, baseURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, p.cfg.NavigationTimeout)
	defer cancel()

	var cookies []*network.Cookie
	actions := []chromedp.Action{
		chromedp.EmulateViewport(p.cfg.ViewportWidth, p.cfg.ViewportHeight),
		p.userAgentAction(),
		chromedp.Navigate(baseURL),
		chromedp.Sleep(p.cfg.SettleDelay),
		p.landmarkAction(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			got, err := storage.GetCookies().Do(ctx)
			if err != nil {
				return fmt.Errorf("get cookies: %w", err)
			}
			cookies = got
			return nil
		}),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return "", fmt.Errorf("session navigation: %w", err)
	}

	token := joinCookies(cookies)
	if token == "" {
		return "", fmt.Errorf("no cookies set by %s", hostOnly(baseURL))
	}
	p.logger.Debug("session acquired", zap.Int("cookies", len(cookies)))
	return token, nil
}

func (p *Provider) userAgentAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if p.cfg.UserAgent == "" {
			return nil
		}
		if err := emulation.SetUserAgentOverride(p.cfg.UserAgent).Do(ctx); err != nil {
			return fmt.Errorf("set user-agent: %w", err)
		}
		return nil
	})
}

// landmarkAction waits for a layout landmark element so cookie-setting
// scripts have run. The wait is best-effort: a missing landmark must not
// fail acquisition.
func (p *Provider) landmarkAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if p.cfg.LandmarkSelector == "" {
			return nil
		}
		waitCtx, cancel := context.WithTimeout(ctx, p.cfg.LandmarkTimeout)
		defer cancel()
		if err := chromedp.WaitVisible(p.cfg.LandmarkSelector, chromedp.ByQuery).Do(waitCtx); err != nil {
			p.logger.Debug("landmark wait timed out", zap.String("selector", p.cfg.LandmarkSelector))
		}
		return nil
	})
}

func joinCookies(cookies []*network.Cookie) string {
	parts := make([]string, 0, len(cookies))
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}

func hostOnly(rawURL string) string {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "http://")
	if idx := strings.IndexByte(trimmed, '/'); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return trimmed
}
