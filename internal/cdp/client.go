// Package cdp attaches to Chromium tabs over the DevTools protocol and routes
// their Network events to the capture handlers.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/authscope/internal/capture"
	"github.com/dgnsrekt/authscope/internal/config"
	"github.com/dgnsrekt/authscope/internal/types"
)

const (
	reloadTimeout = 30 * time.Second
	maxLoggedURL  = 120
)

// Client watches the Network domain of every page target that passes the tab
// URL filter.
type Client struct {
	cfg      *config.Config
	requests *capture.HTTPCapture
	sockets  *capture.HandshakeCapture
	registry *TabRegistry

	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu       sync.Mutex
	attached map[target.ID]context.CancelFunc
	closed   bool
}

func NewClient(cfg *config.Config, requests *capture.HTTPCapture, sockets *capture.HandshakeCapture, registry *TabRegistry) *Client {
	return &Client{
		cfg:      cfg,
		requests: requests,
		sockets:  sockets,
		registry: registry,
		attached: make(map[target.ID]context.CancelFunc),
	}
}

// Connect attaches to each matching page target. It fails when none could be
// attached.
func (c *Client) Connect(ctx context.Context) error {
	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(ctx, c.cfg.GetCDPURL())

	pages, err := c.matchingPages()
	if err != nil {
		return err
	}
	for _, p := range pages {
		if err := c.attach(p); err != nil {
			slog.Error("Failed to attach to tab", "target_id", p.TargetID, "url", shortURL(p.URL), "error", err)
		}
	}

	n := c.TabCount()
	if n == 0 {
		return fmt.Errorf("no tabs found matching AUTHSCOPE_TAB_URL_FILTER=%q", c.cfg.TabURLFilter)
	}
	slog.Info("Watching tabs for Authorization headers", "tabs", n, "tab_url_filter", c.cfg.TabURLFilter)
	return nil
}

// matchingPages lists the page targets that pass the tab URL filter.
func (c *Client) matchingPages() ([]*target.Info, error) {
	browserCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()

	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", c.cfg.GetCDPURL(), err)
	}
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate targets: %w", err)
	}

	var pages []*target.Info
	for _, t := range targets {
		switch {
		case t.Type != "page":
		case !c.matchesTabURL(t.URL):
			slog.Debug("Tab filtered out", "url", shortURL(t.URL))
		default:
			pages = append(pages, t)
		}
	}
	slog.Info("Found page targets", "targets", len(targets), "matching", len(pages))
	return pages, nil
}

// attach starts routing one tab's events and enables the Network and Page
// domains on it. A tab that cannot be enabled is unregistered again.
func (c *Client) attach(t *target.Info) error {
	info := c.registry.Register(t.TargetID, t.URL)

	tabCtx, cancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(t.TargetID))
	chromedp.ListenTarget(tabCtx, c.route(t.TargetID))

	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		cancel()
		c.registry.Remove(t.TargetID)
		return fmt.Errorf("enable network and page domains: %w", err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		c.registry.Remove(t.TargetID)
		return errors.New("client closed")
	}
	c.attached[t.TargetID] = cancel
	c.mu.Unlock()

	slog.Info("Attached to tab", "target_id", t.TargetID, "host", info.Host, "short_id", info.ShortID)

	if c.cfg.ReloadOnAttach {
		// requests sent before Network.enable carry no events
		reloadCtx, reloadCancel := context.WithTimeout(tabCtx, reloadTimeout)
		defer reloadCancel()
		if err := chromedp.Run(reloadCtx, chromedp.Reload()); err != nil {
			slog.Warn("Tab reload failed, continuing", "target_id", t.TargetID, "error", err)
		} else {
			slog.Debug("Tab reloaded", "target_id", t.TargetID)
		}
	}
	return nil
}

// route returns the listener for one tab. Navigation keeps the registry
// current and Network events go to the capture handlers.
func (c *Client) route(id target.ID) func(ev any) {
	tabID := string(id)
	return func(ev any) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame.ParentID == "" {
				c.navigated(id, e.Frame.URL)
			}
		case *page.EventNavigatedWithinDocument:
			c.navigated(id, e.URL)

		case *network.EventRequestWillBeSent:
			c.requests.OnRequestWillBeSent(tabID, e)
		case *network.EventRequestWillBeSentExtraInfo:
			c.requests.OnRequestWillBeSentExtraInfo(tabID, e)
		case *network.EventResponseReceived:
			c.requests.OnResponseReceived(tabID, e)
		case *network.EventLoadingFinished:
			c.requests.OnLoadingFinished(tabID, e)
		case *network.EventLoadingFailed:
			c.requests.OnLoadingFailed(tabID, e)

		case *network.EventWebSocketCreated:
			c.sockets.OnWebSocketCreated(tabID, e)
		case *network.EventWebSocketWillSendHandshakeRequest:
			c.sockets.OnWebSocketWillSendHandshakeRequest(tabID, e)
		case *network.EventWebSocketHandshakeResponseReceived:
			c.sockets.OnWebSocketHandshakeResponseReceived(tabID, e)
		case *network.EventWebSocketClosed:
			c.sockets.OnWebSocketClosed(tabID, e)
		}
	}
}

func (c *Client) navigated(id target.ID, url string) {
	info := c.registry.Register(id, url)
	slog.Debug("Tab navigated", "target_id", id, "host", info.Host, "url", shortURL(url))
}

// Close detaches from every tab and drops the browser connection. The
// browser keeps running. Close is safe to call more than once.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	attached := c.attached
	c.attached = make(map[target.ID]context.CancelFunc)
	c.mu.Unlock()

	for id, cancel := range attached {
		cancel()
		c.registry.Remove(id)
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("Detached from browser", "tabs", len(attached))
	return nil
}

// Tabs returns the attached tabs.
func (c *Client) Tabs() []types.TabInfo {
	return c.registry.List()
}

// TabCount returns how many tabs are attached.
func (c *Client) TabCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.attached)
}

func (c *Client) matchesTabURL(url string) bool {
	if c.cfg.TabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.cfg.TabURLFilter))
}

func shortURL(url string) string {
	if len(url) > maxLoggedURL {
		return url[:maxLoggedURL] + "..."
	}
	return url
}
