package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/dgnsrekt/vid_agent/internal/config"
)

// NetworkObserver receives the network events of attached tabs.
type NetworkObserver interface {
	OnRequestWillBeSent(tabID string, ev *network.EventRequestWillBeSent)
	OnResponseReceived(tabID string, ev *network.EventResponseReceived)
}

// TabLifecycle is notified when an attached tab goes away.
type TabLifecycle interface {
	TabClosed(tabID string)
}

// Client manages CDP connections to browser tabs.
type Client struct {
	cfg         *config.Config
	observer    NetworkObserver
	lifecycle   TabLifecycle
	tabRegistry *TabRegistry

	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	ownTarget     target.ID

	tabs   map[target.ID]*TabContext
	tabsMu sync.RWMutex
	done   chan struct{}
}

type TabContext struct {
	ID     target.ID
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(cfg *config.Config, observer NetworkObserver, lifecycle TabLifecycle, tabRegistry *TabRegistry) *Client {
	return &Client{
		cfg:         cfg,
		observer:    observer,
		lifecycle:   lifecycle,
		tabRegistry: tabRegistry,
		tabs:        make(map[target.ID]*TabContext),
		done:        make(chan struct{}),
	}
}

// Connect attaches to every matching page target and starts following
// target creation and destruction.
func (c *Client) Connect(ctx context.Context) error {
	_ = ctx
	cdpURL := c.cfg.GetCDPURL()
	slog.Info("Connecting to Chromium", "url", cdpURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cdpURL)
	c.browserCtx, c.browserCancel = chromedp.NewContext(c.allocCtx)

	if err := chromedp.Run(c.browserCtx); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	if t := chromedp.FromContext(c.browserCtx).Target; t != nil {
		c.ownTarget = t.TargetID
	}

	chromedp.ListenBrowser(c.browserCtx, c.onBrowserEvent)
	if err := chromedp.Run(c.browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return target.SetDiscoverTargets(true).Do(cdp.WithExecutor(ctx, chromedp.FromContext(ctx).Browser))
	})); err != nil {
		return fmt.Errorf("failed to enable target discovery: %w", err)
	}

	targets, err := chromedp.Targets(c.browserCtx)
	if err != nil {
		return fmt.Errorf("failed to enumerate targets: %w", err)
	}

	slog.Info("Found browser targets", "count", len(targets))

	attached := 0
	for _, t := range targets {
		if !c.shouldAttach(t) {
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
			continue
		}
		attached++
	}

	if attached == 0 {
		slog.Warn("No tabs attached yet; waiting for new tabs", "tab_url_filter", c.cfg.TabURLFilter)
	} else {
		slog.Info("Attached to tabs", "count", attached, "tab_url_filter", c.cfg.TabURLFilter)
	}
	return nil
}

func (c *Client) shouldAttach(t *target.Info) bool {
	if t == nil || t.Type != "page" || t.TargetID == c.ownTarget {
		return false
	}
	if c.isAttached(t.TargetID) {
		return false
	}
	if !c.matchesTabURL(t.URL) {
		slog.Debug("Skipping tab (url filter)", "url", truncateURL(t.URL))
		return false
	}
	return true
}

func (c *Client) isAttached(id target.ID) bool {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	_, ok := c.tabs[id]
	return ok
}

// onBrowserEvent runs on chromedp's event loop and must not block.
func (c *Client) onBrowserEvent(ev interface{}) {
	switch e := ev.(type) {
	case *target.EventTargetCreated:
		c.maybeAttach(e.TargetInfo)
	case *target.EventTargetInfoChanged:
		if e.TargetInfo != nil && c.isAttached(e.TargetInfo.TargetID) {
			c.tabRegistry.Register(e.TargetInfo.TargetID, e.TargetInfo.URL)
			return
		}
		c.maybeAttach(e.TargetInfo)
	case *target.EventTargetDestroyed:
		go c.detachTab(e.TargetID)
	}
}

func (c *Client) maybeAttach(info *target.Info) {
	if !c.shouldAttach(info) {
		return
	}
	go func() {
		select {
		case <-c.done:
			return
		default:
		}
		if err := c.attachToTab(info.TargetID, info.URL); err != nil {
			slog.Warn("Failed to attach to new tab", "target_id", info.TargetID, "error", err)
		}
	}()
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))
	tab := &TabContext{ID: targetID, URL: url, ctx: tabCtx, cancel: tabCancel}

	c.tabsMu.Lock()
	if _, ok := c.tabs[targetID]; ok {
		c.tabsMu.Unlock()
		tabCancel()
		return nil
	}
	c.tabs[targetID] = tab
	c.tabsMu.Unlock()

	info := c.tabRegistry.Register(targetID, url)

	if err := chromedp.Run(tabCtx, network.Enable(), page.Enable()); err != nil {
		c.tabsMu.Lock()
		delete(c.tabs, targetID)
		c.tabsMu.Unlock()
		tabCancel()
		c.tabRegistry.Remove(targetID)
		return fmt.Errorf("failed to enable network/page domains: %w", err)
	}

	slog.Info("Attached to tab", "target_id", targetID, "browser_id", info.BrowserID, "url", truncateURL(url))
	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))
	return nil
}

// detachTab forgets a tab and tells the lifecycle listener it closed.
func (c *Client) detachTab(targetID target.ID) {
	c.tabsMu.Lock()
	tab, ok := c.tabs[targetID]
	delete(c.tabs, targetID)
	c.tabsMu.Unlock()

	c.tabRegistry.Remove(targetID)
	if ok {
		tab.cancel()
		slog.Info("Tab closed", "target_id", targetID)
	}
	if c.lifecycle != nil {
		c.lifecycle.TabClosed(string(targetID))
	}
}

func (c *Client) createEventHandler(tabID string) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventFrameNavigated:
			if e.Frame != nil && e.Frame.ParentID == "" {
				c.tabRegistry.Register(target.ID(tabID), e.Frame.URL)
				slog.Debug("Tab navigated", "tab_id", tabID, "url", truncateURL(e.Frame.URL))
			}
		case *network.EventRequestWillBeSent:
			c.observer.OnRequestWillBeSent(tabID, e)
		case *network.EventResponseReceived:
			c.observer.OnResponseReceived(tabID, e)
		}
	}
}

func (c *Client) Close() error {
	close(c.done)

	c.tabsMu.Lock()
	c.tabs = make(map[target.ID]*TabContext)
	c.tabsMu.Unlock()

	if c.browserCancel != nil {
		c.browserCancel()
	}
	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("CDP client closed")
	return nil
}

func (c *Client) GetTabCount() int {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	return len(c.tabs)
}

func (c *Client) matchesTabURL(url string) bool {
	if c.cfg.TabURLFilter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.cfg.TabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
