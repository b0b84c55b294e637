package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// DefaultPollInterval is how often WaitUntil re-evaluates its condition.
const DefaultPollInterval = 250 * time.Millisecond

// Chrome drives a headless Chromium instance via chromedp.
type Chrome struct {
	ctx  context.Context
	poll time.Duration
}

// NewChrome launches a Chromium instance and returns a Surface bound to it
// together with a cleanup function. The browser stays alive until cleanup is
// called.
func NewChrome(parent context.Context, headless bool) (*Chrome, func(), error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.WindowSize(1366, 900),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, opts...)
	ctx, ctxCancel := chromedp.NewContext(allocCtx)

	// Start the browser process up front so construction fails fast when
	// no Chromium binary is available.
	if err := chromedp.Run(ctx); err != nil {
		ctxCancel()
		allocCancel()
		return nil, nil, fmt.Errorf("starting browser: %w", err)
	}

	cleanup := func() {
		ctxCancel()
		allocCancel()
	}
	return &Chrome{ctx: ctx, poll: DefaultPollInterval}, cleanup, nil
}

// Navigate loads url and waits for the body to be ready.
func (c *Chrome) Navigate(ctx context.Context, url string) error {
	if err := c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// FindAll returns all nodes matching the CSS selector in document order.
func (c *Chrome) FindAll(ctx context.Context, selector string) ([]ElementRef, error) {
	var nodes []*cdp.Node
	err := c.run(ctx,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, fmt.Errorf("querying %q: %w", selector, err)
	}
	refs := make([]ElementRef, 0, len(nodes))
	for _, n := range nodes {
		refs = append(refs, n)
	}
	return refs, nil
}

// Text returns the rendered text of a node previously returned by FindAll.
func (c *Chrome) Text(ctx context.Context, ref ElementRef) (string, error) {
	n, err := asNode(ref)
	if err != nil {
		return "", err
	}
	var s string
	if err := c.run(ctx, chromedp.Text(n.FullXPath(), &s)); err != nil {
		return "", fmt.Errorf("reading text: %w", err)
	}
	return s, nil
}

// Attribute returns the named attribute of the node, if present.
func (c *Chrome) Attribute(ctx context.Context, ref ElementRef, name string) (string, bool, error) {
	n, err := asNode(ref)
	if err != nil {
		return "", false, err
	}
	var val string
	var ok bool
	if err := c.run(ctx, chromedp.AttributeValue(n.FullXPath(), name, &val, &ok)); err != nil {
		return "", false, fmt.Errorf("reading attribute %q: %w", name, err)
	}
	return val, ok, nil
}

// Click dispatches a mouse click on the node.
func (c *Chrome) Click(ctx context.Context, ref ElementRef) error {
	n, err := asNode(ref)
	if err != nil {
		return err
	}
	if err := c.run(ctx, chromedp.MouseClickNode(n)); err != nil {
		return fmt.Errorf("clicking node: %w", err)
	}
	return nil
}

// Fill sets the value of an input node.
func (c *Chrome) Fill(ctx context.Context, ref ElementRef, value string) error {
	n, err := asNode(ref)
	if err != nil {
		return err
	}
	if err := c.run(ctx, chromedp.SetValue(n.FullXPath(), value)); err != nil {
		return fmt.Errorf("filling input: %w", err)
	}
	return nil
}

// WaitUntil polls cond every DefaultPollInterval until it holds or timeout
// elapses.
func (c *Chrome) WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		ok, err := cond(ctx)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CurrentURL returns the URL of the page the browser is on.
func (c *Chrome) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := c.run(ctx, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("reading location: %w", err)
	}
	return url, nil
}

// PageMarkup returns the serialized HTML of the full document.
func (c *Chrome) PageMarkup(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page markup: %w", err)
	}
	return html, nil
}

// run executes chromedp actions against the long-lived browser context while
// honoring the caller's cancellation.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(c.ctx, actions...)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

func asNode(ref ElementRef) (*cdp.Node, error) {
	n, ok := ref.(*cdp.Node)
	if !ok {
		return nil, fmt.Errorf("element ref %T does not belong to this surface", ref)
	}
	return n, nil
}
