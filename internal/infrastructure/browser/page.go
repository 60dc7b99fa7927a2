package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Page is a single Chrome tab
type Page struct {
	ctx         context.Context
	cancel      context.CancelFunc
	waitTimeout time.Duration
}

// run executes actions on the tab, aborting when either the tab or ctx is done
func (p *Page) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := context.WithCancel(p.ctx)
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

// Prepare sets the user agent and extra request headers for every later navigation
func (p *Page) Prepare(ctx context.Context, userAgent string, headers map[string]string) error {
	actions := []chromedp.Action{network.Enable()}
	if userAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(userAgent))
	}
	if len(headers) > 0 {
		extra := make(network.Headers, len(headers))
		for k, v := range headers {
			extra[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(extra))
	}
	return p.run(ctx, actions...)
}

// Navigate loads url and waits for the load event
func (p *Page) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, chromedp.Navigate(url))
}

// WaitFor waits until selector is present, bounded by the session wait timeout
func (p *Page) WaitFor(ctx context.Context, selector string) error {
	waitCtx, cancel := context.WithTimeout(ctx, p.waitTimeout)
	defer cancel()
	return p.run(waitCtx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

// HTML returns the rendered document
func (p *Page) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

// Click clicks the first element matching selector in page script.
// It reports false without error when nothing matches.
func (p *Page) Click(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		el.click();
		return true;
	})()`, quoted)

	var clicked bool
	if err := p.run(ctx, chromedp.Evaluate(script, &clicked)); err != nil {
		return false, err
	}
	return clicked, nil
}

// Scroll moves the viewport down by distance pixels
func (p *Page) Scroll(ctx context.Context, distance int) error {
	return p.run(ctx, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %d)", distance), nil))
}

// Close closes the tab. It is safe to call more than once.
func (p *Page) Close() error {
	p.cancel()
	return nil
}
