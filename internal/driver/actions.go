package driver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Page interaction methods used by the flow executor. These are the
// "WHAT the test does" surface; the Driver interface above is the
// diagnostic surface. Selectors are CSS.

// Navigate loads a URL and waits for the document body to be ready.
func (b *Browser) Navigate(ctx context.Context, url string) error {
	err := chromedp.Run(b.run(ctx),
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
	)
	if err != nil {
		return fmt.Errorf("navigating to %s: %w", url, err)
	}
	return nil
}

// Click waits for the element to be visible and clicks it.
func (b *Browser) Click(ctx context.Context, selector string) error {
	err := chromedp.Run(b.run(ctx),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Click(selector, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("clicking %s: %w", selector, err)
	}
	return nil
}

// TypeText clears the element and types text into it.
func (b *Browser) TypeText(ctx context.Context, selector, text string) error {
	err := chromedp.Run(b.run(ctx),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("typing into %s: %w", selector, err)
	}
	return nil
}

// WaitVisible waits up to timeout for the element to become visible.
func (b *Browser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := chromedp.Run(b.run(ctx), chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

// Text returns the trimmed text content of the element.
func (b *Browser) Text(ctx context.Context, selector string) (string, error) {
	var text string
	err := chromedp.Run(b.run(ctx),
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Text(selector, &text, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("reading text of %s: %w", selector, err)
	}
	return strings.TrimSpace(text), nil
}

// Eval evaluates a JavaScript expression, discarding its result.
func (b *Browser) Eval(ctx context.Context, expression string) error {
	if err := chromedp.Run(b.run(ctx), chromedp.Evaluate(expression, nil)); err != nil {
		return fmt.Errorf("evaluating script: %w", err)
	}
	return nil
}
