package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/chromedp"
)

// commitProbeTimeout bounds the location read after a timed-out commit navigation.
const commitProbeTimeout = 5 * time.Second

// Strategy selects how much of a navigation must complete before it counts as done.
type Strategy int

const (
	// StrategyLoad waits for the load event and a ready body, and fails on HTTP errors.
	StrategyLoad Strategy = iota
	// StrategyCommit accepts a navigation that timed out once the page has left about:blank.
	StrategyCommit
)

func (s Strategy) String() string {
	switch s {
	case StrategyLoad:
		return "load"
	case StrategyCommit:
		return "commit"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Navigate loads url using strategy. The deadline of ctx bounds the navigation.
func (s *Session) Navigate(ctx context.Context, url string, strategy Strategy) error {
	s.resetDocumentStatus()

	switch strategy {
	case StrategyLoad:
		if err := s.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
			return fmt.Errorf("navigation to %s failed: %w", url, err)
		}
		if status := s.lastDocumentStatus(); status >= 400 {
			return fmt.Errorf("navigation to %s failed: HTTP %d", url, status)
		}
		return nil

	case StrategyCommit:
		err := s.run(ctx, chromedp.Navigate(url))
		if err == nil {
			return nil
		}
		if !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("navigation to %s failed: %w", url, err)
		}
		probeCtx, cancel := context.WithTimeout(context.Background(), commitProbeTimeout)
		defer cancel()
		location, locErr := s.Location(probeCtx)
		if locErr != nil || location == "" || location == "about:blank" {
			return fmt.Errorf("navigation to %s never committed: %w", url, err)
		}
		s.logger.Debug("navigation committed before timeout", "url", location)
		return nil

	default:
		return fmt.Errorf("unknown navigation strategy %s", strategy)
	}
}

// WaitFor blocks until an element matching the CSS selector is present.
func (s *Session) WaitFor(ctx context.Context, selector string) error {
	if err := s.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("waiting for %s: %w", selector, err)
	}
	return nil
}

// HasContent reports whether the page body has any text or element children.
func (s *Session) HasContent(ctx context.Context) (bool, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return false, fmt.Errorf("failed to read page html: %w", err)
	}
	return htmlHasContent(html)
}

func htmlHasContent(html string) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, fmt.Errorf("failed to parse page html: %w", err)
	}
	body := doc.Find("body")
	if body.Length() == 0 {
		return false, nil
	}
	if strings.TrimSpace(body.Text()) != "" {
		return true, nil
	}
	return body.Children().Length() > 0, nil
}

// Title returns the document title.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

// Location returns the current page URL.
func (s *Session) Location(ctx context.Context) (string, error) {
	var location string
	if err := s.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return location, nil
}
