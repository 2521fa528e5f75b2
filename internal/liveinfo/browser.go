package liveinfo

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/paulosouza-ec/Avotech/internal/models"
)

// DefaultMapsSearchURL is the Maps search page the browser opens.
const DefaultMapsSearchURL = "https://www.google.com/maps/search/"

// firstResultSelector is the anchor of the first entry in a Maps result list.
const firstResultSelector = "a.hfpxzc"

// BrowserScraper reads phone and status from a Maps page in headless Chrome.
type BrowserScraper struct {
	searchURL  string
	phoneRe    *regexp.Regexp
	settleWait time.Duration
	execPath   string
}

// BrowserOption configures a BrowserScraper.
type BrowserOption func(*BrowserScraper)

// WithPhonePattern sets the phone regular expression.
func WithPhonePattern(re *regexp.Regexp) BrowserOption {
	return func(b *BrowserScraper) { b.phoneRe = re }
}

// WithSettleWait sets how long to wait after opening the first result.
func WithSettleWait(d time.Duration) BrowserOption {
	return func(b *BrowserScraper) { b.settleWait = d }
}

// WithSearchURL overrides the Maps search page prefix.
func WithSearchURL(u string) BrowserOption {
	return func(b *BrowserScraper) { b.searchURL = u }
}

// WithExecPath sets the Chrome binary.
func WithExecPath(p string) BrowserOption {
	return func(b *BrowserScraper) { b.execPath = p }
}

// NewBrowserScraper creates a scraper using DefaultPhonePattern unless overridden.
func NewBrowserScraper(opts ...BrowserOption) *BrowserScraper {
	b := &BrowserScraper{
		searchURL:  DefaultMapsSearchURL,
		phoneRe:    regexp.MustCompile(DefaultPhonePattern),
		settleWait: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// SearchURL returns the page opened for a pharmacy.
func (b *BrowserScraper) SearchURL(name, address string) string {
	return b.searchURL + url.PathEscape(strings.TrimSpace(name+" "+address))
}

// Scrape opens the Maps search page, follows the first result and extracts the
// live info from the visible text. It never fails.
func (b *BrowserScraper) Scrape(ctx context.Context, name, address string) models.LiveInfo {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("disable-setuid-sandbox", true),
	)
	if b.execPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(b.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()
	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	target := b.SearchURL(name, address)
	var clicked bool
	var text string

	err := chromedp.Run(taskCtx,
		chromedp.Navigate(target),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(`(() => {
			const a = document.querySelector('`+firstResultSelector+`');
			if (a) { a.click(); return true; }
			return false;
		})()`, &clicked),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if !clicked {
				return nil
			}
			return chromedp.Sleep(b.settleWait).Do(ctx)
		}),
		chromedp.Evaluate(`document.body ? document.body.innerText : ""`, &text),
	)
	if err != nil {
		slog.Warn("BrowserScraper Scrape failed", "name", name, "url", target, "error", err)
		return models.LiveInfo{Status: models.Unavailable()}
	}

	info := ExtractLiveInfo(text, b.phoneRe)
	slog.Debug("BrowserScraper Scrape done", "name", name, "clicked", clicked, "phone", info.Phone)
	return info
}
