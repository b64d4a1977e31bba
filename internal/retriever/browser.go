package retriever

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/hyperjump/paaexplorer/internal/config"
	"github.com/hyperjump/paaexplorer/pkg/utils"
)

// Selectors tried in order on a results page. The first one that matches
// anything supplies the candidates.
var Selectors = []string{
	"[data-initq]",
	".related-question-pair",
	`[jsname="yEVEwb"]`,
	".g-blk",
	"[data-ved] h3",
	".LC20lb",
}

// BrowserRetriever loads results pages in headless Chrome and reads question
// text from the matching elements. Chrome is launched on first use and shared
// by later calls. At most cfg.MaxPages pages are open at once and visit starts
// are spaced by the configured delay.
type BrowserRetriever struct {
	cfg      config.RetrieverConfig
	logger   *zap.Logger
	fallback Retriever

	pages  *semaphore.Weighted
	launch *semaphore.Weighted // guards browser and lnch

	browser *rod.Browser
	lnch    *launcher.Launcher

	mu        sync.Mutex // guards nextVisit
	nextVisit time.Time
}

// NewBrowserRetriever returns a retriever that launches Chrome lazily.
func NewBrowserRetriever(cfg config.RetrieverConfig, logger *zap.Logger) *BrowserRetriever {
	b := &BrowserRetriever{
		cfg:    cfg,
		logger: utils.OrNop(logger).With(zap.String("component", "browser-retriever")),
		pages:  semaphore.NewWeighted(int64(max(cfg.MaxPages, 1))),
		launch: semaphore.NewWeighted(1),
	}
	if cfg.DemoFallbackOrDefault() {
		b.fallback = NewDemoRetriever()
	}
	return b
}

// Retrieve visits the results page for topic and returns up to limit element texts.
// A failed launch or visit yields demo data when the fallback is enabled and
// nothing otherwise; only cancellation is returned as an error.
func (b *BrowserRetriever) Retrieve(ctx context.Context, topic, locale string, limit int) ([]string, error) {
	if err := b.pages.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.pages.Release(1)

	browser, err := b.ensureBrowser(ctx)
	if err != nil {
		return b.fallBack(ctx, topic, locale, limit, err)
	}
	if err := b.pace(ctx); err != nil {
		return nil, err
	}

	texts, err := b.visit(ctx, browser, SearchURL(b.cfg.SearchURL, topic, locale), limit)
	if err != nil {
		return b.fallBack(ctx, topic, locale, limit, err)
	}
	if len(texts) == 0 && b.fallback != nil {
		b.logger.Warn("no question elements found, using demo data", zap.String("topic", topic))
		return b.fallback.Retrieve(ctx, topic, locale, limit)
	}
	return texts, nil
}

func (b *BrowserRetriever) visit(ctx context.Context, browser *rod.Browser, pageURL string, limit int) ([]string, error) {
	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	defer func() { _ = page.Close() }()

	navCtx, cancel := context.WithTimeout(ctx, b.cfg.NavigationTimeout)
	defer cancel()
	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		b.logger.Warn("wait load timeout", zap.String("url", pageURL), zap.Error(err))
	}
	if err := sleep(ctx, b.cfg.SettleTime); err != nil {
		return nil, err
	}

	p := page.Context(ctx)
	for _, sel := range Selectors {
		els, err := p.Elements(sel)
		if err != nil || len(els) == 0 {
			continue
		}
		b.logger.Debug("matched selector", zap.String("selector", sel), zap.Int("elements", len(els)))
		var texts []string
		for _, el := range els {
			if len(texts) >= limit {
				break
			}
			text, err := el.Text()
			if err != nil {
				b.logger.Debug("read element text", zap.Error(err))
				continue
			}
			texts = append(texts, text)
		}
		return texts, nil
	}
	return nil, nil
}

func (b *BrowserRetriever) fallBack(ctx context.Context, topic, locale string, limit int, cause error) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.fallback == nil {
		b.logger.Warn("retrieval failed, no questions for topic", zap.String("topic", topic), zap.Error(cause))
		return nil, nil
	}
	b.logger.Warn("retrieval failed, using demo data", zap.String("topic", topic), zap.Error(cause))
	return b.fallback.Retrieve(ctx, topic, locale, limit)
}

// pace reserves the next visit slot and waits for it.
func (b *BrowserRetriever) pace(ctx context.Context) error {
	b.mu.Lock()
	now := time.Now()
	slot := b.nextVisit
	if slot.Before(now) {
		slot = now
	}
	b.nextVisit = slot.Add(b.cfg.Delay)
	b.mu.Unlock()
	return sleep(ctx, time.Until(slot))
}

func (b *BrowserRetriever) ensureBrowser(ctx context.Context) (*rod.Browser, error) {
	if err := b.launch.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer b.launch.Release(1)
	if b.browser != nil {
		return b.browser, nil
	}
	wsURL := b.cfg.RemoteURL
	if wsURL == "" {
		l := launcher.New().
			Headless(true).
			Set("no-sandbox").
			Set("disable-dev-shm-usage").
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		wsURL = u
		b.lnch = l
		b.logger.Info("launched local chrome", zap.String("url", wsURL))
	} else {
		b.logger.Info("connecting to remote chrome", zap.String("url", wsURL))
	}

	browser := rod.New().Context(ctx).ControlURL(wsURL)
	if err := browser.Connect(); err != nil {
		b.killLauncher()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	b.browser = browser.Context(context.Background())
	return b.browser, nil
}

// Close shuts Chrome down.
func (b *BrowserRetriever) Close() error {
	if err := b.launch.Acquire(context.Background(), 1); err != nil {
		return err
	}
	defer b.launch.Release(1)
	var err error
	if b.browser != nil {
		err = b.browser.Close()
		b.browser = nil
	}
	b.killLauncher()
	return err
}

func (b *BrowserRetriever) killLauncher() {
	if b.lnch != nil {
		b.lnch.Kill()
		b.lnch.Cleanup()
		b.lnch = nil
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
