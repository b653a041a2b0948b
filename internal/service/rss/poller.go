package rss

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"MacroChain/internal/domain/models"
	drepo "MacroChain/internal/domain/repository"
	applogger "MacroChain/pkg/logger"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// SourceName tags documents produced by the poller.
const SourceName = "rss"

// Poller implements a DocumentStream over a set of RSS/Atom feeds.
// Every poll re-emits all items; the document pipeline drops repeats.
type Poller struct {
	feeds     []string
	interval  time.Duration
	timeout   time.Duration
	parser    *gofeed.Parser
	l         *applogger.Logger
	now       func() time.Time
	connected atomic.Bool
}

func New(feeds []string, interval, timeout time.Duration) *Poller {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Poller{
		feeds:    feeds,
		interval: interval,
		timeout:  timeout,
		parser:   gofeed.NewParser(),
		l:        applogger.Nop(),
		now:      time.Now,
	}
}

// SetLogger injects a structured logger.
func (p *Poller) SetLogger(l *applogger.Logger) { p.l = l }

func (p *Poller) Connect(context.Context) error {
	if len(p.feeds) == 0 {
		return fmt.Errorf("rss: no feeds configured")
	}
	p.connected.Store(true)
	return nil
}

func (p *Poller) Subscribe(context.Context) error { return nil }

// Read polls every feed immediately and then on each interval until ctx ends.
func (p *Poller) Read(ctx context.Context) (<-chan *models.Document, <-chan error) {
	docs := make(chan *models.Document, 256)
	errs := make(chan error, len(p.feeds))

	go func() {
		defer close(docs)
		defer close(errs)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			for _, url := range p.feeds {
				items, err := p.Fetch(ctx, url)
				if err != nil {
					select {
					case errs <- err:
					default:
					}
					continue
				}
				for _, d := range items {
					select {
					case docs <- d:
					case <-ctx.Done():
						return
					}
				}
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return docs, errs
}

// Fetch parses one feed into documents.
func (p *Poller) Fetch(ctx context.Context, url string) ([]*models.Document, error) {
	fctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	feed, err := p.parser.ParseURLWithContext(url, fctx)
	if err != nil {
		return nil, fmt.Errorf("rss fetch %s: %w", url, err)
	}

	now := p.now().UTC()
	out := make([]*models.Document, 0, len(feed.Items))
	for _, item := range feed.Items {
		body := plainText(item.Description)
		if body == "" {
			body = plainText(item.Content)
		}
		title := strings.TrimSpace(item.Title)
		if body == "" && title == "" {
			continue
		}

		published := now
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		out = append(out, &models.Document{
			ID:          documentID(item),
			Title:       title,
			Body:        body,
			Source:      SourceName,
			URL:         item.Link,
			PublishedAt: published,
		})
	}
	p.l.Debug("rss: fetched", applogger.String("feed", url), applogger.Int("items", len(out)))
	return out, nil
}

// Reconnect is a no-op; every poll opens fresh requests.
func (p *Poller) Reconnect(context.Context) error { return nil }

func (p *Poller) Close() error {
	p.connected.Store(false)
	return nil
}

func (p *Poller) IsConnected() bool { return p.connected.Load() }

// documentID is stable across polls: guid when present, link otherwise.
func documentID(item *gofeed.Item) string {
	key := item.GUID
	if key == "" {
		key = item.Link
	}
	if key == "" {
		key = item.Title
	}
	return fmt.Sprintf("%s-%x", SourceName, sha256.Sum256([]byte(key)))[:len(SourceName)+17]
}

// plainText strips markup from feed HTML.
func plainText(html string) string {
	html = strings.TrimSpace(html)
	if html == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

var _ drepo.DocumentStream = (*Poller)(nil)
