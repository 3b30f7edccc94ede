// Package headlines collects recent news items that mention a market
// category from a configured set of RSS/Atom feeds.
package headlines

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"github.com/zeromicro/go-zero/core/logx"
	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/dtfscope/internal/infra"
	"github.com/seenimoa/dtfscope/internal/observability"
	"github.com/seenimoa/dtfscope/pkg/models"
)

const (
	defaultCacheTTL   = 15 * time.Minute
	maxSummaryRunes   = 280
	maxConcurrentFeed = 4
)

// Source reads feeds and filters their items by category.
type Source struct {
	feeds   []string
	client  *http.Client
	cache   *infra.Cache
	flight  *infra.Flight
	limiter *infra.RateLimiter
}

// Option configures a Source.
type Option func(*Source)

// WithHTTPClient sets the client used to download feeds.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) { s.client = c }
}

// WithCacheTTL sets how long a parsed feed is reused.
func WithCacheTTL(ttl time.Duration) Option {
	return func(s *Source) {
		if ttl > 0 {
			s.cache = infra.NewCache(ttl)
		}
	}
}

// WithClock overrides the cache clock.
func WithClock(now func() time.Time) Option {
	return func(s *Source) { s.cache = infra.NewCacheWithClock(s.cache.TTL(), now) }
}

// New creates a headline source over the given feed URLs.
func New(feeds []string, opts ...Option) *Source {
	s := &Source{
		feeds:   feeds,
		cache:   infra.NewCache(defaultCacheTTL),
		flight:  infra.NewFlight(),
		limiter: infra.NewRateLimiter(4, time.Second),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether any feed is configured.
func (s *Source) Enabled() bool { return s != nil && len(s.feeds) > 0 }

// ForCategory returns up to limit items, newest first, whose title or summary
// mentions the category. Feeds that fail are skipped; an error is returned
// only when every feed failed. limit <= 0 means no limit.
func (s *Source) ForCategory(ctx context.Context, categoryName string, limit int) ([]models.Headline, error) {
	if !s.Enabled() {
		return nil, nil
	}

	items, err := s.collect(ctx)
	if err != nil {
		return nil, err
	}

	keywords := Keywords(categoryName)
	var out []models.Headline
	for _, h := range items {
		if matchesAny(h.Title+" "+h.Summary, keywords) {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// collect gathers the items of every feed concurrently.
func (s *Source) collect(ctx context.Context) ([]models.Headline, error) {
	results := make([][]models.Headline, len(s.feeds))
	errs := make([]error, len(s.feeds))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFeed)
	for i, feedURL := range s.feeds {
		g.Go(func() error {
			items, err := s.feed(gctx, feedURL)
			observability.RecordFeedFetch(err)
			if err != nil {
				logx.WithContext(ctx).Errorf("headlines: skipping feed %s: %v", feedURL, err)
				errs[i] = err
				return nil
			}
			results[i] = items
			return nil
		})
	}
	_ = g.Wait()

	var all []models.Headline
	failed := 0
	for i := range s.feeds {
		if errs[i] != nil {
			failed++
			continue
		}
		all = append(all, results[i]...)
	}
	if failed == len(s.feeds) {
		return nil, fmt.Errorf("headlines: all %d feeds failed: %w", failed, errs[0])
	}
	return all, nil
}

// feed returns the parsed items of one feed, cached for the TTL.
func (s *Source) feed(ctx context.Context, feedURL string) ([]models.Headline, error) {
	if v, ok := s.cache.Get(feedURL); ok {
		return v.([]models.Headline), nil
	}
	v, _, err := s.flight.DoContext(ctx, feedURL, infra.DefaultLoadTimeout, func(ctx context.Context) (any, error) {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		items, err := s.fetch(ctx, feedURL)
		if err != nil {
			return nil, err
		}
		s.cache.Set(feedURL, items)
		return items, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Headline), nil
}

func (s *Source) fetch(ctx context.Context, feedURL string) ([]models.Headline, error) {
	body, _, err := infra.DoGet(ctx, s.client, feedURL, map[string]string{
		"Accept": "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8",
	})
	if err != nil {
		return nil, err
	}
	defer body.Close()

	feed, err := gofeed.NewParser().Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", feedURL, err)
	}

	source := strings.TrimSpace(feed.Title)
	if source == "" {
		if u, err := url.Parse(feedURL); err == nil {
			source = u.Host
		}
	}

	items := make([]models.Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		h := models.Headline{
			Source:  source,
			Title:   strings.TrimSpace(item.Title),
			Link:    item.Link,
			Summary: truncate(cleanHTML(item.Description), maxSummaryRunes),
		}
		switch {
		case item.PublishedParsed != nil:
			h.PublishedAt = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			h.PublishedAt = *item.UpdatedParsed
		}
		items = append(items, h)
	}
	return items, nil
}

// cleanHTML strips HTML tags from a string using goquery.
func cleanHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "…"
}

// generic words that would match nearly every crypto headline.
var stopwords = map[string]bool{
	"and": true, "the": true, "for": true, "with": true,
	"coin": true, "coins": true, "token": true, "tokens": true,
	"crypto": true, "cryptocurrency": true, "finance": true, "financial": true,
	"ecosystem": true, "network": true, "protocol": true, "protocols": true,
	"index": true, "chain": true, "blockchain": true, "market": true,
	"portfolio": true, "holdings": true, "layer": true,
}

// Keywords derives the search terms for a category name: the name without
// any parenthetical, each parenthetical, and each distinctive word.
// "Decentralized Finance (DeFi)" → [decentralized finance, defi, decentralized].
func Keywords(categoryName string) []string {
	name := strings.ToLower(strings.TrimSpace(categoryName))
	if name == "" {
		return nil
	}

	seen := map[string]bool{}
	var out []string
	add := func(k string) {
		k = strings.Join(strings.Fields(k), " ")
		if k == "" || seen[k] {
			return
		}
		seen[k] = true
		out = append(out, k)
	}

	base, parens := splitParens(name)
	add(base)
	for _, p := range parens {
		add(p)
	}

	for _, w := range strings.FieldsFunc(base, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len([]rune(w)) >= 3 && !stopwords[w] {
			add(w)
		}
	}
	return out
}

// splitParens separates "a (b) c" into "a  c" and ["b"].
func splitParens(s string) (string, []string) {
	var parens []string
	for {
		open := strings.Index(s, "(")
		if open < 0 {
			return s, parens
		}
		end := strings.Index(s[open:], ")")
		if end < 0 {
			return s[:open], parens
		}
		parens = append(parens, s[open+1:open+end])
		s = s[:open] + " " + s[open+end+1:]
	}
}

// matchesAny checks if text contains any keyword as a whole word (case-insensitive).
func matchesAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if containsWord(lower, kw) {
			return true
		}
	}
	return false
}

func containsWord(text, word string) bool {
	for from := 0; ; {
		i := strings.Index(text[from:], word)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(word)
		if boundary(text, start-1) && boundary(text, end) {
			return true
		}
		from = start + 1
	}
}

func boundary(text string, i int) bool {
	if i < 0 || i >= len(text) {
		return true
	}
	c := rune(text[i])
	return !(c < 0x80 && (unicode.IsLetter(c) || unicode.IsDigit(c)))
}
