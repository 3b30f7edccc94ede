package headlines

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rssFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Chain Wire</title>
  <link>https://chainwire.example</link>
  <description>news</description>
  <item>
    <title>DeFi lending volumes climb</title>
    <link>https://chainwire.example/defi-lending</link>
    <description>&lt;p&gt;Borrowing on &lt;b&gt;DeFi&lt;/b&gt; markets rose.&lt;/p&gt;</description>
    <pubDate>Mon, 12 Oct 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Definitely not related</title>
    <link>https://chainwire.example/other</link>
    <description>Bitcoin miners rest.</description>
    <pubDate>Tue, 13 Oct 2026 10:00:00 GMT</pubDate>
  </item>
  <item>
    <title>Regulators eye decentralized finance</title>
    <link>https://chainwire.example/regulators</link>
    <description>A new consultation.</description>
    <pubDate>Wed, 14 Oct 2026 09:00:00 GMT</pubDate>
  </item>
</channel>
</rss>`

const atomFeed = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Ledger Daily</title>
  <id>urn:ledger</id>
  <updated>2026-10-15T08:00:00Z</updated>
  <entry>
    <title>Three DeFi tokens to watch</title>
    <link href="https://ledger.example/watch"/>
    <id>urn:ledger:1</id>
    <updated>2026-10-15T08:00:00Z</updated>
    <summary>Weekly picks.</summary>
  </entry>
</feed>`

type feedServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/rss", func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed)
	})
	mux.HandleFunc("/atom", func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		w.Header().Set("Content-Type", "application/atom+xml")
		fmt.Fprint(w, atomFeed)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		time.Sleep(200 * time.Millisecond)
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, rssFeed)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		http.Error(w, "gone", http.StatusBadGateway)
	})
	mux.HandleFunc("/garbage", func(w http.ResponseWriter, r *http.Request) {
		fs.hits.Add(1)
		fmt.Fprint(w, "this is not a feed")
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func TestForCategoryFiltersAndSorts(t *testing.T) {
	srv := newFeedServer(t)
	src := New([]string{srv.URL + "/rss", srv.URL + "/atom"})

	got, err := src.ForCategory(context.Background(), "Decentralized Finance (DeFi)", 0)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "Three DeFi tokens to watch", got[0].Title)
	assert.Equal(t, "Ledger Daily", got[0].Source)
	assert.Equal(t, "Regulators eye decentralized finance", got[1].Title)
	assert.Equal(t, "DeFi lending volumes climb", got[2].Title)
	assert.Equal(t, "Chain Wire", got[2].Source)
	assert.Equal(t, "Borrowing on DeFi markets rose.", got[2].Summary)
	assert.Equal(t, time.Date(2026, 10, 12, 10, 0, 0, 0, time.UTC), got[2].PublishedAt.UTC())
}

func TestForCategoryLimit(t *testing.T) {
	srv := newFeedServer(t)
	src := New([]string{srv.URL + "/rss", srv.URL + "/atom"})

	got, err := src.ForCategory(context.Background(), "Decentralized Finance (DeFi)", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Three DeFi tokens to watch", got[0].Title)
}

func TestForCategoryNoMatches(t *testing.T) {
	srv := newFeedServer(t)
	src := New([]string{srv.URL + "/rss"})

	got, err := src.ForCategory(context.Background(), "Gaming (GameFi)", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestForCategorySkipsFailedFeeds(t *testing.T) {
	srv := newFeedServer(t)
	src := New([]string{srv.URL + "/broken", srv.URL + "/garbage", srv.URL + "/rss"})

	got, err := src.ForCategory(context.Background(), "DeFi", 0)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestForCategoryAllFeedsFail(t *testing.T) {
	srv := newFeedServer(t)
	src := New([]string{srv.URL + "/broken", srv.URL + "/garbage"})

	_, err := src.ForCategory(context.Background(), "DeFi", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 2 feeds failed")
}

func TestForCategoryDisabled(t *testing.T) {
	src := New(nil)
	assert.False(t, src.Enabled())

	got, err := src.ForCategory(context.Background(), "DeFi", 5)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFeedsAreCached(t *testing.T) {
	srv := newFeedServer(t)
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	src := New([]string{srv.URL + "/rss"},
		WithCacheTTL(10*time.Minute),
		WithClock(func() time.Time { return now }),
	)

	ctx := context.Background()
	_, err := src.ForCategory(ctx, "DeFi", 0)
	require.NoError(t, err)
	_, err = src.ForCategory(ctx, "NFT", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), srv.hits.Load())

	now = now.Add(11 * time.Minute)
	_, err = src.ForCategory(ctx, "DeFi", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(2), srv.hits.Load())
}

func TestKeywords(t *testing.T) {
	tests := []struct {
		name string
		want []string
	}{
		{"Decentralized Finance (DeFi)", []string{"decentralized finance", "defi", "decentralized"}},
		{"NFT Index", []string{"nft index", "nft"}},
		{"Layer 1 (L1)", []string{"layer 1", "l1"}},
		{"Artificial Intelligence (AI)", []string{"artificial intelligence", "ai", "artificial", "intelligence"}},
		{"  ", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Keywords(tt.name))
		})
	}
}

func TestMatchesAnyWholeWords(t *testing.T) {
	kw := []string{"defi"}
	assert.True(t, matchesAny("New DeFi rules", kw))
	assert.True(t, matchesAny("defi-native lenders", kw))
	assert.False(t, matchesAny("Definitely bullish", kw))
	assert.False(t, matchesAny("", kw))
}

func TestCleanHTML(t *testing.T) {
	assert.Equal(t, "Hello world", cleanHTML("<p>Hello <em>world</em></p>"))
	assert.Equal(t, "", cleanHTML(""))
	assert.Equal(t, "plain text", cleanHTML("plain   text"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 3))
}

func TestSharedFeedSurvivesCancelledCaller(t *testing.T) {
	srv := newFeedServer(t)
	src := New([]string{srv.URL + "/slow"})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := src.ForCategory(ctxA, "Decentralized Finance (DeFi)", 0)
		errA <- err
	}()

	type result struct {
		n   int
		err error
	}
	resB := make(chan result, 1)
	go func() {
		items, err := src.ForCategory(context.Background(), "Decentralized Finance (DeFi)", 0)
		resB <- result{len(items), err}
	}()

	time.Sleep(50 * time.Millisecond)
	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	b := <-resB
	require.NoError(t, b.err)
	assert.Positive(t, b.n)
	assert.Equal(t, int32(1), srv.hits.Load())
}
