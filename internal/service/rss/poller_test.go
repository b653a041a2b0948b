package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Markets</title>
  <item>
    <title>Chip export curbs</title>
    <link>https://example.com/curbs</link>
    <guid>curbs-1</guid>
    <pubDate>Fri, 01 Mar 2024 09:30:00 +0000</pubDate>
    <description><![CDATA[<p>The government <b>announced</b> export restrictions.</p>]]></description>
  </item>
  <item>
    <title>No date</title>
    <link>https://example.com/undated</link>
    <description>Plain text body</description>
  </item>
  <item>
    <link>https://example.com/empty</link>
  </item>
</channel>
</rss>`

func newFeedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(feedXML))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchConvertsItems(t *testing.T) {
	srv := newFeedServer(t)
	p := New([]string{srv.URL}, time.Minute, time.Second)
	fixed := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return fixed }

	docs, err := p.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "Chip export curbs", docs[0].Title)
	assert.Equal(t, "The government announced export restrictions.", docs[0].Body)
	assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), docs[0].PublishedAt)
	assert.Equal(t, SourceName, docs[0].Source)
	assert.Len(t, docs[0].ID, len(SourceName)+17)

	assert.Equal(t, "Plain text body", docs[1].Body)
	assert.Equal(t, fixed, docs[1].PublishedAt)

	again, err := p.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, docs[0].ID, again[0].ID, "ids are stable across polls")
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}

func TestReadStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreCurrent(),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
	)

	srv := newFeedServer(t)
	p := New([]string{srv.URL, srv.URL + "/second.xml"}, time.Hour, time.Second)
	require.NoError(t, p.Connect(context.Background()))
	assert.True(t, p.IsConnected())

	ctx, cancel := context.WithCancel(context.Background())
	docs, errs := p.Read(ctx)

	var got int
	for got < 2 {
		select {
		case <-docs:
			got++
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for documents")
		}
	}
	cancel()
	for range docs {
	}
	for range errs {
	}
	require.NoError(t, p.Close())
	assert.False(t, p.IsConnected())
}

func TestConnectRequiresFeeds(t *testing.T) {
	assert.Error(t, New(nil, 0, 0).Connect(context.Background()))
}
