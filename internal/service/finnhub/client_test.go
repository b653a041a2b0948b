package finnhub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newNewsServer(t *testing.T, subscribed chan<- string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var sub map[string]string
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		subscribed <- sub["type"] + ":" + sub["symbol"]

		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"news","data":[
			{"id":7,"datetime":1709285400,"headline":"Export curbs widen","summary":"The government announced export restrictions.","source":"Reuters","url":"https://example.com/a"},
			{"id":8,"datetime":1709285400,"headline":"","summary":""}
		]}`))
		// hold the connection until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientStreamsNewsDocuments(t *testing.T) {
	subscribed := make(chan string, 1)
	srv := newNewsServer(t, subscribed)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")

	c := New("", wsURL, []string{"005930"}, 10*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, c.Connect(ctx))
	require.NoError(t, c.Subscribe(ctx))
	assert.True(t, c.IsConnected())
	assert.Equal(t, "subscribe-news:005930", <-subscribed)

	docs, _ := c.Read(ctx)
	select {
	case d := <-docs:
		require.NotNil(t, d)
		assert.Equal(t, "finnhub-7", d.ID)
		assert.Equal(t, "Export curbs widen", d.Title)
		assert.Equal(t, "The government announced export restrictions.", d.Body)
		assert.Equal(t, SourceName, d.Source)
		assert.Equal(t, time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC), d.PublishedAt)
	case <-time.After(2 * time.Second):
		t.Fatal("no document received")
	}

	cancel()
	for range docs {
	}
	_ = c.Close()
	assert.False(t, c.IsConnected())
}

func TestSubscribeRequiresConnection(t *testing.T) {
	c := New("k", "ws://unused", []string{"AAPL"}, time.Millisecond, time.Second)
	assert.Error(t, c.Subscribe(context.Background()))
}
