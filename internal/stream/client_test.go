package stream

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"arbdash/internal/domain"
	"arbdash/internal/session"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// wsServer is a push channel backend double. Every accepted connection is
// published on conns; every frame a client sends arrives on received.
type wsServer struct {
	srv      *httptest.Server
	conns    chan *websocket.Conn
	received chan envelope
	headers  chan http.Header
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()

	s := &wsServer{
		conns:    make(chan *websocket.Conn, 4),
		received: make(chan envelope, 16),
		headers:  make(chan http.Header, 4),
	}

	upgrader := websocket.Upgrader{}
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.headers <- r.Header.Clone()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		s.conns <- conn

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var env envelope
			if err := json.Unmarshal(msg, &env); err == nil {
				s.received <- env
			}
		}
	}))
	t.Cleanup(s.srv.Close)

	return s
}

func (s *wsServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// waitConn returns the next accepted connection.
func (s *wsServer) waitConn(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-s.conns:
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for connection")
		return nil
	}
}

// waitEvent returns the next frame the client sent.
func (s *wsServer) waitEvent(t *testing.T) envelope {
	t.Helper()
	select {
	case env := <-s.received:
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for client frame")
		return envelope{}
	}
}

// expectSilence asserts no frame arrives within d.
func (s *wsServer) expectSilence(t *testing.T, d time.Duration) {
	t.Helper()
	select {
	case env := <-s.received:
		t.Fatalf("unexpected client frame %q", env.Event)
	case <-time.After(d):
	}
}

func newTestClient(t *testing.T, wsURL string) *Client {
	t.Helper()

	store := session.NewStore(filepath.Join(t.TempDir(), "credentials.json"), testLogger())
	c := NewClient(wsURL, store, testLogger())
	c.baseDelay = 10 * time.Millisecond
	c.maxDelay = 50 * time.Millisecond
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(envelope{Event: event, Data: raw}))
}

func TestConnectSendsBearerToken(t *testing.T) {
	srv := newWSServer(t)

	store := session.NewStore(filepath.Join(t.TempDir(), "credentials.json"), testLogger())
	require.NoError(t, store.Set(domain.Credential{AccessToken: "access-1", RefreshToken: "r"}))

	c := NewClient(srv.url(), store, testLogger())
	defer c.Close()

	require.NoError(t, c.Connect(context.Background()))

	headers := <-srv.headers
	assert.Equal(t, "Bearer access-1", headers.Get("Authorization"))
	assert.Equal(t, StatusConnected, c.Status())
}

func TestDispatchInArrivalOrder(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	ids := make(chan string, 8)
	c.OnOpportunities(func(opps []domain.Opportunity) {
		for _, o := range opps {
			ids <- o.ID
		}
	})

	require.NoError(t, c.Connect(context.Background()))
	conn := srv.waitConn(t)

	sendEvent(t, conn, eventOpportunitiesUpdate, opportunitiesPayload{
		Data: []domain.Opportunity{{ID: "first"}},
	})
	sendEvent(t, conn, eventOpportunitiesUpdate, opportunitiesPayload{
		Data: []domain.Opportunity{{ID: "second"}, {ID: "third"}},
	})

	assert.Equal(t, "first", <-ids)
	assert.Equal(t, "second", <-ids)
	assert.Equal(t, "third", <-ids)
}

func TestSubscribeSentOncePerConnection(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	require.NoError(t, c.Connect(context.Background()))
	srv.waitConn(t)

	c.SubscribeOpportunities()
	c.SubscribeOpportunities()

	env := srv.waitEvent(t)
	assert.Equal(t, eventSubscribeOpportunities, env.Event)
	assert.True(t, c.Subscribed())

	srv.expectSilence(t, 150*time.Millisecond)
}

func TestSubscribeBeforeConnectIsReplayedOnConnect(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	c.SubscribeOpportunities()
	require.NoError(t, c.Connect(context.Background()))
	srv.waitConn(t)

	env := srv.waitEvent(t)
	assert.Equal(t, eventSubscribeOpportunities, env.Event)
}

func TestSubscriptionSurvivesReconnect(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	require.NoError(t, c.Connect(context.Background()))
	conn1 := srv.waitConn(t)

	c.SubscribeOpportunities()
	require.Equal(t, eventSubscribeOpportunities, srv.waitEvent(t).Event)

	// Kill the transport from the server side. The client must come back on
	// its own and re-subscribe without any caller involvement.
	conn1.Close()

	srv.waitConn(t)
	env := srv.waitEvent(t)
	assert.Equal(t, eventSubscribeOpportunities, env.Event)

	require.Eventually(t, func() bool {
		return c.Status() == StatusConnected && c.Subscribed()
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUnsubscribeClearsIntentAcrossReconnect(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	require.NoError(t, c.Connect(context.Background()))
	conn1 := srv.waitConn(t)

	c.SubscribeOpportunities()
	require.Equal(t, eventSubscribeOpportunities, srv.waitEvent(t).Event)

	c.UnsubscribeOpportunities()
	require.Equal(t, eventUnsubscribeOpportunities, srv.waitEvent(t).Event)

	conn1.Close()
	srv.waitConn(t)

	// No stale re-subscribe on the new connection.
	srv.expectSilence(t, 200*time.Millisecond)
	assert.False(t, c.Subscribed())
}

func TestMalformedFramesAreDropped(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	alerts := make(chan Notification, 1)
	c.OnAlert(func(n Notification) { alerts <- n })

	require.NoError(t, c.Connect(context.Background()))
	conn := srv.waitConn(t)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	require.NoError(t, conn.WriteJSON(envelope{Event: eventAlertNotification, Data: json.RawMessage(`"wrong shape"`)}))
	sendEvent(t, conn, eventAlertNotification, Notification{Type: "SPREAD", Title: "hi"})

	select {
	case n := <-alerts:
		assert.Equal(t, "SPREAD", n.Type)
		assert.Equal(t, "hi", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("valid alert never dispatched")
	}
	assert.Equal(t, StatusConnected, c.Status())
}

func TestTradeAndSystemEventsDispatch(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	trades := make(chan domain.Trade, 1)
	system := make(chan SystemMessage, 1)
	c.OnTradeUpdate(func(tr domain.Trade) { trades <- tr })
	c.OnSystemMessage(func(m SystemMessage) { system <- m })

	require.NoError(t, c.Connect(context.Background()))
	conn := srv.waitConn(t)

	sendEvent(t, conn, eventTradeUpdate, domain.Trade{ID: "trade-1", Status: domain.TradeStatusCompleted})
	sendEvent(t, conn, eventSystemMessage, SystemMessage{Level: "warning", Message: "maintenance soon"})

	select {
	case tr := <-trades:
		assert.Equal(t, "trade-1", tr.ID)
		assert.Equal(t, domain.TradeStatusCompleted, tr.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("trade update never dispatched")
	}

	select {
	case m := <-system:
		assert.Equal(t, "maintenance soon", m.Message)
	case <-time.After(2 * time.Second):
		t.Fatal("system message never dispatched")
	}
}

func TestConnectAfterCloseFails(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	require.NoError(t, c.Connect(context.Background()))
	srv.waitConn(t)

	require.NoError(t, c.Close())

	err := c.Connect(context.Background())
	require.ErrorIs(t, err, domain.ErrChannelClosed)
	assert.Equal(t, StatusDisconnected, c.Status())
}

func TestConnectIsIdempotentWhileConnected(t *testing.T) {
	srv := newWSServer(t)
	c := newTestClient(t, srv.url())

	require.NoError(t, c.Connect(context.Background()))
	srv.waitConn(t)
	require.NoError(t, c.Connect(context.Background()))

	select {
	case <-srv.conns:
		t.Fatal("second Connect dialed a new connection")
	case <-time.After(100 * time.Millisecond):
	}
}
