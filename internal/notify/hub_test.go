package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bozorlik/miniapp-backend/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()

	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
		require.NoError(t, err)
		hub.ServeWS(w, r, userID)
	}))
	t.Cleanup(srv.Close)

	return hub, srv
}

func dialWS(t *testing.T, srv *httptest.Server, userID int64) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?user_id=" + strconv.FormatInt(userID, 10)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var event Event
	require.NoError(t, json.Unmarshal(payload, &event))

	return event
}

func TestHub_DeliversShareIssued(t *testing.T) {
	hub, srv := startHub(t)
	conn := dialWS(t, srv, 7)

	// Registration races the event send; give the hub loop a beat.
	time.Sleep(50 * time.Millisecond)
	hub.ShareIssued(7, "tok-a", "https://t.me/BozorlikBot?startapp=tok-a")

	event := readEvent(t, conn)
	assert.Equal(t, "share_issued", event.Type)
	assert.Equal(t, "tok-a", event.Token)
	assert.Equal(t, "https://t.me/BozorlikBot?startapp=tok-a", event.DeepLink)
}

func TestHub_DeliversListImported(t *testing.T) {
	hub, srv := startHub(t)
	conn := dialWS(t, srv, 99)

	time.Sleep(50 * time.Millisecond)
	hub.ListImported(99, &domain.ShoppingList{ID: "list-1", OwnerUserID: 99, Total: 24000})

	event := readEvent(t, conn)
	assert.Equal(t, "list_imported", event.Type)
	require.NotNil(t, event.List)
	assert.Equal(t, "list-1", event.List.ID)
	assert.Equal(t, int64(24000), event.List.Total)
}

func TestHub_RoutesByUserID(t *testing.T) {
	hub, srv := startHub(t)
	target := dialWS(t, srv, 7)
	other := dialWS(t, srv, 8)

	time.Sleep(50 * time.Millisecond)
	hub.ShareIssued(7, "tok-a", "/shared/tok-a")

	event := readEvent(t, target)
	assert.Equal(t, "tok-a", event.Token)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "event for user 7 must not reach user 8")
}

func TestHub_FansOutToAllConnectionsOfUser(t *testing.T) {
	hub, srv := startHub(t)
	phone := dialWS(t, srv, 7)
	desktop := dialWS(t, srv, 7)

	time.Sleep(50 * time.Millisecond)
	hub.ShareIssued(7, "tok-a", "/shared/tok-a")

	assert.Equal(t, "tok-a", readEvent(t, phone).Token)
	assert.Equal(t, "tok-a", readEvent(t, desktop).Token)
}

func TestHub_EventForOfflineUserIsDropped(t *testing.T) {
	hub, _ := startHub(t)

	// Nobody is connected as user 42; the hub must not block or panic.
	hub.ShareIssued(42, "tok-a", "/shared/tok-a")
}

func TestHub_ShutdownReleasesDetachingClients(t *testing.T) {
	hub := NewHub(testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, 7)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	time.Sleep(50 * time.Millisecond)

	cancel()

	// The hub closes every send channel on shutdown and the write pump turns
	// that into a close frame.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err)

	// A read pump noticing its broken connection after shutdown must not
	// hang on the registry.
	released := make(chan struct{})
	go func() {
		hub.drop(&Client{hub: hub, userID: 7, send: make(chan []byte)})
		close(released)
	}()

	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("client detach blocked after hub shutdown")
	}
}
