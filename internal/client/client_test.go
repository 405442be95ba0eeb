package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glebk/status-board/internal/api"
	"github.com/glebk/status-board/internal/dashboard"
	"github.com/glebk/status-board/internal/domain"
	"github.com/glebk/status-board/internal/feed"
	"github.com/glebk/status-board/internal/repository/sqlite"
	"github.com/glebk/status-board/internal/service"
	"github.com/glebk/status-board/internal/websocket"
)

const testPassword = "secret"

// testServer is the real API over SQLite. The websocket hub behind
// /api/changes can be replaced to simulate a server dropping its viewers.
type testServer struct {
	*httptest.Server
	changes *feed.Hub
	svc     *service.StatusService
	viewers feed.Subscriber
	ws      atomic.Pointer[websocket.Hub]
}

// slowSubscriber delays every Subscribe call on the wrapped feed
type slowSubscriber struct {
	feed.Subscriber
	delay time.Duration
}

func (s slowSubscriber) Subscribe(table string, handler feed.Handler) func() {
	time.Sleep(s.delay)
	return s.Subscriber.Subscribe(table, handler)
}

func newTestServer(t *testing.T) (*httptest.Server, *feed.Hub) {
	t.Helper()
	ts := startTestServer(t, 0)
	return ts.Server, ts.changes
}

// startTestServer starts the API. A non-zero subscribeDelay slows down every
// websocket subscription to the change feed.
func startTestServer(t *testing.T, subscribeDelay time.Duration) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := sqlite.New(filepath.Join(t.TempDir(), "status.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	changes := feed.NewHub()
	t.Cleanup(func() { changes.Close() })

	ts := &testServer{changes: changes, viewers: changes}
	if subscribeDelay > 0 {
		ts.viewers = slowSubscriber{Subscriber: changes, delay: subscribeDelay}
	}
	ts.svc = service.NewStatusService(sqlite.NewStatusRepository(db), changes, service.Credentials{
		SharedPassword: testPassword,
		AdminName:      "Boss",
	})
	ts.replaceViewerHub()
	t.Cleanup(func() { ts.ws.Load().Close() })

	handleChanges := func(c *gin.Context) { ts.ws.Load().HandleConnection(c) }
	router := api.NewRouter(api.RouterConfig{AllowAllOrigins: true}, api.New(ts.svc, handleChanges))
	ts.Server = httptest.NewServer(router)
	t.Cleanup(ts.Server.Close)

	return ts
}

// replaceViewerHub installs a fresh websocket hub and closes the old one,
// which disconnects every connected viewer
func (ts *testServer) replaceViewerHub() {
	old := ts.ws.Swap(websocket.NewHub(ts.viewers, domain.StatusTable))
	if old != nil {
		old.Close()
	}
}

func runView(t *testing.T, v *dashboard.View) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- v.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("view did not stop")
		}
	})
}

func TestClient_RoundTrip(t *testing.T) {
	server, _ := newTestServer(t)
	c := New(server.URL + "/")
	ctx := context.Background()

	sarah := domain.NewSession("Sarah", testPassword)
	require.NoError(t, c.Register(ctx, sarah))
	require.NoError(t, c.UpdateStatus(ctx, sarah, domain.StatusSlotB))

	people, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "Sarah", people[0].Name)
	assert.Equal(t, domain.StatusSlotB, people[0].Status)

	assert.ErrorIs(t, c.UpdateStatus(ctx, sarah, "Office"), domain.ErrValidation)
	assert.ErrorIs(t, c.UpdateStatus(ctx, domain.NewSession("Sarah", "wrong"), domain.StatusHome), domain.ErrUnauthorized)
	assert.ErrorIs(t, c.ClearAll(ctx, sarah), domain.ErrUnauthorized)

	require.NoError(t, c.ClearAll(ctx, domain.NewSession("Boss", testPassword)))
	people, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, people)
}

func TestClient_Subscribe(t *testing.T) {
	server, changes := newTestServer(t)
	c := New(server.URL)
	ctx := context.Background()

	got := make(chan feed.Event, 8)
	unsubscribe, err := c.Subscribe(ctx, domain.StatusTable, func(e feed.Event) { got <- e }, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return changes.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, c.Register(ctx, domain.NewSession("Sarah", testPassword)))

	select {
	case e := <-got:
		assert.Equal(t, domain.StatusTable, e.Table)
		assert.Equal(t, feed.KindInsert, e.Kind)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification received")
	}

	unsubscribe()
	assert.Eventually(t, func() bool { return changes.SubscriberCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_SubscribeReportsDrop(t *testing.T) {
	ts := startTestServer(t, 0)
	c := New(ts.URL)

	dropped := make(chan error, 1)
	unsubscribe, err := c.Subscribe(context.Background(), domain.StatusTable, func(feed.Event) {}, func(err error) { dropped <- err })
	require.NoError(t, err)
	defer unsubscribe()

	ts.replaceViewerHub()

	select {
	case err := <-dropped:
		assert.ErrorIs(t, err, domain.ErrNetwork)
	case <-time.After(2 * time.Second):
		t.Fatal("drop was not reported")
	}
}

func TestClient_UnsubscribeIsNotADrop(t *testing.T) {
	ts := startTestServer(t, 0)
	c := New(ts.URL)

	dropped := make(chan error, 1)
	unsubscribe, err := c.Subscribe(context.Background(), domain.StatusTable, func(feed.Event) {}, func(err error) { dropped <- err })
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()

	select {
	case err := <-dropped:
		t.Fatalf("unexpected drop: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestView_SeesWriteRightAfterFirstFetch(t *testing.T) {
	ts := startTestServer(t, 300*time.Millisecond)
	c := New(ts.URL)
	ctx := context.Background()

	sarah := domain.NewSession("Sarah", testPassword)
	require.NoError(t, c.Register(ctx, sarah))

	v := dashboard.NewView(sarah, c, c, nil)
	runView(t, v)

	require.Eventually(t, func() bool { return len(v.Snapshot().People) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, domain.Status(""), v.Snapshot().MyStatus)

	require.NoError(t, ts.svc.UpdateStatus(ctx, sarah, domain.StatusHome))
	assert.Eventually(t, func() bool { return v.Snapshot().MyStatus == domain.StatusHome }, 2*time.Second, 10*time.Millisecond)
}

func TestView_RecoversWhenServerDropsViewers(t *testing.T) {
	ts := startTestServer(t, 0)
	c := New(ts.URL)
	ctx := context.Background()

	sarah := domain.NewSession("Sarah", testPassword)
	require.NoError(t, c.Register(ctx, sarah))

	var mu sync.Mutex
	var sawNetworkErr bool
	v := dashboard.NewView(sarah, c, c, func(snap dashboard.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if errors.Is(snap.Err, domain.ErrNetwork) {
			sawNetworkErr = true
		}
	})
	runView(t, v)

	require.Eventually(t, func() bool { return len(v.Snapshot().People) == 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return ts.changes.SubscriberCount() == 1 }, time.Second, 10*time.Millisecond)

	ts.replaceViewerHub()
	require.NoError(t, ts.svc.UpdateStatus(ctx, sarah, domain.StatusSlotA))

	require.Eventually(t, func() bool {
		snap := v.Snapshot()
		return snap.Err == nil && snap.MyStatus == domain.StatusSlotA
	}, 5*time.Second, 20*time.Millisecond)

	mu.Lock()
	assert.True(t, sawNetworkErr, "the drop should surface as a network error")
	mu.Unlock()

	// live again: a later write arrives through the new socket
	require.Eventually(t, func() bool { return ts.changes.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, ts.svc.UpdateStatus(ctx, sarah, domain.StatusHome))
	assert.Eventually(t, func() bool { return v.Snapshot().MyStatus == domain.StatusHome }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_NetworkError(t *testing.T) {
	server, _ := newTestServer(t)
	url := server.URL
	server.Close()

	c := New(url)
	ctx := context.Background()

	_, err := c.List(ctx)
	assert.ErrorIs(t, err, domain.ErrNetwork)

	err = c.Register(ctx, domain.NewSession("Sarah", testPassword))
	assert.ErrorIs(t, err, domain.ErrNetwork)

	_, err = c.Subscribe(ctx, domain.StatusTable, func(feed.Event) {}, nil)
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")

	_, err := LoadSession(path)
	assert.ErrorIs(t, err, domain.ErrNoSession)

	stored := StoredSession{Session: domain.NewSession("Sarah", testPassword), URL: "http://localhost:8080"}
	require.NoError(t, SaveSession(path, stored))

	loaded, err := LoadSession(path)
	require.NoError(t, err)
	assert.Equal(t, stored, loaded)

	require.NoError(t, ClearSession(path))
	require.NoError(t, ClearSession(path))

	_, err = LoadSession(path)
	assert.ErrorIs(t, err, domain.ErrNoSession)
}
