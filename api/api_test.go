package api

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	stdsync "sync"
	"testing"
	"time"

	"github.com/davidbalbert/miniospf/ospf"
	"github.com/davidbalbert/miniospf/sync"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeEngine struct {
	mu      stdsync.Mutex
	status  ospf.Status
	err     error
	changes *sync.Notifier
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		status: ospf.Status{
			Version:  2,
			RouterID: "1.0.0.1",
			Area:     "0.0.0.0",
			AreaType: "standard",
			LSAs:     []ospf.LSAStatus{},
		},
		changes: sync.NewNotifier(),
	}
}

func (e *fakeEngine) Status(ctx context.Context) (*ospf.Status, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err != nil {
		return nil, e.err
	}

	st := e.status
	return &st, nil
}

func (e *fakeEngine) Changes() *sync.Notifier {
	return e.changes
}

func (e *fakeEngine) update(f func(st *ospf.Status)) {
	e.mu.Lock()
	f(&e.status)
	e.mu.Unlock()

	e.changes.NotifyChange()
}

func (e *fakeEngine) stop() {
	e.mu.Lock()
	e.err = ospf.ErrStopped
	e.mu.Unlock()
}

func quietLog() *logrus.Entry {
	log := logrus.New()
	log.Out = io.Discard
	return logrus.NewEntry(log)
}

type harness struct {
	engine   *fakeEngine
	client   *Client
	shutdown chan struct{}
	cancel   context.CancelFunc
	done     chan error
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	socket := filepath.Join(t.TempDir(), "ctl.sock")
	listener, err := net.Listen("unix", socket)
	require.NoError(t, err)

	h := &harness{
		engine:   newFakeEngine(),
		shutdown: make(chan struct{}),
		done:     make(chan error, 1),
	}

	var once stdsync.Once
	s := NewServer(h.engine, socket, func() { once.Do(func() { close(h.shutdown) }) }, "1.2.3", quietLog())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		h.done <- s.Serve(ctx, listener)
	}()

	h.client, err = NewClient(socket)
	require.NoError(t, err)

	t.Cleanup(func() {
		h.client.Close()
		cancel()
		<-h.done
	})

	return h
}

func TestGetVersion(t *testing.T) {
	h := newHarness(t)

	version, err := h.client.GetVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.2.3", version)
}

func TestGetStatus(t *testing.T) {
	h := newHarness(t)

	h.engine.update(func(st *ospf.Status) {
		st.LSAs = []ospf.LSAStatus{{
			Type:      "router",
			ID:        "1.0.0.1",
			AdvRouter: "1.0.0.1",
			Sequence:  "0x80000001",
			Age:       12,
			Checksum:  "0x3a9c",
			Length:    48,
		}}
		st.Link = &ospf.LinkStatus{
			Interface: "eth0",
			Address:   "10.0.0.1",
			State:     "DROther",
			DR:        "10.0.0.2",
			BDR:       "0.0.0.0",
			Neighbors: []ospf.NeighborStatus{{
				RouterID: "2.2.2.2",
				Address:  "10.0.0.2",
				State:    "Full",
				Priority: 1,
				DR:       "10.0.0.2",
				BDR:      "0.0.0.0",
				DeadIn:   37,
			}},
		}
	})

	st, err := h.client.GetStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, h.engine.status, *st)
}

func TestGetStatusStopped(t *testing.T) {
	h := newHarness(t)
	h.engine.stop()

	_, err := h.client.GetStatus(context.Background())
	require.Error(t, err)
	assert.Equal(t, codes.Unavailable, status.Code(err))
}

func TestWatchStatus(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := h.client.WatchStatus(ctx)
	require.NoError(t, err)

	st, err := stream.Recv()
	require.NoError(t, err)
	assert.Nil(t, st.Link)

	h.engine.update(func(st *ospf.Status) {
		st.Link = &ospf.LinkStatus{Interface: "eth0", State: "Waiting", Neighbors: []ospf.NeighborStatus{}}
	})

	st, err = stream.Recv()
	require.NoError(t, err)
	require.NotNil(t, st.Link)
	assert.Equal(t, "Waiting", st.Link.State)
}

func TestWatchStatusEndsOnServerStop(t *testing.T) {
	h := newHarness(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream, err := h.client.WatchStatus(ctx)
	require.NoError(t, err)

	_, err = stream.Recv()
	require.NoError(t, err)

	h.cancel()
	require.NoError(t, <-h.done)
	h.done <- nil

	_, err = stream.Recv()
	assert.Error(t, err)
}

func TestShutdown(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.client.Shutdown(context.Background()))

	select {
	case <-h.shutdown:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown was not requested")
	}
}

func TestRunReplacesStaleSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "ctl.sock")
	require.NoError(t, os.WriteFile(socket, nil, 0600))

	s := NewServer(newFakeEngine(), socket, func() {}, "1.2.3", quietLog())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()

	client, err := NewClient(socket)
	require.NoError(t, err)
	defer client.Close()

	require.Eventually(t, func() bool {
		_, err := client.GetVersion(context.Background())
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, err = os.Stat(socket)
	assert.True(t, os.IsNotExist(err))
}

func TestHTTPStatus(t *testing.T) {
	e := newFakeEngine()
	srv := httptest.NewServer(NewHandler(e))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var st ospf.Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "1.0.0.1", st.RouterID)

	e.stop()
	resp2, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp2.StatusCode)
}

func TestHTTPMetrics(t *testing.T) {
	srv := httptest.NewServer(NewHandler(newFakeEngine()))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "go_goroutines")
}
