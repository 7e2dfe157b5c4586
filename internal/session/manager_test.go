package session

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/localstackws/wsgateway/internal/config"
	"github.com/localstackws/wsgateway/internal/dispatch"
)

type recordedEvent struct {
	routeKey string
	body     map[string]any
}

type fakeBackend struct {
	mu     sync.Mutex
	events []recordedEvent
	status map[string]int // per-route-key status override; default 200
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{status: map[string]int{}}
}

func (f *fakeBackend) handler(routeKey string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		f.events = append(f.events, recordedEvent{routeKey: routeKey, body: body})
		status := f.status[routeKey]
		f.mu.Unlock()

		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (f *fakeBackend) eventsFor(routeKey string) []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedEvent
	for _, e := range f.events {
		if e.routeKey == routeKey {
			out = append(out, e)
		}
	}
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestManager(t *testing.T, backend *fakeBackend, idle, hard time.Duration) (*Manager, *httptest.Server) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/connect", backend.handler("$connect"))
	mux.HandleFunc("/disconnect", backend.handler("$disconnect"))
	mux.HandleFunc("/default", backend.handler("$default"))
	mux.HandleFunc("/join", backend.handler("join"))
	backendSrv := httptest.NewServer(mux)
	t.Cleanup(backendSrv.Close)

	cfg := &config.Config{
		Server: config.ServerConfig{Stage: "test", DomainName: "localhost:0", APIID: "testapi"},
		Integrations: config.IntegrationsConfig{
			Mode: config.ModeLambdaProxy,
			Table: map[string]string{
				"$connect":    backendSrv.URL + "/connect",
				"$disconnect": backendSrv.URL + "/disconnect",
				"$default":    backendSrv.URL + "/default",
				"join":        backendSrv.URL + "/join",
			},
		},
		Session: config.SessionConfig{
			IdleTimeout: config.Duration{Duration: idle},
			HardTimeout: config.Duration{Duration: hard},
		},
	}

	d := dispatch.New(cfg, testLogger())
	mgr := NewManager(cfg, d, testLogger())

	wsMux := http.NewServeMux()
	wsMux.HandleFunc("/", mgr.HandleWebSocket)
	wsSrv := httptest.NewServer(wsMux)
	t.Cleanup(wsSrv.Close)

	return mgr, wsSrv
}

func dialWS(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestConnectDispatchesConnectEvent(t *testing.T) {
	backend := newFakeBackend()
	_, srv := newTestManager(t, backend, time.Minute, time.Minute)

	conn := dialWS(t, srv, "/?token=abc")
	defer conn.Close()

	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$connect")) == 1 })

	ev := backend.eventsFor("$connect")[0]
	rc := ev.body["requestContext"].(map[string]any)
	if rc["routeKey"] != "$connect" {
		t.Errorf("routeKey = %v", rc["routeKey"])
	}
	qs := ev.body["queryStringParameters"].(map[string]any)
	if qs["token"] != "abc" {
		t.Errorf("query token = %v", qs["token"])
	}

	headers := ev.body["headers"].(map[string]any)
	if headers["host"] == nil || headers["host"] == "" {
		t.Errorf("headers[host] = %v, want a non-empty host", headers["host"])
	}

	mvHeaders := ev.body["multiValueHeaders"].(map[string]any)
	hostList, ok := mvHeaders["host"].([]any)
	if !ok || len(hostList) != 1 || hostList[0] != headers["host"] {
		t.Errorf("multiValueHeaders[host] = %v, want [%v]", mvHeaders["host"], headers["host"])
	}
}

func TestMessageRoutedByDefault(t *testing.T) {
	backend := newFakeBackend()
	_, srv := newTestManager(t, backend, time.Minute, time.Minute)

	conn := dialWS(t, srv, "/")
	defer conn.Close()

	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$connect")) == 1 })

	if err := conn.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$default")) == 1 })
	ev := backend.eventsFor("$default")[0]
	if ev.body["body"] != "hello" {
		t.Errorf("body = %v, want hello", ev.body["body"])
	}
}

func TestDisconnectDispatchedOnClientClose(t *testing.T) {
	backend := newFakeBackend()
	_, srv := newTestManager(t, backend, time.Minute, time.Minute)

	conn := dialWS(t, srv, "/")
	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$connect")) == 1 })

	conn.Close()

	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$disconnect")) == 1 })
}

func TestConnectRejectedClosesSocket(t *testing.T) {
	backend := newFakeBackend()
	backend.status["$connect"] = http.StatusInternalServerError
	_, srv := newTestManager(t, backend, time.Minute, time.Minute)

	conn := dialWS(t, srv, "/")
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected connection close after rejected connect")
	}

	time.Sleep(100 * time.Millisecond)
	if len(backend.eventsFor("$disconnect")) != 0 {
		t.Error("disconnect should not be dispatched after failed connect")
	}
}

func TestIdleTimeoutClosesSession(t *testing.T) {
	backend := newFakeBackend()
	mgr, srv := newTestManager(t, backend, 100*time.Millisecond, time.Minute)

	conn := dialWS(t, srv, "/")
	defer conn.Close()
	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$connect")) == 1 })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected close due to idle timeout")
	}

	waitFor(t, time.Second, func() bool { return mgr.Count() == 0 })
}

func TestManagementPush(t *testing.T) {
	backend := newFakeBackend()
	mgr, srv := newTestManager(t, backend, time.Minute, time.Minute)

	conn := dialWS(t, srv, "/")
	defer conn.Close()
	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$connect")) == 1 })

	var id string
	waitFor(t, time.Second, func() bool {
		list := mgr.List()
		if len(list) != 1 {
			return false
		}
		id = list[0].ConnectionID
		return true
	})

	if !mgr.Push(id, []byte("pushed")) {
		t.Fatal("Push returned false")
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	if string(data) != "pushed" {
		t.Errorf("received %q, want pushed", data)
	}
}

func TestManagementDelete(t *testing.T) {
	backend := newFakeBackend()
	mgr, srv := newTestManager(t, backend, time.Minute, time.Minute)

	conn := dialWS(t, srv, "/")
	defer conn.Close()
	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$connect")) == 1 })

	var id string
	waitFor(t, time.Second, func() bool {
		list := mgr.List()
		if len(list) != 1 {
			return false
		}
		id = list[0].ConnectionID
		return true
	})

	if !mgr.Delete(id) {
		t.Fatal("Delete returned false")
	}

	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$disconnect")) == 1 })

	if mgr.Delete(id) {
		t.Error("second Delete should return false")
	}
	if mgr.Push(id, []byte("x")) {
		t.Error("Push after Delete should return false")
	}
}

func TestShutdownClosesAllSessionsWithoutDisconnect(t *testing.T) {
	backend := newFakeBackend()
	mgr, srv := newTestManager(t, backend, time.Minute, time.Minute)

	conn := dialWS(t, srv, "/")
	defer conn.Close()
	waitFor(t, time.Second, func() bool { return len(backend.eventsFor("$connect")) == 1 })

	mgr.Shutdown()

	waitFor(t, time.Second, func() bool { return mgr.Count() == 0 })
	time.Sleep(50 * time.Millisecond)
	if len(backend.eventsFor("$disconnect")) != 0 {
		t.Error("shutdown must not dispatch $disconnect")
	}
}

func TestSourceIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		want       string
	}{
		{"ipv4", "203.0.113.5:54321", "203.0.113.5"},
		{"ipv6", "[2001:db8::1]:54321", "2001:db8::1"},
		{"ipv4-mapped ipv6", "[::ffff:127.0.0.1]:54321", "127.0.0.1"},
		{"no port", "203.0.113.5", "203.0.113.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &http.Request{RemoteAddr: tt.remoteAddr}
			if got := sourceIP(r); got != tt.want {
				t.Errorf("sourceIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
			}
		})
	}
}
