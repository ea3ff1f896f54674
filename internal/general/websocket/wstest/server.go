// Package wstest runs an in-process realtime endpoint that performs the same
// first-frame auth handshake as the backend. Tests use it to observe what a
// client sends and to push inbound events or drop the connection.
package wstest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"courier-driver/internal/domain/user"
	"courier-driver/internal/general/contracts"
	"courier-driver/internal/general/jwt"

	"github.com/gorilla/websocket"
)

const authWindow = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Received is one frame a client sent after authenticating.
type Received struct {
	Subject string
	Frame   contracts.Frame
}

type Server struct {
	t     testing.TB
	srv   *httptest.Server
	mgr   *jwt.Manager
	roles []user.Role

	mu         sync.Mutex
	handshakes int
	rejected   int
	conns      map[*websocket.Conn]*sync.Mutex
	received   []Received
	notify     chan struct{}
}

// NewServer starts a server that accepts tokens signed by mgr for roles
// (any role when empty). It is closed automatically at test cleanup.
func NewServer(t testing.TB, mgr *jwt.Manager, roles ...user.Role) *Server {
	t.Helper()
	s := &Server{
		t:      t,
		mgr:    mgr,
		roles:  roles,
		conns:  make(map[*websocket.Conn]*sync.Mutex),
		notify: make(chan struct{}, 1),
	}
	s.srv = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// URL is the ws:// address of the endpoint.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

func (s *Server) Close() {
	s.DropAll()
	s.srv.Close()
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.handshakes++
	s.mu.Unlock()

	_ = conn.SetReadDeadline(time.Now().Add(authWindow))
	mt, first, err := conn.ReadMessage()
	if err != nil || mt != websocket.TextMessage {
		s.reject(conn, "authentication timeout")
		return
	}
	res, err := jwt.ValidateWSAuth(first, s.mgr, s.roles...)
	if err != nil {
		s.reject(conn, "authentication failed: "+err.Error())
		return
	}
	_ = conn.SetReadDeadline(time.Time{})

	s.mu.Lock()
	s.conns[conn] = &sync.Mutex{}
	s.mu.Unlock()
	s.signal()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		s.signal()
	}()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var frame contracts.Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			continue
		}
		s.mu.Lock()
		s.received = append(s.received, Received{Subject: res.Claims.Subject, Frame: frame})
		s.mu.Unlock()
		s.signal()
	}
}

func (s *Server) reject(conn *websocket.Conn, reason string) {
	s.mu.Lock()
	s.rejected++
	s.mu.Unlock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
		time.Now().Add(time.Second))
	s.signal()
}

func (s *Server) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// Push sends one frame to every authenticated connection.
func (s *Server) Push(event string, data any) {
	s.t.Helper()
	frame, err := contracts.NewFrame(event, data)
	if err != nil {
		s.t.Fatalf("wstest: encode %s: %v", event, err)
	}
	payload, _ := json.Marshal(frame)

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, mu := range s.conns {
		mu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		mu.Unlock()
	}
}

// PushRaw sends payload verbatim to every authenticated connection.
func (s *Server) PushRaw(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, mu := range s.conns {
		mu.Lock()
		_ = conn.WriteMessage(websocket.TextMessage, payload)
		mu.Unlock()
	}
}

// DropAll closes every connection without a close handshake, the way a lost
// network looks to the client.
func (s *Server) DropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.UnderlyingConn().Close()
	}
}

// Handshakes counts every upgrade attempt, authenticated or not.
func (s *Server) Handshakes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handshakes
}

// Rejected counts handshakes that failed auth.
func (s *Server) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Connections counts currently authenticated connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Received returns a copy of every frame received so far.
func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Received, len(s.received))
	copy(out, s.received)
	return out
}

// Events returns the received frames with the given event name.
func (s *Server) Events(event string) []Received {
	var out []Received
	for _, r := range s.Received() {
		if r.Frame.Event == event {
			out = append(out, r)
		}
	}
	return out
}

// WaitFor polls cond until it holds or timeout passes.
func (s *Server) WaitFor(timeout time.Duration, cond func() bool) bool {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if cond() {
			return true
		}
		select {
		case <-deadline.C:
			return cond()
		case <-s.notify:
		case <-tick.C:
		}
	}
}
