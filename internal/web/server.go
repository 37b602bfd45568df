// Package web serves the authenticated control surface. The server never
// runs its own accept loop: the orchestration loop polls it once per tick
// and any pending request is handled synchronously on the loop's thread of
// execution, which is what makes lock-free access to device state safe.
package web

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/eddwatts/BellTimer/internal/auth"
	"github.com/eddwatts/BellTimer/internal/clock"
	"github.com/eddwatts/BellTimer/internal/config"
	"github.com/eddwatts/BellTimer/internal/display"
	"github.com/eddwatts/BellTimer/internal/eventlog"
	"github.com/eddwatts/BellTimer/internal/fetch"
	"github.com/eddwatts/BellTimer/internal/metrics"
	"github.com/eddwatts/BellTimer/internal/platform"
	"github.com/eddwatts/BellTimer/internal/relay"
	"github.com/eddwatts/BellTimer/internal/state"
	"github.com/eddwatts/BellTimer/internal/store"
)

const requestDeadline = 5 * time.Second

type Server struct {
	guard    *auth.Guard
	st       *state.DeviceState
	store    *store.Store
	clk      *clock.Service
	fetcher  *fetch.Fetcher
	actuator *relay.Actuator
	disp     *display.Display
	events   *eventlog.Log
	updates  platform.UpdateChecker
	wdt      platform.Watchdog
	cfg      *config.Config

	ln  net.Listener
	mux *http.ServeMux
}

func NewServer(guard *auth.Guard, st *state.DeviceState, str *store.Store, clk *clock.Service,
	fetcher *fetch.Fetcher, actuator *relay.Actuator, disp *display.Display,
	events *eventlog.Log, updates platform.UpdateChecker, wdt platform.Watchdog, cfg *config.Config) *Server {

	s := &Server{
		guard:    guard,
		st:       st,
		store:    str,
		clk:      clk,
		fetcher:  fetcher,
		actuator: actuator,
		disp:     disp,
		events:   events,
		updates:  updates,
		wdt:      wdt,
		cfg:      cfg,
	}

	mux := http.NewServeMux()

	// public
	mux.HandleFunc("/login", s.handleLogin)
	mux.HandleFunc("/logout", s.handleLogout)

	// protected
	mux.HandleFunc("/", s.protected(s.handleHome))
	mux.HandleFunc("/diagnostics", s.protected(s.handleDiagnostics))
	mux.HandleFunc("/log", s.protected(s.handleEventLog))
	mux.HandleFunc("/set_schedule", s.protected(s.handleSetSchedule))
	mux.HandleFunc("/set_schedule_normal", s.protected(s.quickSet("Normal Day")))
	mux.HandleFunc("/set_schedule_half", s.protected(s.quickSet("Half Day")))
	mux.HandleFunc("/holidayon", s.protected(s.holidayHandler(true)))
	mux.HandleFunc("/holidayoff", s.protected(s.holidayHandler(false)))
	mux.HandleFunc("/force-update", s.protected(s.handleForceUpdate))
	mux.HandleFunc("/test-relay/", s.protected(s.handleTestRelay))
	mux.HandleFunc("/update-check", s.protected(s.handleUpdateCheck))

	// machine-readable queries, pre-shared key only
	mux.HandleFunc("/holidaystatus", s.query(s.handleHolidayStatus))
	mux.HandleFunc("/schedulestatus", s.query(s.handleScheduleStatus))

	s.mux = mux
	return s
}

// Listen binds the control port without starting an accept loop.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind control port: %w", err)
	}
	s.ln = ln
	log.Info().Str("address", s.cfg.ListenAddr).Msg("Control surface listening")
	return nil
}

// Addr reports the bound control address, or "" when not listening.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close releases the control port. Listen may be called again afterwards;
// setup mode relies on this to take the port over temporarily.
func (s *Server) Close() {
	if s.ln != nil {
		s.ln.Close()
		s.ln = nil
	}
}

// PollOnce accepts at most one pending connection and handles it fully
// before returning. If nothing is pending it returns within a millisecond.
// The deadline must sit in the future; an already-expired deadline makes
// Accept fail without ever reaching the pending connection.
func (s *Server) PollOnce() {
	if s.ln == nil {
		return
	}
	tcp, ok := s.ln.(*net.TCPListener)
	if !ok {
		return
	}
	tcp.SetDeadline(time.Now().Add(time.Millisecond))

	conn, err := s.ln.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return
		}
		log.Debug().Err(err).Msg("Accept failed")
		return
	}
	s.serveConn(conn)
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(requestDeadline))

	req, err := http.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		log.Debug().Err(err).Msg("Failed to read request")
		return
	}
	req.RemoteAddr = conn.RemoteAddr().String()

	s.disp.Wake()

	rw := newResponseWriter(conn)
	s.mux.ServeHTTP(rw, req)
	rw.finish()
}

// responseWriter writes a one-shot HTTP/1.1 response straight to the
// connection; every response closes the connection.
type responseWriter struct {
	bw          *bufio.Writer
	header      http.Header
	wroteHeader bool
}

func newResponseWriter(conn net.Conn) *responseWriter {
	return &responseWriter{
		bw:     bufio.NewWriter(conn),
		header: make(http.Header),
	}
}

func (w *responseWriter) Header() http.Header { return w.header }

func (w *responseWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	fmt.Fprintf(w.bw, "HTTP/1.1 %d %s\r\n", code, http.StatusText(code))
	w.header.Set("Connection", "close")
	w.header.Write(w.bw)
	w.bw.WriteString("\r\n")
}

func (w *responseWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		if w.header.Get("Content-Type") == "" {
			w.header.Set("Content-Type", "text/html; charset=utf-8")
		}
		w.WriteHeader(http.StatusOK)
	}
	return w.bw.Write(b)
}

func (w *responseWriter) finish() {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	w.bw.Flush()
}

// protected wraps a handler with the cookie-or-key policy.
func (s *Server) protected(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch s.guard.CheckProtected(r) {
		case auth.Granted:
			h(w, r)
		case auth.Unauthorized:
			s.recordAuthFailure(r)
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
		case auth.RedirectLogin:
			http.Redirect(w, r, "/login", http.StatusSeeOther)
		}
	}
}

// query wraps a machine-readable handler with the key-only policy.
func (s *Server) query(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.guard.CheckQuery(r) != auth.Granted {
			s.recordAuthFailure(r)
			s.writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		h(w, r)
	}
}

func (s *Server) recordAuthFailure(r *http.Request) {
	log.Warn().Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("Rejected unauthenticated request")
	s.events.Append("warn", "auth failure on "+r.URL.Path)
	metrics.Count("auth.failure", 1)
}
