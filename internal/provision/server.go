// Package provision serves the local HTTP configuration surface exposed
// while the device is in provisioning mode. It is reachable only through
// the device's own access point and collects the network credentials and
// control secret from the operator.
package provision

import (
	"context"
	_ "embed"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"

	"github.com/biosync/appliances/internal/credstore"
	"github.com/biosync/appliances/internal/retry"
	"github.com/biosync/appliances/internal/wifi"
)

//go:embed assets/setup.html
var setupPage []byte

// ConnectSpec is the bounded station attempt used by the connect handler.
var ConnectSpec = retry.Spec{Attempts: 20, Pause: 500 * time.Millisecond}

// defaultRestartDelay gives the operator's client time to read the
// response before the device goes away.
const defaultRestartDelay = 1 * time.Second

// Restarter schedules the controlled process restart that ends
// provisioning mode.
type Restarter interface {
	Restart()
}

// Server is the provisioning HTTP surface.
type Server struct {
	store        *credstore.Store
	radio        wifi.Radio
	restarter    Restarter
	log          logr.Logger
	http         *http.Server
	spec         retry.Spec
	restartDelay time.Duration
}

func NewServer(log logr.Logger, store *credstore.Store, radio wifi.Radio, restarter Restarter) *Server {
	s := &Server{
		store:        store,
		radio:        radio,
		restarter:    restarter,
		log:          log.WithName("provision"),
		spec:         ConnectSpec,
		restartDelay: defaultRestartDelay,
	}
	r := mux.NewRouter()
	r.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	r.HandleFunc("/scan", s.handleScan).Methods(http.MethodGet)
	r.HandleFunc("/connect", s.handleConnect).Methods(http.MethodGet)
	r.HandleFunc("/clear", s.handleClear).Methods(http.MethodGet)
	r.HandleFunc("/setpassword", s.handleSetPassword).Methods(http.MethodGet)
	s.http = &http.Server{Handler: r}
	return s
}

// Handler exposes the route tree, for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Serve accepts connections on ln until Shutdown or context cancellation.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		s.http.Shutdown(shutdownCtx)
	}()
	s.log.Info("Provisioning web server started", "addr", ln.Addr().String())
	err := s.http.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

type result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

func (s *Server) respond(w http.ResponseWriter, out any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(out); err != nil {
		s.log.Error(err, "Failed to write response")
	}
}

// scheduleRestart lets the in-flight response reach the client before the
// process goes down.
func (s *Server) scheduleRestart(w http.ResponseWriter) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	go func() {
		time.Sleep(s.restartDelay)
		s.restarter.Restart()
	}()
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(setupPage)
}

// handleScan re-surveys on every call; results are never cached.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	networks, err := s.radio.Scan(r.Context())
	if err != nil {
		s.log.Error(err, "Network scan failed")
		s.respond(w, []wifi.Network{})
		return
	}
	if networks == nil {
		networks = []wifi.Network{}
	}
	s.respond(w, networks)
}

// handleConnect tries the candidate credentials with the bounded attempt.
// Only a successful attempt persists anything or restarts the device, so a
// typo never costs the operator their stored state.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ssid := r.URL.Query().Get("ssid")
	password := r.URL.Query().Get("password")
	if ssid == "" {
		s.respond(w, result{Success: false, Message: "missing ssid"})
		return
	}

	if err := wifi.Connect(r.Context(), s.log, s.radio, ssid, password, s.spec); err != nil {
		s.respond(w, result{Success: false, Message: "Connection timeout"})
		return
	}
	if err := s.store.SaveNetwork(ssid, password); err != nil {
		s.log.Error(err, "Failed to persist credentials")
		s.respond(w, result{Success: false, Message: err.Error()})
		return
	}
	s.respond(w, result{Success: true})
	s.scheduleRestart(w)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		s.log.Error(err, "Failed to clear credentials")
		s.respond(w, result{Success: false, Message: err.Error()})
		return
	}
	s.respond(w, result{Success: true})
	s.scheduleRestart(w)
}

func (s *Server) handleSetPassword(w http.ResponseWriter, r *http.Request) {
	password := r.URL.Query().Get("password")
	if err := s.store.SaveControlSecret(password); err != nil {
		s.respond(w, result{Success: false, Message: err.Error()})
		return
	}
	s.respond(w, result{Success: true})
}
