package events

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuemby/agentbroker/pkg/log"
)

const pingInterval = 25 * time.Second

// ServerConfig is the §4.7 HTTP server's bind spec and limits.
type ServerConfig struct {
	Host        string
	Port        int // 0 = ephemeral
	MaxClients  int
	GracePeriod time.Duration
	Title       string
}

// Server is C7's HTTP+SSE half: it serves the dashboard, the SSE
// stream backed by a Bus, and tokenised file downloads for generated
// artefacts (image thumbnails, reference files).
type Server struct {
	cfg  ServerConfig
	bus  *Bus
	tmpl *template.Template
	mux  *http.ServeMux

	mu    sync.Mutex
	files map[string]string

	httpServer *http.Server
	listener   net.Listener
	url        string
}

// NewServer builds a Server bound to cfg, wrapping a fresh Bus.
func NewServer(cfg ServerConfig) *Server {
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = 10
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = 10 * time.Second
	}
	return &Server{
		cfg:   cfg,
		bus:   NewBus(cfg.MaxClients, cfg.GracePeriod),
		tmpl:  template.Must(template.New("dashboard").Parse(dashboardTemplate)),
		mux:   http.NewServeMux(),
		files: make(map[string]string),
	}
}

// Mux exposes the server's route table so callers can register
// additional endpoints (the metrics handler, typically) before Start.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// Bus returns the broadcaster, so the Invoker/Dispatcher/Fan-out
// Coordinator can push events without depending on the HTTP layer.
func (s *Server) Bus() *Bus { return s.bus }

// Start binds the listener and begins serving in the background,
// returning the dashboard URL (§6 "advertised via get_gui_url").
func (s *Server) Start() (string, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return "", fmt.Errorf("events: listen: %w", err)
	}
	s.listener = ln

	s.mux.HandleFunc("/", s.handleIndex)
	s.mux.HandleFunc("/sse", s.handleSSE)
	s.mux.HandleFunc("/file/", s.handleFile)

	s.httpServer = &http.Server{Handler: s.mux}
	addr := ln.Addr().(*net.TCPAddr)
	s.url = fmt.Sprintf("http://%s:%d/", loopbackHost(addr.IP.String()), addr.Port)

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.WithComponent("eventbus").Error().Err(err).Msg("dashboard server stopped")
		}
	}()

	return s.url, nil
}

func loopbackHost(ip string) string {
	if ip == "0.0.0.0" || ip == "::" {
		return "127.0.0.1"
	}
	return ip
}

// URL returns the dashboard URL from the most recent Start, or "" if
// the server has not started.
func (s *Server) URL() string { return s.url }

// Stop shuts the HTTP server down, waiting up to ctx's deadline for
// in-flight SSE connections to close.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// RegisterFile makes path downloadable via an unguessable, process-
// scoped token and returns the token (§4.7 "GET /file/<token>").
func (s *Server) RegisterFile(path string) (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("events: generate file token: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(buf)

	s.mu.Lock()
	s.files[token] = path
	s.mu.Unlock()
	return token, nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = s.tmpl.Execute(w, struct {
		Title string
	}{Title: s.cfg.Title})
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	viewer, ok := s.bus.Register()
	if !ok {
		http.Error(w, "too many viewers", http.StatusServiceUnavailable)
		return
	}
	defer s.bus.Unregister(viewer)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case delivery, open := <-viewer:
			if !open {
				return
			}
			payload, err := json.Marshal(delivery)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Path[len("/file/"):]

	s.mu.Lock()
	path, ok := s.files[token]
	s.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, path)
}

const dashboardTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<pre id="log"></pre>
<script>
var log = document.getElementById("log");
var source = new EventSource("/sse");
source.onmessage = function(event) {
  var data = JSON.parse(event.data);
  log.textContent += JSON.stringify(data.event) + "\n";
};
</script>
</body>
</html>
`
