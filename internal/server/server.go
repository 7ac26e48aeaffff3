// ABOUTME: Broadcast server fanning captured audio out to WebSocket consumers
// ABOUTME: Owns the connection registry, the control protocol, and eviction on failure
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
	"github.com/0xav10086/PaperCupTelephone/internal/capture"
	"github.com/0xav10086/PaperCupTelephone/internal/discovery"
	"github.com/0xav10086/PaperCupTelephone/internal/protocol"
	"github.com/0xav10086/PaperCupTelephone/internal/web"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Config holds server configuration.
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	UseTUI     bool
	Debug      bool
}

// Server accepts WebSocket consumers and fans each captured frame out to all
// of them. Registry mutations are serialized through connsMu; a failure on
// one connection never blocks or drops delivery to its siblings.
type Server struct {
	config   Config
	serverID string

	upgrader   websocket.Upgrader
	httpServer *http.Server
	mux        *http.ServeMux

	engine *capture.Engine

	conns   map[string]*Conn
	connsMu sync.RWMutex

	// Aggregate counters, updated once per frame (not once per connection).
	framesOut atomic.Uint64
	bytesOut  atomic.Uint64

	mdnsManager *discovery.Manager
	tui         *TUI
	startTime   time.Time

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	running    atomic.Bool
	wg         sync.WaitGroup
}

// New creates a server around a capture engine.
func New(config Config, engine *capture.Engine) *Server {
	if config.Port == 0 {
		config.Port = 8765
	}
	if config.Name == "" {
		config.Name = "PaperCup Server"
	}

	return &Server{
		config:   config,
		serverID: uuid.New().String(),
		engine:   engine,
		mux:      http.NewServeMux(),
		upgrader: websocket.Upgrader{
			// Local-network broadcaster: the page is served from this same
			// host, so all origins are accepted.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:     make(map[string]*Conn),
		startTime: time.Now(),
		stopChan:  make(chan struct{}),
	}
}

// Start binds the listener, starts the capture engine, and serves until
// Stop is called. A bind or capture failure is returned immediately and the
// server stays not-running; retry policy belongs to the operator.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}

	log.Printf("Server starting: %s (ID: %s)", s.config.Name, s.serverID)

	s.engine.OnFrame(s.Broadcast)
	if err := s.engine.Start(); err != nil {
		ln.Close()
		return fmt.Errorf("capture engine: %w", err)
	}

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			ServerMode:  true,
		})
		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		}
	}

	if s.config.UseTUI {
		s.tui = NewTUI(s.Status, s.engine.Levels())
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.tui.Start(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
	}

	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.mux.HandleFunc("/status", s.handleStatus)
	s.mux.Handle("/", web.Handler())

	s.httpServer = &http.Server{Handler: s.mux}
	s.running.Store(true)

	log.Printf("Broadcast server listening on %s", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var tuiQuit <-chan struct{}
	if s.tui != nil {
		tuiQuit = s.tui.QuitChan()
	}

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Server shutting down...")
	case <-tuiQuit:
		log.Printf("TUI quit requested, shutting down...")
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()
	s.running.Store(false)

	if s.tui != nil {
		s.tui.Stop()
	}

	s.engine.Stop()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	s.closeAllConns()
	s.wg.Wait()
	log.Printf("Server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop requests shutdown. Idempotent.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Broadcast encodes a frame once and fans it out to every live connection.
// Runs on the capture callback, so it never blocks on network I/O: each send
// is a non-blocking enqueue, and an enqueue failure evicts that connection
// before the next frame. Fail fast, no retry.
func (s *Server) Broadcast(frame audio.Frame) {
	payload := audio.EncodeFloat32LE(frame.Samples)

	s.connsMu.RLock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.connsMu.RUnlock()

	for _, c := range conns {
		if err := c.enqueue(payload); err != nil {
			log.Printf("Send to %s failed: %v, evicting", c.ID, err)
			s.removeConn(c)
		}
	}

	s.framesOut.Add(1)
	s.bytesOut.Add(uint64(len(payload)))
}

// handleWebSocket upgrades and runs one consumer connection.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New connection from %s", r.RemoteAddr)
	s.handleConnection(conn)
}

// handleConnection registers a connection and runs its receive loop until a
// terminal event. The loop never re-arms after an error or cancellation.
func (s *Server) handleConnection(ws *websocket.Conn) {
	c := newConn(ws)

	// The format announcement is queued before the connection joins the
	// registry, so it precedes any fanned-out frame even for consumers that
	// connect mid-stream. The queue is fresh, so this cannot block.
	format := s.engine.Format()
	c.sendChan <- protocol.NewAudioConfig(format.SampleRate, format.Channels)

	// The shutdown flag is re-read under connsMu so a connection can never
	// register after closeAllConns has swept the registry: either it sees the
	// flag and bails, or it inserts before the sweep takes the lock and the
	// sweep closes it.
	s.connsMu.Lock()
	s.shutdownMu.RLock()
	shutdown := s.isShutdown
	s.shutdownMu.RUnlock()
	if shutdown {
		s.connsMu.Unlock()
		log.Printf("Rejecting connection during shutdown")
		ws.Close()
		return
	}
	s.conns[c.ID] = c
	s.connsMu.Unlock()

	log.Printf("Client %s registered (%d live)", c.ID, s.clientCount())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.connWriter(c)
	}()

	defer s.removeConn(c)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Receive error on %s: %v", c.ID, err)
			}
			return
		}

		c.touch()

		switch msgType {
		case websocket.TextMessage:
			s.handleControlMessage(c, data)
		case websocket.BinaryMessage:
			// Inbound binary has no defined semantics (reserved).
		}
	}
}

// connWriter drains the send queue onto the wire. A write failure evicts the
// connection and ends the writer; no retry.
func (s *Server) connWriter(c *Conn) {
	const writeDeadline = 10 * time.Second

	for {
		select {
		case msg := <-c.sendChan:
			switch v := msg.(type) {
			case []byte:
				c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := c.ws.WriteMessage(websocket.BinaryMessage, v); err != nil {
					log.Printf("Write to %s failed: %v, evicting", c.ID, err)
					s.removeConn(c)
					return
				}
				c.bytesSent.Add(uint64(len(v)))
				c.touch()
			default:
				data, err := json.Marshal(v)
				if err != nil {
					log.Printf("Error marshaling message for %s: %v", c.ID, err)
					continue
				}
				c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
				if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
					log.Printf("Write to %s failed: %v, evicting", c.ID, err)
					s.removeConn(c)
					return
				}
				c.bytesSent.Add(uint64(len(data)))
				c.touch()
			}

		case <-c.done:
			return
		}
	}
}

// handleControlMessage routes one inbound text message. Malformed or unknown
// messages are logged and ignored; they never tear the connection down.
func (s *Server) handleControlMessage(c *Conn, data []byte) {
	msgType, err := protocol.ParseType(data)
	if err != nil {
		log.Printf("Ignoring malformed control message from %s: %v", c.ID, err)
		return
	}

	switch msgType {
	case protocol.TypeClientInfo:
		var info protocol.ClientInfo
		if err := json.Unmarshal(data, &info); err != nil {
			log.Printf("Ignoring bad client_info from %s: %v", c.ID, err)
			return
		}
		c.setDeviceInfo(info.DeviceInfo)
		if s.config.Debug {
			log.Printf("Client %s identified as %q", c.ID, info.DeviceInfo)
		}

	case protocol.TypePing:
		pong := protocol.Pong{
			Type:      protocol.TypePong,
			Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
		}
		if err := c.enqueue(pong); err != nil {
			log.Printf("Pong to %s failed: %v, evicting", c.ID, err)
			s.removeConn(c)
		}

	default:
		log.Printf("Ignoring unknown message type %q from %s", msgType, c.ID)
	}
}

// removeConn takes a connection out of the registry and closes its
// transport. Idempotent; safe from the fan-out, writer, and receive paths.
func (s *Server) removeConn(c *Conn) {
	s.connsMu.Lock()
	_, present := s.conns[c.ID]
	delete(s.conns, c.ID)
	s.connsMu.Unlock()

	c.close()

	if present {
		log.Printf("Client %s removed (%d live)", c.ID, s.clientCount())
	}
}

// closeAllConns force-closes every live connection and clears the registry.
func (s *Server) closeAllConns() {
	s.connsMu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[string]*Conn)
	s.connsMu.Unlock()

	for _, c := range conns {
		c.close()
	}
}

func (s *Server) clientCount() int {
	s.connsMu.RLock()
	defer s.connsMu.RUnlock()
	return len(s.conns)
}

// handleStatus serves the JSON status document for the browser page.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := struct {
		Server struct {
			Running bool   `json:"running"`
			Clients int    `json:"clients"`
			URL     string `json:"url"`
		} `json:"server"`
		Timestamp float64 `json:"timestamp"`
	}{}

	status.Server.Running = s.running.Load()
	status.Server.Clients = s.clientCount()
	status.Server.URL = fmt.Sprintf("ws://%s/ws", r.Host)
	status.Timestamp = float64(time.Now().UnixNano()) / float64(time.Second)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Printf("Error writing status: %v", err)
	}
}
