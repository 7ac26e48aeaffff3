// ABOUTME: WebSocket consumer connection feeding the playback engine
// ABOUTME: Routes control messages and binary frames; never reconnects on its own
package client

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/0xav10086/PaperCupTelephone/internal/player"
	"github.com/0xav10086/PaperCupTelephone/internal/protocol"
	"github.com/gorilla/websocket"
)

// Client is one consumer connection to a broadcast server. Every inbound
// message is handed to the playback engine; a terminal read error tears the
// engine down and ends the client. Reconnection is the caller's decision.
type Client struct {
	url    string
	engine *player.Engine

	ws      *websocket.Conn
	writeMu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a client for ws://host:port/ws.
func New(serverURL string, engine *player.Engine) *Client {
	return &Client{
		url:    serverURL,
		engine: engine,
		done:   make(chan struct{}),
	}
}

// Connect dials the server and starts the receive loop.
func (c *Client) Connect() error {
	ws, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", c.url, err)
	}
	c.ws = ws

	log.Printf("Connected to %s", c.url)

	go c.readLoop()
	return nil
}

// readLoop routes inbound messages until the connection dies.
func (c *Client) readLoop() {
	defer c.engine.ConnectionClosed()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			default:
				log.Printf("Connection lost: %v", err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			c.handleControlMessage(data)
		case websocket.BinaryMessage:
			c.engine.HandleBinary(data)
		}
	}
}

func (c *Client) handleControlMessage(data []byte) {
	msgType, err := protocol.ParseType(data)
	if err != nil {
		log.Printf("Ignoring malformed message from server: %v", err)
		return
	}

	switch msgType {
	case protocol.TypeAudioConfig:
		var cfg protocol.AudioConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			log.Printf("Ignoring bad audio_config: %v", err)
			return
		}
		if err := c.engine.HandleConfig(cfg); err != nil {
			log.Printf("Rejected stream format: %v", err)
			return
		}
		log.Printf("Stream format: %dHz, %d channels, %s", cfg.SampleRate, cfg.Channels, cfg.Format)

	case protocol.TypePong:
		var pong protocol.Pong
		if err := json.Unmarshal(data, &pong); err != nil {
			return
		}
		now := float64(time.Now().UnixNano()) / float64(time.Second)
		log.Printf("Pong: server clock offset %.3fs", now-pong.Timestamp)

	default:
		log.Printf("Ignoring unknown message type %q", msgType)
	}
}

// SendDeviceInfo announces a human-readable label for the operator display.
func (c *Client) SendDeviceInfo(label string) error {
	return c.writeJSON(protocol.ClientInfo{
		Type:       protocol.TypeClientInfo,
		DeviceInfo: label,
	})
}

// Ping sends an advisory liveness probe.
func (c *Client) Ping() error {
	return c.writeJSON(protocol.Ping{Type: protocol.TypePing})
}

func (c *Client) writeJSON(msg interface{}) error {
	if c.ws == nil {
		return fmt.Errorf("not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.ws.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return c.ws.WriteJSON(msg)
}

// Close ends the connection. Idempotent.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.ws != nil {
			c.ws.Close()
		}
	})
}
