// ABOUTME: Per-connection state for the broadcast registry
// ABOUTME: Tracks identity, activity, byte counters, and the outbound send queue
package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// sendQueueDepth bounds the per-connection outbound queue. A consumer that
// falls this far behind is treated as dead: the protocol has no backpressure
// signal, so the first failed send evicts.
const sendQueueDepth = 100

// Conn is one live consumer. It is owned by the server's registry; nothing
// else mutates it directly.
type Conn struct {
	ID          string
	ws          *websocket.Conn
	ConnectedAt time.Time

	lastActivity atomic.Int64 // unix nanos
	bytesSent    atomic.Uint64

	mu         sync.RWMutex
	deviceInfo string

	// sendChan carries []byte (binary frames) and JSON-marshalable control
	// messages to the writer goroutine. Enqueues are non-blocking.
	sendChan  chan interface{}
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ID:          uuid.New().String(),
		ws:          ws,
		ConnectedAt: time.Now(),
		deviceInfo:  "unidentified",
		sendChan:    make(chan interface{}, sendQueueDepth),
		done:        make(chan struct{}),
	}
	c.touch()
	return c
}

// enqueue queues a message without blocking. A full queue is a send failure.
func (c *Conn) enqueue(msg interface{}) error {
	select {
	case c.sendChan <- msg:
		return nil
	default:
		return fmt.Errorf("send queue full")
	}
}

// touch records inbound or outbound activity.
func (c *Conn) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the most recent send or receive time.
func (c *Conn) LastActivity() time.Time {
	return time.Unix(0, c.lastActivity.Load())
}

// BytesSent returns the cumulative bytes written to this connection.
func (c *Conn) BytesSent() uint64 {
	return c.bytesSent.Load()
}

// DeviceInfo returns the free-text device label.
func (c *Conn) DeviceInfo() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceInfo
}

func (c *Conn) setDeviceInfo(label string) {
	c.mu.Lock()
	c.deviceInfo = label
	c.mu.Unlock()
}

// close tears down the transport and wakes the writer. Idempotent.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}
