// ABOUTME: Read-only counters exposed for the operator surface
// ABOUTME: Plain polled snapshot, not a property-observation framework
package server

import "time"

// ClientStatus is a read-only view of one live connection.
type ClientStatus struct {
	ID           string
	DeviceInfo   string
	ConnectedAt  time.Time
	LastActivity time.Time
	BytesSent    uint64
}

// Status is a point-in-time snapshot of the server for display. Observers
// poll it; the server never pushes.
type Status struct {
	Running   bool
	Name      string
	Port      int
	Uptime    time.Duration
	FramesOut uint64
	BytesOut  uint64
	Clients   []ClientStatus
}

// Status builds a snapshot of the current server state.
func (s *Server) Status() Status {
	s.connsMu.RLock()
	clients := make([]ClientStatus, 0, len(s.conns))
	for _, c := range s.conns {
		clients = append(clients, ClientStatus{
			ID:           c.ID,
			DeviceInfo:   c.DeviceInfo(),
			ConnectedAt:  c.ConnectedAt,
			LastActivity: c.LastActivity(),
			BytesSent:    c.BytesSent(),
		})
	}
	s.connsMu.RUnlock()

	return Status{
		Running:   s.running.Load(),
		Name:      s.config.Name,
		Port:      s.config.Port,
		Uptime:    time.Since(s.startTime),
		FramesOut: s.framesOut.Load(),
		BytesOut:  s.bytesOut.Load(),
		Clients:   clients,
	}
}
