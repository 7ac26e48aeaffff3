// ABOUTME: mDNS discovery for broadcast servers on the local network
// ABOUTME: Servers advertise; listeners browse and receive discovered endpoints
package discovery

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

const (
	serverService   = "_papercup-server._tcp"
	listenerService = "_papercup._tcp"
)

// Config holds discovery configuration.
type Config struct {
	ServiceName string
	Port        int
	ServerMode  bool // advertise as a broadcast server rather than a listener
}

// Manager handles mDNS advertisement and browsing.
type Manager struct {
	config  Config
	ctx     context.Context
	cancel  context.CancelFunc
	servers chan *ServerInfo
}

// ServerInfo describes a discovered broadcast server.
type ServerInfo struct {
	Name string
	Host string
	Port int
}

// NewManager creates a discovery manager.
func NewManager(config Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		config:  config,
		ctx:     ctx,
		cancel:  cancel,
		servers: make(chan *ServerInfo, 10),
	}
}

// Advertise publishes this endpoint via mDNS until Stop.
func (m *Manager) Advertise() error {
	ips, err := getLocalIPs()
	if err != nil {
		return fmt.Errorf("failed to get local IPs: %w", err)
	}

	serviceType := listenerService
	if m.config.ServerMode {
		serviceType = serverService
	}

	service, err := mdns.NewMDNSService(
		m.config.ServiceName,
		serviceType,
		"",
		"",
		m.config.Port,
		ips,
		[]string{"path=/ws"},
	)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return fmt.Errorf("failed to create mdns server: %w", err)
	}

	log.Printf("Advertising mDNS service: %s on port %d (type: %s)", m.config.ServiceName, m.config.Port, serviceType)

	go func() {
		<-m.ctx.Done()
		server.Shutdown()
	}()

	return nil
}

// Browse searches for broadcast servers in the background. Discovered servers
// arrive on the Servers channel.
func (m *Manager) Browse() error {
	go m.browseLoop()
	return nil
}

func (m *Manager) browseLoop() {
	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		entries := make(chan *mdns.ServiceEntry, 10)
		go m.collectEntries(entries)

		params := &mdns.QueryParam{
			Service: serverService,
			Domain:  "local",
			Timeout: 3 * time.Second,
			Entries: entries,
		}

		mdns.Query(params)
		close(entries)
	}
}

// collectEntries filters query results onto the servers channel. Entries
// without an IPv4 address are skipped; collection stops with the manager.
func (m *Manager) collectEntries(entries <-chan *mdns.ServiceEntry) {
	for entry := range entries {
		if entry.AddrV4 == nil {
			continue
		}
		server := &ServerInfo{
			Name: entry.Name,
			Host: entry.AddrV4.String(),
			Port: entry.Port,
		}

		log.Printf("Discovered server: %s at %s:%d", server.Name, server.Host, server.Port)

		select {
		case m.servers <- server:
		case <-m.ctx.Done():
			return
		}
	}
}

// Servers returns the channel of discovered servers.
func (m *Manager) Servers() <-chan *ServerInfo {
	return m.servers
}

// Stop ends advertisement and browsing.
func (m *Manager) Stop() {
	m.cancel()
}

// getLocalIPs returns the non-loopback IPv4 addresses of up interfaces.
func getLocalIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
