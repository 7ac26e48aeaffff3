// ABOUTME: Tests for mDNS discovery
// ABOUTME: Manager lifecycle and browse result filtering
package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
)

func TestNewManager(t *testing.T) {
	config := Config{
		ServiceName: "Test Broadcaster",
		Port:        8765,
		ServerMode:  true,
	}

	mgr := NewManager(config)
	if mgr == nil {
		t.Fatal("expected manager to be created")
	}
	if mgr.Servers() == nil {
		t.Fatal("expected a servers channel")
	}
}

func TestStopIsSafeBeforeBrowse(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test", Port: 8765})
	mgr.Stop()
	mgr.Stop()
}

func TestCollectEntriesSkipsEntriesWithoutAddress(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test", Port: 8765})
	defer mgr.Stop()

	entries := make(chan *mdns.ServiceEntry, 2)
	entries <- &mdns.ServiceEntry{
		Name: "ghost._papercup-server._tcp.local.",
		Port: 8765,
	}
	entries <- &mdns.ServiceEntry{
		Name:   "living-room._papercup-server._tcp.local.",
		AddrV4: net.ParseIP("192.168.1.20"),
		Port:   9000,
	}
	close(entries)

	mgr.collectEntries(entries)

	select {
	case srv := <-mgr.Servers():
		if srv.Host != "192.168.1.20" || srv.Port != 9000 {
			t.Errorf("unexpected server %+v", srv)
		}
		if srv.Name != "living-room._papercup-server._tcp.local." {
			t.Errorf("unexpected name %q", srv.Name)
		}
	default:
		t.Fatal("expected a discovered server")
	}

	select {
	case extra := <-mgr.Servers():
		t.Fatalf("address-less entry was not skipped: %+v", extra)
	default:
	}
}

func TestCollectEntriesStopsWithManager(t *testing.T) {
	mgr := NewManager(Config{ServiceName: "Test", Port: 8765})
	mgr.Stop()

	// More entries than the servers buffer can hold: collection must return
	// via the cancelled context instead of blocking on the full channel.
	entries := make(chan *mdns.ServiceEntry, 16)
	for i := 0; i < 16; i++ {
		entries <- &mdns.ServiceEntry{
			Name:   "noisy._papercup-server._tcp.local.",
			AddrV4: net.ParseIP("192.168.1.30"),
			Port:   9000,
		}
	}
	close(entries)

	done := make(chan struct{})
	go func() {
		mgr.collectEntries(entries)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collectEntries blocked after the manager stopped")
	}
}
