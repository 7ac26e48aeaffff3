// ABOUTME: Entry point for the native PaperCup listener
// ABOUTME: Finds a server via flag or mDNS, plays the stream, and prints stats
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/0xav10086/PaperCupTelephone/internal/client"
	"github.com/0xav10086/PaperCupTelephone/internal/discovery"
	"github.com/0xav10086/PaperCupTelephone/internal/player"
	"github.com/0xav10086/PaperCupTelephone/internal/version"
)

var (
	serverAddr = flag.String("server", "", "Server address as host:port (skip mDNS)")
	deviceName = flag.String("name", "", "Device label shown on the server (default: hostname)")
	logFile    = flag.String("log-file", "papercup-listen.log", "Log file path")
	pingEvery  = flag.Duration("ping-interval", 30*time.Second, "Liveness probe interval, 0 to disable")
	showStats  = flag.Bool("stats", true, "Print periodic playback stats")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()
	log.SetOutput(io.MultiWriter(os.Stdout, f))

	addr := *serverAddr
	if addr == "" {
		found, err := discoverServer()
		if err != nil {
			log.Fatalf("discovery failed: %v", err)
		}
		addr = found
	}

	url := addr
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + url
	}
	if !strings.HasSuffix(url, "/ws") {
		url = strings.TrimSuffix(url, "/") + "/ws"
	}

	label := *deviceName
	if label == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "listener"
		}
		label = hostname
	}
	label = fmt.Sprintf("%s (%s %s)", label, version.Product, version.Version)

	engine := player.NewEngine(player.NewOtoOutput())
	c := client.New(url, engine)
	if err := c.Connect(); err != nil {
		log.Fatalf("connection failed: %v", err)
	}
	defer c.Close()

	if err := c.SendDeviceInfo(label); err != nil {
		log.Printf("Failed to send device info: %v", err)
	}

	if *pingEvery > 0 {
		go func() {
			ticker := time.NewTicker(*pingEvery)
			defer ticker.Stop()
			for range ticker.C {
				if err := c.Ping(); err != nil {
					return
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal %v, shutting down", sig)
			return

		case <-statsTicker.C:
			state := engine.State()
			if state == player.StateStopped {
				log.Printf("Stream ended")
				return
			}
			if !*showStats {
				continue
			}
			received, dropped, underruns, buffered := engine.Stats()
			log.Printf("state=%s frames=%d buffered=%d dropped=%d underruns=%d%s",
				state, received, buffered, dropped, underruns, spectrumSummary(engine))
		}
	}
}

// spectrumSummary renders the loudest frequency band, or nothing before the
// stream format is known.
func spectrumSummary(engine *player.Engine) string {
	sp := engine.Spectrum()
	if sp == nil {
		return ""
	}

	mags := sp.Magnitudes()
	peak, peakBin := 0.0, 0
	for i, m := range mags {
		if m > peak {
			peak, peakBin = m, i
		}
	}
	if peak == 0 {
		return " peak=silent"
	}
	return fmt.Sprintf(" peak=%.0fHz", sp.BinFrequency(peakBin))
}

// discoverServer browses mDNS and returns the first broadcast server found.
func discoverServer() (string, error) {
	log.Printf("Browsing for broadcast servers...")

	mgr := discovery.NewManager(discovery.Config{ServiceName: "papercup-listener"})
	defer mgr.Stop()

	if err := mgr.Browse(); err != nil {
		return "", err
	}

	select {
	case srv := <-mgr.Servers():
		log.Printf("Using server %s at %s:%d", srv.Name, srv.Host, srv.Port)
		return fmt.Sprintf("%s:%d", srv.Host, srv.Port), nil
	case <-time.After(10 * time.Second):
		return "", fmt.Errorf("no broadcast server found within 10s")
	}
}
