// ABOUTME: Entry point for the PaperCup broadcast server
// ABOUTME: Parses CLI flags, wires capture into the server, and handles signals
package main

import (
	"flag"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/0xav10086/PaperCupTelephone/internal/audio"
	"github.com/0xav10086/PaperCupTelephone/internal/capture"
	"github.com/0xav10086/PaperCupTelephone/internal/server"
	"github.com/0xav10086/PaperCupTelephone/internal/version"
)

var (
	port     = flag.Int("port", 8765, "Port to listen on")
	name     = flag.String("name", "", "Server friendly name (default: hostname-papercup)")
	logFile  = flag.String("log-file", "papercup-server.log", "Log file path")
	useTUI   = flag.Bool("tui", false, "Show the operator TUI instead of streaming logs")
	noMDNS   = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	tone     = flag.Bool("tone", false, "Broadcast a 440Hz test tone instead of the microphone")
	debug    = flag.Bool("debug", false, "Verbose logging")
	rate     = flag.Int("rate", 48000, "Capture sample rate in Hz")
	channels = flag.Int("channels", 2, "Capture channel count")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if *useTUI {
		// TUI mode: the terminal belongs to the display, log only to file.
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("%s server %s starting", version.Product, version.Version)

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "papercup"
		}
		serverName = hostname + "-papercup"
	}

	format := audio.Format{SampleRate: *rate, Channels: *channels}

	var tap capture.Tap
	if *tone {
		tap = capture.NewToneTap(0)
		log.Printf("Using 440Hz test tone source")
	} else {
		tap = capture.NewMalgoTap()
	}

	engine := capture.NewEngine(format, tap)

	srv := server.New(server.Config{
		Port:       *port,
		Name:       serverName,
		EnableMDNS: !*noMDNS,
		UseTUI:     *useTUI,
		Debug:      *debug,
	}, engine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v, shutting down", sig)
		srv.Stop()
	}()

	if err := srv.Start(); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
