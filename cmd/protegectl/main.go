package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/ict-protege/acsclient/acs"
	"github.com/ict-protege/acsclient/config"
)

// Version info - increment based on change magnitude:
// Major (x.0.0): Breaking changes, major rewrites
// Minor (0.y.0): New features, significant enhancements
// Patch (0.0.z): Bug fixes, minor improvements
var Version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	doorIndex := flag.Uint("watch-door", 0, "Door index to monitor and print status for")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	level, err := log.ParseLevel(cfg.Logs.Level)
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)

	log.Infof("Starting protegectl v%s", Version)
	log.Infof("  Panel: %s:%d", cfg.Panel.Host, cfg.Panel.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutting down...")
		cancel()
	}()

	session := acs.New(acs.Config{
		Host:         cfg.Panel.Host,
		Port:         cfg.Panel.Port,
		PIN:          cfg.Panel.PIN,
		ChecksumMode: checksumMode(cfg.Panel.Checksum),
	})

	session.OnDoor(func(d acs.Door) {
		log.Infof("door %d: locked=%v open=%v jammed=%v", d.Index, d.IsLocked, d.IsOpen, d.IsJammed)
	})
	session.OnEvent(func(text string) {
		log.Infof("event: %s", text)
	})

	ready := func(s *acs.Session) {
		if err := s.StartEvents(ctx); err != nil {
			log.WithError(err).Warn("failed to enable event notifications")
		}
		if *doorIndex != 0 {
			if err := s.Monitor(ctx, acs.MonitorDoor, uint32(*doorIndex), true, true); err != nil {
				log.WithError(err).Warnf("failed to monitor door %d", *doorIndex)
			}
		}
	}

	if err := session.Supervise(ctx, cfg.Panel.PIN, ready); err != nil && ctx.Err() == nil {
		log.Fatalf("session error: %v", err)
	}
}

func checksumMode(name string) acs.ChecksumMode {
	switch name {
	case "crc16":
		return acs.ChecksumCRC16
	case "sum8", "":
		return acs.ChecksumSum8
	default:
		fmt.Fprintf(os.Stderr, "unknown checksum mode %q, using sum8\n", name)
		return acs.ChecksumSum8
	}
}
