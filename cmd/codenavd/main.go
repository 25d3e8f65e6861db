package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codenav/internal/config"
	"codenav/internal/index/registry"
	"codenav/internal/navd"
)

func main() {
	configPath := flag.String("config", "", "config file (default: $"+config.EnvConfigPath+")")
	listen := flag.String("listen", "", "listen address (tcp); overrides daemon.listen")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	addr := cfg.Daemon.Listen
	if *listen != "" {
		addr = *listen
	}
	log := config.NewLogger(cfg.LogLevel, os.Stderr)

	reg, err := registry.Open(cfg.Registry.Backend, cfg.Registry.Path)
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer reg.Close()

	s := navd.NewServer(navd.Options{Listen: addr, Config: cfg, Registry: reg, Logger: log})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		_ = s.Close()
	}()

	if err := s.Run(); err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			_, _ = fmt.Fprintf(os.Stderr, "listen address in use: %s\nTry: -listen 127.0.0.1:7789\n", addr)
		} else {
			_, _ = fmt.Fprintln(os.Stderr, err)
		}
		_ = reg.Close()
		os.Exit(1)
	}
}
