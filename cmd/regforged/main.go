// Regforge daemon: drives a Bitcoin Core regtest node through the demo
// transaction workflow and serves the HTTP API.
//
// Usage:
//
//	regforged                 Run daemon
//	regforged --help          Show help
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/regforge/regforge/config"
	klog "github.com/regforge/regforge/internal/log"
	"github.com/regforge/regforge/internal/node"
)

func main() {
	cfg, _, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, cfg.Log.File); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	n, err := node.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := n.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		n.Stop()
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	n.Stop()
}
