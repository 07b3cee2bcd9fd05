// Package node assembles and runs the regforge daemon: the gateway to
// the Bitcoin node, the record database, the workflow orchestrator and
// the HTTP API server.
package node

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/rs/zerolog"

	"github.com/regforge/regforge/config"
	"github.com/regforge/regforge/internal/api"
	"github.com/regforge/regforge/internal/gateway"
	klog "github.com/regforge/regforge/internal/log"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/store"
	"github.com/regforge/regforge/internal/storage"
	"github.com/regforge/regforge/internal/wallet"
	"github.com/regforge/regforge/internal/workflow"
)

// Node is the assembled daemon.
type Node struct {
	cfg     *config.Config
	gateway *gateway.Gateway
	db      storage.DB
	orch    *workflow.Orchestrator
	api     *api.Server
	logger  zerolog.Logger
}

// New wires the daemon from configuration. The record database is opened
// here; the Bitcoin node is only contacted once operations run.
func New(cfg *config.Config) (*Node, error) {
	params := &chaincfg.RegressionNetParams

	gw := gateway.New(gateway.Config{
		Host: cfg.Node.URL,
		User: cfg.Node.User,
		Pass: cfg.Node.Password,
	}, params)

	db, err := storage.NewBadger(cfg.RecordsDir())
	if err != nil {
		return nil, fmt.Errorf("open record database: %w", err)
	}

	registry := wallet.NewRegistry(gw)
	engine := reconcile.NewEngine(gw, params)
	records := store.NewRecords(db)
	sink := store.NewSink(cfg.Workflow.SinkFile)

	orch := workflow.New(cfg.Workflow, workflow.Deps{
		Node:     gw,
		Registry: registry,
		Engine:   engine,
		Records:  records,
		Sink:     sink,
		Params:   params,
	})

	n := &Node{
		cfg:     cfg,
		gateway: gw,
		db:      db,
		orch:    orch,
		logger:  klog.WithComponent("node"),
	}

	if cfg.HTTP.Enabled {
		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Addr, cfg.HTTP.Port)
		n.api = api.New(addr, api.Deps{
			Node:     gw,
			Registry: registry,
			Orch:     orch,
			Engine:   engine,
			Records:  records,
			Sink:     sink,
		}, cfg.HTTP)
	}

	return n, nil
}

// Start brings up the API server and probes the Bitcoin node. A node
// that is down is reported but not fatal; operations will surface
// NodeUnavailable until it comes back.
func (n *Node) Start() error {
	if height, err := n.gateway.BlockCount(); err != nil {
		n.logger.Warn().Err(err).Msg("Bitcoin node not reachable yet")
	} else {
		n.logger.Info().Int64("height", height).Msg("Bitcoin node reachable")
	}

	if n.api != nil {
		if err := n.api.Start(); err != nil {
			return err
		}
	}

	n.logger.Info().
		Str("node", n.cfg.Node.URL).
		Str("records", n.cfg.RecordsDir()).
		Msg("regforged started")
	return nil
}

// APIAddr returns the bound API address, or empty when disabled.
func (n *Node) APIAddr() string {
	if n.api == nil {
		return ""
	}
	return n.api.Addr()
}

// Orchestrator exposes the workflow driver for in-process callers.
func (n *Node) Orchestrator() *workflow.Orchestrator {
	return n.orch
}

// Stop shuts the daemon down in reverse start order.
func (n *Node) Stop() {
	if n.api != nil {
		if err := n.api.Stop(); err != nil {
			n.logger.Error().Err(err).Msg("stop API server")
		}
	}
	n.gateway.Close()
	if err := n.db.Close(); err != nil {
		n.logger.Error().Err(err).Msg("close record database")
	}
	n.logger.Info().Msg("regforged stopped")
}
