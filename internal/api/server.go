// Package api implements the HTTP façade over the workflow.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/regforge/regforge/config"
	"github.com/regforge/regforge/internal/gateway"
	klog "github.com/regforge/regforge/internal/log"
	"github.com/regforge/regforge/internal/reconcile"
	"github.com/regforge/regforge/internal/store"
	"github.com/regforge/regforge/internal/wallet"
	"github.com/regforge/regforge/internal/workflow"
)

// maxBodySize is the maximum allowed request body size (1 MB).
const maxBodySize = 1 << 20

// Server is the HTTP API server.
type Server struct {
	addr        string
	node        gateway.Node
	registry    *wallet.Registry
	orch        *workflow.Orchestrator
	engine      *reconcile.Engine
	records     *store.Records
	sink        *store.Sink
	server      *http.Server
	logger      zerolog.Logger
	ln          net.Listener
	allowedNets []*net.IPNet // Empty = allow all.
	corsOrigins []string     // Empty = no CORS headers.
}

// Deps are the collaborators the handlers dispatch to.
type Deps struct {
	Node     gateway.Node
	Registry *wallet.Registry
	Orch     *workflow.Orchestrator
	Engine   *reconcile.Engine
	Records  *store.Records
	Sink     *store.Sink
}

// New creates an API server. The httpCfg parameter controls IP filtering
// and CORS. A zero-value HTTPConfig allows all IPs and disables CORS.
func New(addr string, deps Deps, httpCfg ...config.HTTPConfig) *Server {
	s := &Server{
		addr:     addr,
		node:     deps.Node,
		registry: deps.Registry,
		orch:     deps.Orch,
		engine:   deps.Engine,
		records:  deps.Records,
		sink:     deps.Sink,
		logger:   klog.API,
	}

	if len(httpCfg) > 0 {
		s.allowedNets = parseAllowedIPs(httpCfg[0].AllowedIPs)
		s.corsOrigins = httpCfg[0].CORSOrigins
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /wallet", s.handleEnsureWallet)
	mux.HandleFunc("POST /address", s.handleNewAddress)
	mux.HandleFunc("POST /mine", s.handleMine)
	mux.HandleFunc("GET /wallet/{name}/balance", s.handleBalance)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("GET /mempool/{wallet}/{txid}", s.handleMempool)
	mux.HandleFunc("GET /tx/{wallet}/{txid}", s.handleTransaction)
	mux.HandleFunc("POST /reconcile", s.handleReconcile)
	mux.HandleFunc("POST /workflow/run", s.handleRun)
	mux.HandleFunc("GET /records", s.handleListRecords)
	mux.HandleFunc("GET /records/{txid}", s.handleGetRecord)

	s.server = &http.Server{
		Handler:     s.middleware(mux),
		ReadTimeout: 30 * time.Second,
		// Mining the funding blocks and running the full workflow are
		// intentionally long-running.
		WriteTimeout: 10 * time.Minute,
	}

	return s
}

// middleware applies IP filtering and CORS before the route table.
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(s.allowedNets) > 0 {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
			ip := net.ParseIP(host)
			if ip == nil || !s.isIPAllowed(ip) {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}
		}

		s.setCORSHeaders(w, r)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
		next.ServeHTTP(w, r)
	})
}

// parseAllowedIPs converts string IP/CIDR entries into net.IPNet.
func parseAllowedIPs(entries []string) []*net.IPNet {
	var nets []*net.IPNet
	for _, entry := range entries {
		_, ipNet, err := net.ParseCIDR(entry)
		if err == nil {
			nets = append(nets, ipNet)
			continue
		}
		// Try as a single IP (add /32 or /128).
		ip := net.ParseIP(entry)
		if ip == nil {
			continue
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
	}
	return nets
}

// Start begins listening and serving in a background goroutine.
// It returns immediately after the listener is bound.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.ln = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("API server error")
		}
	}()

	s.logger.Info().Str("addr", s.Addr()).Msg("API server listening")
	return nil
}

// Addr returns the listener address (useful when bound to :0).
func (s *Server) Addr() string {
	if s.ln != nil {
		return s.ln.Addr().String()
	}
	return s.addr
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// isIPAllowed checks if the IP is in the allowed networks list.
func (s *Server) isIPAllowed(ip net.IP) bool {
	for _, n := range s.allowedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// setCORSHeaders adds CORS headers based on the configured origins.
func (s *Server) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	if len(s.corsOrigins) == 0 {
		return
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}

	allowed := false
	for _, o := range s.corsOrigins {
		if o == "*" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			allowed = true
			break
		}
		if o == origin {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			allowed = true
			break
		}
	}

	if allowed {
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

// readJSON decodes the request body into v.
func readJSON(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// writeJSON writes v as a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error().Err(err).Msg("write response")
	}
}

// writeFault maps an error onto the HTTP status table and writes the
// error body. The gateway's message is preserved so node-side rejection
// reasons reach the client.
func (s *Server) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	code := gateway.CodeOf(err)
	status := statusForCode(code)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	} else {
		s.logger.Debug().Err(err).Str("path", r.URL.Path).Msg("request rejected")
	}
	s.writeJSON(w, status, errorResponse{Error: err.Error(), Code: code.String()})
}

// writeBadRequest reports a malformed request body or parameter.
func (s *Server) writeBadRequest(w http.ResponseWriter, err error) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{
		Error: err.Error(),
		Code:  "bad request",
	})
}
