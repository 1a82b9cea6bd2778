// Package monitor serves a live view of a flashing session: a WebSocket
// event stream, Prometheus metrics and an embedded status page.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/shaunagostinho/qnflash/internal/bootloader"
)

// Server exposes the hub and metrics over HTTP.
type Server struct {
	addr    string
	log     *zap.Logger
	webFS   fs.FS
	hub     *Hub
	metrics *Metrics
	reg     *prometheus.Registry
}

// New creates a Server listening on addr once Run is called.
func New(addr string, webFS fs.FS, log *zap.Logger) *Server {
	reg := NewRegistry()
	log = log.Named("monitor")
	return &Server{
		addr:    addr,
		log:     log,
		webFS:   webFS,
		hub:     NewHub(log),
		metrics: NewMetrics(reg),
		reg:     reg,
	}
}

// Observer returns the observer feeding the event stream and metrics.
func (s *Server) Observer() bootloader.Observer {
	return bootloader.MultiObserver{s.hub, s.metrics}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	mux.HandleFunc("/ws", s.hub.handleWS)
	mux.Handle("/metrics", Handler(s.reg))
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := json.Marshal(s.hub.Snapshot())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// Start binds addr and serves in the background until ctx is cancelled.
// It returns the bound address.
func (s *Server) Start(ctx context.Context) (string, error) {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return "", err
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.hub.Close()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("serve failed", zap.Error(err))
		}
	}()

	addr := ln.Addr().String()
	s.log.Info("listening", zap.String("addr", addr))
	return addr, nil
}
