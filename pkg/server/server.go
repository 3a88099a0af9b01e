// Package server exposes the observability API: escrow, swap and order
// lookups over HTTP plus a websocket event feed.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/interchainx/fusion-escrow/pkg/config"
	"github.com/interchainx/fusion-escrow/pkg/orderbook"
	"github.com/interchainx/fusion-escrow/pkg/resolver"
	"github.com/interchainx/fusion-escrow/pkg/types"
)

// Server serves the HTTP/WS observability API.
type Server struct {
	cfg      config.ServerConfig
	resolver *resolver.Resolver
	service  *resolver.Service
	book     *orderbook.Book
	hub      *Hub
	logger   *zap.Logger

	httpServer *http.Server
}

// NewServer wires the API around a resolver service and an order book. The
// hub streams events from every supplied bus.
func NewServer(cfg config.ServerConfig, r *resolver.Resolver, svc *resolver.Service, book *orderbook.Book, logger *zap.Logger, buses ...*types.Bus) *Server {
	s := &Server{
		cfg:      cfg,
		resolver: r,
		service:  svc,
		book:     book,
		hub:      NewHub(logger.Named("hub"), buses...),
		logger:   logger,
	}

	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	router.HandleFunc("/escrows/{leg}/{id}", s.handleEscrow).Methods(http.MethodGet)
	router.HandleFunc("/swaps", s.handleSwaps).Methods(http.MethodGet)
	router.HandleFunc("/swaps/{id}", s.handleSwap).Methods(http.MethodGet)
	router.HandleFunc("/orders/{hash}", s.handleOrder).Methods(http.MethodGet)
	router.HandleFunc("/events", s.hub.Handler)

	s.httpServer = &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Router returns the HTTP handler, for tests.
func (s *Server) Router() http.Handler { return s.httpServer.Handler }

// EventHub returns the websocket fan-out hub.
func (s *Server) EventHub() *Hub { return s.hub }

// Start launches the event hub and the HTTP listener.
func (s *Server) Start(ctx context.Context) error {
	s.hub.Run(ctx)

	go func() {
		s.logger.Info("api server listening", zap.String("addr", s.cfg.ListenAddr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server failed", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown drains the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Stats())
}

func (s *Server) handleEscrow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	var leg types.Leg
	switch vars["leg"] {
	case "source":
		leg = types.LegSource
	case "destination":
		leg = types.LegDestination
	default:
		s.writeError(w, http.StatusBadRequest, "leg must be source or destination")
		return
	}
	if !common.IsHexAddress(vars["id"]) {
		s.writeError(w, http.StatusBadRequest, "invalid escrow id")
		return
	}

	var chain *resolver.Chain
	if leg == types.LegSource {
		chain = s.resolver.Source()
	} else {
		chain = s.resolver.Destination()
	}

	esc, ok := chain.Factory.Get(common.HexToAddress(vars["id"]))
	if !ok {
		s.writeError(w, http.StatusNotFound, "escrow not found")
		return
	}
	s.writeJSON(w, http.StatusOK, esc)
}

func (s *Server) handleSwaps(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.service.Swaps())
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if !common.IsHexAddress(vars["id"]) {
		s.writeError(w, http.StatusBadRequest, "invalid escrow id")
		return
	}
	sw, ok := s.service.GetSwap(common.HexToAddress(vars["id"]))
	if !ok {
		s.writeError(w, http.StatusNotFound, "swap not found")
		return
	}
	s.writeJSON(w, http.StatusOK, sw)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	hash := common.HexToHash(vars["hash"])
	if hash == (common.Hash{}) {
		s.writeError(w, http.StatusBadRequest, "invalid order hash")
		return
	}
	ord, ok := s.book.Get(hash)
	if !ok {
		s.writeError(w, http.StatusNotFound, "order not found")
		return
	}
	s.writeJSON(w, http.StatusOK, ord)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encoding failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
