// Package api is the operator surface: read-only ticket queries, recent
// logs, a live event stream, and the inbound webhook mount for the chat
// transport. Nothing here mutates tickets; the lifecycle belongs to the
// chat side.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tanya-io/tanya/internal/events"
	"github.com/tanya-io/tanya/internal/logbuf"
	"github.com/tanya-io/tanya/internal/tabular"
	"github.com/tanya-io/tanya/internal/ticket"
	"github.com/tanya-io/tanya/pkg/protocol"
)

// TicketReader is the slice of the lifecycle engine the API needs.
type TicketReader interface {
	List(ctx context.Context, status protocol.TicketStatus) ([]*protocol.Ticket, error)
	Find(ctx context.Context, code string) (*protocol.Ticket, error)
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // Bearer auth key; empty disables auth
}

// Server serves the operator API and hosts the transport webhook.
type Server struct {
	tickets TicketReader
	bus     *events.Bus
	cfg     Config
	logger  *slog.Logger
	logs    *logbuf.Ring
	srv     *http.Server

	upgrader websocket.Upgrader
}

// NewServer creates the API server. logs and bus may be nil; webhook may
// be nil when the transport runs in polling mode.
func NewServer(tickets TicketReader, bus *events.Bus, cfg Config, logger *slog.Logger,
	logs *logbuf.Ring, webhookPath string, webhook http.Handler) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		tickets: tickets,
		bus:     bus,
		cfg:     cfg,
		logger:  logger,
		logs:    logs,
		upgrader: websocket.Upgrader{
			// The Bearer key is the auth; origin means nothing for the
			// CLI clients that call this.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/tickets", s.requireAuth(s.handleListTickets))
	mux.HandleFunc("GET /api/tickets/{code}", s.requireAuth(s.handleGetTicket))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))
	mux.HandleFunc("GET /api/events", s.requireAuth(s.handleEvents))
	if webhook != nil && webhookPath != "" {
		mux.Handle("POST "+webhookPath, webhook)
	}

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start begins listening. Blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server: %w", err)
	}
	return nil
}

// Handler returns the underlying http.Handler for testing.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != s.cfg.Key {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

// --- Handlers ---

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	status := protocol.TicketStatus(r.URL.Query().Get("status"))
	tickets, err := s.tickets.List(r.Context(), status)
	if err != nil {
		if errors.Is(err, tabular.ErrUnavailable) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
			return
		}
		s.logger.Error("list tickets failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if n, err := strconv.Atoi(limitStr); err == nil && n > 0 && n < len(tickets) {
			tickets = tickets[:n]
		}
	}
	if tickets == nil {
		tickets = []*protocol.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	t, err := s.tickets.Find(r.Context(), code)
	if err != nil {
		switch {
		case errors.Is(err, ticket.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "ticket not found"})
		case errors.Is(err, tabular.ErrUnavailable):
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "store unavailable"})
		default:
			s.logger.Error("get ticket failed", "code", code, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		}
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Record{})
		return
	}

	limit := 200
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			limit = n
		}
	}

	minLevel := slog.LevelDebug
	if lvl := r.URL.Query().Get("level"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "info":
			minLevel = slog.LevelInfo
		case "warn":
			minLevel = slog.LevelWarn
		case "error":
			minLevel = slog.LevelError
		}
	}

	records := s.logs.Recent(minLevel, limit)
	if records == nil {
		records = []logbuf.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

// handleEvents upgrades to a websocket and streams lifecycle events until
// the client goes away.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "event stream disabled"})
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.bus.Subscribe()
	defer cancel()

	// Reader goroutine: we never expect client frames, but reading is how
	// gorilla surfaces the close handshake.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		}
	}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
