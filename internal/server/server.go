package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"gem_exchange/internal/domain"
	"gem_exchange/internal/execution"
	"gem_exchange/internal/infra"
	"gem_exchange/internal/infra/storage"
	"gem_exchange/internal/service"
)

const writeTimeout = 5 * time.Second

// FeedMessage is the envelope pushed to WebSocket subscribers.
type FeedMessage struct {
	Type string `json:"type"` // "snapshot" or "notification"
	Data any    `json:"data"`
}

// Server is the UI shell boundary: it pushes one MarketSnapshot per
// tick to every WebSocket subscriber and exposes a small JSON API for
// the session, the session store and the AI assistant.
type Server struct {
	session   *execution.Session
	assistant *service.Assistant
	store     *storage.Storage
	upgrader  websocket.Upgrader

	mu       sync.Mutex
	conns    map[*websocket.Conn]bool
	lastSnap *domain.MarketSnapshot
}

// New creates a server over the session, assistant and session store.
func New(session *execution.Session, assistant *service.Assistant, store *storage.Storage) *Server {
	return &Server{
		session:   session,
		assistant: assistant,
		store:     store,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The dashboard is served from anywhere in the demo setup.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]bool),
	}
}

// Routes builds the HTTP mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/feed", s.handleFeed)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/orders", s.handleOrders)
	mux.HandleFunc("/api/orders/cancel", s.handleCancelOrder)
	mux.HandleFunc("/api/wallet", s.handleWallet)
	mux.HandleFunc("/api/transactions", s.handleTransactions)
	mux.HandleFunc("/api/deposit", s.handleDeposit)
	mux.HandleFunc("/api/withdraw", s.handleWithdraw)
	mux.HandleFunc("/api/alerts", s.handleAlerts)
	mux.HandleFunc("/api/session", s.handleSession)
	mux.HandleFunc("/api/favorites", s.handleFavorites)
	mux.HandleFunc("/api/analysis", s.handleAnalysis)
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/metrics", s.handleMetrics)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Broadcast delivers a tick snapshot to all subscribers. Dead
// connections are dropped; a slow subscriber never blocks the tick
// beyond the write timeout.
func (s *Server) Broadcast(snap domain.MarketSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSnap = &snap
	s.fanOut(FeedMessage{Type: "snapshot", Data: snap})
}

// Notify forwards a session notification to all subscribers.
func (s *Server) Notify(n domain.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fanOut(FeedMessage{Type: "notification", Data: n})
}

// fanOut writes one message to every connection. Caller holds the lock.
func (s *Server) fanOut(msg FeedMessage) {
	for conn := range s.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			slog.Warn("Dropping feed subscriber", slog.Any("error", err))
			conn.Close()
			delete(s.conns, conn)
			infra.GlobalMetrics.DecrementSubscribers()
		}
	}
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("WebSocket upgrade failed", slog.Any("error", err))
		return
	}

	s.mu.Lock()
	s.conns[conn] = true
	// A fresh subscriber gets the last known snapshot right away
	// instead of waiting for the next tick.
	if s.lastSnap != nil {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.WriteJSON(FeedMessage{Type: "snapshot", Data: *s.lastSnap})
	}
	s.mu.Unlock()
	infra.GlobalMetrics.IncrementSubscribers()

	slog.Info("Feed subscriber connected", slog.String("remote", conn.RemoteAddr().String()))

	// Read loop: drain control frames and detect disconnects.
	go func() {
		defer func() {
			s.mu.Lock()
			if _, ok := s.conns[conn]; ok {
				delete(s.conns, conn)
				infra.GlobalMetrics.DecrementSubscribers()
			}
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	s.mu.Lock()
	snap := s.lastSnap
	s.mu.Unlock()

	if snap == nil {
		http.Error(w, "no snapshot yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.session.Orders())
	case http.MethodPost:
		var req execution.OrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		order, err := s.session.PlaceOrder(req)
		if err != nil {
			writeOrderError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, order)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.session.CancelOrder(req.ID); err != nil {
		writeOrderError(w, err)
		return
	}
	order, _ := s.session.Order(req.ID)
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Balances    []domain.Balance `json:"balances"`
		TotalEquity decimal.Decimal  `json:"total_equity"`
	}{
		Balances:    s.session.Balances(),
		TotalEquity: s.session.TotalEquity("USDT"),
	})
}

func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Transactions())
}

type transferRequest struct {
	Symbol string          `json:"symbol"`
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, s.session.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleTransfer(w, r, s.session.Withdraw)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request, apply func(string, decimal.Decimal) error) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := apply(req.Symbol, req.Amount); err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.session.Balances())
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Pair       string          `json:"pair"`
		Target     decimal.Decimal `json:"target"`
		Persistent bool            `json:"persistent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Pair == "" {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	alert, err := s.session.AddAlert(req.Pair, req.Target, req.Persistent)
	if err != nil {
		writeOrderError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, alert)
}

// handleSession reads and writes the persisted login flag. Login always
// succeeds: there is no authentication backend in the simulation.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, map[string]bool{"logged_in": s.store.IsLoggedIn()})
	case http.MethodPost:
		var req struct {
			LoggedIn bool `json:"logged_in"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if err := s.store.SetLoggedIn(req.LoggedIn); err != nil {
			http.Error(w, "failed to persist session", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"logged_in": req.LoggedIn})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleFavorites(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		favorites, err := s.store.Favorites()
		if err != nil {
			// Treat a broken favorites set as empty, per the
			// persistence contract.
			slog.Warn("Failed to load favorites", slog.Any("error", err))
			favorites = nil
		}
		writeJSON(w, http.StatusOK, favorites)
	case http.MethodPost:
		var req struct {
			Symbol string `json:"symbol"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Symbol == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		isFav, err := s.store.ToggleFavorite(req.Symbol)
		if err != nil {
			http.Error(w, "unknown symbol", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"is_favorite": isFav})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	// Always 200: collaborator failures arrive as displayable text.
	writeJSON(w, http.StatusOK, map[string]string{"analysis": s.assistant.Analyze(r.Context())})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.assistant.History())
	case http.MethodPost:
		var req struct {
			Question string `json:"question"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Question == "" {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"reply": s.assistant.Ask(r.Context(), req.Question)})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, infra.GlobalMetrics.Snapshot())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeOrderError maps session errors onto HTTP statuses.
func writeOrderError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case execution.IsInsufficientFunds(err):
		status = http.StatusUnprocessableEntity
	case isAny(err, domain.ErrInvalidOrderParameters, domain.ErrUnknownPair, domain.ErrNoPrice):
		status = http.StatusBadRequest
	case isAny(err, domain.ErrOrderNotFound):
		status = http.StatusNotFound
	case isAny(err, domain.ErrOrderNotOpen):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func isAny(err error, targets ...error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to encode response", slog.Any("error", err))
	}
}
