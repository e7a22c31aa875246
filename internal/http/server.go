package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rejestr/internal/services"
)

type Server struct {
	http.Server
	registers    *services.RegisterService
	transactions *services.TransactionService
}

func NewServer(addr string, registers *services.RegisterService, transactions *services.TransactionService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		registers:    registers,
		transactions: transactions,
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/members", s.withRequestLogging(s.handleCreateMember))
	mux.HandleFunc("GET /api/members", s.withRequestLogging(s.handleListMembers))
	mux.HandleFunc("GET /api/members/{id}/registers", s.withRequestLogging(s.handleMemberRegisters))

	mux.HandleFunc("POST /api/registers", s.withRequestLogging(s.handleCreateRegister))
	mux.HandleFunc("POST /api/registers/{id}/accept", s.withRequestLogging(s.handleAcceptInvite))
	mux.HandleFunc("POST /api/registers/{id}/reject", s.withRequestLogging(s.handleRejectInvite))
	mux.HandleFunc("GET /api/registers/{id}/debts", s.withRequestLogging(s.handleListDebts))
	mux.HandleFunc("GET /api/registers/{id}/transactions", s.withRequestLogging(s.handleListTransactions))
	mux.HandleFunc("POST /api/registers/{id}/transactions", s.withRequestLogging(s.handleProposeManual))
	mux.HandleFunc("POST /api/registers/{id}/transactions/easy", s.withRequestLogging(s.handleProposeEasy))

	mux.HandleFunc("GET /api/transactions/{id}/votes", s.withRequestLogging(s.handleVoteTable))
	mux.HandleFunc("POST /api/transactions/{id}/votes", s.withRequestLogging(s.handleCastVote))

	return s
}

func (s *Server) withRequestLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
