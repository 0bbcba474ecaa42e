// Package chi implements the HTTP surface: the WhatsApp webhook, the direct
// ask endpoint, health, metrics, and the admin index operations.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	chiv5 "github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Guilherme9797/meu-app/internal/domain"
	"github.com/Guilherme9797/meu-app/internal/logger"
	"github.com/Guilherme9797/meu-app/internal/transport/zapi"
)

const maxBodyBytes = 1 << 20 // 1 MiB

// Server holds the HTTP handlers.
type Server struct {
	intake   IntakeService
	indexer  Indexer
	health   HealthService
	whatsapp WhatsAppGateway
	logger   *zap.Logger
}

// NewServer creates an HTTP API server. whatsapp may be nil when the gateway
// is not configured; the webhook and admin webhook routes then return 503.
func NewServer(
	intakeSvc IntakeService,
	indexer Indexer,
	healthSvc HealthService,
	whatsapp WhatsAppGateway,
	log *zap.Logger,
) *Server {
	return &Server{
		intake:   intakeSvc,
		indexer:  indexer,
		health:   healthSvc,
		whatsapp: whatsapp,
		logger:   log,
	}
}

// Register mounts all routes on r. Admin routes are guarded by adminKeys.
func (s *Server) Register(r chiv5.Router, adminKeys []string) {
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Post("/webhook/zapi", s.handleWebhook)
	r.Post("/v1/ask", s.handleAsk)

	r.Route("/admin", func(admin chiv5.Router) {
		admin.Use(AdminAuthMiddleware(adminKeys))
		admin.Post("/index/rebuild", s.handleRebuild)
		admin.Post("/index/update", s.handleUpdate)
		admin.Get("/index/status", s.handleIndexStatus)
		admin.Post("/webhooks", s.handleRegisterWebhooks)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.health.Check(r.Context()))
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if s.whatsapp == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway_unavailable", "whatsapp gateway not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "failed to read body")
		return
	}
	if !s.whatsapp.VerifySignature(body, r.Header) {
		writeError(w, http.StatusUnauthorized, "invalid_signature", "webhook signature mismatch")
		return
	}

	msg, err := zapi.ParseIncoming(body)
	if err != nil {
		// unknown payload shapes are acknowledged so the gateway stops retrying
		logger.FromContext(r.Context()).Info("Ignoring webhook payload", zap.Error(err))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": true})
		return
	}
	if msg.FromMe {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ignored": "from_me"})
		return
	}

	reply, err := s.intake.HandleIncoming(r.Context(), msg.Phone, msg.SenderName, msg.Text, msg.MsgID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if reply.Duplicate {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "duplicate": true})
		return
	}

	if err := s.whatsapp.SendText(r.Context(), msg.Phone, reply.Text); err != nil {
		// reply is persisted; delivery failure should not make the gateway retry
		logger.FromContext(r.Context()).Error("Failed to deliver reply", zap.Error(err))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session_id": reply.SessionID})
}

type askRequest struct {
	Phone    string `json:"phone"`
	Name     string `json:"name"`
	Question string `json:"question"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "question is required")
		return
	}
	if req.Phone == "" {
		req.Phone = "api-client"
	}

	reply, err := s.intake.HandleIncoming(r.Context(), req.Phone, req.Name, req.Question, "")
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleRebuild(w http.ResponseWriter, r *http.Request) {
	result, err := s.indexer.Rebuild(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	result, err := s.indexer.Update(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIndexStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.indexer.Status())
}

type webhooksRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleRegisterWebhooks(w http.ResponseWriter, r *http.Request) {
	if s.whatsapp == nil {
		writeError(w, http.StatusServiceUnavailable, "gateway_unavailable", "whatsapp gateway not configured")
		return
	}

	var req webhooksRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body: "+err.Error())
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "url is required")
		return
	}

	if err := s.whatsapp.UpdateWebhookReceived(r.Context(), req.URL); err != nil {
		writeError(w, http.StatusBadGateway, "gateway_error", err.Error())
		return
	}
	if err := s.whatsapp.UpdateEveryWebhooks(r.Context(), req.URL); err != nil {
		writeError(w, http.StatusBadGateway, "gateway_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "url": req.URL})
}

// writeDomainError maps sentinel errors to HTTP responses without leaking
// internals.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context()).Error("Request failed", zap.Error(err))

	switch {
	case errors.Is(err, domain.ErrIndexUnavailable):
		writeError(w, http.StatusServiceUnavailable, "index_unavailable", "knowledge base index is not built yet")
	case errors.Is(err, domain.ErrRebuildInProgress):
		writeError(w, http.StatusConflict, "rebuild_in_progress", "an index update is already running")
	case errors.Is(err, domain.ErrEmbeddingProvider):
		writeError(w, http.StatusBadGateway, "embedding_provider_error", "embedding provider failed")
	case errors.Is(err, domain.ErrChatProvider):
		writeError(w, http.StatusBadGateway, "chat_provider_error", "chat provider failed")
	case errors.Is(err, domain.ErrWebSearchProvider):
		writeError(w, http.StatusBadGateway, "web_search_error", "web search provider failed")
	case errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "session_not_found", "session not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}
