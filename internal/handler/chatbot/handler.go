// Package chatbot exposes the chat widget API: read, clear and extend the
// session conversation behind the in-process admission checks.
package chatbot

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pensador-ai/website/backend/internal/model/chat"
	"github.com/pensador-ai/website/backend/internal/service/ai"
	"github.com/pensador-ai/website/backend/internal/service/guard"
	"github.com/pensador-ai/website/backend/internal/service/history"
	"github.com/pensador-ai/website/backend/internal/service/session"
	"github.com/pensador-ai/website/backend/pkg/utils"
)

// Client-facing strings. Upstream error details never reach the widget.
const (
	msgOriginBlocked   = "Origin is not allowed for this endpoint."
	msgTooManyRequests = "Too many requests. Please wait a moment and try again."
	msgNotConfigured   = "Chatbot is not configured yet. Set OPENAI_API_KEY on the server."
	msgBodyTooLarge    = "Request body is too large."
	msgInvalidJSON     = "Invalid JSON body."
	msgMessageRequired = "Message is required."
	msgRequestFailed   = "Chatbot request failed. Please try again."

	fallbackReply = "I could not complete that request right now. Please try again, or contact support at support@pensador.ai."
)

// ReplyGenerator is the model boundary the POST path calls through.
type ReplyGenerator interface {
	Reply(ctx context.Context, msgs []chat.Message, userMessage string) (string, error)
}

// Options carries the handler's request-level bounds.
type Options struct {
	CookieName      string
	CookieMaxAge    time.Duration
	MaxRequestBytes int
}

// Handler orchestrates one chatbot request: session resolution, guard
// checks, body handling, the model call and history persistence.
type Handler struct {
	sanitizer *history.Sanitizer
	sessions  *session.Store
	origin    *guard.OriginPolicy
	limiter   *guard.RateLimiter
	traffic   *guard.TrafficMonitor
	replies   ReplyGenerator
	opts      Options
}

// New wires the handler. replies may be nil when the model credential is not
// configured; POST then fails with 500 while GET and DELETE keep working.
func New(
	sanitizer *history.Sanitizer,
	sessions *session.Store,
	origin *guard.OriginPolicy,
	limiter *guard.RateLimiter,
	traffic *guard.TrafficMonitor,
	replies ReplyGenerator,
	opts Options,
) *Handler {
	return &Handler{
		sanitizer: sanitizer,
		sessions:  sessions,
		origin:    origin,
		limiter:   limiter,
		traffic:   traffic,
		replies:   replies,
		opts:      opts,
	}
}

// RegisterRoutes mounts the widget endpoint.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/chatbot", h.handleHistory)
	r.Delete("/chatbot", h.handleClear)
	r.Post("/chatbot", h.handleMessage)
}

type apiRequest struct {
	Message string `json:"message"`
}

type historyResponse struct {
	History []chat.Message `json:"history"`
}

type successResponse struct {
	Reply   chat.Message   `json:"reply"`
	History []chat.Message `json:"history"`
}

type errorResponse struct {
	Error   string         `json:"error"`
	Reply   *chat.Message  `json:"reply,omitempty"`
	History []chat.Message `json:"history,omitempty"`
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	ip := guard.ClientIP(r)
	sessionID, isNew := h.resolveSession(r)
	h.traffic.Record(ip, sessionID)

	if !h.enforceOrigin(w, r, ip, sessionID) {
		return
	}

	msgs := h.sanitizer.Sanitize(h.sessions.History(sessionID))
	log.Printf("[chatbot] history_read ip=%s session=%s count=%d new=%t", ip, sessionID, len(msgs), isNew)

	h.setSessionCookie(w, r, sessionID)
	utils.RespondJSON(w, http.StatusOK, historyResponse{History: msgs})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	ip := guard.ClientIP(r)
	sessionID, _ := h.resolveSession(r)
	h.traffic.Record(ip, sessionID)

	if !h.enforceOrigin(w, r, ip, sessionID) {
		return
	}

	h.sessions.Clear(sessionID)
	log.Printf("[chatbot] history_cleared ip=%s session=%s", ip, sessionID)

	h.setSessionCookie(w, r, sessionID)
	utils.RespondJSON(w, http.StatusOK, historyResponse{History: []chat.Message{}})
}

func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	ip := guard.ClientIP(r)
	sessionID, _ := h.resolveSession(r)
	h.traffic.Record(ip, sessionID)

	if !h.enforceOrigin(w, r, ip, sessionID) {
		return
	}

	limit := h.limiter.Check(ip, sessionID)
	limit.ApplyHeaders(w.Header())
	if !limit.Allowed {
		log.Printf("[chatbot] rate limit exceeded ip=%s session=%s scope=%s retryAfter=%d",
			ip, sessionID, limit.Scope, limit.RetryAfterSeconds)
		h.respondError(w, r, sessionID, http.StatusTooManyRequests, msgTooManyRequests)
		return
	}

	if h.replies == nil {
		log.Printf("[chatbot] OPENAI_API_KEY is missing in the running process environment")
		h.respondError(w, r, sessionID, http.StatusInternalServerError, msgNotConfigured)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.opts.MaxRequestBytes))
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.respondError(w, r, sessionID, http.StatusRequestEntityTooLarge, msgBodyTooLarge)
			return
		}
		h.respondError(w, r, sessionID, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	var body apiRequest
	if err := json.Unmarshal(raw, &body); err != nil {
		h.respondError(w, r, sessionID, http.StatusBadRequest, msgInvalidJSON)
		return
	}

	content := h.sanitizer.CleanContent(body.Message)
	if content == "" {
		h.respondError(w, r, sessionID, http.StatusBadRequest, msgMessageRequired)
		return
	}

	msgs := h.sanitizer.Sanitize(h.sessions.History(sessionID))
	userMessage := h.sanitizer.NewMessage(chat.RoleUser, content)

	log.Printf("[chatbot] request_started ip=%s session=%s messageLength=%d historyCount=%d",
		ip, sessionID, len(content), len(msgs))

	replyText, err := h.replies.Reply(r.Context(), msgs, content)
	if err != nil {
		h.respondFailure(w, r, ip, sessionID, msgs, userMessage, err)
		return
	}

	assistant := h.sanitizer.NewMessage(chat.RoleAssistant, replyText)
	next := h.persist(sessionID, msgs, userMessage, assistant)

	log.Printf("[chatbot] request_succeeded ip=%s session=%s historyCount=%d", ip, sessionID, len(next))

	h.setSessionCookie(w, r, sessionID)
	utils.RespondJSON(w, http.StatusOK, successResponse{Reply: assistant, History: next})
}

// respondFailure converts a model-boundary failure into a degraded success:
// the user's turn and a fixed fallback assistant turn are persisted so the
// conversation never drops the user's message.
func (h *Handler) respondFailure(w http.ResponseWriter, r *http.Request, ip, sessionID string, msgs []chat.Message, userMessage chat.Message, cause error) {
	safeStatus := http.StatusInternalServerError
	message := msgRequestFailed
	if ai.StatusForError(cause) == http.StatusTooManyRequests {
		safeStatus = http.StatusTooManyRequests
		message = msgTooManyRequests
	}

	fallback := h.sanitizer.NewMessage(chat.RoleAssistant, fallbackReply)
	next := h.persist(sessionID, msgs, userMessage, fallback)

	log.Printf("[chatbot] request failed ip=%s session=%s status=%d err=%v", ip, sessionID, safeStatus, cause)

	h.setSessionCookie(w, r, sessionID)
	utils.RespondJSON(w, safeStatus, errorResponse{Error: message, Reply: &fallback, History: next})
}

// persist appends the new turns, re-applies the history caps and stores the
// result.
func (h *Handler) persist(sessionID string, msgs []chat.Message, turns ...chat.Message) []chat.Message {
	combined := append(slices.Clone(msgs), turns...)
	return h.sessions.SaveHistory(sessionID, h.sanitizer.BuildPayload(combined).Messages)
}

func (h *Handler) enforceOrigin(w http.ResponseWriter, r *http.Request, ip, sessionID string) bool {
	check := h.origin.Check(r)
	if check.Allowed {
		return true
	}

	log.Printf("[chatbot] blocked by origin policy ip=%s session=%s origin=%q reason=%s allowed=%v",
		ip, sessionID, check.Origin, check.Reason, check.AllowedOrigins)

	h.respondError(w, r, sessionID, http.StatusForbidden, msgOriginBlocked)
	return false
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, sessionID string, status int, message string) {
	h.setSessionCookie(w, r, sessionID)
	utils.RespondJSON(w, status, errorResponse{Error: message})
}

// resolveSession trusts the cookie value only when it matches the session id
// pattern; anything else gets a fresh identity.
func (h *Handler) resolveSession(r *http.Request) (sessionID string, isNew bool) {
	cookie, err := r.Cookie(h.opts.CookieName)
	if err == nil {
		value := cookie.Value
		if unescaped, uerr := url.QueryUnescape(value); uerr == nil {
			value = unescaped
		}
		if session.ValidID(value) {
			return value, false
		}
	}
	return session.NewID(), true
}

// setSessionCookie re-issues the session cookie; every terminal response
// carries it.
func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.opts.CookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(h.opts.CookieMaxAge / time.Second),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   secureRequest(r),
	})
}

// secureRequest mirrors the external scheme so the Secure flag survives TLS
// termination at the proxy.
func secureRequest(r *http.Request) bool {
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		first, _, _ := strings.Cut(proto, ",")
		return strings.EqualFold(strings.TrimSpace(first), "https")
	}
	return r.TLS != nil
}
