package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/valinor-ai/promptguard/internal/auth"
)

// DefaultMaxPromptBytes bounds the request body of the text endpoint.
const DefaultMaxPromptBytes = 10 << 20

// wsIdleTimeout is the maximum time the server waits for a client message
// before closing an idle connection. Resets on each received message.
const wsIdleTimeout = 10 * time.Minute

// TokenValidator validates a raw JWT string and returns the identity.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Identity, error)
}

// HandlerConfig configures the HTTP and WebSocket surfaces.
type HandlerConfig struct {
	MaxPromptBytes   int64
	WSAllowedOrigins []string
	// Tokens, when set, requires an access_token query parameter on
	// WebSocket upgrades.
	Tokens TokenValidator
}

// Handler exposes Validate over HTTP.
type Handler struct {
	validator *Validator
	recorder  Recorder
	cfg       HandlerConfig
}

// NewHandler creates a Handler. A nil recorder disables audit recording.
func NewHandler(v *Validator, recorder Recorder, cfg HandlerConfig) *Handler {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	if cfg.MaxPromptBytes <= 0 {
		cfg.MaxPromptBytes = DefaultMaxPromptBytes
	}
	return &Handler{validator: v, recorder: recorder, cfg: cfg}
}

type validateRequest struct {
	Prompt *string `json:"prompt"`
}

// HandleValidate handles POST /api/v1/validate.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxPromptBytes)

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "prompt too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Prompt == nil {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if strings.TrimSpace(*req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is empty")
		return
	}

	result := h.validator.Validate(*req.Prompt)
	h.recorder.Record(r.Context(), Observation{Source: "text", Result: result})

	writeJSON(w, http.StatusOK, NewResponse(result))
}

// wsClientMessage is the JSON shape clients send over the WebSocket.
type wsClientMessage struct {
	Type   string `json:"type"`
	ID     string `json:"id,omitempty"`
	Prompt string `json:"prompt"`
}

// wsServerMessage is the JSON shape the server sends to clients.
type wsServerMessage struct {
	Type      string    `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
	Result    *Response `json:"result,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// HandleWebSocket handles GET /api/v1/validate/ws. Each {"type":"validate"}
// message is answered with a {"type":"result"} message carrying the same
// body as the text endpoint. Auth is performed via access_token query
// parameter since browsers cannot set headers on WebSocket upgrade.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.cfg.Tokens != nil {
		rawToken := r.URL.Query().Get("access_token")
		if rawToken == "" {
			writeError(w, http.StatusUnauthorized, "missing access_token")
			return
		}
		identity, err := h.cfg.Tokens.ValidateToken(rawToken)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				writeError(w, http.StatusUnauthorized, "token expired")
			} else {
				writeError(w, http.StatusUnauthorized, "invalid token")
			}
			return
		}
		if identity.TokenType != "access" {
			writeError(w, http.StatusUnauthorized, "invalid token type")
			return
		}
		ctx = auth.WithIdentity(ctx, identity)
	}

	// Restrict origins to configured CORS origins
	acceptOpts := &websocket.AcceptOptions{}
	if len(h.cfg.WSAllowedOrigins) > 0 {
		acceptOpts.OriginPatterns = h.cfg.WSAllowedOrigins
	}
	conn, err := websocket.Accept(w, r, acceptOpts)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	conn.SetReadLimit(h.cfg.MaxPromptBytes)

	// Long-lived connection: lift the server's write deadline.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})

	h.runWebSocket(ctx, conn)
}

func (h *Handler) runWebSocket(ctx context.Context, conn *websocket.Conn) {
	for {
		readCtx, readCancel := context.WithTimeout(ctx, wsIdleTimeout)
		var msg wsClientMessage
		err := wsjson.Read(readCtx, conn, &msg)
		readCancel()
		if err != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		}

		requestID := msg.ID
		if requestID == "" {
			requestID = uuid.NewString()
		}

		switch msg.Type {
		case "ping":
			_ = wsjson.Write(ctx, conn, wsServerMessage{Type: "pong", RequestID: requestID})
			continue
		case "validate":
		default:
			_ = wsjson.Write(ctx, conn, wsServerMessage{Type: "error", RequestID: requestID, Message: "unknown message type"})
			continue
		}

		if strings.TrimSpace(msg.Prompt) == "" {
			_ = wsjson.Write(ctx, conn, wsServerMessage{Type: "error", RequestID: requestID, Message: "prompt is empty"})
			continue
		}

		result := h.validator.Validate(msg.Prompt)
		h.recorder.Record(ctx, Observation{Source: "text", Result: result})

		resp := NewResponse(result)
		if err := wsjson.Write(ctx, conn, wsServerMessage{Type: "result", RequestID: requestID, Result: &resp}); err != nil {
			slog.Warn("websocket write failed", "error", err)
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message, Success: false})
}
