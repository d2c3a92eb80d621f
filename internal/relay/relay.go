package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"pdfchat/internal/app"
	"pdfchat/internal/usertoken"
	"pdfchat/pkg/domain"
	"pdfchat/pkg/store"
)

// IdentityVerifier validates a connect token.
type IdentityVerifier interface {
	VerifyIdentity(token string) (usertoken.Identity, error)
}

// Relay upgrades chat connections and routes their events through the hub.
type Relay struct {
	hub      *Hub
	verifier IdentityVerifier
	store    store.Store
	app      *app.App
	upgrader websocket.Upgrader
}

func New(hub *Hub, verifier IdentityVerifier, s store.Store, a *app.App) *Relay {
	return &Relay{
		hub:      hub,
		verifier: verifier,
		store:    s,
		app:      a,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP handles the full lifecycle of one chat connection: handshake,
// event loop, leave notification.
func (rl *Relay) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := rl.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws: upgrade error", "error", err)
		return
	}
	defer conn.Close()

	token := strings.TrimSpace(r.URL.Query().Get("token"))
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversationId"))
	if token == "" || conversationID == "" {
		slog.Warn("ws: missing connect params", "conversation_id", conversationID)
		return
	}

	identity, err := rl.verifier.VerifyIdentity(token)
	if err != nil {
		slog.Warn("ws: token rejected", "conversation_id", conversationID, "error", err)
		return
	}

	user, ok := rl.resolveUser(r.Context(), identity)
	if !ok {
		slog.Warn("ws: unknown user", "conversation_id", conversationID, "subject", identity.Subject)
		return
	}

	// The history fetch doubles as the conversation-exists check. Failure
	// is reported only to this connection.
	if _, err := rl.app.GetConversationMessages(r.Context(), conversationID); err != nil {
		slog.Warn("ws: handshake history fetch failed", "conversation_id", conversationID, "error", err)
		_ = rl.hub.Send(conn, OutboundEvent{
			Type:    EventNotification,
			Content: "Error couldn't get conversation messages.",
		})
		return
	}

	rl.hub.Subscribe(conversationID, conn)
	rl.hub.Broadcast(conversationID, OutboundEvent{
		Type:    EventJoining,
		Content: user.DisplayName() + " joined the conversation.",
	})

	rl.readLoop(conn, conversationID)

	rl.hub.Unsubscribe(conversationID, conn)
	rl.hub.Broadcast(conversationID, OutboundEvent{
		Type:    EventNotification,
		Content: user.Email + " left the chat.",
	})
}

// resolveUser looks the user up by the token's email claim, falling back
// to treating the subject as an email for tokens without one.
func (rl *Relay) resolveUser(ctx context.Context, identity usertoken.Identity) (domain.User, bool) {
	email := identity.Email
	if email == "" {
		email = identity.Subject
	}
	user, found, err := rl.store.FindUserByEmail(ctx, email)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

func (rl *Relay) readLoop(conn *websocket.Conn, conversationID string) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Error("ws: read error", "conversation_id", conversationID, "error", err)
			}
			return
		}

		var event InboundEvent
		if err := json.Unmarshal(data, &event); err != nil {
			slog.Warn("ws: malformed event", "conversation_id", conversationID, "error", err)
			continue
		}

		switch event.Type {
		case EventQuestion:
			// Detached from the connection: the workflow must finish even
			// if the client disconnects, and its outcome is not awaited.
			go func(userID, question string) {
				if err := rl.app.Ask(context.Background(), conversationID, userID, question); err != nil {
					slog.Error("ws: ask workflow failed", "conversation_id", conversationID, "error", err)
				}
			}(event.Data.UserID, event.Data.Message)

			out := OutboundEvent{Type: EventMessages, Content: event.Data.Message}
			rl.hub.Broadcast(conversationID, out)
			if err := rl.hub.Send(conn, out); err != nil {
				slog.Warn("ws: echo to sender failed", "conversation_id", conversationID, "error", err)
			}

		case EventTyping:
			rl.hub.Broadcast(conversationID, OutboundEvent{Type: EventTyping, Content: event.Data.Message})

		default:
			// unknown discriminants are ignored
		}
	}
}
