package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	domainuser "propnest/internal/domain/user"
)

const joinDeadline = 10 * time.Second

// EventJoinRoom is the first frame a client must send: its own user id.
const EventJoinRoom = "join_room"

// TokenResolver validates a bearer credential and yields the caller's id.
type TokenResolver func(ctx context.Context, token string) (domainuser.ID, error)

// Handler upgrades an authenticated HTTP request to a websocket session and
// keeps it joined to the caller's own room until disconnect.
type Handler struct {
	Hub     *Hub
	Resolve TokenResolver
	Logger  *slog.Logger
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) Serve(c *gin.Context) {
	token := bearerOrQueryToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return
	}
	userID, err := h.Resolve(c.Request.Context(), token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Debug("websocket upgrade failed", "error", err)
		}
		return
	}

	session := NewSession(uuid.NewString(), userID, conn, h.Logger)

	// The client opens its room explicitly and may only join itself.
	if !h.awaitJoin(session, conn, userID) {
		return
	}

	h.Hub.Join(session)
	session.Start()
	if h.Logger != nil {
		h.Logger.Info("realtime connected", "user_id", userID, "session_id", session.ID)
	}

	go h.readLoop(session, conn)
}

func (h *Handler) awaitJoin(session *Session, conn *websocket.Conn, userID domainuser.ID) bool {
	_ = conn.SetReadDeadline(time.Now().Add(joinDeadline))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		session.CloseWithReason(websocket.ClosePolicyViolation, "join_room expected")
		return false
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Event != EventJoinRoom {
		session.CloseWithReason(websocket.ClosePolicyViolation, "join_room expected")
		return false
	}
	var requested string
	if err := json.Unmarshal(env.Data, &requested); err != nil || domainuser.ID(requested) != userID {
		if h.Logger != nil {
			h.Logger.Warn("join rejected for foreign room", "user_id", userID, "requested", requested)
		}
		session.CloseWithReason(websocket.ClosePolicyViolation, "may only join own room")
		return false
	}
	return true
}

func (h *Handler) readLoop(session *Session, conn *websocket.Conn) {
	defer func() {
		h.Hub.Leave(session)
		session.Close()
		if h.Logger != nil {
			h.Logger.Info("realtime disconnected", "user_id", session.UserID, "session_id", session.ID)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Inbound frames after join carry no meaning; the loop only detects
	// disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func bearerOrQueryToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(c.Query("token"))
}
