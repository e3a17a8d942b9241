package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dkeye/Chat/internal/auth"
	"github.com/dkeye/Chat/internal/core"
	"github.com/dkeye/Chat/internal/domain"
	"github.com/dkeye/Chat/internal/store"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type CreateMessageRequest struct {
	Room    string `json:"room" binding:"required,max=64"`
	Content string `json:"content" binding:"required"`
}

type UpdateMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

type SessionRequest struct {
	Token string `json:"token" binding:"required"`
}

// Handlers serves message history and room state over REST.
type Handlers struct {
	Store store.MessageStore
	Rooms core.RoomRegistry
	Auth  auth.Authenticator
}

func (h *Handlers) Register(api *gin.RouterGroup) {
	api.POST("/session", h.Login)
	api.DELETE("/session", h.Logout)

	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:room/members", h.RoomMembers)

	msgs := api.Group("/messages", Authenticate(h.Auth))
	msgs.GET("", h.ListMessages)
	msgs.POST("", h.CreateMessage)
	msgs.PUT("/:id", h.UpdateMessage)
	msgs.DELETE("/:id", h.DeleteMessage)
}

func (h *Handlers) ListMessages(c *gin.Context) {
	if CurrentUser(c) == nil {
		writeError(c, domain.ErrUnauthenticated)
		return
	}
	room := domain.NormalizeRoomName(c.Query("room"))
	msgs, err := h.Store.List(c.Request.Context(), room)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// CreateMessage stores a message without broadcasting it.
func (h *Handlers) CreateMessage(c *gin.Context) {
	user := CurrentUser(c)
	if user == nil {
		writeError(c, domain.ErrUnauthenticated)
		return
	}
	var req CreateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.NewValidationError("body", err.Error()))
		return
	}
	msg, err := h.Store.Append(c.Request.Context(), domain.NormalizeRoomName(req.Room), req.Content, user)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *Handlers) UpdateMessage(c *gin.Context) {
	msg, ok := h.ownMessage(c)
	if !ok {
		return
	}
	var req UpdateMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.NewValidationError("body", err.Error()))
		return
	}
	updated, err := h.Store.Update(c.Request.Context(), msg.ID, req.Content)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handlers) DeleteMessage(c *gin.Context) {
	msg, ok := h.ownMessage(c)
	if !ok {
		return
	}
	if err := h.Store.Delete(c.Request.Context(), msg.ID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ownMessage loads the :id message and checks that the caller wrote it.
func (h *Handlers) ownMessage(c *gin.Context) (domain.ChatMessage, bool) {
	user := CurrentUser(c)
	if user == nil {
		writeError(c, domain.ErrUnauthenticated)
		return domain.ChatMessage{}, false
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		writeError(c, domain.NewValidationError("id", "not a number"))
		return domain.ChatMessage{}, false
	}
	msg, err := h.Store.Get(c.Request.Context(), domain.MessageID(id))
	if err != nil {
		writeError(c, err)
		return domain.ChatMessage{}, false
	}
	if msg.AuthorID != user.ID {
		writeError(c, domain.ErrForbidden)
		return domain.ChatMessage{}, false
	}
	return msg, true
}

func (h *Handlers) ListRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.Rooms.List())
}

func (h *Handlers) RoomMembers(c *gin.Context) {
	c.JSON(http.StatusOK, h.Rooms.Snapshot(domain.NormalizeRoomName(c.Param("room"))))
}

// Login keeps a verified token in the cookie session so browser clients
// can open the websocket without a header.
func (h *Handlers) Login(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domain.NewValidationError("body", err.Error()))
		return
	}
	user, err := h.Auth.Authenticate(req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	s := sessions.Default(c)
	s.Set(sessionTokenKey, req.Token)
	if err := s.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) Logout(c *gin.Context) {
	s := sessions.Default(c)
	s.Delete(sessionTokenKey)
	if err := s.Save(); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	default:
		switch domain.RejectionKind(err) {
		case domain.RejectInvalid:
			status = http.StatusBadRequest
		case domain.RejectUnauthenticated:
			status = http.StatusUnauthorized
		}
	}
	if status >= http.StatusInternalServerError {
		log.Error().Str("module", "transport.http").Str("path", c.FullPath()).Err(err).Msg("request failed")
		c.JSON(status, gin.H{"error": domain.RejectionKind(err)})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
