package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/meduzzen/messenger/internal/chat"
)

type ChatHandler struct {
	chatSvc *chat.Service
}

func NewChatHandler(chatSvc *chat.Service) *ChatHandler {
	return &ChatHandler{chatSvc: chatSvc}
}

type CreateChatRequest struct {
	RecipientID uint `json:"recipient_id" binding:"required"`
}

// idParam reads a positive integer path parameter, answering 422 otherwise.
func idParam(c *gin.Context, name, detail string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		respondDetail(c, http.StatusUnprocessableEntity, detail)
		return 0, false
	}
	return uint(id), true
}

// CreateChat returns the private chat with the recipient, creating it if
// needed: 201 for a new chat, 200 for an existing one.
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	ch, created, err := h.chatSvc.GetOrCreatePrivateChat(c.Request.Context(), c.GetUint("user_id"), req.RecipientID)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, ch)
}

func (h *ChatHandler) ListChats(c *gin.Context) {
	chats, err := h.chatSvc.ListChats(c.Request.Context(), c.GetUint("user_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, chats)
}

func (h *ChatHandler) DeactivateChat(c *gin.Context) {
	chatID, ok := idParam(c, "id", "invalid chat id")
	if !ok {
		return
	}
	if err := h.chatSvc.DeactivateChat(c.Request.Context(), c.GetUint("user_id"), chatID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Chat deactivated"})
}

func (h *ChatHandler) Participants(c *gin.Context) {
	chatID, ok := idParam(c, "id", "invalid chat id")
	if !ok {
		return
	}
	users, err := h.chatSvc.Participants(c.Request.Context(), c.GetUint("user_id"), chatID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}
