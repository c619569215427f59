package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/meduzzen/messenger/internal/chat"
	"github.com/meduzzen/messenger/internal/models"
)

type MessageHandler struct {
	chatSvc *chat.Service
}

func NewMessageHandler(chatSvc *chat.Service) *MessageHandler {
	return &MessageHandler{chatSvc: chatSvc}
}

type SendMessageRequest struct {
	Content     string             `json:"content" binding:"required"`
	MessageType models.MessageType `json:"message_type"`
}

type EditMessageRequest struct {
	Content    string `json:"content"`
	NewContent string `form:"new_content"`
}

type PageQuery struct {
	Skip  int `form:"skip,default=0"`
	Limit int `form:"limit,default=50"`
}

// SendMessage posts a message into a chat the caller belongs to
func (h *MessageHandler) SendMessage(c *gin.Context) {
	chatID, ok := idParam(c, "id", "invalid chat id")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := h.chatSvc.SendMessage(c.Request.Context(), c.GetUint("user_id"), chatID, req.Content, req.MessageType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// ListMessages retrieves a page of chat history, newest first
func (h *MessageHandler) ListMessages(c *gin.Context) {
	chatID, ok := idParam(c, "id", "invalid chat id")
	if !ok {
		return
	}

	var page PageQuery
	if err := c.ShouldBindQuery(&page); err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, "invalid pagination parameters")
		return
	}

	messages, err := h.chatSvc.ListMessages(c.Request.Context(), c.GetUint("user_id"), chatID, page.Skip, page.Limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

// EditMessage accepts either a JSON body {"content": ...} or a form field
// new_content.
func (h *MessageHandler) EditMessage(c *gin.Context) {
	messageID, ok := idParam(c, "id", "invalid message id")
	if !ok {
		return
	}

	var req EditMessageRequest
	var err error
	if strings.HasPrefix(c.ContentType(), "application/json") {
		err = c.ShouldBindJSON(&req)
	} else {
		err = c.ShouldBind(&req)
	}
	if err != nil {
		respondBindError(c, err)
		return
	}

	content := req.Content
	if content == "" {
		content = req.NewContent
	}

	msg, err := h.chatSvc.EditMessage(c.Request.Context(), c.GetUint("user_id"), messageID, content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msg)
}

func (h *MessageHandler) DeleteMessage(c *gin.Context) {
	messageID, ok := idParam(c, "id", "invalid message id")
	if !ok {
		return
	}
	if err := h.chatSvc.DeleteMessage(c.Request.Context(), c.GetUint("user_id"), messageID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}
