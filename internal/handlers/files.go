package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadFile attaches the multipart field "file" to a message
func (h *MessageHandler) UploadFile(c *gin.Context) {
	messageID, ok := idParam(c, "id", "invalid message id")
	if !ok {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondDetail(c, http.StatusUnprocessableEntity, "file is required")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		respondError(c, fmt.Errorf("handlers.UploadFile: %w", err))
		return
	}
	defer src.Close()

	att, err := h.chatSvc.AttachFile(c.Request.Context(), c.GetUint("user_id"), messageID, fileHeader.Filename, fileHeader.Size, src)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, att)
}

// DownloadFile streams an attachment under its original name
func (h *MessageHandler) DownloadFile(c *gin.Context) {
	fileID, ok := idParam(c, "id", "invalid file id")
	if !ok {
		return
	}

	att, path, err := h.chatSvc.OpenAttachment(c.Request.Context(), c.GetUint("user_id"), fileID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Type", att.MimeType)
	c.FileAttachment(path, att.Filename)
}
