package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/meduzzen/messenger/internal/apperr"
	"github.com/meduzzen/messenger/internal/models"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 100
)

var errMessageNotFound = apperr.NotFound("Message not found")

func (s *Service) SendMessage(ctx context.Context, userID, chatID uint, content string, messageType models.MessageType) (*models.Message, error) {
	if _, err := s.AssertMember(ctx, userID, chatID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("Message content cannot be empty")
	}

	switch messageType {
	case "":
		messageType = models.MessageTypeText
	case models.MessageTypeText, models.MessageTypeFile:
	default:
		return nil, apperr.Validation("Unsupported message type")
	}

	msg := &models.Message{
		Content:     content,
		MessageType: messageType,
		AuthorID:    userID,
		ChatID:      chatID,
		Status:      models.MessageStatusActive,
		Attachments: []models.FileAttachment{},
	}
	if err := s.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("chat.SendMessage: %w", err)
	}
	return msg, nil
}

// ListMessages pages through active messages, newest first.
func (s *Service) ListMessages(ctx context.Context, userID, chatID uint, skip, limit int) ([]models.Message, error) {
	if skip < 0 {
		return nil, apperr.Validation("skip must be zero or greater")
	}
	if limit < 1 {
		return nil, apperr.Validation("limit must be at least 1")
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if _, err := s.AssertMember(ctx, userID, chatID); err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0)
	err := s.db.WithContext(ctx).
		Preload("Attachments").
		Where("chat_id = ? AND status = ?", chatID, models.MessageStatusActive).
		Order("created_at DESC, id DESC").
		Offset(skip).
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("chat.ListMessages: %w", err)
	}
	for i := range messages {
		normalizeAttachments(&messages[i])
	}
	return messages, nil
}

func (s *Service) getMessage(ctx context.Context, messageID uint) (*models.Message, error) {
	var msg models.Message
	err := s.db.WithContext(ctx).Preload("Attachments").First(&msg, messageID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errMessageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}
	normalizeAttachments(&msg)
	return &msg, nil
}

// normalizeAttachments makes a message without files serialize as [].
func normalizeAttachments(m *models.Message) {
	if m.Attachments == nil {
		m.Attachments = []models.FileAttachment{}
	}
}

// EditMessage replaces the content of the requester's own active message.
func (s *Service) EditMessage(ctx context.Context, userID, messageID uint, content string) (*models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Validation("Message content cannot be empty")
	}

	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.AuthorID != userID {
		return nil, apperr.Permission("You can only edit your own messages")
	}
	if msg.IsDeleted() {
		return nil, errMessageNotFound
	}

	now := time.Now().UTC()
	err = s.db.WithContext(ctx).Model(msg).Updates(map[string]any{
		"content":   content,
		"edited_at": now,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("chat.EditMessage: %w", err)
	}
	msg.Content = content
	msg.EditedAt = &now
	return msg, nil
}

// DeleteMessage soft-deletes the requester's own message.
func (s *Service) DeleteMessage(ctx context.Context, userID, messageID uint) error {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.AuthorID != userID {
		return apperr.Permission("You can only delete your own messages")
	}
	if msg.IsDeleted() {
		return errMessageNotFound
	}

	err = s.db.WithContext(ctx).Model(msg).Updates(map[string]any{
		"status":     models.MessageStatusDeleted,
		"deleted_at": time.Now().UTC(),
	}).Error
	if err != nil {
		return fmt.Errorf("chat.DeleteMessage: %w", err)
	}
	return nil
}
