package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/meduzzen/messenger/internal/apperr"
	"github.com/meduzzen/messenger/internal/models"
	"github.com/meduzzen/messenger/internal/storage"
)

var allowedExtensions = map[string]bool{
	".txt":  true,
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var errFileNotFound = apperr.NotFound("File not found")

func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// AttachFile stores r as an attachment of the requester's own message.
// size is the client-declared length; the stored length is enforced
// independently.
func (s *Service) AttachFile(ctx context.Context, userID, messageID uint, filename string, size int64, r io.Reader) (*models.FileAttachment, error) {
	msg, err := s.getMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.IsDeleted() {
		return nil, errMessageNotFound
	}
	if msg.AuthorID != userID {
		return nil, apperr.Permission("You can only attach files to your own messages")
	}

	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "." || filename == string(filepath.Separator) || !AllowedExtension(filename) {
		return nil, apperr.Validation("File type not allowed")
	}
	if size > s.maxUploadSize {
		return nil, tooLarge(s.maxUploadSize)
	}

	stored, err := s.files.Save(r, filename, s.maxUploadSize)
	if errors.Is(err, storage.ErrTooLarge) {
		return nil, tooLarge(s.maxUploadSize)
	}
	if err != nil {
		return nil, fmt.Errorf("chat.AttachFile: %w", err)
	}

	att := &models.FileAttachment{
		Filename:  filename,
		FilePath:  stored.Path,
		FileSize:  stored.Size,
		MimeType:  stored.MimeType,
		MessageID: msg.ID,
	}
	if err := s.db.WithContext(ctx).Create(att).Error; err != nil {
		if rmErr := s.files.Remove(stored.Path); rmErr != nil {
			log.Warn("failed to remove orphaned upload", "path", stored.Path, "err", rmErr)
		}
		return nil, fmt.Errorf("chat.AttachFile: %w", err)
	}

	log.Info("file attached", "message_id", msg.ID, "file_id", att.ID, "size", att.FileSize)
	return att, nil
}

func tooLarge(limit int64) error {
	return apperr.Validation(fmt.Sprintf("File too large. Maximum size: %d MB", limit>>20))
}

// OpenAttachment resolves a download for a member of the message's chat.
func (s *Service) OpenAttachment(ctx context.Context, userID, fileID uint) (*models.FileAttachment, string, error) {
	var att models.FileAttachment
	err := s.db.WithContext(ctx).First(&att, fileID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", errFileNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("chat.OpenAttachment: %w", err)
	}

	msg, err := s.getMessage(ctx, att.MessageID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return nil, "", errFileNotFound
		}
		return nil, "", err
	}
	if msg.IsDeleted() {
		return nil, "", errFileNotFound
	}
	if _, err := s.AssertMember(ctx, userID, msg.ChatID); err != nil {
		return nil, "", err
	}

	path, err := s.files.Path(att.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, "", errFileNotFound
	}
	if err != nil {
		return nil, "", fmt.Errorf("chat.OpenAttachment: %w", err)
	}
	return &att, path, nil
}
