// Package chat implements private chats, membership checks and messages.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/meduzzen/messenger/internal/apperr"
	"github.com/meduzzen/messenger/internal/models"
	"github.com/meduzzen/messenger/internal/storage"
)

const DefaultMaxUploadSize int64 = 10 << 20

var errNotMember = apperr.Permission("You are not a member of this chat")

type Service struct {
	db            *gorm.DB
	files         *storage.Local
	maxUploadSize int64
}

type Option func(*Service)

func WithMaxUploadSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxUploadSize = n
		}
	}
}

func New(db *gorm.DB, files *storage.Local, opts ...Option) *Service {
	s := &Service{db: db, files: files, maxUploadSize: DefaultMaxUploadSize}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) MaxUploadSize() int64 {
	return s.maxUploadSize
}

func pairKey(a, b uint) (low, high uint) {
	if a < b {
		return a, b
	}
	return b, a
}

// GetOrCreatePrivateChat returns the chat for the unordered pair, creating
// it with both membership rows when none exists. created reports whether a
// new row was inserted.
func (s *Service) GetOrCreatePrivateChat(ctx context.Context, creatorID, recipientID uint) (*models.Chat, bool, error) {
	if creatorID == recipientID {
		return nil, false, apperr.Validation("Cannot create chat with yourself")
	}

	tx := s.db.WithContext(ctx)

	var count int64
	if err := tx.Model(&models.User{}).Where("id = ?", recipientID).Count(&count).Error; err != nil {
		return nil, false, fmt.Errorf("chat.GetOrCreate: %w", err)
	}
	if count == 0 {
		return nil, false, apperr.NotFound("User not found")
	}

	chat, err := s.findByPair(ctx, creatorID, recipientID)
	if err != nil {
		return nil, false, err
	}
	if chat != nil {
		if err := s.reactivate(ctx, chat); err != nil {
			return nil, false, err
		}
		return chat, false, nil
	}

	low, high := pairKey(creatorID, recipientID)
	chat = &models.Chat{
		ChatType:    models.ChatTypePrivate,
		CreatorID:   creatorID,
		RecipientID: recipientID,
		UserLowID:   low,
		UserHighID:  high,
		IsActive:    true,
	}
	err = tx.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		return ensureMembers(tx, chat)
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another request created the pair first.
		existing, findErr := s.findByPair(ctx, creatorID, recipientID)
		if findErr != nil {
			return nil, false, findErr
		}
		if existing != nil {
			if err := s.reactivate(ctx, existing); err != nil {
				return nil, false, err
			}
			return existing, false, nil
		}
	}
	if err != nil {
		return nil, false, fmt.Errorf("chat.GetOrCreate: %w", err)
	}

	log.Info("chat created", "chat_id", chat.ID, "creator_id", creatorID, "recipient_id", recipientID)
	return chat, true, nil
}

func (s *Service) findByPair(ctx context.Context, a, b uint) (*models.Chat, error) {
	low, high := pairKey(a, b)
	var chat models.Chat
	err := s.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("chat.findByPair: %w", err)
	}
	return &chat, nil
}

func (s *Service) reactivate(ctx context.Context, chat *models.Chat) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !chat.IsActive {
			if err := tx.Model(chat).Update("is_active", true).Error; err != nil {
				return fmt.Errorf("chat.reactivate: %w", err)
			}
			chat.IsActive = true
			log.Info("chat reactivated", "chat_id", chat.ID)
		}
		return ensureMembers(tx, chat)
	})
}

// ensureMembers inserts missing membership rows for both participants.
// Existing rows, including blocked or left ones, are left alone.
func ensureMembers(tx *gorm.DB, chat *models.Chat) error {
	members := []models.ChatMember{
		{ChatID: chat.ID, UserID: chat.CreatorID, Role: models.MemberRoleParticipant, Status: models.MemberStatusActive},
		{ChatID: chat.ID, UserID: chat.RecipientID, Role: models.MemberRoleParticipant, Status: models.MemberStatusActive},
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		DoNothing: true,
	}).Create(&members).Error
	if err != nil {
		return fmt.Errorf("failed to add chat members: %w", err)
	}
	return nil
}

// ListChats returns the user's active chats, newest first.
func (s *Service) ListChats(ctx context.Context, userID uint) ([]models.Chat, error) {
	chats := make([]models.Chat, 0)
	err := s.db.WithContext(ctx).
		Where("(creator_id = ? OR recipient_id = ?) AND is_active = ?", userID, userID, true).
		Order("created_at DESC, id DESC").
		Find(&chats).Error
	if err != nil {
		return nil, fmt.Errorf("chat.ListChats: %w", err)
	}
	return chats, nil
}

// AssertMember returns the chat when userID may act in it. Unknown,
// inactive and foreign chats all produce the same permission error.
func (s *Service) AssertMember(ctx context.Context, userID, chatID uint) (*models.Chat, error) {
	tx := s.db.WithContext(ctx)

	var chat models.Chat
	err := tx.First(&chat, chatID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNotMember
	}
	if err != nil {
		return nil, fmt.Errorf("chat.AssertMember: %w", err)
	}
	if !chat.IsActive || !chat.HasParticipant(userID) {
		return nil, errNotMember
	}

	var member models.ChatMember
	err = tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		if err := ensureMembers(tx, &chat); err != nil {
			return nil, err
		}
		err = tx.Where("chat_id = ? AND user_id = ?", chatID, userID).First(&member).Error
	}
	if err != nil {
		return nil, fmt.Errorf("chat.AssertMember: %w", err)
	}
	if member.Status == models.MemberStatusBlocked || member.Status == models.MemberStatusLeft {
		return nil, errNotMember
	}
	return &chat, nil
}

// Participants lists users with an active membership in the chat.
func (s *Service) Participants(ctx context.Context, userID, chatID uint) ([]models.User, error) {
	if _, err := s.AssertMember(ctx, userID, chatID); err != nil {
		return nil, err
	}

	users := make([]models.User, 0)
	err := s.db.WithContext(ctx).
		Joins("JOIN chat_members ON chat_members.user_id = users.id").
		Where("chat_members.chat_id = ? AND chat_members.status = ?", chatID, models.MemberStatusActive).
		Order("users.username").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("chat.Participants: %w", err)
	}
	return users, nil
}

// DeactivateChat hides the chat for both sides. GetOrCreatePrivateChat
// brings it back.
func (s *Service) DeactivateChat(ctx context.Context, userID, chatID uint) error {
	chat, err := s.AssertMember(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Model(chat).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("chat.DeactivateChat: %w", err)
	}
	log.Info("chat deactivated", "chat_id", chat.ID, "user_id", userID)
	return nil
}

// BackfillMembers makes sure both participants of every chat have a
// membership row and returns how many were missing. With dryRun nothing
// is written.
func (s *Service) BackfillMembers(ctx context.Context, dryRun bool) (int, error) {
	var chats []models.Chat
	if err := s.db.WithContext(ctx).Order("id").Find(&chats).Error; err != nil {
		return 0, fmt.Errorf("chat.BackfillMembers: %w", err)
	}

	missing := 0
	for i := range chats {
		chat := &chats[i]
		var rows []models.ChatMember
		if err := s.db.WithContext(ctx).Where("chat_id = ?", chat.ID).Find(&rows).Error; err != nil {
			return 0, fmt.Errorf("chat.BackfillMembers: %w", err)
		}
		have := make(map[uint]bool, len(rows))
		for _, row := range rows {
			have[row.UserID] = true
		}

		n := 0
		for _, id := range []uint{chat.CreatorID, chat.RecipientID} {
			if !have[id] {
				n++
			}
		}
		if n == 0 {
			continue
		}
		missing += n
		if dryRun {
			continue
		}
		if err := ensureMembers(s.db.WithContext(ctx), chat); err != nil {
			return 0, err
		}
	}

	if missing > 0 {
		log.Info("chat members backfilled", "missing", missing, "dry_run", dryRun)
	}
	return missing, nil
}
