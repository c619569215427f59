package models

import "time"

type ChatType string

const ChatTypePrivate ChatType = "private"

type MessageType string

const (
	MessageTypeText   MessageType = "text"
	MessageTypeFile   MessageType = "file"
	MessageTypeSystem MessageType = "system"
)

type MessageStatus string

const (
	MessageStatusActive  MessageStatus = "active"
	MessageStatusDeleted MessageStatus = "deleted"
)

type MemberRole string

const MemberRoleParticipant MemberRole = "participant"

type MemberStatus string

const (
	MemberStatusActive  MemberStatus = "active"
	MemberStatusBlocked MemberStatus = "blocked"
	MemberStatusLeft    MemberStatus = "left"
)

type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:32;not null" json:"username"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Chat is a private pairing. UserLowID/UserHighID hold the pair in sorted
// order so the unique index covers both creator/recipient orderings.
type Chat struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        *string   `gorm:"size:128" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	ChatType    ChatType  `gorm:"size:16;not null;default:private" json:"chat_type"`
	CreatorID   uint      `gorm:"index;not null" json:"creator_id"`
	RecipientID uint      `gorm:"index;not null" json:"recipient_id"`
	UserLowID   uint      `gorm:"uniqueIndex:idx_chats_pair;not null" json:"-"`
	UserHighID  uint      `gorm:"uniqueIndex:idx_chats_pair;not null" json:"-"`
	IsActive    bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasParticipant reports whether userID is the creator or the recipient.
func (c *Chat) HasParticipant(userID uint) bool {
	return c.CreatorID == userID || c.RecipientID == userID
}

type Message struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	Content     string           `gorm:"type:text;not null" json:"content"`
	MessageType MessageType      `gorm:"size:16;not null;default:text" json:"message_type"`
	AuthorID    uint             `gorm:"index;not null" json:"author_id"`
	ChatID      uint             `gorm:"index:idx_messages_chat_created,priority:1;not null" json:"chat_id"`
	Status      MessageStatus    `gorm:"size:16;not null;default:active;index" json:"status"`
	CreatedAt   time.Time        `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
	EditedAt    *time.Time       `json:"edited_at"`
	DeletedAt   *time.Time       `json:"deleted_at,omitempty"`
	Attachments []FileAttachment `gorm:"foreignKey:MessageID" json:"attachments"`
}

func (m *Message) IsDeleted() bool {
	return m.Status == MessageStatusDeleted
}

type ChatMember struct {
	ID       uint         `gorm:"primaryKey" json:"id"`
	UserID   uint         `gorm:"uniqueIndex:idx_chat_members_chat_user,priority:2;index;not null" json:"user_id"`
	ChatID   uint         `gorm:"uniqueIndex:idx_chat_members_chat_user,priority:1;not null" json:"chat_id"`
	Role     MemberRole   `gorm:"size:16;not null;default:participant" json:"role"`
	Status   MemberStatus `gorm:"size:16;not null;default:active" json:"status"`
	JoinedAt time.Time    `gorm:"autoCreateTime" json:"joined_at"`
}

type FileAttachment struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	FilePath   string    `gorm:"size:512;not null" json:"-"`
	FileSize   int64     `gorm:"not null" json:"file_size"`
	MimeType   string    `gorm:"size:128;not null" json:"mime_type"`
	MessageID  uint      `gorm:"index;not null" json:"message_id"`
	UploadedAt time.Time `gorm:"autoCreateTime" json:"uploaded_at"`
}

// BlacklistedToken records a revoked token by its jti until its own expiry.
type BlacklistedToken struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	TokenID       string    `gorm:"uniqueIndex;size:64;not null" json:"token_id"`
	UserID        uint      `gorm:"index;not null" json:"user_id"`
	ExpiresAt     time.Time `gorm:"index;not null" json:"expires_at"`
	BlacklistedAt time.Time `gorm:"autoCreateTime" json:"blacklisted_at"`
}

// All lists every model for AutoMigrate.
func All() []any {
	return []any{
		&User{},
		&Chat{},
		&ChatMember{},
		&Message{},
		&FileAttachment{},
		&BlacklistedToken{},
	}
}
