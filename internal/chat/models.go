package chat

import (
	"time"

	"github.com/suPer8Hu/chat-recall/internal/ai"
	"gorm.io/datatypes"
)

type Conversation struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID uint64 `gorm:"not null;index:idx_chat_conv_user_active,priority:1" json:"-"`
	Title  string `gorm:"type:varchar(200);not null" json:"title"`
	// AutoTitle marks a placeholder title that the first turn overwrites.
	AutoTitle bool    `gorm:"not null;default:false" json:"-"`
	Summary   *string `gorm:"type:text" json:"summary"`
	IsActive  bool    `gorm:"not null;default:true;index:idx_chat_conv_user_active,priority:2" json:"is_active"`
	// SearchVector is the embedding of the latest summary.
	SearchVector datatypes.JSONSlice[float32] `json:"-"`
	CreatedAt    time.Time                    `json:"created_at"`
	// UpdatedAt follows the newest turn, so gorm must not touch it.
	UpdatedAt time.Time `gorm:"autoUpdateTime:false;index" json:"updated_at"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Conversation) TableName() string { return "chat_conversations" }

type Message struct {
	ID             uint64                       `gorm:"primaryKey;autoIncrement" json:"id"`
	ConversationID uint64                       `gorm:"not null;index:idx_chat_msg_conv_created,priority:1" json:"conversation_id"`
	Role           ai.Role                      `gorm:"type:varchar(16);not null;check:chk_chat_messages_role,role IN ('system','user','assistant')" json:"role"`
	Content        string                       `gorm:"type:text;not null" json:"content"`
	Embedding      datatypes.JSONSlice[float32] `json:"-"`
	Metadata       datatypes.JSONMap            `json:"metadata"`
	CreatedAt      time.Time                    `gorm:"autoCreateTime:false;index:idx_chat_msg_conv_created,priority:2" json:"created_at"`
}

func (Message) TableName() string { return "chat_messages" }

// Turn is the role/content/timestamp view of a message used for generation.
type Turn struct {
	Role      ai.Role
	Content   string
	Timestamp time.Time
}

func turnsFromMessages(msgs []Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		turns = append(turns, Turn{Role: m.Role, Content: m.Content, Timestamp: m.CreatedAt})
	}
	return turns
}

func toProviderMessages(turns []Turn) []ai.Message {
	out := make([]ai.Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, ai.Message{Role: t.Role, Content: t.Content})
	}
	return out
}
