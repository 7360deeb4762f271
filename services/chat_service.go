package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/kendall-kelly/delyra-api/models"
	"gorm.io/gorm"
)

const maxMessageLength = 4000

// ChatMessage is a persisted message enriched with its sender's display data
type ChatMessage struct {
	models.Message
	SenderName string `json:"sender_name"`
	SenderRole string `json:"sender_role"`
}

// UnreadBySender is the unread count from one sender
type UnreadBySender struct {
	SenderID uint  `json:"sender_id"`
	Count    int64 `json:"count"`
}

// SendMessageInput is one chat send request
type SendMessageInput struct {
	SenderID   uint
	ReceiverID uint
	OrderID    *uint
	Body       string
}

// ChatService persists chat messages and serves the history read path
type ChatService struct {
	db       *gorm.DB
	notifier Notifier
	metrics  *metrics.Metrics
}

// NewChatService creates a chat service. notifier may be nil to skip offline notifications.
func NewChatService(db *gorm.DB, notifier Notifier, m *metrics.Metrics) *ChatService {
	return &ChatService{db: db, notifier: notifier, metrics: m}
}

// Send stores the message and returns it with the sender's name and role
func (s *ChatService) Send(ctx context.Context, in SendMessageInput) (*ChatMessage, error) {
	body := strings.TrimSpace(in.Body)
	switch {
	case in.SenderID == 0 || in.ReceiverID == 0:
		return nil, ValidationError(CodeValidation, "sender_id and receiver_id are required")
	case body == "":
		return nil, ValidationError(CodeValidation, "Message cannot be empty")
	case utf8.RuneCountInString(body) > maxMessageLength:
		return nil, ValidationError(CodeValidation, fmt.Sprintf("Message cannot exceed %d characters", maxMessageLength))
	}

	db := s.db.WithContext(ctx)
	senderName, senderRole := "Unknown", "user"
	var sender models.User
	err := db.Select("id", "name", "role").First(&sender, in.SenderID).Error
	switch {
	case err == nil:
		senderName, senderRole = sender.Name, sender.Role
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, DependencyError("Failed to load sender", err)
	}

	msg := models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		OrderID:    in.OrderID,
		Body:       body,
	}
	if err := db.Create(&msg).Error; err != nil {
		return nil, DependencyError("Failed to save message", err)
	}
	s.metrics.ChatMessage()

	return &ChatMessage{Message: msg, SenderName: senderName, SenderRole: senderRole}, nil
}

// NotifyReceiver creates the chat_message notification for a receiver who did not get the live event
func (s *ChatService) NotifyReceiver(ctx context.Context, msg *ChatMessage) error {
	if s.notifier == nil {
		return nil
	}
	ref := msg.ID
	if msg.OrderID != nil {
		ref = *msg.OrderID
	}
	_, err := s.notifier.Create(ctx, msg.ReceiverID, NotificationChatMessage,
		fmt.Sprintf("New message from %s", msg.SenderName), preview(msg.Body), &ref)
	return err
}

func preview(body string) string {
	const limit = 80
	if utf8.RuneCountInString(body) <= limit {
		return body
	}
	r := []rune(body)
	return string(r[:limit]) + "..."
}

// History returns the order conversation when orderID is set, otherwise the
// messages exchanged between the two users. Oldest first.
func (s *ChatService) History(ctx context.Context, user1, user2 uint, orderID *uint) ([]ChatMessage, error) {
	q := s.db.WithContext(ctx).Table("messages m").
		Select("m.*, u.name AS sender_name, u.role AS sender_role").
		Joins("JOIN users u ON m.sender_id = u.id")
	if orderID != nil {
		q = q.Where("m.order_id = ?", *orderID)
	} else {
		q = q.Where("(m.sender_id = ? AND m.receiver_id = ?) OR (m.sender_id = ? AND m.receiver_id = ?)",
			user1, user2, user2, user1)
	}

	messages := []ChatMessage{}
	if err := q.Order("m.created_at ASC, m.id ASC").Scan(&messages).Error; err != nil {
		return nil, DependencyError("Failed to retrieve chat history", err)
	}
	return messages, nil
}

// UnreadCounts groups the user's unread messages by sender
func (s *ChatService) UnreadCounts(ctx context.Context, userID uint) ([]UnreadBySender, error) {
	counts := []UnreadBySender{}
	err := s.db.WithContext(ctx).Model(&models.Message{}).
		Select("sender_id, COUNT(*) AS count").
		Where("receiver_id = ? AND read = ?", userID, false).
		Group("sender_id").
		Order("sender_id").
		Scan(&counts).Error
	if err != nil {
		return nil, DependencyError("Failed to count unread messages", err)
	}
	return counts, nil
}

// MarkRead marks messages from otherID to userID read, optionally only within one order
func (s *ChatService) MarkRead(ctx context.Context, userID, otherID uint, orderID *uint) (int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Message{}).
		Where("receiver_id = ? AND sender_id = ? AND read = ?", userID, otherID, false)
	if orderID != nil {
		q = q.Where("order_id = ?", *orderID)
	}
	result := q.Update("read", true)
	if result.Error != nil {
		return 0, DependencyError("Failed to mark messages read", result.Error)
	}
	return result.RowsAffected, nil
}
