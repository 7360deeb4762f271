package services

import (
	"context"
	"errors"
	"strconv"

	"github.com/kendall-kelly/delyra-api/logger"
	"github.com/kendall-kelly/delyra-api/metrics"
	"github.com/kendall-kelly/delyra-api/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Notification types
const (
	NotificationNewOrder      = "new_order"
	NotificationOrderUpdate   = "order_update"
	NotificationOrderReady    = "order_ready"
	NotificationOrderAccepted = "order_accepted"
	NotificationChatMessage   = "chat_message"
)

// Preference categories
const (
	PreferenceOrderUpdates = "order_updates"
	PreferenceChatMessages = "chat_messages"
	PreferencePromotions   = "promotions"
	PreferenceNewOrder     = "new_order"
)

const notificationListLimit = 50

// PreferenceView is one entry of a user's preference list
type PreferenceView struct {
	Type    string `json:"type"`
	Label   string `json:"label"`
	Enabled bool   `json:"enabled"`
}

var defaultPreferences = []PreferenceView{
	{Type: PreferenceOrderUpdates, Label: "Order updates", Enabled: true},
	{Type: PreferenceChatMessages, Label: "Chat messages", Enabled: true},
	{Type: PreferencePromotions, Label: "Promotions and offers", Enabled: true},
	{Type: PreferenceNewOrder, Label: "New orders (merchants)", Enabled: true},
}

// Notifier creates notifications for users. A nil result with a nil error means
// the recipient has opted out of the category.
type Notifier interface {
	Create(ctx context.Context, userID uint, notifType, title, message string, referenceID *uint) (*models.Notification, error)
}

// NotificationService persists notifications and hands them off to push delivery
type NotificationService struct {
	db      *gorm.DB
	push    PushSender
	queue   *TaskQueue
	metrics *metrics.Metrics
}

// NewNotificationService creates a dispatcher. push may be nil to disable push delivery.
func NewNotificationService(db *gorm.DB, push PushSender, queue *TaskQueue, m *metrics.Metrics) *NotificationService {
	return &NotificationService{db: db, push: push, queue: queue, metrics: m}
}

// PreferenceCategory maps a notification type onto the preference category that gates it
func PreferenceCategory(notifType string) string {
	switch notifType {
	case NotificationOrderReady, NotificationOrderUpdate:
		return PreferenceOrderUpdates
	case NotificationChatMessage:
		return PreferenceChatMessages
	}
	return notifType
}

// Create stores a notification unless the recipient disabled its category,
// then queues a push to the recipient's device. Push failures never surface here.
func (s *NotificationService) Create(ctx context.Context, userID uint, notifType, title, message string, referenceID *uint) (*models.Notification, error) {
	db := s.db.WithContext(ctx)

	var pref models.NotificationPreference
	err := db.Where("user_id = ? AND pref_type = ?", userID, PreferenceCategory(notifType)).Take(&pref).Error
	switch {
	case err == nil && !pref.Enabled:
		s.metrics.Notification(metrics.OutcomeSuppressed)
		return nil, nil
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		s.metrics.Notification(metrics.OutcomeFailed)
		return nil, DependencyError("Failed to read notification preference", err)
	}

	notification := models.Notification{
		UserID:      userID,
		Type:        notifType,
		Title:       title,
		Message:     message,
		ReferenceID: referenceID,
	}
	if err := db.Create(&notification).Error; err != nil {
		s.metrics.Notification(metrics.OutcomeFailed)
		return nil, DependencyError("Failed to create notification", err)
	}
	s.metrics.Notification(metrics.OutcomeCreated)

	s.dispatchPush(ctx, &notification)
	return &notification, nil
}

func (s *NotificationService) dispatchPush(ctx context.Context, n *models.Notification) {
	if s.push == nil {
		s.metrics.PushDelivery(metrics.OutcomeSkipped)
		return
	}

	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "push_token").First(&user, n.UserID).Error; err != nil {
		logger.FromContext(ctx).Warn("push token lookup failed", zap.Uint("recipient_id", n.UserID), zap.Error(err))
		return
	}
	if user.PushToken == nil || *user.PushToken == "" {
		s.metrics.PushDelivery(metrics.OutcomeSkipped)
		return
	}

	token := *user.PushToken
	data := map[string]string{
		"type":            n.Type,
		"notification_id": strconv.FormatUint(uint64(n.ID), 10),
	}
	if n.ReferenceID != nil {
		data["reference_id"] = strconv.FormatUint(uint64(*n.ReferenceID), 10)
	}
	title, body, recipient := n.Title, n.Message, n.UserID

	send := func(ctx context.Context) error {
		if err := s.push.Send(ctx, token, title, body, data); err != nil {
			s.metrics.PushDelivery(metrics.OutcomeFailed)
			logger.FromContext(ctx).Warn("push delivery failed", zap.Uint("recipient_id", recipient), zap.Error(err))
			if errors.Is(err, ErrPushTokenUnregistered) {
				s.forgetPushToken(ctx, recipient, token)
			}
			return nil
		}
		s.metrics.PushDelivery(metrics.OutcomeSent)
		return nil
	}
	if s.queue == nil {
		go func() { _ = send(context.WithoutCancel(ctx)) }()
		return
	}
	s.queue.Submit(ctx, "push", send)
}

// forgetPushToken clears token unless the user has registered a new one since
func (s *NotificationService) forgetPushToken(ctx context.Context, userID uint, token string) {
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND push_token = ?", userID, token).
		Update("push_token", nil).Error
	if err != nil {
		logger.FromContext(ctx).Warn("failed to clear push token", zap.Uint("recipient_id", userID), zap.Error(err))
	}
}

// List returns the latest notifications for a user, newest first
func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	notifications := []models.Notification{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(notificationListLimit).
		Find(&notifications).Error
	if err != nil {
		return nil, DependencyError("Failed to retrieve notifications", err)
	}
	return notifications, nil
}

// UnreadCount counts a user's unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, DependencyError("Failed to count notifications", err)
	}
	return count, nil
}

// MarkRead marks one of the user's notifications read
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uint) error {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("read", true)
	if result.Error != nil {
		return DependencyError("Failed to update notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFoundError(CodeNotificationNotFound, "Notification not found")
	}
	return nil
}

// MarkAllRead marks every unread notification of the user read and returns how many changed
func (s *NotificationService) MarkAllRead(ctx context.Context, userID uint) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Update("read", true)
	if result.Error != nil {
		return 0, DependencyError("Failed to update notifications", result.Error)
	}
	return result.RowsAffected, nil
}

// Preferences merges the user's stored rows into the default category list
func (s *NotificationService) Preferences(ctx context.Context, userID uint) ([]PreferenceView, error) {
	var rows []models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&rows).Error; err != nil {
		return nil, DependencyError("Failed to retrieve preferences", err)
	}

	stored := make(map[string]bool, len(rows))
	for _, r := range rows {
		stored[r.PrefType] = r.Enabled
	}

	result := make([]PreferenceView, 0, len(defaultPreferences))
	for _, p := range defaultPreferences {
		if enabled, ok := stored[p.Type]; ok {
			p.Enabled = enabled
		}
		result = append(result, p)
	}
	return result, nil
}

// SetPreference inserts or replaces the user's flag for one category
func (s *NotificationService) SetPreference(ctx context.Context, userID uint, prefType string, enabled bool) error {
	if prefType == "" {
		return ValidationError(CodeValidation, "Preference type is required")
	}
	pref := models.NotificationPreference{UserID: userID, PrefType: prefType, Enabled: enabled}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "pref_type"}},
		DoUpdates: clause.AssignmentColumns([]string{"enabled"}),
	}).Create(&pref).Error
	if err != nil {
		return DependencyError("Failed to update preference", err)
	}
	return nil
}

// SetPushToken registers the device token used for push delivery. An empty token clears it.
func (s *NotificationService) SetPushToken(ctx context.Context, userID uint, token string) error {
	var value interface{}
	if token != "" {
		value = token
	}
	result := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", userID).Update("push_token", value)
	if result.Error != nil {
		return DependencyError("Failed to update push token", result.Error)
	}
	if result.RowsAffected == 0 {
		return NotFoundError(CodeUserNotFound, "User not found")
	}
	return nil
}
