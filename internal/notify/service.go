package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Type enumerates the notification kinds the server produces.
type Type string

const (
	// TypeReply covers answers and comments on a user's content.
	TypeReply Type = "reply"
	// TypeVote covers upvote milestone notifications.
	TypeVote Type = "vote"
	// TypeQuestion confirms a user's own question was posted.
	TypeQuestion Type = "question"
)

var (
	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	errMissingThresholds = errors.New("milestone thresholds are required")

	// ErrNotificationNotFound indicates the referenced notification does not exist.
	ErrNotificationNotFound = errors.New("notify: notification not found")
	// ErrInvalidNotification indicates a create request missing required fields.
	ErrInvalidNotification = errors.New("notify: invalid notification")

	noOpLogger = zap.NewNop()
)

// Notification is one persisted per-user notification record. Created by
// server-side logic only; the mark-read operation is its only mutation.
type Notification struct {
	ID        string    `gorm:"column:notification_id;primaryKey;size:190;not null" json:"id"`
	Type      Type      `gorm:"column:type;size:32;not null" json:"type"`
	Message   string    `gorm:"column:message;type:text;not null" json:"message"`
	Timestamp time.Time `gorm:"column:timestamp;not null;index:idx_notifications_user_time,priority:2" json:"timestamp"`
	Read      bool      `gorm:"column:read;not null;default:false" json:"read"`
	UserID    string    `gorm:"column:user_id;size:190;not null;index:idx_notifications_user_time,priority:1" json:"userId"`
	RelatedID string    `gorm:"column:related_id;size:190" json:"relatedId"`
}

// TableName provides the explicit table binding for GORM.
func (Notification) TableName() string {
	return "notifications"
}

// IDProvider issues identifiers for new notification records.
type IDProvider interface {
	NewID() (string, error)
}

// ServiceConfig describes the dependencies and policy for the service.
type ServiceConfig struct {
	Database   *gorm.DB
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
	// Thresholds is the ordered set of upvote counts at which a milestone
	// notification fires. Injectable so the policy is testable in isolation.
	Thresholds []int
	// NotifySelf allows notifications whose recipient performed the
	// triggering action. Question-posted confirmations are exempt; they are
	// self-directed by nature.
	NotifySelf bool
}

// Service creates, lists and mutates notification records and owns the
// milestone policy.
type Service struct {
	db         *gorm.DB
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger
	thresholds map[int]bool
	notifySelf bool
}

const (
	opServiceNew  = "notify.service.new"
	opCreate      = "notify.create"
	opListForUser = "notify.list_for_user"
	opMarkRead    = "notify.mark_read"
)

// NewService validates dependencies and constructs the notification service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	if len(cfg.Thresholds) == 0 {
		return nil, newServiceError(opServiceNew, "missing_thresholds", errMissingThresholds)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	thresholds := make(map[int]bool, len(cfg.Thresholds))
	for _, threshold := range cfg.Thresholds {
		thresholds[threshold] = true
	}

	return &Service{
		db:         cfg.Database,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
		thresholds: thresholds,
		notifySelf: cfg.NotifySelf,
	}, nil
}

// CreateInput carries a new notification. Actor is the username that
// performed the triggering action and is used only for the self-notification
// policy; it is not stored.
type CreateInput struct {
	UserID    string
	Actor     string
	Type      Type
	Message   string
	RelatedID string
}

// Create stores a new unread notification stamped with the current time.
// It returns (nil, nil) when the self-notification policy suppresses the
// record: the recipient is the actor and the type is reply or vote.
func (s *Service) Create(ctx context.Context, input CreateInput) (*Notification, error) {
	if strings.TrimSpace(input.UserID) == "" || strings.TrimSpace(input.Message) == "" {
		return nil, newServiceError(opCreate, "invalid_body", ErrInvalidNotification)
	}
	if input.Type != TypeReply && input.Type != TypeVote && input.Type != TypeQuestion {
		return nil, newServiceError(opCreate, "invalid_type", fmt.Errorf("%w: type %q", ErrInvalidNotification, input.Type))
	}

	if s.suppressed(input) {
		return nil, nil
	}

	notificationID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opCreate, "id_generation_failed", err)
		return nil, newServiceError(opCreate, "id_generation_failed", err)
	}

	notification := Notification{
		ID:        notificationID,
		Type:      input.Type,
		Message:   input.Message,
		Timestamp: s.clock().UTC(),
		Read:      false,
		UserID:    strings.TrimSpace(input.UserID),
		RelatedID: input.RelatedID,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		s.logError(opCreate, "notification_save_failed", err, zap.String("user_id", notification.UserID))
		return nil, newServiceError(opCreate, "notification_save_failed", err)
	}
	return &notification, nil
}

// ListForUser returns the user's notifications newest first.
func (s *Service) ListForUser(ctx context.Context, userID string) ([]Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newServiceError(opListForUser, "missing_user_id", ErrInvalidNotification)
	}

	var notifications []Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("timestamp DESC").
		Find(&notifications).Error
	if err != nil {
		s.logError(opListForUser, "query_failed", err, zap.String("user_id", userID))
		return nil, newServiceError(opListForUser, "query_failed", err)
	}
	return notifications, nil
}

// MarkRead flips the read flag on one notification.
func (s *Service) MarkRead(ctx context.Context, notificationID string) (*Notification, error) {
	if strings.TrimSpace(notificationID) == "" {
		return nil, newServiceError(opMarkRead, "missing_notification_id", ErrInvalidNotification)
	}

	result := s.db.WithContext(ctx).Model(&Notification{}).
		Where("notification_id = ?", notificationID).
		Update("read", true)
	if result.Error != nil {
		s.logError(opMarkRead, "update_failed", result.Error, zap.String("notification_id", notificationID))
		return nil, newServiceError(opMarkRead, "update_failed", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, newServiceError(opMarkRead, "notification_missing", ErrNotificationNotFound)
	}

	var notification Notification
	if err := s.db.WithContext(ctx).Where("notification_id = ?", notificationID).Take(&notification).Error; err != nil {
		return nil, newServiceError(opMarkRead, "query_failed", err)
	}
	return &notification, nil
}

// MilestoneReached reports whether a post-update upvote count sits exactly on
// a configured threshold. The check is against the absolute count, not a
// delta, so it fires once per crossing; two concurrent votes landing on the
// same threshold can double-notify, which is accepted.
func (s *Service) MilestoneReached(upvoteCount int) bool {
	return s.thresholds[upvoteCount]
}

// suppressed applies the self-notification policy.
func (s *Service) suppressed(input CreateInput) bool {
	if s.notifySelf || input.Type == TypeQuestion {
		return false
	}
	return input.Actor != "" && input.Actor == input.UserID
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.logger.Error("notification service error", attrs...)
}

// ServiceError mirrors the forum package's coded error wrapper.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the dotted operation code.
func (e *ServiceError) Code() string {
	return e.code
}

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}
