package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"advice-moderation-server/models"
)

const DefaultExpoPushURL = "https://exp.host/--/api/v2/push/send"

// Kinds that ask the submitter to act also go out by e-mail.
var emailKinds = map[models.NotificationKind]bool{
	models.KindRequestDenied:   true,
	models.KindRefundProcessed: true,
}

// NotificationMessage is one notification addressed to one user.
type NotificationMessage struct {
	UserID    string                      `json:"user_id"`
	Title     string                      `json:"title"`
	Message   string                      `json:"message"`
	Kind      models.NotificationKind     `json:"kind"`
	RequestID string                      `json:"request_id,omitempty"`
	Actions   []models.NotificationAction `json:"actions,omitempty"`
}

// Notifier delivers notifications. Callers treat failures as non-fatal.
type Notifier interface {
	Send(ctx context.Context, msg NotificationMessage) error
	SendBulk(ctx context.Context, msgs []NotificationMessage) int
}

// LivePusher reaches users connected over websocket.
type LivePusher interface {
	SendToUser(userID, msgType string, data interface{}) bool
}

// PushSender delivers mobile push notifications.
type PushSender interface {
	Push(ctx context.Context, tokens []string, msg NotificationMessage) error
}

// EventPublisher fans notifications out to other consumers.
type EventPublisher interface {
	Publish(ctx context.Context, msg NotificationMessage) error
}

// EmailSender delivers e-mail.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// NotificationService persists a notification and delivers it over every
// configured channel. A nil channel is skipped.
type NotificationService struct {
	db     *gorm.DB
	live   LivePusher
	push   PushSender
	events EventPublisher
	email  EmailSender

	bulkConcurrency int
}

type NotificationOption func(*NotificationService)

func WithLivePusher(p LivePusher) NotificationOption {
	return func(s *NotificationService) { s.live = p }
}

func WithPushSender(p PushSender) NotificationOption {
	return func(s *NotificationService) { s.push = p }
}

func WithEventPublisher(p EventPublisher) NotificationOption {
	return func(s *NotificationService) { s.events = p }
}

func WithEmailSender(e EmailSender) NotificationOption {
	return func(s *NotificationService) { s.email = e }
}

func NewNotificationService(db *gorm.DB, opts ...NotificationOption) *NotificationService {
	s := &NotificationService{db: db, bulkConcurrency: 4}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send stores msg in the user's inbox and pushes it out. Every channel is
// attempted; the returned error joins whichever failed.
func (s *NotificationService) Send(ctx context.Context, msg NotificationMessage) error {
	if msg.UserID == "" {
		return fmt.Errorf("%w: notification has no recipient", ErrValidation)
	}

	var errs []error

	notification := models.Notification{
		UserID:    msg.UserID,
		Title:     msg.Title,
		Body:      msg.Message,
		Kind:      msg.Kind,
		RequestID: msg.RequestID,
		Actions:   msg.Actions,
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		log.Printf("❌ Failed to store notification for user %s: %v", msg.UserID, err)
		errs = append(errs, fmt.Errorf("inbox: %w", err))
	}

	if s.live != nil {
		if s.live.SendToUser(msg.UserID, "notification", notification) {
			log.Printf("📡 Notification pushed live to user %s", msg.UserID)
		}
	}

	if s.push != nil {
		if err := s.pushToDevices(ctx, msg); err != nil {
			log.Printf("❌ Push delivery failed for user %s: %v", msg.UserID, err)
			errs = append(errs, fmt.Errorf("push: %w", err))
		}
	}

	if s.events != nil {
		if err := s.events.Publish(ctx, msg); err != nil {
			log.Printf("❌ Failed to publish notification for user %s: %v", msg.UserID, err)
			errs = append(errs, fmt.Errorf("publish: %w", err))
		}
	}

	if s.email != nil && emailKinds[msg.Kind] {
		if err := s.emailUser(ctx, msg); err != nil {
			log.Printf("❌ E-mail delivery failed for user %s: %v", msg.UserID, err)
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %v", ErrNetwork, errors.Join(errs...))
	}
	return nil
}

// SendBulk sends msgs concurrently and returns how many were fully delivered.
func (s *NotificationService) SendBulk(ctx context.Context, msgs []NotificationMessage) int {
	results := make([]bool, len(msgs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkConcurrency)
	for i, msg := range msgs {
		i, msg := i, msg
		g.Go(func() error {
			results[i] = s.Send(gctx, msg) == nil
			return nil
		})
	}
	_ = g.Wait()

	delivered := 0
	for _, ok := range results {
		if ok {
			delivered++
		}
	}
	return delivered
}

func (s *NotificationService) pushToDevices(ctx context.Context, msg NotificationMessage) error {
	var tokens []models.PushToken
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", msg.UserID, true).
		Find(&tokens).Error; err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}

	values := make([]string, 0, len(tokens))
	for _, t := range tokens {
		values = append(values, t.Token)
	}
	return s.push.Push(ctx, values, msg)
}

func (s *NotificationService) emailUser(ctx context.Context, msg NotificationMessage) error {
	var user models.User
	if err := s.db.WithContext(ctx).Select("id", "email").First(&user, "id = ?", msg.UserID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}
	if user.Email == "" {
		return nil
	}
	return s.email.SendEmail(ctx, user.Email, msg.Title, emailBody(msg))
}

func emailBody(msg NotificationMessage) string {
	body := msg.Message
	for _, a := range msg.Actions {
		body += fmt.Sprintf("\n- %s (%s)", a.Title, a.Action)
	}
	return body
}

// Inbox

func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}
	var notifications []models.Notification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&notifications).Error
	if err != nil {
		return nil, storeErr(err, "notifications")
	}
	return notifications, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, storeErr(err, "unread count")
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	result := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(map[string]interface{}{"read": true, "updated_at": time.Now()})
	if result.Error != nil {
		return storeErr(result.Error, "notification "+id)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: notification %s", ErrNotFound, id)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = ?", userID, false).
		Updates(map[string]interface{}{"read": true, "updated_at": time.Now()}).Error
	return storeErr(err, "mark notifications read")
}

// RegisterPushToken stores a device token, moving it to userID if another
// account registered it before.
func (s *NotificationService) RegisterPushToken(ctx context.Context, userID, token, platform, deviceID string) error {
	var existing models.PushToken
	err := s.db.WithContext(ctx).Where("token = ?", token).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		pt := models.PushToken{
			UserID:   userID,
			Token:    token,
			Platform: platform,
			DeviceID: deviceID,
			Active:   true,
		}
		if err := s.db.WithContext(ctx).Create(&pt).Error; err != nil {
			return storeErr(err, "create push token")
		}
		log.Printf("✅ Push token registered for user %s", userID)
	case err != nil:
		return storeErr(err, "push token")
	default:
		existing.UserID = userID
		existing.Platform = platform
		existing.DeviceID = deviceID
		existing.Active = true
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return storeErr(err, "update push token")
		}
		log.Printf("✅ Push token updated for user %s", userID)
	}
	return nil
}

// ExpoPusher sends push notifications through the Expo push API.
type ExpoPusher struct {
	client *resty.Client
	url    string
}

func NewExpoPusher(url string) *ExpoPusher {
	if url == "" {
		url = DefaultExpoPushURL
	}
	client := resty.New().
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	return &ExpoPusher{client: client, url: url}
}

type expoMessage struct {
	To        string                 `json:"to"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Sound     string                 `json:"sound"`
	Priority  string                 `json:"priority"`
	ChannelID string                 `json:"channelId"`
}

func (p *ExpoPusher) Push(ctx context.Context, tokens []string, msg NotificationMessage) error {
	data := map[string]interface{}{"kind": msg.Kind}
	if msg.RequestID != "" {
		data["request_id"] = msg.RequestID
	}
	if len(msg.Actions) > 0 {
		data["actions"] = msg.Actions
	}

	batch := make([]expoMessage, 0, len(tokens))
	for _, token := range tokens {
		batch = append(batch, expoMessage{
			To:        token,
			Title:     msg.Title,
			Body:      msg.Message,
			Data:      data,
			Sound:     "default",
			Priority:  "high",
			ChannelID: "advice_updates",
		})
	}

	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(batch).
		Post(p.url)
	if err != nil {
		return err
	}
	if resp.StatusCode() >= 400 {
		return fmt.Errorf("expo push failed: %s - %s", resp.Status(), resp.String())
	}
	log.Printf("✅ Expo push sent to %d device(s)", len(tokens))
	return nil
}

// RedisPublisher publishes notifications on a Redis pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(addr, password, channel string) *RedisPublisher {
	return &RedisPublisher{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		channel: channel,
	}
}

func (p *RedisPublisher) Publish(ctx context.Context, msg NotificationMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return p.client.Publish(ctx, p.channel, payload).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// SendGridMailer sends e-mail through SendGrid.
type SendGridMailer struct {
	client   *sendgrid.Client
	fromName string
	from     string
}

func NewSendGridMailer(apiKey, from, fromName string) *SendGridMailer {
	return &SendGridMailer{
		client:   sendgrid.NewSendClient(apiKey),
		from:     from,
		fromName: fromName,
	}
}

func (m *SendGridMailer) SendEmail(ctx context.Context, to, subject, body string) error {
	message := mail.NewSingleEmail(
		mail.NewEmail(m.fromName, m.from),
		subject,
		mail.NewEmail("", to),
		body,
		strings.ReplaceAll(html.EscapeString(body), "\n", "<br>"),
	)
	resp, err := m.client.SendWithContext(ctx, message)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid returned %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}
