package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"advice-moderation-server/models"
)

// setupTestDB opens an in-memory SQLite DB with every table migrated.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql db: %v", err)
	}
	// every pooled connection to :memory: would be a fresh database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.User{},
		&models.Expert{},
		&models.AdviceRequest{},
		&models.Response{},
		&models.Notification{},
		&models.PushToken{},
		&models.RefreshToken{},
	); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

// recordingNotifier captures what the moderation service sends.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []NotificationMessage
	fail bool
}

func (n *recordingNotifier) Send(_ context.Context, msg NotificationMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
	if n.fail {
		return ErrNetwork
	}
	return nil
}

func (n *recordingNotifier) SendBulk(ctx context.Context, msgs []NotificationMessage) int {
	delivered := 0
	for _, m := range msgs {
		if n.Send(ctx, m) == nil {
			delivered++
		}
	}
	return delivered
}

func (n *recordingNotifier) messages() []NotificationMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NotificationMessage(nil), n.sent...)
}

func (n *recordingNotifier) byKind(kind models.NotificationKind) []NotificationMessage {
	var out []NotificationMessage
	for _, m := range n.messages() {
		if m.Kind == kind {
			out = append(out, m)
		}
	}
	return out
}

// recordingBroadcaster captures operator broadcasts.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (b *recordingBroadcaster) BroadcastToOperators(msgType string, _ interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, msgType)
}

func (b *recordingBroadcaster) count(msgType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, e := range b.events {
		if e == msgType {
			n++
		}
	}
	return n
}

func createUser(t *testing.T, db *gorm.DB, email string, role models.UserRole) models.User {
	t.Helper()
	u := models.User{FullName: "Test " + string(role), Email: email, PasswordHash: "x", Role: role, IsActive: true}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func createExpert(t *testing.T, db *gorm.DB, name string, available bool, rating float64) models.Expert {
	t.Helper()
	u := createUser(t, db, name+"@example.com", models.RoleExpert)
	e := models.Expert{UserID: u.ID, Name: name, Email: u.Email, Rating: rating, IsAvailable: available}
	if err := db.Create(&e).Error; err != nil {
		t.Fatalf("failed to create expert: %v", err)
	}
	return e
}

func createRequest(t *testing.T, db *gorm.DB, r models.AdviceRequest) models.AdviceRequest {
	t.Helper()
	if r.UserID == "" {
		r.UserID = "submitter-1"
	}
	if r.Question == "" {
		r.Question = "How do I approach a first date?"
	}
	if r.Content == "" {
		r.Content = "Some details"
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
		r.UpdatedAt = r.CreatedAt
	}
	if err := db.Create(&r).Error; err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return r
}
