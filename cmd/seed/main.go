// Command seed loads a small demo data set: staff accounts, two experts and
// a pair of pending requests. Run the server once first so the tables exist.
package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"advice-moderation-server/utils"
)

type seedUser struct {
	id, name, email, role string
}

type seedExpert struct {
	user                       seedUser
	specialties                []string
	credentials                string
	rating                     float64
	totalResponses, successful int
}

type seedRequest struct {
	question, content, category, reqType string
	urgent                               bool
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL is required")
	}
	password := os.Getenv("SEED_PASSWORD")
	if password == "" {
		password = "ChangeMe123"
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}
	log.Println("✅ Successfully connected to database")

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		log.Fatal("Failed to check users count:", err)
	}
	if count > 0 {
		log.Printf("⚠️  Users already exist (%d found). Skipping seed.", count)
		return
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	admin := seedUser{uuid.NewString(), "Admin", "admin@example.com", "admin"}
	moderator := seedUser{uuid.NewString(), "Moderator", "moderator@example.com", "moderator"}
	submitter := seedUser{uuid.NewString(), "Test User", "user@example.com", "user"}
	experts := []seedExpert{
		{
			user:           seedUser{uuid.NewString(), "Dr. Sarah Johnson", "sarah@example.com", "expert"},
			specialties:    []string{"Relationships", "Dating", "Communication"},
			credentials:    "PhD in Psychology, Stanford University (2015)",
			rating:         4.9,
			totalResponses: 156,
			successful:     153,
		},
		{
			user:           seedUser{uuid.NewString(), "Mark Williams", "mark@example.com", "expert"},
			specialties:    []string{"Dating Apps", "Modern Dating", "Online Relationships"},
			credentials:    "Certified Relationship Coach, International Coaching Federation (2018)",
			rating:         4.7,
			totalResponses: 89,
			successful:     85,
		},
	}
	requests := []seedRequest{
		{
			question: "Need advice on rebuilding trust",
			content:  "My partner broke my trust recently, but I want to make it work. How do I move forward?",
			category: "Relationships",
			reqType:  "expert",
			urgent:   true,
		},
		{
			question: "Dating app profile review",
			content:  "Not getting many matches. Can someone review my profile and give tips?",
			category: "Dating Apps",
			reqType:  "regular",
		},
	}

	tx, err := db.Begin()
	if err != nil {
		log.Fatal("Failed to begin transaction:", err)
	}
	defer tx.Rollback()

	now := time.Now()
	users := []seedUser{admin, moderator, submitter}
	for _, e := range experts {
		users = append(users, e.user)
	}
	for _, u := range users {
		_, err := tx.Exec(`INSERT INTO users (id, full_name, email, password_hash, role, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, true, $6, $6)`, u.id, u.name, u.email, hash, u.role, now)
		if err != nil {
			log.Fatalf("Failed to insert user %s: %v", u.email, err)
		}
	}
	log.Printf("👥 Created %d users", len(users))

	for _, e := range experts {
		specialties, _ := json.Marshal(e.specialties)
		rate := float64(e.successful) / float64(e.totalResponses) * 100
		_, err := tx.Exec(`INSERT INTO experts (id, user_id, name, email, specialties, credentials, rating, response_rate,
				total_responses, successful_responses, is_available, default_commission_rate, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, true, 0.5, $11, $11)`,
			uuid.NewString(), e.user.id, e.user.name, e.user.email, string(specialties), e.credentials,
			e.rating, rate, e.totalResponses, e.successful, now)
		if err != nil {
			log.Fatalf("Failed to insert expert %s: %v", e.user.name, err)
		}
	}
	log.Printf("👥 Created %d experts", len(experts))

	for _, r := range requests {
		_, err := tx.Exec(`INSERT INTO advice_requests (id, user_id, question, content, status, is_urgent, category, type,
				is_exclusive, commission_rate, refund_status, media_attachments, created_at, updated_at)
			VALUES ($1, $2, $3, $4, 'pending', $5, $6, $7, false, 0.5, 'none', '[]', $8, $8)`,
			uuid.NewString(), submitter.id, r.question, r.content, r.urgent, r.category, r.reqType, now)
		if err != nil {
			log.Fatalf("Failed to insert request %q: %v", r.question, err)
		}
	}
	log.Printf("📝 Created %d requests", len(requests))

	if err := tx.Commit(); err != nil {
		log.Fatal("Failed to commit seed:", err)
	}
	log.Printf("✨ Database seeded. Staff and expert accounts use the password from SEED_PASSWORD")
}
