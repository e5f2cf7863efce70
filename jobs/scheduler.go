package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	"advice-moderation-server/config"
	"advice-moderation-server/models"
)

const jobTimeout = 5 * time.Minute

// TokenCleaner removes expired refresh tokens
type TokenCleaner interface {
	CleanupExpiredTokens(ctx context.Context) (int64, error)
}

// LimiterSweeper drops idle rate-limit buckets
type LimiterSweeper interface {
	Cleanup(maxIdle time.Duration) int
}

// Scheduler runs the periodic maintenance jobs
type Scheduler struct {
	cron    *cron.Cron
	db      *gorm.DB
	tokens  TokenCleaner
	limiter LimiterSweeper
}

func NewScheduler(db *gorm.DB, tokens TokenCleaner, limiter LimiterSweeper) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		db:      db,
		tokens:  tokens,
		limiter: limiter,
	}
}

// Register adds every job using the cron specs in cfg
func (s *Scheduler) Register(cfg config.JobsConfig) error {
	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"cleanup_tokens", cfg.TokenCleanupSpec, s.CleanupTokens},
		{"expert_stats", cfg.ExpertStatsSpec, s.RecomputeExpertStats},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cron.AddFunc(j.spec, func() { s.run(j.name, j.run) }); err != nil {
			return fmt.Errorf("schedule %s (%q): %w", j.name, j.spec, err)
		}
	}
	if s.limiter != nil {
		if _, err := s.cron.AddFunc("@every 10m", func() {
			if n := s.limiter.Cleanup(time.Hour); n > 0 {
				log.Printf("🧹 Dropped %d idle rate limiters", n)
			}
		}); err != nil {
			return fmt.Errorf("schedule limiter sweep: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) run(name string, job func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	start := time.Now()
	if err := job(ctx); err != nil {
		log.Printf("❌ Job %s failed: %v", name, err)
		return
	}
	log.Printf("✅ Job %s finished in %v", name, time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
	log.Println("🚀 Job scheduler started")
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("🛑 Job scheduler stopped")
}

// CleanupTokens deletes expired refresh tokens
func (s *Scheduler) CleanupTokens(ctx context.Context) error {
	n, err := s.tokens.CleanupExpiredTokens(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("🧹 Removed %d expired refresh tokens", n)
	}
	return nil
}

type responseTally struct {
	AuthorID   string
	Total      int
	Successful int
}

// RecomputeExpertStats rebuilds every expert's response counters from the
// moderated responses they authored. Pending responses are not counted.
func (s *Scheduler) RecomputeExpertStats(ctx context.Context) error {
	var tallies []responseTally
	err := s.db.WithContext(ctx).
		Model(&models.Response{}).
		Select("author_id, COUNT(*) AS total, SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) AS successful", models.ResponseStatusApproved).
		Where("author_type = ? AND status <> ?", models.AuthorExpert, models.ResponseStatusPending).
		Group("author_id").
		Scan(&tallies).Error
	if err != nil {
		return fmt.Errorf("tally responses: %w", err)
	}
	byUser := make(map[string]responseTally, len(tallies))
	for _, t := range tallies {
		byUser[t.AuthorID] = t
	}

	var experts []models.Expert
	if err := s.db.WithContext(ctx).Find(&experts).Error; err != nil {
		return fmt.Errorf("load experts: %w", err)
	}

	updated := 0
	for i := range experts {
		e := &experts[i]
		t := byUser[e.UserID]
		if e.TotalResponses == t.Total && e.SuccessfulResponses == t.Successful {
			continue
		}
		e.TotalResponses = t.Total
		e.SuccessfulResponses = t.Successful
		if err := s.db.WithContext(ctx).Save(e).Error; err != nil {
			return fmt.Errorf("save expert %s: %w", e.ID, err)
		}
		updated++
	}
	if updated > 0 {
		log.Printf("📊 Refreshed response stats for %d experts", updated)
	}
	return nil
}
