package services

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"advice-moderation-server/models"
)

const (
	FilterAll      = "all"
	PriorityHigh   = "high"
	PriorityNormal = "normal"

	SortAsc  = "asc"
	SortDesc = "desc"
)

// QueueQuery is an operator's view of the moderation queue. Blank or "all"
// filters match everything.
type QueueQuery struct {
	Search    string
	Type      string
	Priority  string
	Category  string
	Status    string
	SortField string
	SortDir   string
}

type requestLess func(a, b *models.AdviceRequest) bool

var sortFields = map[string]requestLess{
	"createdAt": func(a, b *models.AdviceRequest) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updatedAt": func(a, b *models.AdviceRequest) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
	"category":  func(a, b *models.AdviceRequest) bool { return a.Category < b.Category },
	"question":  func(a, b *models.AdviceRequest) bool { return a.Question < b.Question },
	"status":    func(a, b *models.AdviceRequest) bool { return a.Status < b.Status },
	"type":      func(a, b *models.AdviceRequest) bool { return a.Type < b.Type },
	"commissionRate": func(a, b *models.AdviceRequest) bool {
		return a.CommissionRate < b.CommissionRate
	},
}

// Validate rejects filter and sort values the projection does not understand.
func (q QueueQuery) Validate() error {
	switch q.Priority {
	case "", FilterAll, PriorityHigh, PriorityNormal:
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrValidation, q.Priority)
	}
	if !isAll(q.Type) && !models.RequestType(q.Type).IsValid() {
		return fmt.Errorf("%w: unknown type %q", ErrValidation, q.Type)
	}
	if !isAll(q.Status) && !models.RequestStatus(q.Status).IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, q.Status)
	}
	if q.SortField != "" {
		if _, ok := sortFields[q.SortField]; !ok {
			return fmt.Errorf("%w: cannot sort by %q", ErrValidation, q.SortField)
		}
	}
	switch q.SortDir {
	case "", SortAsc, SortDesc:
	default:
		return fmt.Errorf("%w: sort direction must be asc or desc", ErrValidation)
	}
	return nil
}

func isAll(v string) bool {
	return v == "" || v == FilterAll
}

// ProjectQueue filters and orders requests for display. Urgent requests
// always come first; ties keep their input order. The input slice is not
// modified.
func ProjectQueue(requests []models.AdviceRequest, q QueueQuery) []models.AdviceRequest {
	term := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]models.AdviceRequest, 0, len(requests))
	for _, r := range requests {
		if term != "" &&
			!strings.Contains(strings.ToLower(r.Question), term) &&
			!strings.Contains(strings.ToLower(r.Content), term) &&
			!strings.Contains(strings.ToLower(r.Category), term) {
			continue
		}
		if !isAll(q.Type) && string(r.Type) != q.Type {
			continue
		}
		if !isAll(q.Category) && r.Category != q.Category {
			continue
		}
		if !isAll(q.Status) && string(r.Status) != q.Status {
			continue
		}
		switch q.Priority {
		case PriorityHigh:
			if !r.IsUrgent {
				continue
			}
		case PriorityNormal:
			if r.IsUrgent {
				continue
			}
		}
		out = append(out, r)
	}

	less, ok := sortFields[q.SortField]
	if !ok {
		less = sortFields["createdAt"]
	}
	desc := q.SortDir != SortAsc

	sort.SliceStable(out, func(i, j int) bool {
		a, b := &out[i], &out[j]
		if a.IsUrgent != b.IsUrgent {
			return a.IsUrgent
		}
		if desc {
			return less(b, a)
		}
		return less(a, b)
	})
	return out
}

// Categories lists the distinct non-empty categories, sorted.
func Categories(requests []models.AdviceRequest) []string {
	seen := make(map[string]struct{})
	categories := []string{}
	for _, r := range requests {
		if r.Category == "" {
			continue
		}
		if _, ok := seen[r.Category]; ok {
			continue
		}
		seen[r.Category] = struct{}{}
		categories = append(categories, r.Category)
	}
	sort.Strings(categories)
	return categories
}

// QueueStats are the counters shown above the moderation queue.
type QueueStats struct {
	HighPriority  int `json:"high_priority"`
	PendingReview int `json:"pending_review"`
	ExpertContent int `json:"expert_content"`
	ApprovedToday int `json:"approved_today"`
}

// ComputeStats counts requests as of now. A request counts as approved
// today when it is still approved and last changed on now's calendar day.
func ComputeStats(requests []models.AdviceRequest, now time.Time) QueueStats {
	var stats QueueStats
	y, m, d := now.Date()
	for _, r := range requests {
		if r.IsUrgent {
			stats.HighPriority++
		}
		if r.Status == models.RequestStatusPending {
			stats.PendingReview++
		}
		if r.Type == models.RequestTypeExpert {
			stats.ExpertContent++
		}
		if r.Status == models.RequestStatusApproved {
			ry, rm, rd := r.UpdatedAt.In(now.Location()).Date()
			if ry == y && rm == m && rd == d {
				stats.ApprovedToday++
			}
		}
	}
	return stats
}

// Paginate slices items for page (1-based) of size limit.
func Paginate[T any](items []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		return []T{}
	}
	pages := len(items) / limit
	if len(items)%limit != 0 {
		pages++
	}
	if page-1 >= pages {
		return []T{}
	}
	start := (page - 1) * limit
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
