package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"advice-moderation-server/models"
)

type BulkKind string

const (
	BulkApprove BulkKind = "approve"
	BulkDeny    BulkKind = "deny"
)

type BulkAction struct {
	Kind   BulkKind
	Reason string
	Notes  string
}

// BulkItem is the outcome for one id.
type BulkItem struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

type BulkResult struct {
	Requested int        `json:"requested"`
	Succeeded int        `json:"succeeded"`
	Failed    int        `json:"failed"`
	Items     []BulkItem `json:"items"`
}

// moderator is the slice of ModerationService the coordinator drives.
type moderator interface {
	Approve(ctx context.Context, id string, routing models.RequestType) (ModerationResult, error)
	Deny(ctx context.Context, id, reason, notes string) (ModerationResult, error)
}

// BulkCoordinator applies one action to many requests concurrently. Items
// succeed or fail independently.
type BulkCoordinator struct {
	moderation  moderator
	concurrency int
}

func NewBulkCoordinator(m moderator, concurrency int) *BulkCoordinator {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &BulkCoordinator{moderation: m, concurrency: concurrency}
}

// Apply runs action on every id. Item failures are reported per id and never
// fail the call; only invalid input does.
func (b *BulkCoordinator) Apply(ctx context.Context, ids []string, action BulkAction) (BulkResult, error) {
	ids = dedupIDs(ids)
	if len(ids) == 0 {
		return BulkResult{}, fmt.Errorf("%w: no items selected", ErrValidation)
	}
	switch action.Kind {
	case BulkApprove:
	case BulkDeny:
		if strings.TrimSpace(action.Reason) == "" {
			return BulkResult{}, fmt.Errorf("%w: denial reason is required", ErrValidation)
		}
	default:
		return BulkResult{}, fmt.Errorf("%w: unknown bulk action %q", ErrValidation, action.Kind)
	}

	items := make([]BulkItem, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			var err error
			switch action.Kind {
			case BulkApprove:
				_, err = b.moderation.Approve(gctx, id, "")
			case BulkDeny:
				_, err = b.moderation.Deny(gctx, id, action.Reason, action.Notes)
			}
			items[i] = BulkItem{ID: id, Success: err == nil}
			if err != nil {
				items[i].Error = err.Error()
				items[i].Code = ErrorCode(err)
				log.Printf("⚠️ Bulk %s failed for request %s: %v", action.Kind, id, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := BulkResult{Requested: len(ids), Items: items}
	for _, item := range items {
		if item.Success {
			result.Succeeded++
		} else {
			result.Failed++
		}
	}
	log.Printf("📊 Bulk %s: %d/%d succeeded", action.Kind, result.Succeeded, result.Requested)
	return result, nil
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// ErrorCode is a stable machine-readable name for err's category.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrInvalidType):
		return "invalid_type"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "internal"
	}
}
