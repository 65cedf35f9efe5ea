package coordinator

import (
	"context"
	"errors"

	"github.com/voxpost/voxpost/internal/domain"
)

var (
	ErrNoActiveDraft     = errors.New("no active draft")
	ErrNotReady          = errors.New("draft is not ready to publish")
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrAlreadyInProgress = errors.New("publish already in progress")
)

// ContentOption adjusts fields of the draft content beyond the main text.
// Fields without an option supplied are preserved as-is.
type ContentOption func(*domain.Content)

func WithHashtags(tags []string) ContentOption {
	return func(c *domain.Content) { c.Hashtags = append([]string(nil), tags...) }
}

func WithMentions(mentions []string) ContentOption {
	return func(c *domain.Content) { c.Mentions = append([]string(nil), mentions...) }
}

func WithLink(link string) ContentOption {
	return func(c *domain.Content) { c.Link = link }
}

//go:generate go run go.uber.org/mock/mockgen -source=coordinator.go -destination=mocks/mock.go
type Client interface {
	// Adopt installs a freshly parsed draft as the active one and persists it.
	Adopt(ctx context.Context, d *domain.DraftPost) error

	// SyncWithExisting installs an already persisted draft, for example one
	// picked up by the scheduler or recovered after a restart. Installing
	// replaces whatever draft is currently active, so callers that must not
	// preempt an edit in progress check Snapshot first.
	SyncWithExisting(ctx context.Context, d *domain.DraftPost) error

	// UpdateContent replaces the main text. Hashtags, mentions, link and
	// media survive unless an explicit option overrides them.
	UpdateContent(ctx context.Context, text string, opts ...ContentOption) error

	// UpdateSchedule accepts "now" or an RFC 3339 timestamp in the future.
	UpdateSchedule(ctx context.Context, schedule string) error

	// ReplaceMedia swaps the attached media atomically. A non-empty
	// replacement clears any unresolved media query.
	ReplaceMedia(ctx context.Context, items []domain.MediaItem) error

	// TogglePlatform adds or removes a publish target.
	TogglePlatform(ctx context.Context, p domain.Platform) error

	// ExecutionReadiness recomputes publishability from current state on
	// every call; nothing about it is cached.
	ExecutionReadiness(ctx context.Context) domain.Readiness

	// FinalizeAndExecutePost publishes to every selected platform
	// concurrently and reports per-platform success. A fully successful run
	// resets the coordinator; a partial failure keeps the draft active so a
	// retry hits only the platforms that failed.
	FinalizeAndExecutePost(ctx context.Context) (map[domain.Platform]bool, error)

	// Reset unconditionally drops the active draft.
	Reset()

	// Snapshot returns a deep copy of the active draft, or nil.
	Snapshot() *domain.DraftPost

	// Subscribe registers an observer of draft changes. Each notification
	// carries a deep copy; a nil value means the coordinator was reset.
	Subscribe() <-chan *domain.DraftPost
}
