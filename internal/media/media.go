package media

import (
	"context"

	"github.com/voxpost/voxpost/internal/domain"
	"github.com/voxpost/voxpost/internal/repositories/source"
)

//go:generate go run go.uber.org/mock/mockgen -source=media.go -destination=mocks/mock.go
type Coordinator interface {
	// ResolveCandidates turns a structured media query into an ordered list
	// of concrete candidates. Empty search terms mean "browse all"; a query
	// matching nothing returns an empty list, not an error.
	ResolveCandidates(ctx context.Context, q domain.MediaQuery) ([]domain.MediaItem, error)

	// Validate checks a file reference against live storage. It never
	// answers from a cache.
	Validate(ctx context.Context, fileURI string) bool

	// RecoverDraft re-validates a draft's media, dropping stale items. It
	// returns nil when the draft had nothing to recover, and is idempotent.
	RecoverDraft(ctx context.Context, d *domain.DraftPost) (*domain.DraftPost, error)

	// Source registry management.
	AddSource(ctx context.Context, displayName, path string) (*source.Source, error)
	RemoveSource(ctx context.Context, id string) error
	SetSourceEnabled(ctx context.Context, id string, enabled bool) error
	SetCustomSourcesEnabled(ctx context.Context, enabled bool) error
	ListSources(ctx context.Context) []source.Source
}
