package draft

import (
	"context"
	"errors"
	"time"

	"github.com/voxpost/voxpost/internal/domain"
)

var (
	ErrAlreadyExists = errors.New("draft already exists")
	ErrNotFound      = errors.New("draft not found")
)

// Record is a persisted draft together with its durable envelope.
type Record struct {
	Draft     domain.DraftPost
	Status    domain.PostStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	ErrorLog  []domain.ErrorLogEntry
}

// Filter narrows a Stream call.
type Filter struct {
	Status *domain.PostStatus
	Limit  int
}

//go:generate go run go.uber.org/mock/mockgen -source=draft.go -destination=mocks/mock.go
type Repository interface {
	// Save inserts a new draft with the given status.
	Save(ctx context.Context, d *domain.DraftPost, status domain.PostStatus) error

	// Update replaces the payload of an existing draft.
	Update(ctx context.Context, id string, d *domain.DraftPost) error

	// Delete removes a draft and its audit trail.
	Delete(ctx context.Context, id string) error

	// GetByID returns a single record.
	GetByID(ctx context.Context, id string) (*Record, error)

	// Stream returns records matching the filter, newest first.
	Stream(ctx context.Context, f Filter) ([]*Record, error)

	// SetStatus writes the terminal or scheduled status for a draft.
	SetStatus(ctx context.Context, id string, status domain.PostStatus) error

	// AppendErrorLog appends one audit entry; existing entries are never
	// overwritten.
	AppendErrorLog(ctx context.Context, id string, entry domain.ErrorLogEntry) error

	// ListDue returns scheduled drafts whose schedule time is at or before
	// the given instant.
	ListDue(ctx context.Context, before time.Time) ([]*Record, error)

	// CleanupOldRecords deletes terminal records older than the duration.
	CleanupOldRecords(ctx context.Context, olderThan time.Duration) (int64, error)
}
